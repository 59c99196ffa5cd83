package mqtt

import (
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/google/uuid"

	"github.com/robotalks/lorabadge/pkg/radio"
)

// Radio implements radio.Radio over MQTT. Join connects to the broker,
// Send publishes an Uplink and at most one publish is in flight.
type Radio struct {
	*radio.Status

	Transport  Transport
	DeviceID   string
	MaxPayload int

	lock     sync.Mutex
	inflight bool
	seq      uint32
	lost     bool
}

// New creates a Radio.
func New(transport Transport, deviceID string, status *radio.Status) *Radio {
	return &Radio{
		Status:     status,
		Transport:  transport,
		DeviceID:   deviceID,
		MaxPayload: radio.DefaultMaxPayload,
	}
}

// NewFromURL creates a Radio connected to the broker at brokerURL.
func NewFromURL(brokerURL, deviceID string, status *radio.Status) (*Radio, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("badge:" + deviceID + ":" + uuid.New().String()[:8])
	}
	q := NewQueue(opts, prefix)
	r := New(q, deviceID, status)
	q.OnLost = func(*Queue, error) { r.connectionLost() }
	q.OnConnect = func(*Queue) { r.reconnected() }
	return r, nil
}

// UplinkTopic returns the topic frames are published to.
func (r *Radio) UplinkTopic() string {
	return r.DeviceID + "/up"
}

// DownlinkTopic returns the topic frames are received from.
func (r *Radio) DownlinkTopic() string {
	return r.DeviceID + "/down"
}

// Join implements radio.Radio.
func (r *Radio) Join() error {
	token := r.Transport.Connect()
	go func() {
		err := tokenError(token)
		if err == nil {
			err = tokenError(r.Transport.Sub(r.DownlinkTopic(), r.handleDownlink))
		}
		if err != nil {
			glog.Warningf("[RADIO] broker join failed: %v", err)
		}
		r.JoinFinished(err == nil)
	}()
	return nil
}

// Send implements radio.Radio.
func (r *Radio) Send(data []byte) radio.TxResult {
	if max := r.MaxPayload; max > 0 && len(data) > max {
		return radio.TooLarge
	}
	r.lock.Lock()
	if r.inflight {
		r.lock.Unlock()
		return radio.Busy
	}
	r.inflight = true
	r.seq++
	msg := &Uplink{DeviceID: r.DeviceID, Seq: r.seq, Payload: data}
	r.lock.Unlock()

	encoded, err := proto.Marshal(msg)
	if err != nil {
		glog.Errorf("[RADIO] encode uplink: %v", err)
		r.done(false)
		return radio.Enqueued
	}
	token := r.Transport.Pub(r.UplinkTopic(), encoded)
	go func() {
		r.done(waitToken(token))
	}()
	return radio.Enqueued
}

// Close disconnects from the broker.
func (r *Radio) Close() error {
	r.Lost()
	return r.Transport.Close()
}

func (r *Radio) connectionLost() {
	r.lock.Lock()
	r.lost = true
	r.lock.Unlock()
	r.Lost()
}

// reconnected restores the join after the client reconnected on its own,
// the queue has already resubscribed the downlink topic.
func (r *Radio) reconnected() {
	r.lock.Lock()
	lost := r.lost
	r.lost = false
	r.lock.Unlock()
	if lost {
		glog.Info("[RADIO] broker connection restored")
		r.JoinFinished(true)
	}
}

func (r *Radio) done(ok bool) {
	r.lock.Lock()
	r.inflight = false
	r.lock.Unlock()
	r.TxFinished(ok)
}

func (r *Radio) handleDownlink(topic string, payload []byte) {
	var msg Downlink
	if err := proto.Unmarshal(payload, &msg); err != nil {
		glog.Warningf("[RADIO] invalid downlink on %s: %v", topic, err)
		return
	}
	r.ReceivedData(msg.Payload)
}

func tokenError(token paho.Token) error {
	token.Wait()
	return token.Error()
}

func waitToken(token paho.Token) bool {
	return tokenError(token) == nil
}
