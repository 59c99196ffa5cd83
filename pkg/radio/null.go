package radio

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Null is a simulated radio. With zero Delay completions are reported
// before Join or Send returns.
type Null struct {
	*Status

	JoinOK     bool
	TxOK       bool
	Delay      time.Duration
	MaxPayload int

	lock     sync.Mutex
	inflight bool
	sent     [][]byte
	joins    int
}

// NewNull creates a Null radio which always succeeds.
func NewNull(status *Status) *Null {
	return &Null{Status: status, JoinOK: true, TxOK: true, MaxPayload: DefaultMaxPayload}
}

// Join implements Radio.
func (n *Null) Join() error {
	n.lock.Lock()
	n.joins++
	ok := n.JoinOK
	n.lock.Unlock()
	glog.V(1).Info("[RADIO] null join requested")
	n.after(func() { n.JoinFinished(ok) })
	return nil
}

// Send implements Radio.
func (n *Null) Send(data []byte) TxResult {
	if max := n.MaxPayload; max > 0 && len(data) > max {
		return TooLarge
	}
	n.lock.Lock()
	if n.inflight {
		n.lock.Unlock()
		return Busy
	}
	n.inflight = true
	n.sent = append(n.sent, append([]byte(nil), data...))
	ok := n.TxOK
	n.lock.Unlock()
	n.after(func() {
		n.lock.Lock()
		n.inflight = false
		n.lock.Unlock()
		n.TxFinished(ok)
	})
	return Enqueued
}

// Inject simulates a downlink frame.
func (n *Null) Inject(data []byte) {
	n.ReceivedData(data)
}

// Sent returns all accepted payloads.
func (n *Null) Sent() [][]byte {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([][]byte(nil), n.sent...)
}

// Joins returns the number of join requests.
func (n *Null) Joins() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.joins
}

func (n *Null) after(fn func()) {
	if n.Delay <= 0 {
		fn()
		return
	}
	time.AfterFunc(n.Delay, fn)
}
