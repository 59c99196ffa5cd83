// Package app is the badge application: the event dispatcher and the
// wiring of store, display, radio, BLE and sensor around it.
package app

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/ble"
	"github.com/robotalks/lorabadge/pkg/events"
	fx "github.com/robotalks/lorabadge/pkg/framework"
	"github.com/robotalks/lorabadge/pkg/radio"
	"github.com/robotalks/lorabadge/pkg/sensor"
)

// Defaults of the dispatcher.
const (
	DefaultAdvertiseTimeout = 15 * time.Second
	DefaultInterByteDelay   = 5 * time.Millisecond
	DefaultFailLimit        = 10
	DefaultRestartDelay     = 100 * time.Millisecond
)

// DefaultStatusPacket is sent on every status tick.
var DefaultStatusPacket = []byte{0x10, 0x00, 0x00}

// ByteHandler consumes BLE input, e.g. the AT command interpreter.
type ByteHandler interface {
	Feed(b byte)
}

// ByteHandlerFunc is the func form of ByteHandler.
type ByteHandlerFunc func(b byte)

// Feed implements ByteHandler.
func (f ByteHandlerFunc) Feed(b byte) {
	f(b)
}

// NopHandler discards input.
var NopHandler = ByteHandlerFunc(func(byte) {})

// Restarter restarts the device.
type Restarter interface {
	Restart()
}

// RestartFunc is the func form of Restarter.
type RestartFunc func()

// Restart implements Restarter.
func (f RestartFunc) Restart() {
	f()
}

// Dispatcher services the event mask once per pass in a fixed order:
// Status, AccTrigger, BLEData, LoRaJoinFin, LoRaData, LoRaTxFin.
// Each flag is taken before its side effects run, so a flag raised by
// a side effect is serviced in a later pass.
type Dispatcher struct {
	Events     *events.Mask
	Radio      radio.Radio
	UART       ble.UART
	Handler    ByteHandler
	BLEEnabled bool
	Advertiser ble.Advertiser
	Accel      sensor.Accelerometer
	Restarter  Restarter

	AdvertiseTimeout time.Duration
	InterByteDelay   time.Duration
	FailLimit        int
	RestartDelay     time.Duration
	StatusPacket     []byte
	Sleep            func(time.Duration)

	sendFail atomic.Int32
}

// NewDispatcher creates a Dispatcher with default settings.
func NewDispatcher(mask *events.Mask, r radio.Radio) *Dispatcher {
	return &Dispatcher{
		Events:           mask,
		Radio:            r,
		AdvertiseTimeout: DefaultAdvertiseTimeout,
		InterByteDelay:   DefaultInterByteDelay,
		FailLimit:        DefaultFailLimit,
		RestartDelay:     DefaultRestartDelay,
		StatusPacket:     DefaultStatusPacket,
	}
}

// SendFailures returns the consecutive transmit failure counter. It is
// only incremented, a successful transmission doesn't reset it.
func (d *Dispatcher) SendFailures() int {
	return int(d.sendFail.Load())
}

// AddToLoop implements LoopAdder.
func (d *Dispatcher) AddToLoop(loop *fx.Loop) {
	d.Events.SetWaker(loop)
	loop.AddController(fx.PrLvDispatch, d)
}

// Control implements Controller.
func (d *Dispatcher) Control(fx.ControlContext) error {
	d.Dispatch()
	return nil
}

// Dispatch runs one pass.
func (d *Dispatcher) Dispatch() {
	d.handleStatus()
	d.handleAccTrigger()
	d.handleBLEData()
	d.handleJoinFinished()
	d.handleLoRaData()
	d.handleTxFinished()
}

func (d *Dispatcher) handleStatus() {
	if !d.Events.Take(events.Status) {
		return
	}
	glog.Info("[APP] Timer wakeup")
	d.restartAdvertising()

	if d.Radio == nil {
		return
	}
	switch d.Radio.Send(d.StatusPacket) {
	case radio.Enqueued:
		glog.Info("[APP] Packet enqueued")
	case radio.Busy:
		glog.Info("[APP] LoRa transceiver is busy")
	case radio.TooLarge:
		glog.Info("[APP] Packet error, too big to send with current DR")
	}
}

func (d *Dispatcher) handleAccTrigger() {
	if !d.Events.IsSet(events.AccTrigger) || d.Radio == nil || !d.Radio.Joined() {
		return
	}
	d.Events.Clear(events.AccTrigger)
	glog.Info("[APP] ACC triggered")
	if d.Accel != nil {
		if err := d.Accel.ClearInterrupt(); err != nil {
			glog.Errorf("[APP] clear ACC interrupt: %v", err)
		}
	}
	d.Events.Raise(events.Status)
}

func (d *Dispatcher) handleBLEData() {
	if !d.Events.Take(events.BLEData) {
		return
	}
	if !d.BLEEnabled || d.UART == nil {
		return
	}
	glog.V(1).Info("[AT] RECEIVED BLE")
	handler := d.Handler
	if handler == nil {
		handler = NopHandler
	}
	for d.UART.Available() > 0 {
		b, err := d.UART.ReadByte()
		if err != nil {
			break
		}
		handler.Feed(b)
		d.sleep(d.InterByteDelay)
	}
	handler.Feed('\n')
}

func (d *Dispatcher) handleJoinFinished() {
	if !d.Events.Take(events.LoRaJoinFin) || d.Radio == nil {
		return
	}
	if d.Radio.JoinResult() {
		glog.Info("[APP] Successfully joined network")
		return
	}
	glog.Warning("[APP] Join network failed")
	if err := d.Radio.Join(); err != nil {
		glog.Errorf("[APP] rejoin: %v", err)
	}
	d.restartAdvertising()
}

func (d *Dispatcher) handleLoRaData() {
	if !d.Events.Take(events.LoRaData) {
		return
	}
	glog.Info("[APP] Received package over LoRa")
	if d.Radio != nil && glog.V(1) {
		glog.Infof("[APP] %s", HexDump(d.Radio.Received()))
	}
}

func (d *Dispatcher) handleTxFinished() {
	if !d.Events.Take(events.LoRaTxFin) || d.Radio == nil {
		return
	}
	ok := d.Radio.TxResult()
	result := "failed NAK"
	if ok {
		result = "finished ACK"
	}
	glog.Infof("[APP] LPWAN TX cycle %s", result)
	if ok {
		return
	}
	fails := int(d.sendFail.Add(1))
	if fails == d.FailLimit {
		glog.Errorf("[APP] %d failed transmissions, restarting", fails)
		d.sleep(d.RestartDelay)
		if d.Restarter != nil {
			d.Restarter.Restart()
		}
	}
}

func (d *Dispatcher) restartAdvertising() {
	if !d.BLEEnabled || d.Advertiser == nil {
		return
	}
	if err := d.Advertiser.RestartAdvertising(d.AdvertiseTimeout); err != nil {
		glog.Errorf("[APP] restart advertising: %v", err)
	}
}

func (d *Dispatcher) sleep(dur time.Duration) {
	if dur <= 0 {
		return
	}
	if d.Sleep != nil {
		d.Sleep(dur)
		return
	}
	time.Sleep(dur)
}

// HexDump formats data as "%02X " per byte.
func HexDump(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X ", b)
	}
	return sb.String()
}
