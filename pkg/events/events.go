// Package events provides the pending event register shared between
// asynchronous producers (timers, interrupts, radio and BLE callbacks)
// and the single dispatcher consuming them.
package events

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Event is a set of event flags, one bit per event type.
type Event uint32

// Event types. Values follow the application event layout of the
// firmware API so masks logged by older builds stay readable.
const (
	Status      Event = 0x0001 // timer wakeup, send status packet
	BLEConfig   Event = 0x0002
	BLEData     Event = 0x0004 // BLE UART bytes available
	LoRaData    Event = 0x0008 // LoRa frame received
	LoRaTxFin   Event = 0x0010 // LoRa transmit cycle finished
	ATCommand   Event = 0x0020
	LoRaJoinFin Event = 0x0040 // LoRa join attempt finished
	AccTrigger  Event = 0x8000 // accelerometer interrupt

	None Event = 0
)

var eventNames = []struct {
	ev   Event
	name string
}{
	{Status, "STATUS"},
	{BLEConfig, "BLE_CONFIG"},
	{BLEData, "BLE_DATA"},
	{LoRaData, "LORA_DATA"},
	{LoRaTxFin, "LORA_TX_FIN"},
	{ATCommand, "AT_CMD"},
	{LoRaJoinFin, "LORA_JOIN_FIN"},
	{AccTrigger, "ACC_TRIGGER"},
}

// Has determines if all flags in ev are set in e.
func (e Event) Has(ev Event) bool {
	return e&ev == ev && ev != None
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e == None {
		return "NONE"
	}
	var names []string
	for _, n := range eventNames {
		if e&n.ev != 0 {
			names = append(names, n.name)
			e &^= n.ev
		}
	}
	if e != 0 {
		names = append(names, fmt.Sprintf("0x%04X", uint32(e)))
	}
	return strings.Join(names, "|")
}

// Raiser is the only capability handed to producers.
type Raiser interface {
	Raise(Event)
}

// RaiseFunc is the func form of Raiser.
type RaiseFunc func(Event)

// Raise implements Raiser.
func (f RaiseFunc) Raise(ev Event) {
	f(ev)
}

// Waker is notified after an event is raised so the consumer
// can schedule a pass without waiting for its next tick.
type Waker interface {
	TriggerNext()
}

// Mask is the pending event register.
// Producers only set bits and the dispatcher only clears them.
// All operations are atomic so producers may run on any goroutine.
type Mask struct {
	bits  uint32
	waker atomic.Value
}

type wakerBox struct {
	w Waker
}

// SetWaker installs the Waker notified on every Raise.
func (m *Mask) SetWaker(w Waker) {
	m.waker.Store(wakerBox{w})
}

// Raise sets the flags. Setting a flag already set is a no-op
// except that the waker is still notified.
func (m *Mask) Raise(ev Event) {
	for {
		old := atomic.LoadUint32(&m.bits)
		if atomic.CompareAndSwapUint32(&m.bits, old, old|uint32(ev)) {
			break
		}
	}
	if box, ok := m.waker.Load().(wakerBox); ok && box.w != nil {
		box.w.TriggerNext()
	}
}

// Pending returns all flags currently set.
func (m *Mask) Pending() Event {
	return Event(atomic.LoadUint32(&m.bits))
}

// IsSet determines if all flags in ev are set.
func (m *Mask) IsSet(ev Event) bool {
	return m.Pending().Has(ev)
}

// Clear clears the flags.
func (m *Mask) Clear(ev Event) {
	for {
		old := atomic.LoadUint32(&m.bits)
		if atomic.CompareAndSwapUint32(&m.bits, old, old&^uint32(ev)) {
			return
		}
	}
}

// Take clears ev and reports whether it was set.
// Flags raised again after Take stay pending for the next pass.
func (m *Mask) Take(ev Event) bool {
	for {
		old := atomic.LoadUint32(&m.bits)
		if Event(old)&ev != ev || ev == None {
			return false
		}
		if atomic.CompareAndSwapUint32(&m.bits, old, old&^uint32(ev)) {
			return true
		}
	}
}
