package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lorabadge/pkg/ble"
	"github.com/robotalks/lorabadge/pkg/events"
	"github.com/robotalks/lorabadge/pkg/radio"
	"github.com/robotalks/lorabadge/pkg/sensor"
)

type fakeRadio struct {
	joined   bool
	joinOK   bool
	txOK     bool
	result   radio.TxResult
	received []byte

	sent  [][]byte
	joins int
}

func (r *fakeRadio) Join() error {
	r.joins++
	return nil
}

func (r *fakeRadio) Send(data []byte) radio.TxResult {
	r.sent = append(r.sent, data)
	return r.result
}

func (r *fakeRadio) Joined() bool     { return r.joined }
func (r *fakeRadio) JoinResult() bool { return r.joinOK }
func (r *fakeRadio) TxResult() bool   { return r.txOK }
func (r *fakeRadio) Received() []byte { return r.received }

type fakeAdvertiser struct {
	timeouts []time.Duration
}

func (a *fakeAdvertiser) RestartAdvertising(timeout time.Duration) error {
	a.timeouts = append(a.timeouts, timeout)
	return nil
}

type fixture struct {
	mask     *events.Mask
	radio    *fakeRadio
	adv      *fakeAdvertiser
	uart     *ble.Buffer
	acc      *sensor.Sim
	fed      []byte
	sleeps   []time.Duration
	restarts int
	dispatch *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		mask:  &events.Mask{},
		radio: &fakeRadio{joined: true, joinOK: true, txOK: true},
		adv:   &fakeAdvertiser{},
	}
	f.uart = ble.NewBuffer(f.mask)
	f.acc = sensor.NewSim(f.mask)
	d := NewDispatcher(f.mask, f.radio)
	d.UART = f.uart
	d.Handler = ByteHandlerFunc(func(b byte) { f.fed = append(f.fed, b) })
	d.BLEEnabled = true
	d.Advertiser = f.adv
	d.Accel = f.acc
	d.Restarter = RestartFunc(func() { f.restarts++ })
	d.Sleep = func(dur time.Duration) { f.sleeps = append(f.sleeps, dur) }
	f.dispatch = d
	return f
}

func TestDispatchStatus(t *testing.T) {
	f := newFixture()
	f.mask.Raise(events.Status)
	f.dispatch.Dispatch()

	require.Equal(t, events.None, f.mask.Pending())
	require.Equal(t, [][]byte{{0x10, 0x00, 0x00}}, f.radio.sent)
	require.Equal(t, []time.Duration{15 * time.Second}, f.adv.timeouts)

	f.dispatch.Dispatch()
	require.Len(t, f.radio.sent, 1)
}

func TestDispatchStatusResults(t *testing.T) {
	for _, result := range []radio.TxResult{radio.Enqueued, radio.Busy, radio.TooLarge} {
		t.Run(result.String(), func(t *testing.T) {
			f := newFixture()
			f.radio.result = result
			f.mask.Raise(events.Status)
			f.dispatch.Dispatch()
			require.Len(t, f.radio.sent, 1)
			require.Equal(t, events.None, f.mask.Pending())
			require.Zero(t, f.dispatch.SendFailures())
		})
	}
}

func TestDispatchStatusWithoutBLE(t *testing.T) {
	f := newFixture()
	f.dispatch.BLEEnabled = false
	f.mask.Raise(events.Status)
	f.dispatch.Dispatch()
	require.Empty(t, f.adv.timeouts)
	require.Len(t, f.radio.sent, 1)
}

func TestDispatchAccTriggerChainsStatus(t *testing.T) {
	f := newFixture()
	require.True(t, f.acc.Trigger())
	f.dispatch.Dispatch()

	require.Empty(t, f.radio.sent)
	require.Equal(t, 1, f.acc.Clears())
	require.Equal(t, events.Status, f.mask.Pending())

	f.dispatch.Dispatch()
	require.Len(t, f.radio.sent, 1)
	require.Equal(t, events.None, f.mask.Pending())
}

func TestDispatchAccTriggerBeforeJoin(t *testing.T) {
	f := newFixture()
	f.radio.joined = false
	f.acc.Trigger()
	f.dispatch.Dispatch()
	f.dispatch.Dispatch()

	require.Empty(t, f.radio.sent)
	require.Zero(t, f.acc.Clears())
	require.Equal(t, events.AccTrigger, f.mask.Pending())

	f.radio.joined = true
	f.dispatch.Dispatch()
	require.Equal(t, 1, f.acc.Clears())
	f.dispatch.Dispatch()
	require.Len(t, f.radio.sent, 1)
	require.Equal(t, events.None, f.mask.Pending())
}

func TestDispatchBLEData(t *testing.T) {
	f := newFixture()
	f.uart.Push([]byte("AT"))
	f.dispatch.Dispatch()

	require.Equal(t, []byte("AT\n"), f.fed)
	require.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, f.sleeps)
	require.Zero(t, f.uart.Available())
	require.Equal(t, events.None, f.mask.Pending())
}

func TestDispatchBLEDataNilHandler(t *testing.T) {
	f := newFixture()
	f.dispatch.Handler = nil
	f.uart.Push([]byte("AT+SETMSG=1:x"))
	f.dispatch.Dispatch()
	require.Zero(t, f.uart.Available())
	require.Equal(t, events.None, f.mask.Pending())
}

func TestDispatchBLEDisabled(t *testing.T) {
	f := newFixture()
	f.dispatch.BLEEnabled = false
	f.uart.Push([]byte("AT"))
	f.dispatch.Dispatch()
	require.Empty(t, f.fed)
	require.Equal(t, 2, f.uart.Available())
	require.Equal(t, events.None, f.mask.Pending())
}

func TestDispatchJoinFinished(t *testing.T) {
	f := newFixture()
	f.mask.Raise(events.LoRaJoinFin)
	f.dispatch.Dispatch()
	require.Zero(t, f.radio.joins)
	require.Empty(t, f.adv.timeouts)

	f.radio.joinOK = false
	f.mask.Raise(events.LoRaJoinFin)
	f.dispatch.Dispatch()
	require.Equal(t, 1, f.radio.joins)
	require.Equal(t, []time.Duration{DefaultAdvertiseTimeout}, f.adv.timeouts)
	require.Equal(t, events.None, f.mask.Pending())
}

func TestDispatchLoRaData(t *testing.T) {
	f := newFixture()
	f.radio.received = []byte{0xCA, 0xFE}
	f.mask.Raise(events.LoRaData)
	f.dispatch.Dispatch()
	require.Equal(t, events.None, f.mask.Pending())
	require.Equal(t, "CA FE ", HexDump(f.radio.received))
	require.Equal(t, "", HexDump(nil))
}

func TestDispatchTxFailuresRestartOnce(t *testing.T) {
	f := newFixture()
	f.radio.txOK = false
	for i := 1; i <= 9; i++ {
		f.mask.Raise(events.LoRaTxFin)
		f.dispatch.Dispatch()
		require.Equal(t, i, f.dispatch.SendFailures())
		require.Zero(t, f.restarts)
	}
	f.mask.Raise(events.LoRaTxFin)
	f.dispatch.Dispatch()
	require.Equal(t, 1, f.restarts)
	require.Equal(t, []time.Duration{DefaultRestartDelay}, f.sleeps)

	for i := 0; i < 10; i++ {
		f.mask.Raise(events.LoRaTxFin)
		f.dispatch.Dispatch()
	}
	require.Equal(t, 1, f.restarts)
}

func TestDispatchTxSuccessKeepsFailureCount(t *testing.T) {
	f := newFixture()
	f.radio.txOK = false
	for i := 0; i < 5; i++ {
		f.mask.Raise(events.LoRaTxFin)
		f.dispatch.Dispatch()
	}
	f.radio.txOK = true
	f.mask.Raise(events.LoRaTxFin)
	f.dispatch.Dispatch()
	require.Equal(t, 5, f.dispatch.SendFailures())

	f.radio.txOK = false
	for i := 0; i < 5; i++ {
		f.mask.Raise(events.LoRaTxFin)
		f.dispatch.Dispatch()
	}
	require.Equal(t, 1, f.restarts)
}

func TestDispatchAllFlags(t *testing.T) {
	all := []events.Event{
		events.Status, events.BLEData, events.LoRaJoinFin,
		events.LoRaData, events.LoRaTxFin,
	}
	for mask := 1; mask < 1<<uint(len(all)); mask++ {
		f := newFixture()
		var raised events.Event
		for i, ev := range all {
			if mask&(1<<uint(i)) != 0 {
				raised |= ev
			}
		}
		if raised.Has(events.BLEData) {
			f.uart.Push([]byte("A"))
		}
		f.mask.Raise(raised)
		f.dispatch.Dispatch()

		require.Equal(t, events.None, f.mask.Pending(), "raised %s", raised)
		sends := 0
		if raised.Has(events.Status) {
			sends = 1
		}
		require.Len(t, f.radio.sent, sends, "raised %s", raised)
		if raised.Has(events.BLEData) {
			require.Equal(t, []byte("A\n"), f.fed)
		} else {
			require.Empty(t, f.fed)
		}
	}
}

func TestDispatchRaisedDuringHandlingIsKept(t *testing.T) {
	f := newFixture()
	f.dispatch.Handler = ByteHandlerFunc(func(b byte) {
		if b == '\n' {
			f.mask.Raise(events.BLEData)
		}
	})
	f.uart.Push([]byte("x"))
	f.dispatch.Dispatch()
	require.Equal(t, events.BLEData, f.mask.Pending())
}

func TestDispatchTxFinishedInSamePass(t *testing.T) {
	f := newFixture()
	null := radio.NewNull(radio.NewStatus(f.mask))
	null.TxOK = false
	f.dispatch.Radio = null
	f.mask.Raise(events.Status)
	f.dispatch.Dispatch()

	require.Len(t, null.Sent(), 1)
	require.Equal(t, 1, f.dispatch.SendFailures())
	require.Equal(t, events.None, f.mask.Pending())
}

func TestDispatchSendFailuresConcurrentRead(t *testing.T) {
	f := newFixture()
	f.radio.txOK = false
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			f.mask.Raise(events.LoRaTxFin)
			f.dispatch.Dispatch()
		}
	}()
	for last := 0; ; {
		n := f.dispatch.SendFailures()
		require.True(t, n >= last)
		last = n
		select {
		case <-done:
			require.Equal(t, 5, f.dispatch.SendFailures())
			return
		default:
		}
	}
}

func TestDispatchAccClearError(t *testing.T) {
	f := newFixture()
	f.dispatch.Accel = failingAccel{}
	f.mask.Raise(events.AccTrigger)
	f.dispatch.Dispatch()
	require.Equal(t, events.Status, f.mask.Pending())
}

type failingAccel struct{}

func (failingAccel) Init() error                  { return errors.New("init") }
func (failingAccel) ClearInterrupt() error        { return errors.New("clear") }
func (failingAccel) Read() (sensor.Vector, error) { return sensor.Vector{}, errors.New("read") }
