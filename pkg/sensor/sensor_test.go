package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lorabadge/pkg/events"
)

type fakeBus struct {
	regs   map[byte]byte
	writes [][]byte
	reads  []byte
	err    error
}

func (b *fakeBus) Tx(w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	if len(r) == 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
		return nil
	}
	reg := w[0] &^ autoIncr
	b.reads = append(b.reads, reg)
	for i := range r {
		r[i] = b.regs[reg+byte(i)]
	}
	return nil
}

func TestLIS3DHInit(t *testing.T) {
	bus := &fakeBus{regs: map[byte]byte{regWhoAmI: whoAmIValue}}
	s := NewLIS3DH(bus)
	require.NoError(t, s.Init())
	require.Len(t, bus.writes, 7)
	require.Equal(t, []byte{regCtrl1, 0x27}, bus.writes[0])
	require.Equal(t, []byte{regCtrl3, 0x40}, bus.writes[6])
	require.Equal(t, []byte{regWhoAmI, regInt1Src}, bus.reads)

	require.NoError(t, s.ClearInterrupt())
	require.Equal(t, byte(regInt1Src), bus.reads[2])
}

func TestLIS3DHNotFound(t *testing.T) {
	require.Equal(t, ErrNotFound, NewLIS3DH(&fakeBus{regs: map[byte]byte{}}).Init())
	bus := &fakeBus{err: errors.New("nack")}
	require.Error(t, NewLIS3DH(bus).Init())
}

func TestLIS3DHRead(t *testing.T) {
	// X = +1000 mg, Y = -500 mg, Z = 0, left aligned by 4 bits.
	x, y := int16(1000<<4), int16(-500<<4)
	bus := &fakeBus{regs: map[byte]byte{
		regOutXL:     byte(x),
		regOutXL + 1: byte(uint16(x) >> 8),
		regOutXL + 2: byte(y),
		regOutXL + 3: byte(uint16(y) >> 8),
	}}
	v, err := NewLIS3DH(bus).Read()
	require.NoError(t, err)
	require.InDelta(t, 1.0, v.X, 1e-9)
	require.InDelta(t, -0.5, v.Y, 1e-9)
	require.InDelta(t, 0.0, v.Z, 1e-9)
}

type fakePin struct {
	edges chan struct{}
}

func (p *fakePin) WaitForEdge(timeout time.Duration) bool {
	select {
	case <-p.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatchRaises(t *testing.T) {
	var mask events.Mask
	pin := &fakePin{edges: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, pin, &mask) }()

	pin.edges <- struct{}{}
	deadline := time.Now().Add(time.Second)
	for !mask.IsSet(events.AccTrigger) && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	require.True(t, mask.IsSet(events.AccTrigger))
	cancel()
	require.Equal(t, context.Canceled, <-done)
}

func TestSimLatch(t *testing.T) {
	var mask events.Mask
	s := NewSim(&mask)
	require.NoError(t, s.Init())
	require.True(t, s.Trigger())
	require.True(t, mask.Take(events.AccTrigger))
	require.False(t, s.Trigger())
	require.False(t, mask.IsSet(events.AccTrigger))
	require.NoError(t, s.ClearInterrupt())
	require.Equal(t, 1, s.Clears())
	require.True(t, s.Trigger())
	v, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, Vector{Z: 1}, v)
}
