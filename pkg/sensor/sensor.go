// Package sensor provides the accelerometer that wakes the badge up when
// it is moved.
package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/events"
)

// Vector is an acceleration in g.
type Vector struct {
	X, Y, Z float64
}

// Accelerometer is the interrupt source.
type Accelerometer interface {
	Init() error
	// ClearInterrupt releases a latched interrupt so the next motion
	// triggers again.
	ClearInterrupt() error
	Read() (Vector, error)
}

// EdgeWaiter waits for an interrupt line edge, e.g. a gpio.PinIn.
type EdgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
}

// Watch raises AccTrigger on every edge until ctx is done.
func Watch(ctx context.Context, pin EdgeWaiter, raiser events.Raiser) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if pin.WaitForEdge(200 * time.Millisecond) {
			glog.V(1).Info("[ACC] interrupt")
			raiser.Raise(events.AccTrigger)
		}
	}
}

// Sim is a simulated accelerometer. Trigger behaves like motion.
type Sim struct {
	Raiser events.Raiser
	Value  Vector

	lock    sync.Mutex
	latched bool
	clears  int
}

// NewSim creates a Sim at rest.
func NewSim(raiser events.Raiser) *Sim {
	return &Sim{Raiser: raiser, Value: Vector{Z: 1}}
}

// Init implements Accelerometer.
func (s *Sim) Init() error { return nil }

// ClearInterrupt implements Accelerometer.
func (s *Sim) ClearInterrupt() error {
	s.lock.Lock()
	s.latched = false
	s.clears++
	s.lock.Unlock()
	return nil
}

// Read implements Accelerometer.
func (s *Sim) Read() (Vector, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.Value, nil
}

// Trigger raises AccTrigger unless an interrupt is still latched.
func (s *Sim) Trigger() bool {
	s.lock.Lock()
	fire := !s.latched
	s.latched = true
	s.lock.Unlock()
	if fire && s.Raiser != nil {
		s.Raiser.Raise(events.AccTrigger)
	}
	return fire
}

// Clears returns how many times the interrupt was cleared.
func (s *Sim) Clears() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.clears
}
