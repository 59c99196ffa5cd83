package app

import (
	"context"
	"time"

	"github.com/robotalks/lorabadge/pkg/events"
)

// StatusTimer raises Status every Interval.
type StatusTimer struct {
	Interval time.Duration
	Raiser   events.Raiser
}

// Run implements Runnable. A zero Interval disables the timer.
func (t *StatusTimer) Run(ctx context.Context) error {
	if t.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Raiser.Raise(events.Status)
		}
	}
}
