package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop is the cooperative scheduler. Every pass runs all
// controllers in priority order on a single goroutine, while
// Runnables (producers) run in the background and wake the loop
// with TriggerNext.
type Loop struct {
	// Interval is the idle tick between passes when nothing
	// triggers the loop.
	Interval time.Duration

	controllers [PriorityLevels]controllerList
	runners     []Runnable
	pass        uint64

	wakeUpOnce sync.Once
	wakeUpCh   chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopPass struct {
	*Loop
	ctx           context.Context
	time          time.Time
	seq           uint64
	priorityLevel int
}

type controllerList struct {
	controllers []Controller
	postHooks   []Controller
	lock        sync.Mutex
}

var (
	loopCtxKey = &Loop{}
)

// LoopCtlFrom gets LoopControl from context passed to Runnables.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey).(LoopControl)
}

// DefaultInterval is the idle tick used when Interval is zero.
const DefaultInterval = time.Second

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		if adder != nil {
			adder.AddToLoop(l)
		}
	}
	return l
}

// AddController registers controllers to the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lst := &l.controllers[priorityLevel]
	lst.controllers = append(lst.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

func (l *Loop) wakeUp() chan struct{} {
	l.wakeUpOnce.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
	return l.wakeUpCh
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	wakeUpCh := l.wakeUp()

	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, LoopControl(l)))
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunPass(ctx)
		case <-wakeUpCh:
			l.RunPass(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		glog.Exit(err)
	}
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Controller) {
	lst := &l.controllers[priorityLevel]
	lst.lock.Lock()
	lst.postHooks = append(lst.postHooks, hooks...)
	lst.lock.Unlock()
}

// TriggerNext implements LoopControl. Safe to call from any goroutine;
// multiple triggers before the next pass collapse into one.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

// RunPass executes one scheduling pass synchronously.
func (l *Loop) RunPass(ctx context.Context) {
	l.pass++
	p := &loopPass{Loop: l, ctx: ctx, time: time.Now(), seq: l.pass}
	for i := 0; i < PriorityLevels; i++ {
		p.priorityLevel = i
		l.controllers[i].run(p)
	}
}

func (p *loopPass) Context() context.Context {
	return p.ctx
}

func (p *loopPass) Time() time.Time {
	return p.time
}

func (p *loopPass) Pass() uint64 {
	return p.seq
}

func (p *loopPass) PriorityLevel() int {
	return p.priorityLevel
}

func (p *loopPass) PostRun(hooks ...Controller) {
	p.PostRunAt(p.priorityLevel, hooks...)
}

func (c *controllerList) run(p *loopPass) {
	runControllers(p, c.controllers)
	c.lock.Lock()
	hooks := c.postHooks
	c.postHooks = nil
	c.lock.Unlock()
	runControllers(p, hooks)
}

func runControllers(p *loopPass, ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(p); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}
