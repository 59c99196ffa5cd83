package framework

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopPriorityOrder(t *testing.T) {
	var order []string
	record := func(name string) Controller {
		return ControlFunc(func(cc ControlContext) error {
			order = append(order, name)
			return nil
		})
	}
	l := NewLoop()
	l.AddController(PrLvLow, record("low"))
	l.AddController(PrLvTop, record("top"))
	l.AddController(PrLvDispatch, record("dispatch"), ControlFunc(func(cc ControlContext) error {
		cc.PostRun(record("post"))
		return errors.New("ignored")
	}))

	l.RunPass(context.TODO())
	require.Equal(t, []string{"top", "dispatch", "post", "low"}, order)

	order = nil
	l.RunPass(context.TODO())
	require.Equal(t, []string{"top", "dispatch", "post", "low"}, order)
}

func TestLoopPassSequence(t *testing.T) {
	var seen []uint64
	l := NewLoop().AddController(PrLvNormal, ControlFunc(func(cc ControlContext) error {
		seen = append(seen, cc.Pass())
		require.Equal(t, PrLvNormal, cc.PriorityLevel())
		return nil
	}))
	l.RunPass(context.TODO())
	l.RunPass(context.TODO())
	require.Equal(t, []uint64{1, 2}, seen)
}

func TestLoopTriggerNext(t *testing.T) {
	passCh := make(chan uint64, 4)
	l := &Loop{Interval: time.Hour}
	l.AddController(PrLvDispatch, ControlFunc(func(cc ControlContext) error {
		passCh <- cc.Pass()
		return nil
	}))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		LoopCtlFrom(ctx).TriggerNext()
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	select {
	case n := <-passCh:
		require.Equal(t, uint64(1), n)
	case <-time.After(time.Second):
		t.Fatal("pass not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestTriggerNextCollapses(t *testing.T) {
	l := NewLoop()
	l.TriggerNext()
	l.TriggerNext()
	l.TriggerNext()
	require.Len(t, l.wakeUp(), 1)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"))
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(errors.New("b"))
	require.EqualError(t, errs.Aggregate(), "2 errors:\n  a\n  b")
	require.True(t, errors.Is(errs.Aggregate(), errs.Errors[1]))
}

func TestRunnerWaitNamesFailures(t *testing.T) {
	boom := errors.New("boom")
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx)
	r.Go(
		NamedRun("serial", RunFunc(func(context.Context) error { return boom })),
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	cancel()
	err := r.Wait()
	require.EqualError(t, err, "serial: boom")
	require.True(t, errors.Is(err, boom))
	var re *RunnerError
	require.True(t, errors.As(err, &re))
	require.Equal(t, "serial", re.Name)
}

type closeCounter struct {
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	c := &closeCounter{}
	err := RunWithContextCloser(context.Background(), c, func() error { return io.EOF })
	require.Equal(t, io.EOF, err)
	require.Equal(t, 1, c.closes)

	ctx, cancel := context.WithCancel(context.Background())
	c = &closeCounter{}
	unblock := make(chan struct{})
	go cancel()
	err = RunWithContextCloser(ctx, closerFunc(func() error {
		c.closes++
		close(unblock)
		return nil
	}), func() error {
		<-unblock
		return io.ErrClosedPipe
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, c.closes)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
