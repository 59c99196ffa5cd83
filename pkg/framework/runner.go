package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun attaches a name to a Runnable. The name shows up in logs
// and in errors returned by Runner.Wait.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// ErrForcedExit is returned by Wait when a second stop is requested.
var ErrForcedExit = errors.New("forced exit")

// RunnerError is a failure of a named Runnable.
type RunnerError struct {
	Name string
	Err  error
}

// Error implements error.
func (e *RunnerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

// Unwrap returns the Runnable's error.
func (e *RunnerError) Unwrap() error {
	return e.Err
}

// Runner starts Runnables on their own goroutines sharing one
// context and collects how they stop.
type Runner struct {
	Context context.Context
	Runners []Runnable

	results chan *RunnerError
	forced  chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		results: make(chan *RunnerError, 1),
		forced:  make(chan struct{}),
	}
}

// HandleSignals cancels the context on the first SIGINT or SIGTERM and
// makes Wait give up on the second one.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	r.Context = ctx
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v received, stopping", sig)
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.forced)
	}()
	return r
}

// Go spawns Runnables with the runner context. Unnamed Runnables are
// named by their index.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := strconv.Itoa(len(r.Runners))
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		r.Runners = append(r.Runners, runner)
		go r.run(name, runner)
	}
	return r
}

func (r *Runner) run(name string, runner Runnable) {
	glog.V(4).Infof("Runner[%s] started", name)
	err := runner.Run(r.Context)
	glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
	r.results <- &RunnerError{Name: name, Err: err}
}

// Wait blocks until every Runnable stopped. Cancellation is not
// reported, other failures are aggregated as RunnerErrors.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.forced:
			return ErrForcedExit
		case res := <-r.results:
			if res.Err != nil && res.Err != context.Canceled {
				errs.Add(res)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn, which can't observe ctx, and calls
// onCancel once ctx is done. onCancel must make fn return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-errCh
	return context.Canceled
}

// RunWithContextCloser runs fn, e.g. a reader blocked on a port, and
// closes closer exactly once when either ctx is done or fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	canceled := false
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		closer.Close()
	}, fn)
	if !canceled {
		closer.Close()
	}
	return err
}
