// Package run starts long running components and collects their errors.
package run

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Func is the func form of Runnable.
type Func func(context.Context) error

// Run implements Runnable.
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// WithName wraps a Runnable with a name used in logs.
func WithName(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Group runs multiple Runnables sharing one context.
type Group struct {
	Context context.Context

	cancel context.CancelFunc
	count  int
	errCh  chan error
	exitCh chan struct{}
}

// NewGroup creates a Group with a cancelable background context.
func NewGroup() *Group {
	return NewGroupWith(context.Background())
}

// NewGroupWith creates a Group deriving from ctx.
func NewGroupWith(ctx context.Context) *Group {
	g := &Group{exitCh: make(chan struct{})}
	g.Context, g.cancel = context.WithCancel(ctx)
	return g
}

// HandleSignals cancels the Group on Ctrl-C or SIGTERM. A second signal
// makes Wait return immediately.
func (g *Group) HandleSignals() *Group {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		g.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(g.exitCh)
	}()
	return g
}

// Go spawns Runnables. The first one returning cancels the others.
func (g *Group) Go(runners ...Runnable) *Group {
	if g.errCh == nil {
		g.errCh = make(chan error, 1)
	}
	for _, runner := range runners {
		var name string
		if named, ok := runner.(Named); ok {
			name = named.Name()
		} else {
			name = strconv.Itoa(g.count)
		}
		g.count++
		go func(runner Runnable, name string) {
			glog.V(4).Infof("Runner[%s] started", name)
			err := runner.Run(g.Context)
			glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			g.cancel()
			g.errCh <- err
		}(runner, name)
	}
	return g
}

// Wait waits until all Runnables stop and aggregates their errors.
// context.Canceled is not reported.
func (g *Group) Wait() error {
	var errs AggregatedError
	for i := 0; i < g.count; i++ {
		select {
		case <-g.exitCh:
			return errors.New("forced exit")
		case err := <-g.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// WithContextCloser runs fn and closes closer once ctx is canceled or fn
// returns, whichever happens first. Closing is how a blocking Read on
// closer is interrupted.
func WithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		closer.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		closer.Close()
		return err
	}
}
