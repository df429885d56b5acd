// Package mainloop runs submitted work one function at a time on a single
// goroutine. Bus handlers hand their work to the loop so the attribute tree,
// config store and restart monitor never see concurrent calls.
package mainloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Do once the loop has stopped.
var ErrStopped = errors.New("main loop stopped")

type call struct {
	fn   func()
	err  error
	done chan struct{}
}

// Loop is a single-threaded dispatch loop.
type Loop struct {
	calls    chan *call
	quit     chan struct{}
	stopped  chan struct{}
	quitOnce sync.Once
	runOnce  sync.Once
	err      error
	logger   *logrus.Logger
}

// New creates a loop. It does nothing until Run is called.
func New(logger *logrus.Logger) *Loop {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loop{
		calls:   make(chan *call),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run executes submitted functions on the calling goroutine until ctx is done
// or Quit is called. It returns the error passed to Quit, or nil when the
// context ended the loop. Run may be called once.
func (l *Loop) Run(ctx context.Context) error {
	started := false
	l.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("main loop already ran")
	}
	defer close(l.stopped)

	l.logger.Debug("Main loop running")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Main loop context done")
			return nil
		case <-l.quit:
			l.logger.WithError(l.err).Debug("Main loop quit")
			return l.err
		case c := <-l.calls:
			l.dispatch(c)
		}
	}
}

// Do runs fn on the loop and waits for it to return. A panic in fn is
// recovered and returned as an error.
func (l *Loop) Do(fn func()) error {
	c := &call{fn: fn, done: make(chan struct{})}
	select {
	case l.calls <- c:
	case <-l.quit:
		return ErrStopped
	case <-l.stopped:
		return ErrStopped
	}
	<-c.done
	return c.err
}

// Quit stops the loop after the function in progress, if any. Run returns err.
// Only the first call has an effect.
func (l *Loop) Quit(err error) {
	l.quitOnce.Do(func() {
		l.err = err
		close(l.quit)
	})
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}

func (l *Loop) dispatch(c *call) {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithField("panic", r).Error("Recovered panic in main loop")
			c.err = fmt.Errorf("panic in main loop: %v", r)
		}
	}()
	c.fn()
}
