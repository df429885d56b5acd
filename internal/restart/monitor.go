// Package restart supervises an external recovery command (restarting the
// network service) as a poll-driven two-state machine.
//
// A Monitor is IDLE until a restart is requested, then RESTART until a poll
// observes that the command exited or that it overran its timeout, in which
// case the command is killed. Polls never block longer than the configured
// wait, so a Monitor can be driven from a single event loop.
package restart

import (
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// State is the monitor state.
type State string

const (
	Idle       State = "IDLE"
	Restarting State = "RESTART"
)

// Options configures a Monitor.
type Options struct {
	// PollWait bounds how long a single Poll waits for the command to exit.
	PollWait time.Duration `default:"1s"`
	// Timeout is how long the command may run before a Poll kills it.
	Timeout time.Duration `default:"15s"`
}

// DefaultOptions returns the default monitor options.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// Monitor tracks at most one outstanding recovery command.
// Monitor is not safe for concurrent use.
type Monitor struct {
	launcher Launcher
	opts     Options
	logger   *logrus.Logger
	now      func() time.Time

	state   State
	proc    Process   // only in Restarting
	started time.Time // only in Restarting
}

// NewMonitor creates an idle Monitor that starts commands with launcher.
func NewMonitor(launcher Launcher, opts *Options, logger *logrus.Logger) *Monitor {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		launcher: launcher,
		opts:     *opts,
		logger:   logger,
		now:      time.Now,
		state:    Idle,
	}
}

// SetClock replaces the monitor's time source.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// Current returns the state without polling the command.
func (m *Monitor) Current() State {
	return m.state
}

// RequestRestart starts the recovery command if the monitor is idle. A request
// while a restart is outstanding is dropped. If the command cannot be started
// the monitor stays idle and the error is returned.
func (m *Monitor) RequestRestart() error {
	if m.state != Idle {
		m.logger.Debug("Restart already in progress, request dropped")
		return nil
	}

	proc, err := m.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to start restart command: %w", err)
	}

	m.state = Restarting
	m.proc = proc
	m.started = m.now()
	m.logger.WithField("pid", proc.Pid()).Info("Restart command started")
	return nil
}

// Poll advances the state machine and returns the resulting state.
func (m *Monitor) Poll() State {
	if m.state != Restarting {
		return m.state
	}

	if m.proc.Wait(m.opts.PollWait) {
		res := m.proc.Result()
		m.logger.WithFields(logrus.Fields{
			"stdout": outputOrOK(res.Stdout),
			"stderr": outputOrOK(res.Stderr),
			"error":  res.Err,
		}).Info("Restart command finished")
		m.reset()
		return m.state
	}

	if elapsed := m.now().Sub(m.started); elapsed > m.opts.Timeout {
		log := m.logger.WithFields(logrus.Fields{
			"pid":     m.proc.Pid(),
			"elapsed": elapsed,
		})
		if err := m.proc.Kill(); err != nil {
			log.WithError(err).Error("Failed to kill restart command")
		} else {
			log.Warn("Restart command timed out and was killed")
		}
		m.reset()
	}

	return m.state
}

func (m *Monitor) reset() {
	m.state = Idle
	m.proc = nil
	m.started = time.Time{}
}

func outputOrOK(s string) string {
	if s == "" {
		return "<ok>"
	}
	return s
}
