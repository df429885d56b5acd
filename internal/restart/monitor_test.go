package restart

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------
// Fakes
// ----------------------------

type fakeProcess struct {
	pid     int
	exited  bool
	result  Result
	killed  int
	killErr error
	waits   []time.Duration
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait(d time.Duration) bool {
	p.waits = append(p.waits, d)
	return p.exited
}

func (p *fakeProcess) Result() Result { return p.result }

func (p *fakeProcess) Kill() error {
	p.killed++
	return p.killErr
}

type fakeLauncher struct {
	procs    []*fakeProcess
	launched int
	err      error
}

func (l *fakeLauncher) Launch() (Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	p := &fakeProcess{pid: 1000 + l.launched}
	l.procs = append(l.procs, p)
	l.launched++
	return p, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMonitor(t *testing.T, l Launcher) (*Monitor, *fakeClock, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMonitor(l, nil, logger)
	m.SetClock(clock.Now)
	return m, clock, hook
}

// ----------------------------
// Tests
// ----------------------------

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, time.Second, opts.PollWait)
	assert.Equal(t, 15*time.Second, opts.Timeout)
}

func TestMonitorStartsIdle(t *testing.T) {
	l := &fakeLauncher{}
	m, _, _ := newTestMonitor(t, l)

	assert.Equal(t, Idle, m.Current())
	assert.Equal(t, Idle, m.Poll(), "polling an idle monitor is a no-op")
	assert.Zero(t, l.launched)
}

func TestMonitorDropsRequestWhileRestarting(t *testing.T) {
	l := &fakeLauncher{}
	m, _, hook := newTestMonitor(t, l)

	require.NoError(t, m.RequestRestart())
	require.NoError(t, m.RequestRestart())

	assert.Equal(t, 1, l.launched, "second request must not start another command")
	assert.Equal(t, Restarting, m.Current())

	var dropped bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Restart already in progress, request dropped" {
			dropped = true
		}
	}
	assert.True(t, dropped)
}

func TestMonitorCompletesWhenCommandExits(t *testing.T) {
	l := &fakeLauncher{}
	m, clock, hook := newTestMonitor(t, l)

	require.NoError(t, m.RequestRestart())
	proc := l.procs[0]

	clock.Advance(2 * time.Second)
	assert.Equal(t, Restarting, m.Poll())
	assert.Equal(t, []time.Duration{time.Second}, proc.waits, "poll waits for the configured bound")

	proc.exited = true
	proc.result = Result{Stdout: "", Stderr: "warning"}
	assert.Equal(t, Idle, m.Poll())
	assert.Zero(t, proc.killed)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "Restart command finished", last.Message)
	assert.Equal(t, "<ok>", last.Data["stdout"])
	assert.Equal(t, "warning", last.Data["stderr"])

	// a fresh request after completion starts a new command
	require.NoError(t, m.RequestRestart())
	assert.Equal(t, 2, l.launched)
}

func TestMonitorKillsAfterTimeout(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		wantState State
		wantKills int
	}{
		{name: "within ceiling", elapsed: 10 * time.Second, wantState: Restarting, wantKills: 0},
		{name: "exactly at ceiling", elapsed: 15 * time.Second, wantState: Restarting, wantKills: 0},
		{name: "past ceiling", elapsed: 16 * time.Second, wantState: Idle, wantKills: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &fakeLauncher{}
			m, clock, _ := newTestMonitor(t, l)

			require.NoError(t, m.RequestRestart())
			clock.Advance(tt.elapsed)

			assert.Equal(t, tt.wantState, m.Poll())
			assert.Equal(t, tt.wantKills, l.procs[0].killed)
		})
	}
}

func TestMonitorKillFailureStillResets(t *testing.T) {
	l := &fakeLauncher{}
	m, clock, hook := newTestMonitor(t, l)

	require.NoError(t, m.RequestRestart())
	l.procs[0].killErr = errors.New("operation not permitted")
	clock.Advance(20 * time.Second)

	assert.Equal(t, Idle, m.Poll())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestMonitorLaunchFailureStaysIdle(t *testing.T) {
	l := &fakeLauncher{err: errors.New("exec: \"systemctl\": executable file not found in $PATH")}
	m, _, _ := newTestMonitor(t, l)

	err := m.RequestRestart()
	require.Error(t, err)
	assert.ErrorIs(t, err, l.err)
	assert.Contains(t, err.Error(), "failed to start restart command")
	assert.Equal(t, Idle, m.Current())
}

func TestLauncherFunc(t *testing.T) {
	want := &fakeProcess{pid: 7}
	var l Launcher = LauncherFunc(func() (Process, error) { return want, nil })

	got, err := l.Launch()
	require.NoError(t, err)
	assert.Same(t, want, got)
}
