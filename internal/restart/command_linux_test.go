package restart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandLauncherRejectsEmpty(t *testing.T) {
	_, err := NewCommandLauncher(nil)
	require.Error(t, err)

	_, err = NewCommandLauncher([]string{""})
	require.Error(t, err)
}

func TestCommandLauncherCapturesOutput(t *testing.T) {
	l, err := NewCommandLauncher([]string{"sh", "-c", "echo out; echo err >&2"})
	require.NoError(t, err)
	assert.Equal(t, "sh -c echo out; echo err >&2", l.String())

	p, err := l.Launch()
	require.NoError(t, err)
	assert.Positive(t, p.Pid())

	require.True(t, p.Wait(5*time.Second))
	res := p.Result()
	assert.Equal(t, "out", res.Stdout)
	assert.Equal(t, "err", res.Stderr)
	assert.NoError(t, res.Err)
}

func TestCommandLauncherReportsExitStatus(t *testing.T) {
	l, err := NewCommandLauncher([]string{"sh", "-c", "exit 3"})
	require.NoError(t, err)

	p, err := l.Launch()
	require.NoError(t, err)
	require.True(t, p.Wait(5*time.Second))
	assert.Error(t, p.Result().Err)
}

func TestCommandLauncherKill(t *testing.T) {
	l, err := NewCommandLauncher([]string{"sleep", "30"})
	require.NoError(t, err)

	p, err := l.Launch()
	require.NoError(t, err)

	assert.False(t, p.Wait(10*time.Millisecond), "sleep must still be running")
	assert.Equal(t, Result{}, p.Result(), "no result before exit")

	require.NoError(t, p.Kill())
	require.True(t, p.Wait(5*time.Second))
	assert.Error(t, p.Result().Err, "killed process reports a signal exit")
}

func TestCommandLauncherMissingBinary(t *testing.T) {
	l, err := NewCommandLauncher([]string{"/nonexistent/wpable-restart"})
	require.NoError(t, err)

	_, err = l.Launch()
	assert.Error(t, err)
}
