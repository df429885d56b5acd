package mainloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samedayrules/wpable-server/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, ctx context.Context) (*Loop, <-chan error) {
	t.Helper()
	logger, _ := testutils.NewTestLogger()
	l := New(logger)
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	return l, errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func TestDoRunsSerially(t *testing.T) {
	l, errc := startLoop(t, context.Background())

	// unsynchronized counter: the race detector flags any overlap
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Do(func() { counter++ }))
		}()
	}
	wg.Wait()

	require.NoError(t, l.Do(func() {}))
	assert.Equal(t, 50, counter)

	l.Quit(nil)
	assert.NoError(t, waitErr(t, errc))
}

func TestDoWaitsForCompletion(t *testing.T) {
	l, _ := startLoop(t, context.Background())
	defer l.Quit(nil)

	var got string
	require.NoError(t, l.Do(func() {
		time.Sleep(10 * time.Millisecond)
		got = "done"
	}))
	assert.Equal(t, "done", got)
}

func TestQuitReturnsError(t *testing.T) {
	l, errc := startLoop(t, context.Background())
	want := errors.New("failed to register application")

	l.Quit(want)
	l.Quit(errors.New("ignored"))

	assert.ErrorIs(t, waitErr(t, errc), want)
	<-l.Done()
	assert.ErrorIs(t, l.Do(func() { t.Error("must not run") }), ErrStopped)
}

func TestContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l, errc := startLoop(t, ctx)

	cancel()
	assert.NoError(t, waitErr(t, errc))
	assert.ErrorIs(t, l.Do(func() {}), ErrStopped)
}

func TestQuitFromInsideLoop(t *testing.T) {
	l, errc := startLoop(t, context.Background())
	want := errors.New("agent released")

	require.NoError(t, l.Do(func() { l.Quit(want) }))
	assert.ErrorIs(t, waitErr(t, errc), want)
}

func TestPanicIsRecovered(t *testing.T) {
	l, _ := startLoop(t, context.Background())
	defer l.Quit(nil)

	err := l.Do(func() { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, l.Do(func() {}), "loop keeps running after a panic")
}

func TestRunOnlyOnce(t *testing.T) {
	l, errc := startLoop(t, context.Background())
	require.NoError(t, l.Do(func() {}))

	assert.Error(t, l.Run(context.Background()))

	l.Quit(nil)
	assert.NoError(t, waitErr(t, errc))
}
