// Package groutine starts goroutines labelled with a name, so they can be told
// apart in pprof goroutine dumps and in logs.
package groutine

import (
	"context"
	"runtime/pprof"
)

// LabelKey is the pprof label carrying the goroutine name.
const LabelKey = "goroutine"

type nameKey struct{}

// Go runs fn in a new goroutine named name and returns a channel closed once
// fn has returned. A nil parent means context.Background().
//
//	done := groutine.Go(ctx, "restart-wait", func(ctx context.Context) {
//	    // work
//	})
func Go(parent context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parent == nil {
		parent = context.Background()
	}
	ctx := context.WithValue(parent, nameKey{}, name)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pprof.Do(ctx, pprof.Labels(LabelKey, name), fn)
	}()
	return done
}

// Name returns the name given to Go, or "" outside a named goroutine.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(nameKey{}).(string)
	return name
}
