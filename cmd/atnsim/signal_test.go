package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordStops swaps stopSignals for a wrapper that reports each released
// channel, restoring the original when the test ends.
func recordStops(t *testing.T) <-chan chan<- os.Signal {
	t.Helper()
	released := make(chan chan<- os.Signal, 1)
	orig := stopSignals
	stopSignals = func(ch chan<- os.Signal) {
		orig(ch)
		released <- ch
	}
	t.Cleanup(func() { stopSignals = orig })
	return released
}

func TestSignalContext_ReleasesHandlerOnCancel(t *testing.T) {
	released := recordStops(t)

	ctx, cancel := signalContext(context.Background())
	cancel()

	select {
	case ch := <-released:
		assert.NotNil(t, ch)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "signal handler was not released after cancel")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestSignalContext_ReleasesHandlerWhenParentDone(t *testing.T) {
	released := recordStops(t)

	parent, cancelParent := context.WithCancel(context.Background())
	_, cancel := signalContext(parent)
	defer cancel()
	cancelParent()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "signal handler was not released after the parent was cancelled")
	}
}
