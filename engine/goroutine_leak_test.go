package engine

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/rosscartlidge/tilepager/tiler"
)

// TestRunDoesNotLeakValveGoroutines mirrors the teacher's goroutine-leak
// checks: after cancelling the engine mid-flight, the pump goroutines
// Run's errgroup supervises must wind down instead of blocking forever
// on an abandoned producer.
func TestRunDoesNotLeakValveGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()

	e := NewEngine[int, int](rangeFetch, tiler.ShapeList)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for _, q := range []int{1, 2, 3, 4, 5} {
		e.Inputs() <- On[int, int](q)
	}
	// Read exactly one snapshot, then abandon the rest without draining.
	e.Snapshots()()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+3 {
		t.Errorf("potential goroutine leak: %d -> %d", before, after)
	}
}
