package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rosscartlidge/tilepager/pkg/stream"
	"github.com/rosscartlidge/tilepager/tiler"
)

// rangeFetch mirrors spec §8's producers: query q emits [q*10, q*10+9].
func rangeFetch(q int) stream.Stream[int] {
	items := make([]int, 10)
	for i := range items {
		items[i] = q*10 + i
	}
	return stream.FromSlice(items)
}

// drainN reads exactly n snapshots (each Data/Eviction/OrderChange fold
// emits its own snapshot, §4.4) and returns the last one.
func drainN(t *testing.T, e *Engine[int, int], n int) Snapshot[int, int] {
	t.Helper()
	read := e.Snapshots()
	var last Snapshot[int, int]
	for i := 0; i < n; i++ {
		snap, err := read()
		if err != nil {
			t.Fatalf("unexpected error reading snapshot %d/%d: %v", i+1, n, err)
		}
		last = snap
	}
	return last
}

func TestEngineSingleQueryFetch(t *testing.T) {
	t.Run("Scenario1", func(t *testing.T) {
		e := NewEngine[int, int](rangeFetch, tiler.ShapeList)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		e.Inputs() <- On[int, int](1)
		snap := drainN(t, e, 10)

		if snap.List.Size() != 10 {
			t.Fatalf("expected 10 items, got %d", snap.List.Size())
		}
		for i := 0; i < 10; i++ {
			q, _ := snap.List.QueryAt(i)
			if q != 1 {
				t.Errorf("QueryAt(%d) = %d, want 1", i, q)
			}
		}
		if snap.List.TileCount() != 1 {
			t.Fatalf("expected tile_count 1, got %d", snap.List.TileCount())
		}
		cancel()
		<-done
	})
}

func TestEngineThreeQueriesSorted(t *testing.T) {
	t.Run("Scenario2", func(t *testing.T) {
		e := NewEngine[int, int](rangeFetch, tiler.ShapeList)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		cmp := func(a, b int) int { return a - b }
		e.Inputs() <- OrderChange[int, int](tiler.Sorted[int, int](cmp))
		drainN(t, e, 1)

		e.Inputs() <- On[int, int](1)
		drainN(t, e, 10)
		e.Inputs() <- On[int, int](3)
		drainN(t, e, 10)
		e.Inputs() <- On[int, int](8)
		final := drainN(t, e, 10)

		if final.List.Size() != 30 {
			t.Fatalf("expected 30 items, got %d", final.List.Size())
		}
		wantStarts := []int{0, 10, 20}
		for i, want := range wantStarts {
			start, end, err := final.List.TileAt(i)
			if err != nil {
				t.Fatal(err)
			}
			if start != want || end != want+10 {
				t.Errorf("TileAt(%d) = (%d,%d), want (%d,%d)", i, start, end, want, want+10)
			}
		}
		cancel()
		<-done
	})
}

func TestEngineOffPreservesEvictRemoves(t *testing.T) {
	t.Run("Scenario3", func(t *testing.T) {
		e := NewEngine[int, int](rangeFetch, tiler.ShapeList)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		e.Inputs() <- On[int, int](1)
		drainN(t, e, 10)
		e.Inputs() <- On[int, int](3)
		drainN(t, e, 10)
		e.Inputs() <- On[int, int](8)
		drainN(t, e, 10)

		// Off neither folds nor emits (no row for it in §4.4's table), so
		// the most recent snapshot is unchanged by these two calls.
		e.Inputs() <- Off[int, int](3)
		e.Inputs() <- Off[int, int](9)

		found3 := false
		snap, ok := e.Latest()
		if !ok {
			t.Fatal("expected a published snapshot")
		}
		for i := 0; i < snap.List.Size(); i++ {
			if q, _ := snap.List.QueryAt(i); q == 3 {
				found3 = true
			}
		}
		if !found3 {
			t.Fatal("expected query 3's items retained after Off")
		}

		e.Inputs() <- Evict[int, int](3)
		final := drainN(t, e, 1)
		if final.List.Size() != 20 {
			t.Fatalf("expected 20 items after evicting 3, got %d", final.List.Size())
		}
		for i := 0; i < final.List.Size(); i++ {
			if q, _ := final.List.QueryAt(i); q == 3 {
				t.Fatal("did not expect query 3's items after eviction")
			}
		}
		cancel()
		<-done
	})
}

func TestEngineIdempotentOn(t *testing.T) {
	t.Run("Scenario6", func(t *testing.T) {
		e := NewEngine[int, int](rangeFetch, tiler.ShapeList, WithSnapshotBuffer[int, int](16))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		e.Inputs() <- On[int, int](1)
		e.Inputs() <- On[int, int](1)
		e.Inputs() <- On[int, int](1)

		// Only the first On transitions off->on (mux.On is idempotent);
		// the duplicates cause neither a fold nor a producer subscription,
		// so exactly 10 Data emissions are published, never more.
		snap := drainN(t, e, 10)
		if snap.List.Size() != 10 {
			t.Fatalf("expected 10 items, got %d", snap.List.Size())
		}

		select {
		case s := <-e.snapshots:
			t.Fatalf("expected no further snapshot from duplicate On, got %+v", s)
		case <-time.After(100 * time.Millisecond):
		}

		cancel()
		<-done
	})
}

func TestEngineShapeMismatchIsFatal(t *testing.T) {
	t.Run("LimiterChangeWrongShape", func(t *testing.T) {
		e := NewEngine[int, int](rangeFetch, tiler.ShapeList)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		e.Inputs() <- LimiterChange[int, int](tiler.LimitMapCount[int, int](1))
		err := <-done
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch, got %v", err)
		}
	})
}

func TestEngineProducerErrorEvicts(t *testing.T) {
	t.Run("DefaultPolicyEvictsAndContinues", func(t *testing.T) {
		boom := errors.New("boom")
		fetch := func(q int) stream.Stream[int] {
			if q == 13 {
				return func() (int, error) { return 0, boom }
			}
			return rangeFetch(q)
		}
		e := NewEngine[int, int](fetch, tiler.ShapeList)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		e.Inputs() <- On[int, int](1)
		drainN(t, e, 10)
		e.Inputs() <- On[int, int](13)

		select {
		case err := <-done:
			t.Fatalf("engine should not terminate on a recoverable producer error, got %v", err)
		case <-time.After(200 * time.Millisecond):
		}

		cancel()
		<-done
	})
}
