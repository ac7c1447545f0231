package tiler

import (
	"errors"
	"testing"

	"github.com/rosscartlidge/tilepager/tiledlist"
)

func TestFold(t *testing.T) {
	t.Run("DataInsertsAndEmits", func(t *testing.T) {
		s := New[int, string](ShapeList)
		emit, err := Fold(s, DataEvent(1, tiledlist.Tile[string]{Item: "a"}))
		if err != nil || !emit {
			t.Fatalf("expected emit=true err=nil, got emit=%v err=%v", emit, err)
		}
		if len(s.Retention) != 1 || s.Retention[0] != 1 {
			t.Fatalf("expected retention [1], got %v", s.Retention)
		}
		if s.MostRecentlyEmitted == nil || *s.MostRecentlyEmitted != 1 {
			t.Fatalf("expected most recently emitted 1")
		}
	})

	t.Run("TurnedOnEmitsOnlyWhenCached", func(t *testing.T) {
		s := New[int, string](ShapeList)
		emit, err := Fold(s, TurnedOnEvent[int, string](1))
		if err != nil || emit {
			t.Fatalf("expected emit=false (no cached tile), got emit=%v err=%v", emit, err)
		}
		Fold(s, DataEvent(1, tiledlist.Tile[string]{Item: "a"}))
		emit, err = Fold(s, TurnedOnEvent[int, string](1))
		if err != nil || !emit {
			t.Fatalf("expected emit=true once cached, got emit=%v err=%v", emit, err)
		}
	})

	t.Run("EvictionRemoves", func(t *testing.T) {
		s := New[int, string](ShapeList)
		Fold(s, DataEvent(1, tiledlist.Tile[string]{Item: "a"}))
		emit, err := Fold(s, EvictionEvent[int, string](1))
		if err != nil || !emit {
			t.Fatalf("expected emit=true, err=nil, got emit=%v err=%v", emit, err)
		}
		if _, ok := s.Tiles[1]; ok {
			t.Fatal("expected tile removed after eviction")
		}
		if len(s.Retention) != 0 {
			t.Fatalf("expected empty retention after eviction, got %v", s.Retention)
		}
	})

	t.Run("LimiterChangeShapeMismatchFails", func(t *testing.T) {
		s := New[int, string](ShapeList)
		_, err := Fold(s, LimiterChangeEvent(NewMapLimiter[int, string](func(map[int]string) bool { return false })))
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch, got %v", err)
		}
	})

	t.Run("OrderChangeReplacesAndEmits", func(t *testing.T) {
		s := New[int, string](ShapeList)
		policy := Sorted[int, string](func(a, b int) int { return a - b })
		emit, err := Fold(s, OrderChangeEvent(policy))
		if err != nil || !emit {
			t.Fatalf("expected emit=true, got emit=%v err=%v", emit, err)
		}
		if s.Order.Kind != OrderSorted {
			t.Fatalf("expected OrderSorted, got %v", s.Order.Kind)
		}
	})
}

func TestLimiters(t *testing.T) {
	t.Run("CombineListLimitersORs", func(t *testing.T) {
		maxCount := LimitCount[int, string](2)
		bigItems := LimitByPredicate[int, string](func(items []string) bool {
			total := 0
			for _, it := range items {
				total += len(it)
			}
			return total >= 10
		})
		combined := CombineLimiters(maxCount, bigItems)

		if combined.List([]string{"a"}) {
			t.Fatal("expected not yet limited with one short item")
		}
		if !combined.List([]string{"a", "b"}) {
			t.Fatal("expected count limiter to fire at 2 items")
		}
		if !combined.List([]string{"aaaaaaaaaaaa"}) {
			t.Fatal("expected size limiter to fire on one long item")
		}
	})

	t.Run("CombineMismatchedShapesPanics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic combining mismatched shapes")
			}
		}()
		CombineLimiters(LimitCount[int, string](1), LimitMapCount[int, string](1))
	})
}
