// Package assemble materializes tiler.QueryState into the ordered,
// query-tagged output shapes consumers see: a tiledlist.TiledList or a
// tiledlist.OrderedMap, under the active ordering policy and limiter.
package assemble

import (
	"fmt"
	"sort"

	"github.com/rosscartlidge/tilepager/tiler"
	"github.com/rosscartlidge/tilepager/tiledlist"
)

// Diagnostics reports how an assembly pass behaved; it is pure
// observability (grounded on go-paging's Metadata{QueryTimeMs,
// ItemsExamined, IterationsUsed}, see SPEC_FULL.md §9) and never
// changes assembly semantics.
type Diagnostics struct {
	QueriesVisited int
	TilesAppended  int
	LimiterStopped bool
}

// orderedQueries returns the retained queries in the order the active
// OrderPolicy implies: comparator-sorted when one is configured,
// otherwise plain retention (insertion) order. This is recomputed fresh
// on every assembly rather than incrementally maintained (see
// DESIGN.md), which is the simplification the "new order, snapshot at
// assembly time" open-question resolution depends on.
func orderedQueries[Q comparable, I any](s *tiler.QueryState[Q, I]) []Q {
	out := append([]Q(nil), s.Retention...)
	if s.Order.Comparator == nil {
		return out
	}
	cmp := s.Order.Comparator
	sort.SliceStable(out, func(i, j int) bool { return cmp(out[i], out[j]) < 0 })
	return out
}

func snapshotMetadata[Q comparable, I any](s *tiler.QueryState[Q, I]) tiler.Metadata[Q] {
	return tiler.Metadata[Q]{
		Queries:              orderedQueries(s),
		MostRecentlyTurnedOn: s.MostRecentlyTurnedOn,
		MostRecentlyEmitted:  s.MostRecentlyEmitted,
	}
}

func cloneTiles[Q comparable, I any](tiles map[Q]tiledlist.Tile[I]) map[Q]tiledlist.Tile[I] {
	out := make(map[Q]tiledlist.Tile[I], len(tiles))
	for k, v := range tiles {
		out[k] = v
	}
	return out
}

// BuildList materializes s as a TiledList under the active ordering.
// Calling it when the active order is CustomMap is a configuration
// error (the caller asked for the wrong shape).
func BuildList[Q comparable, I any](s *tiler.QueryState[Q, I]) (*tiledlist.TiledList[Q, I], Diagnostics, error) {
	switch s.Order.Kind {
	case tiler.OrderUnspecified:
		return buildSequentialList(s, s.Retention)
	case tiler.OrderSorted:
		return buildSequentialList(s, orderedQueries(s))
	case tiler.OrderPivotSorted:
		return buildPivotSortedList(s)
	case tiler.OrderCustomList:
		if s.Order.CustomList == nil {
			return nil, Diagnostics{}, fmt.Errorf("assemble: CustomList order configured with a nil transform")
		}
		list, err := s.Order.CustomList(snapshotMetadata(s), cloneTiles(s.Tiles))
		return list, Diagnostics{}, err
	default:
		return nil, Diagnostics{}, fmt.Errorf("assemble: list output requested for %s order", s.Order.Kind)
	}
}

// BuildMap materializes s as an OrderedMap under the active ordering.
func BuildMap[Q comparable, I any](s *tiler.QueryState[Q, I]) (*tiledlist.OrderedMap[Q, I], Diagnostics, error) {
	switch s.Order.Kind {
	case tiler.OrderUnspecified:
		return buildSequentialMap(s, s.Retention)
	case tiler.OrderSorted:
		return buildSequentialMap(s, orderedQueries(s))
	case tiler.OrderPivotSorted:
		return buildPivotSortedMap(s)
	case tiler.OrderCustomMap:
		if s.Order.CustomMap == nil {
			return nil, Diagnostics{}, fmt.Errorf("assemble: CustomMap order configured with a nil transform")
		}
		m, err := s.Order.CustomMap(snapshotMetadata(s), cloneTiles(s.Tiles))
		return m, Diagnostics{}, err
	default:
		return nil, Diagnostics{}, fmt.Errorf("assemble: map output requested for %s order", s.Order.Kind)
	}
}

func buildSequentialList[Q comparable, I any](s *tiler.QueryState[Q, I], queries []Q) (*tiledlist.TiledList[Q, I], Diagnostics, error) {
	b := tiledlist.NewBuilder[Q, I]()
	var diag Diagnostics
	var items []I
	for _, q := range queries {
		tile, ok := s.Tiles[q]
		if !ok {
			continue
		}
		diag.QueriesVisited++
		b.AddAll(q, []I{tile.Item})
		items = append(items, tile.Item)
		diag.TilesAppended++
		if s.Limiter.List != nil && s.Limiter.List(items) {
			diag.LimiterStopped = true
			break
		}
	}
	return b.Build(), diag, nil
}

func buildSequentialMap[Q comparable, I any](s *tiler.QueryState[Q, I], queries []Q) (*tiledlist.OrderedMap[Q, I], Diagnostics, error) {
	m := tiledlist.NewOrderedMap[Q, I]()
	var diag Diagnostics
	acc := make(map[Q]I)
	for _, q := range queries {
		tile, ok := s.Tiles[q]
		if !ok {
			continue
		}
		diag.QueriesVisited++
		m.Put(q, tile.Item)
		acc[q] = tile.Item
		diag.TilesAppended++
		if s.Limiter.Map != nil && s.Limiter.Map(acc) {
			diag.LimiterStopped = true
			break
		}
	}
	return m, diag, nil
}

// pivotWindow locates the contiguous [lo, hi] index window (inclusive)
// of sorted that should be included under PivotSorted ordering: it
// starts at the pivot and alternately expands right then left until the
// limiter fires or both sides are exhausted. Returns ok=false if there
// is no pivot or it is no longer present in sorted (both are the
// "empty output" edge cases of spec §4.5).
func pivotWindow[Q comparable, I any](s *tiler.QueryState[Q, I], sorted []Q) (lo, hi int, diag Diagnostics, ok bool) {
	if s.MostRecentlyTurnedOn == nil || len(sorted) == 0 {
		return 0, 0, diag, false
	}
	cmp := s.Order.Comparator
	pivot := *s.MostRecentlyTurnedOn
	idx := sort.Search(len(sorted), func(k int) bool { return cmp(sorted[k], pivot) >= 0 })
	if idx >= len(sorted) || sorted[idx] != pivot {
		return 0, 0, diag, false
	}

	lo, hi = idx, idx
	diag.QueriesVisited++
	diag.TilesAppended++
	items := []I{s.Tiles[pivot].Item}
	acc := map[Q]I{pivot: s.Tiles[pivot].Item}
	limited := func() bool {
		return (s.Limiter.List != nil && s.Limiter.List(items)) ||
			(s.Limiter.Map != nil && s.Limiter.Map(acc))
	}
	stopped := limited()
	diag.LimiterStopped = stopped
	expandRightNext := true
	for !stopped && (lo > 0 || hi < len(sorted)-1) {
		switch {
		case expandRightNext && hi < len(sorted)-1:
			hi++
			items = append(items, s.Tiles[sorted[hi]].Item)
			acc[sorted[hi]] = s.Tiles[sorted[hi]].Item
			expandRightNext = false
		case lo > 0:
			lo--
			items = append([]I{s.Tiles[sorted[lo]].Item}, items...)
			acc[sorted[lo]] = s.Tiles[sorted[lo]].Item
			expandRightNext = true
		case hi < len(sorted)-1:
			hi++
			items = append(items, s.Tiles[sorted[hi]].Item)
			acc[sorted[hi]] = s.Tiles[sorted[hi]].Item
		default:
			return lo, hi, diag, true
		}
		diag.QueriesVisited++
		diag.TilesAppended++
		if limited() {
			stopped = true
			diag.LimiterStopped = true
		}
	}
	return lo, hi, diag, true
}

func buildPivotSortedList[Q comparable, I any](s *tiler.QueryState[Q, I]) (*tiledlist.TiledList[Q, I], Diagnostics, error) {
	sorted := orderedQueries(s)
	b := tiledlist.NewBuilder[Q, I]()
	lo, hi, diag, ok := pivotWindow(s, sorted)
	if !ok {
		return b.Build(), diag, nil
	}
	for k := lo; k <= hi; k++ {
		tile := s.Tiles[sorted[k]]
		b.AddAll(sorted[k], []I{tile.Item})
	}
	return b.Build(), diag, nil
}

func buildPivotSortedMap[Q comparable, I any](s *tiler.QueryState[Q, I]) (*tiledlist.OrderedMap[Q, I], Diagnostics, error) {
	sorted := orderedQueries(s)
	m := tiledlist.NewOrderedMap[Q, I]()
	lo, hi, diag, ok := pivotWindow(s, sorted)
	if !ok {
		return m, diag, nil
	}
	for k := lo; k <= hi; k++ {
		tile := s.Tiles[sorted[k]]
		m.Put(sorted[k], tile.Item)
	}
	return m, diag, nil
}
