// Package pivot implements the pivoting driver (§4.6): it converts a
// stream of "current query" signals plus a PivotRequest into the
// On/Off/Evict/OrderChange batches the engine consumes.
package pivot

import (
	"sort"

	"github.com/rosscartlidge/tilepager/engine"
	"github.com/rosscartlidge/tilepager/tiler"
)

// PivotRequest configures how the driver keeps the engine's active set
// matched to a user's current focus. Next/Previous return (neighbor,
// false) when there is no neighbor on that side — callers that want a
// bounded axis (e.g. no negative page numbers) encode that bound inside
// Next/Previous itself.
type PivotRequest[Q comparable] struct {
	OnCount    int
	OffCount   int
	Next       func(Q) (Q, bool)
	Previous   func(Q) (Q, bool)
	Comparator func(a, b Q) int
}

// Driver tracks the on/off sets derived for the previous current query,
// so each Step can compute Evict as a set difference against the new
// derivation (§4.6).
type Driver[Q comparable, I any] struct {
	haveQuery   bool
	prevQuery   Q
	prevOn      []Q
	prevOff     []Q
	issuedOrder bool
}

// NewDriver returns a Driver with no prior state.
func NewDriver[Q comparable, I any]() *Driver[Q, I] {
	return &Driver[Q, I]{}
}

// Step derives the Evict/Off/On/OrderChange batch for current query c
// under req and folds it into one engine.Input, ready to send to
// Engine.Inputs(). Consecutive calls with the same query are a no-op
// (distinct on the query axis, §4.6's reactive variant); req is always
// re-derived since function-valued fields cannot be compared for
// equality (see DESIGN.md).
func (d *Driver[Q, I]) Step(c Q, req PivotRequest[Q]) engine.Input[Q, I] {
	if d.haveQuery && d.prevQuery == c {
		return engine.Batch[Q, I]()
	}

	on, onDist := deriveOn(c, req)
	off, offDist := deriveOff(on, req)

	prevSet := toSet(append(append([]Q(nil), d.prevOn...), d.prevOff...))
	nextSet := toSet(append(append([]Q(nil), on...), off...))
	evict := setDiff(prevSet, nextSet)

	dist := mergeDist(onDist, offDist)

	var inputs []engine.Input[Q, I]
	for _, q := range byDistanceDescending(evict, dist) {
		inputs = append(inputs, engine.Evict[Q, I](q))
	}
	for _, q := range byDistanceDescending(off, dist) {
		inputs = append(inputs, engine.Off[Q, I](q))
	}
	for _, q := range byDistanceDescending(on, dist) {
		inputs = append(inputs, engine.On[Q, I](q))
	}
	if !d.issuedOrder && req.Comparator != nil {
		inputs = append(inputs, engine.OrderChange[Q, I](tiler.PivotSorted[Q, I](req.Comparator)))
		d.issuedOrder = true
	}

	d.prevQuery, d.haveQuery = c, true
	d.prevOn, d.prevOff = on, off
	return engine.Batch(inputs...)
}

// deriveOn builds the on set for current query c: start from {c} and
// alternate appending next(last) / prepending previous(first) until
// on_count is reached or both sides report no neighbor (§4.6). It also
// returns each query's hop distance from c, used for emission
// ordering.
func deriveOn[Q comparable](c Q, req PivotRequest[Q]) ([]Q, map[Q]int) {
	on := []Q{c}
	dist := map[Q]int{c: 0}
	left, right := c, c
	leftOK, rightOK := true, true
	appendNext := true
	step := 0

	for len(on) < req.OnCount && (leftOK || rightOK) {
		switch {
		case appendNext && rightOK:
			n, ok := req.Next(right)
			if !ok {
				rightOK = false
				continue
			}
			step++
			on = append(on, n)
			dist[n] = step
			right = n
			appendNext = false
		case leftOK:
			p, ok := req.Previous(left)
			if !ok {
				leftOK = false
				continue
			}
			step++
			on = append([]Q{p}, on...)
			dist[p] = step
			left = p
			appendNext = true
		case rightOK:
			n, ok := req.Next(right)
			if !ok {
				rightOK = false
				continue
			}
			step++
			on = append(on, n)
			dist[n] = step
			right = n
		}
	}
	return on, dist
}

// deriveOff extends outward from on's extremes by the same
// alternating-next/previous pattern until off_count is reached or both
// sides are exhausted (§4.6). The step counter seeds from len(on), so
// every off element's distance is greater than any on element's.
func deriveOff[Q comparable](on []Q, req PivotRequest[Q]) ([]Q, map[Q]int) {
	dist := make(map[Q]int)
	if len(on) == 0 {
		return nil, dist
	}
	left, right := on[0], on[len(on)-1]
	leftOK, rightOK := true, true
	expandRight := true
	step := len(on)
	var off []Q

	for len(off) < req.OffCount && (leftOK || rightOK) {
		switch {
		case expandRight && rightOK:
			n, ok := req.Next(right)
			if !ok {
				rightOK = false
				continue
			}
			step++
			off = append(off, n)
			dist[n] = step
			right = n
			expandRight = false
		case leftOK:
			p, ok := req.Previous(left)
			if !ok {
				leftOK = false
				continue
			}
			step++
			off = append([]Q{p}, off...)
			dist[p] = step
			left = p
			expandRight = true
		case rightOK:
			n, ok := req.Next(right)
			if !ok {
				rightOK = false
				continue
			}
			step++
			off = append(off, n)
			dist[n] = step
			right = n
		}
	}
	return off, dist
}

func toSet[Q comparable](qs []Q) map[Q]struct{} {
	out := make(map[Q]struct{}, len(qs))
	for _, q := range qs {
		out[q] = struct{}{}
	}
	return out
}

func setDiff[Q comparable](a, b map[Q]struct{}) []Q {
	var out []Q
	for q := range a {
		if _, ok := b[q]; !ok {
			out = append(out, q)
		}
	}
	return out
}

func mergeDist[Q comparable](a, b map[Q]int) map[Q]int {
	out := make(map[Q]int, len(a)+len(b))
	for q, d := range a {
		out[q] = d
	}
	for q, d := range b {
		out[q] = d
	}
	return out
}

// byDistanceDescending orders qs so the closest-to-pivot entries come
// last: per §4.6, "closest-to-pivot requests take effect last and thus
// win the race for timely data" (see DESIGN.md for why descending
// distance is the reading that satisfies that guarantee).
func byDistanceDescending[Q comparable](qs []Q, dist map[Q]int) []Q {
	out := append([]Q(nil), qs...)
	sort.SliceStable(out, func(i, j int) bool { return dist[out[i]] > dist[out[j]] })
	return out
}
