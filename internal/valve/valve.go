// Package valve implements the per-query subscription lifecycle
// (§4.2) and the multiplexer that routes requests to valves and merges
// their emissions (§4.3).
package valve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rosscartlidge/tilepager/pkg/stream"
	"github.com/rosscartlidge/tilepager/tiledlist"
)

// Kind tags a Valve emission. TurnedOn and Eviction are not modeled as
// Output values: both happen synchronously inside a call to On/Evict
// (made from the engine's single consumer goroutine), so the engine
// folds them directly rather than routing them through the channel that
// only asynchronous producer emissions need.
type Kind int

const (
	KindData Kind = iota
	KindError
)

// Output is one asynchronous emission from a valve's producer pump.
// Generation lets the receiver discard emissions from a subscription
// that has since been cancelled (by Off, Evict, or a fresh On) even
// though the pump goroutine has not yet noticed its context was
// cancelled.
type Output[Q comparable, I any] struct {
	Kind       Kind
	Query      Q
	Generation uint64
	Tile       tiledlist.Tile[I]
	Err        error
}

type state int

const (
	stateOff state = iota
	stateOn
	stateTerminated
)

// Valve owns the single active subscription to the producer for one
// query. Every method must be called from the engine's single
// input-consuming goroutine. The only other goroutine that touches a
// Valve is its own producer pump, and it communicates solely by
// sending on the shared out channel — never by mutating Valve fields.
type Valve[Q comparable, I any] struct {
	query Q
	fetch func(Q) stream.Stream[I]
	clock func() time.Time
	out   chan<- Output[Q, I]

	state      state
	generation uint64
	cancel     context.CancelFunc
}

func newValve[Q comparable, I any](query Q, fetch func(Q) stream.Stream[I], clock func() time.Time, out chan<- Output[Q, I]) *Valve[Q, I] {
	return &Valve[Q, I]{query: query, fetch: fetch, clock: clock, out: out}
}

// Generation reports the valve's current live generation.
func (v *Valve[Q, I]) Generation() uint64 { return v.generation }

// On starts (or keeps) the subscription for this valve's query. It
// reports whether this call performed an off->on transition; callers
// use that to decide whether to fold a TurnedOn event.
func (v *Valve[Q, I]) On(ctx context.Context, group *errgroup.Group) bool {
	if v.state != stateOff {
		return false
	}
	v.generation++
	gen := v.generation
	v.state = stateOn
	flowOnAt := v.clock()

	pumpCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	group.Go(func() error {
		v.pump(pumpCtx, gen, flowOnAt)
		return nil
	})
	return true
}

// Off cancels the current subscription, if any. Retained tiles are the
// caller's responsibility, not the valve's.
func (v *Valve[Q, I]) Off() {
	if v.state != stateOn {
		return
	}
	v.generation++ // invalidate any emission still in flight from the cancelled pump
	if v.cancel != nil {
		v.cancel()
	}
	v.state = stateOff
}

// Evict cancels any subscription and permanently terminates the valve.
// Calling it again is a harmless no-op.
func (v *Valve[Q, I]) Evict() {
	if v.state == stateTerminated {
		return
	}
	v.generation++
	if v.cancel != nil {
		v.cancel()
	}
	v.state = stateTerminated
}

func (v *Valve[Q, I]) pump(ctx context.Context, gen uint64, flowOnAt time.Time) {
	defer func() {
		if r := recover(); r != nil {
			v.emit(ctx, Output[Q, I]{Kind: KindError, Query: v.query, Generation: gen, Err: fmt.Errorf("valve: producer panicked: %v", r)})
		}
	}()

	producer := v.fetch(v.query)
	for {
		item, err := producer()
		if err != nil {
			if errors.Is(err, stream.EOS) {
				return
			}
			v.emit(ctx, Output[Q, I]{Kind: KindError, Query: v.query, Generation: gen, Err: err})
			return
		}
		tile := tiledlist.Tile[I]{FlowOnAt: flowOnAt, Item: item}
		v.emit(ctx, Output[Q, I]{Kind: KindData, Query: v.query, Generation: gen, Tile: tile})
	}
}

func (v *Valve[Q, I]) emit(ctx context.Context, o Output[Q, I]) {
	select {
	case v.out <- o:
	case <-ctx.Done():
	}
}
