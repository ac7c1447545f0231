// Package engine wires the multiplexer, tiler, and assembler into the
// single-consumer-goroutine reactive engine described by SPEC_FULL.md
// §5 and §6.
package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rosscartlidge/tilepager/internal/snapshot"
	"github.com/rosscartlidge/tilepager/internal/valve"
	"github.com/rosscartlidge/tilepager/assemble"
	"github.com/rosscartlidge/tilepager/pkg/stream"
	"github.com/rosscartlidge/tilepager/tiler"
)

// Engine is the reactive tiling pagination engine. One Engine instance
// corresponds to one logical consumer (§5): every Input sent to it and
// every valve.Output it folds is processed by the single goroutine
// running inside Run.
type Engine[Q comparable, I any] struct {
	shape tiler.Shape
	fetch func(Q) stream.Stream[I]
	cfg   config[Q, I]

	state *tiler.QueryState[Q, I]
	mux   *valve.Multiplexer[Q, I]

	runCtx    context.Context
	inputs    chan Input[Q, I]
	snapshots chan Snapshot[Q, I]
	latest    snapshot.Box[Snapshot[Q, I]]
}

// NewEngine constructs an Engine for the given output shape. fetch is
// the per-query producer contract (§4.2): called once per On
// transition, it must return a Stream that respects the context Run
// cancels on shutdown.
func NewEngine[Q comparable, I any](fetch func(Q) stream.Stream[I], shape tiler.Shape, opts ...Option[Q, I]) *Engine[Q, I] {
	cfg := defaultConfig[Q, I]()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine[Q, I]{
		shape:     shape,
		fetch:     fetch,
		cfg:       cfg,
		state:     tiler.New[Q, I](shape),
		inputs:    make(chan Input[Q, I]),
		snapshots: make(chan Snapshot[Q, I], cfg.snapshotDepth),
	}
}

// Inputs returns the channel callers send Input values into. It is
// never closed by the engine; callers that are done sending may close
// it themselves to let Run know no more inputs are coming, though Run
// keeps draining valve outputs regardless until ctx is cancelled.
func (e *Engine[Q, I]) Inputs() chan<- Input[Q, I] { return e.inputs }

// Snapshots returns the downstream stream of assembled snapshots, using
// the teacher's pull-based Stream[T] (pkg/stream FromChannel) as the
// output contract.
func (e *Engine[Q, I]) Snapshots() stream.Stream[Snapshot[Q, I]] {
	return stream.FromChannel(e.snapshots)
}

// Latest returns the most recently published snapshot without
// consuming it, for callers that poll instead of streaming.
func (e *Engine[Q, I]) Latest() (Snapshot[Q, I], bool) {
	return e.latest.Get()
}

// Run drives the engine until ctx is cancelled or a fatal error occurs.
// One errgroup.Group supervises every valve's producer pump, so
// cancelling ctx cancels all subscriptions in one step (§5,
// Cancellation). Run must be called at most once.
func (e *Engine[Q, I]) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)
	e.runCtx = gctx
	e.mux = valve.New(gctx, group, e.fetch, e.cfg.clock, e.cfg.bufferSize)

	defer close(e.snapshots)
	defer group.Wait()
	defer cancel()

	inputs := e.inputs
	for {
		select {
		case <-gctx.Done():
			return context.Cause(gctx)

		case in, ok := <-inputs:
			if !ok {
				inputs = nil
				continue
			}
			if err := e.apply(in); err != nil {
				return err
			}

		case o, ok := <-e.mux.Outputs():
			if !ok {
				continue
			}
			if !e.mux.IsLive(o.Query, o.Generation) {
				continue
			}
			if err := e.foldOutput(o); err != nil {
				return err
			}
		}
	}
}

// apply applies in, recursing through BatchInput in order. Batches are
// not transactional: a snapshot may be published between elements.
func (e *Engine[Q, I]) apply(in Input[Q, I]) error {
	if b, ok := in.(BatchInput[Q, I]); ok {
		for _, sub := range b.Inputs {
			if err := e.apply(sub); err != nil {
				return err
			}
		}
		return nil
	}
	return e.applyOne(in)
}

func (e *Engine[Q, I]) applyOne(in Input[Q, I]) error {
	switch v := in.(type) {
	case OnInput[Q, I]:
		if e.mux.On(v.Query) {
			return e.fold(tiler.TurnedOnEvent[Q, I](v.Query))
		}
		return nil

	case OffInput[Q, I]:
		e.mux.Off(v.Query)
		return nil

	case EvictInput[Q, I]:
		if e.mux.Evict(v.Query) {
			return e.fold(tiler.EvictionEvent[Q, I](v.Query))
		}
		return nil

	case OrderChangeInput[Q, I]:
		return e.fold(tiler.OrderChangeEvent(v.Policy))

	case LimiterChangeInput[Q, I]:
		return e.fold(tiler.LimiterChangeEvent(v.Limiter))

	default:
		return fmt.Errorf("engine: unknown input type %T", in)
	}
}

// foldOutput translates an asynchronous valve.Output into a tiler
// event. Producer errors go through cfg.errorPolicy (§9, open question
// 3): EvictAndContinue (the default) evicts the query and folds an
// Eviction event; Fatal stops the engine with a ValveError.
func (e *Engine[Q, I]) foldOutput(o valve.Output[Q, I]) error {
	switch o.Kind {
	case valve.KindData:
		return e.fold(tiler.DataEvent(o.Query, o.Tile))

	case valve.KindError:
		verr := &ValveError[Q]{Query: o.Query, Cause: o.Err}
		if e.cfg.errorPolicy(o.Query, o.Err) == Fatal {
			return verr
		}
		e.mux.Evict(o.Query)
		return e.fold(tiler.EvictionEvent[Q, I](o.Query))

	default:
		return nil
	}
}

func (e *Engine[Q, I]) fold(ev tiler.Event[Q, I]) error {
	shouldEmit, err := tiler.Fold(e.state, ev)
	if err != nil {
		return err
	}
	if !shouldEmit {
		return nil
	}
	return e.publish()
}

func (e *Engine[Q, I]) publish() error {
	snap, err := e.assemble()
	if err != nil {
		return err
	}
	e.latest.Set(snap)
	select {
	case e.snapshots <- snap:
		return nil
	case <-e.runCtx.Done():
		return nil
	}
}

func (e *Engine[Q, I]) assemble() (snap Snapshot[Q, I], err error) {
	defer func() {
		if r := recover(); r != nil {
			snap, err = Snapshot[Q, I]{}, fmt.Errorf("engine: assembly panicked: %v", r)
		}
	}()
	if e.shape == tiler.ShapeMap {
		m, diag, err := assemble.BuildMap(e.state)
		if err != nil {
			return Snapshot[Q, I]{}, err
		}
		return Snapshot[Q, I]{Map: m, Diagnostics: diag}, nil
	}
	list, diag, err := assemble.BuildList(e.state)
	if err != nil {
		return Snapshot[Q, I]{}, err
	}
	return Snapshot[Q, I]{List: list, Diagnostics: diag}, nil
}
