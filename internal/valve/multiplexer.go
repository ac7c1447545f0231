package valve

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rosscartlidge/tilepager/pkg/stream"
)

// Multiplexer dispatches On/Off/Evict requests to per-query valves and
// merges their Data/Error emissions into one channel. It is the sole
// owner of the valve table (§4.3); callers must confine it to a single
// goroutine, which is exactly what Engine.Run does.
type Multiplexer[Q comparable, I any] struct {
	ctx   context.Context
	group *errgroup.Group
	fetch func(Q) stream.Stream[I]
	clock func() time.Time

	valves map[Q]*Valve[Q, I]
	out    chan Output[Q, I]
}

// New returns a Multiplexer driven by group for cancellation and
// supervision of producer pump goroutines. bufferSize sizes the merged
// output channel; 0 selects a sensible default.
func New[Q comparable, I any](ctx context.Context, group *errgroup.Group, fetch func(Q) stream.Stream[I], clock func() time.Time, bufferSize int) *Multiplexer[Q, I] {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if clock == nil {
		clock = time.Now
	}
	return &Multiplexer[Q, I]{
		ctx:    ctx,
		group:  group,
		fetch:  fetch,
		clock:  clock,
		valves: make(map[Q]*Valve[Q, I]),
		out:    make(chan Output[Q, I], bufferSize),
	}
}

// Outputs returns the merged channel of Data/Error emissions. Ordering
// between valves is unspecified (fair merge via Go's channel
// scheduler); ordering within one query is preserved because each
// valve's pump sends sequentially from a single goroutine.
func (m *Multiplexer[Q, I]) Outputs() <-chan Output[Q, I] { return m.out }

// IsLive reports whether o (observed with the given query and
// generation) still corresponds to that query's current subscription.
// Callers must check this for every Data/Error emission before folding
// it into state, to honor the "no in-flight item from a cancelled
// producer is ever emitted as Data" guarantee of §4.2.
func (m *Multiplexer[Q, I]) IsLive(q Q, generation uint64) bool {
	v, ok := m.valves[q]
	return ok && v.Generation() == generation
}

// On creates a valve for q on first use and forwards an On request,
// reporting whether this call performed an off->on transition.
func (m *Multiplexer[Q, I]) On(q Q) bool {
	v, ok := m.valves[q]
	if !ok {
		v = newValve(q, m.fetch, m.clock, m.out)
		m.valves[q] = v
	}
	return v.On(m.ctx, m.group)
}

// Off forwards an Off request if a valve exists for q; otherwise it is
// a no-op, matching the idempotence rule of §4.1.
func (m *Multiplexer[Q, I]) Off(q Q) {
	if v, ok := m.valves[q]; ok {
		v.Off()
	}
}

// Evict forwards an Evict request and drops the valve reference,
// reporting whether a valve existed for q.
func (m *Multiplexer[Q, I]) Evict(q Q) bool {
	v, ok := m.valves[q]
	if !ok {
		return false
	}
	v.Evict()
	delete(m.valves, q)
	return true
}
