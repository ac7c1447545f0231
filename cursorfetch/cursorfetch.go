// Package cursorfetch adapts cursor/token-based pagination, where page
// p+1 requires a token learned from fetching page p, to the concurrent
// tiler (§4.7). It is the one place this module reaches for
// golang.org/x/sync/singleflight, deduplicating concurrent fetches for
// a query the way the teacher's errgroup dependency already covers
// supervised concurrency (see SPEC_FULL.md §3).
package cursorfetch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rosscartlidge/tilepager/engine"
	"github.com/rosscartlidge/tilepager/pkg/stream"
)

// FetchFunc performs one cursor-paginated fetch: given the token
// learned for q, it returns q's items plus any neighbor_q -> token
// pairs the response taught it.
type FetchFunc[Q comparable, Token any, I any] func(ctx context.Context, q Q, token Token) (items []I, learned map[Q]Token, err error)

// FetchParams seeds a Fetcher. MaxTokens bounds the token table; 0
// means unbounded. Seed must contain at least the starting query's
// token or Fetch has no way to ever bootstrap (engine.ErrInvalidCursorSeed).
type FetchParams[Q comparable, Token any] struct {
	Seed      map[Q]Token
	MaxTokens int
}

// Fetcher maintains the bounded token table and suspends Fetch calls
// until a query's token is learned. Eviction drops the
// least-recently-learned token once the table exceeds MaxTokens (§4.7);
// despite the source's "LIFO" label, the observable eviction rule is
// oldest-learned-first, so the table is kept as a learn-ordered queue.
type Fetcher[Q comparable, Token any, I any] struct {
	ctx       context.Context
	fetch     FetchFunc[Q, Token, I]
	maxTokens int

	mu      sync.Mutex
	tokens  map[Q]Token
	order   []Q
	waiters map[Q][]chan struct{}

	group singleflight.Group
}

// New constructs a Fetcher whose blocking waits are bound to ctx
// (typically the same context the engine's Run is driven with). It
// fails with engine.ErrInvalidCursorSeed if params.Seed is empty, since
// then no query could ever learn a starting token.
func New[Q comparable, Token any, I any](ctx context.Context, fetch FetchFunc[Q, Token, I], params FetchParams[Q, Token]) (*Fetcher[Q, Token, I], error) {
	if len(params.Seed) == 0 {
		return nil, engine.ErrInvalidCursorSeed
	}
	f := &Fetcher[Q, Token, I]{
		ctx:       ctx,
		fetch:     fetch,
		maxTokens: params.MaxTokens,
		tokens:    make(map[Q]Token),
		waiters:   make(map[Q][]chan struct{}),
	}
	for q, t := range params.Seed {
		f.learn(q, t)
	}
	return f, nil
}

// Fetch returns a Stream[I] suitable as the engine's producer factory
// (§6): the returned Stream performs exactly one underlying fetch, on
// its first call, then drains the returned items before reporting
// stream.EOS.
func (f *Fetcher[Q, Token, I]) Fetch(q Q) stream.Stream[I] {
	var once sync.Once
	var items []I
	var fetchErr error
	idx := 0

	return func() (I, error) {
		once.Do(func() {
			items, fetchErr = f.fetchOne(q)
		})
		var zero I
		if fetchErr != nil {
			return zero, fetchErr
		}
		if idx >= len(items) {
			return zero, stream.EOS
		}
		item := items[idx]
		idx++
		return item, nil
	}
}

func (f *Fetcher[Q, Token, I]) fetchOne(q Q) ([]I, error) {
	token, err := f.waitForToken(q)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%v", q)
	v, err, _ := f.group.Do(key, func() (any, error) {
		items, learned, err := f.fetch(f.ctx, q, token)
		if err != nil {
			return nil, err
		}
		for nq, nt := range learned {
			f.learn(nq, nt)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]I), nil
}

// waitForToken blocks until q's token is learned or ctx is cancelled.
func (f *Fetcher[Q, Token, I]) waitForToken(q Q) (Token, error) {
	for {
		f.mu.Lock()
		if t, ok := f.tokens[q]; ok {
			f.mu.Unlock()
			return t, nil
		}
		ch := make(chan struct{})
		f.waiters[q] = append(f.waiters[q], ch)
		f.mu.Unlock()

		select {
		case <-ch:
		case <-f.ctx.Done():
			var zero Token
			return zero, f.ctx.Err()
		}
	}
}

func (f *Fetcher[Q, Token, I]) learn(q Q, t Token) {
	f.mu.Lock()
	if _, exists := f.tokens[q]; exists {
		for i, k := range f.order {
			if k == q {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
	f.order = append(f.order, q)
	f.tokens[q] = t
	for f.maxTokens > 0 && len(f.order) > f.maxTokens {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.tokens, oldest)
	}
	waiters := f.waiters[q]
	delete(f.waiters, q)
	f.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}
