package engine

import (
	"errors"
	"fmt"

	"github.com/rosscartlidge/tilepager/tiler"
)

// ErrShapeMismatch is the fatal error surfaced when a LimiterChange's
// shape disagrees with the engine's configured output shape (§6, §7).
// It is the same sentinel tiler.Fold wraps, re-exported here so callers
// never need to import the tiler package just to check errors.Is.
var ErrShapeMismatch = tiler.ErrShapeMismatch

// ErrInvalidCursorSeed is returned by cursorfetch.New when its seed
// token map is empty, so no starting query could ever be fetched (§6).
var ErrInvalidCursorSeed = errors.New("engine: neighbored cursor fetcher has no seeded starting query")

// ValveError describes a per-query producer failure (§4.2, §7). Under
// the default EvictAndContinue policy the engine evicts the query and
// continues without surfacing it; under the Fatal policy Run returns it,
// and callers can inspect the cause via errors.As/Unwrap, following the teacher's errors.Is(err, EOS)-style
// conventions (pkg/stream/stream.go).
type ValveError[Q any] struct {
	Query Q
	Cause error
}

func (e *ValveError[Q]) Error() string {
	return fmt.Sprintf("engine: producer for query %v failed: %v", e.Query, e.Cause)
}

func (e *ValveError[Q]) Unwrap() error { return e.Cause }

// Disposition is the action taken in response to a producer error, set
// via WithErrorPolicy (SPEC_FULL.md §11, open question 3).
type Disposition int

const (
	// EvictAndContinue evicts the failing query and keeps the engine
	// running. This is the default, inferred behavior.
	EvictAndContinue Disposition = iota
	// Fatal terminates the engine's output stream with the ValveError.
	Fatal
)
