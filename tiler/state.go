// Package tiler folds the multiplexer's merged output stream into
// QueryState and decides when the engine should emit a snapshot.
package tiler

import (
	"errors"
	"fmt"

	"github.com/rosscartlidge/tilepager/tiledlist"
)

// ErrShapeMismatch is returned when a LimiterChange's shape does not
// match the engine's configured output shape.
var ErrShapeMismatch = errors.New("tiler: limiter shape does not match engine output shape")

// QueryState is the fold target: the current map of retained tiles plus
// the ordering/limiter configuration needed to assemble a snapshot.
type QueryState[Q comparable, I any] struct {
	// Shape is fixed at construction and never changes; it is the
	// engine's configured output shape.
	Shape Shape

	// Retention holds every currently retained query (tiles present for
	// an on-or-off-but-not-evicted query) in the order it first
	// produced data. It is the basis for Unspecified ordering and the
	// input to any comparator-based sort at assembly time.
	Retention []Q

	MostRecentlyTurnedOn *Q
	MostRecentlyEmitted  *Q

	Tiles map[Q]tiledlist.Tile[I]

	Order   OrderPolicy[Q, I]
	Limiter Limiter[Q, I]
}

// New returns an empty QueryState configured for the given output
// shape, with Unspecified ordering and no limiter.
func New[Q comparable, I any](shape Shape) *QueryState[Q, I] {
	return &QueryState[Q, I]{
		Shape:   shape,
		Tiles:   make(map[Q]tiledlist.Tile[I]),
		Order:   Unspecified[Q, I](),
		Limiter: Limiter[Q, I]{Shape: shape},
	}
}

func removeQuery[Q comparable](queries []Q, q Q) []Q {
	for i, existing := range queries {
		if existing == q {
			return append(queries[:i:i], queries[i+1:]...)
		}
	}
	return queries
}

// shapeError wraps ErrShapeMismatch with the offending shapes.
func shapeError(want, got Shape) error {
	return fmt.Errorf("%w: engine configured for %s, limiter is %s", ErrShapeMismatch, want, got)
}
