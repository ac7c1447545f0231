package tiler

// Shape distinguishes the two output shapes a limiter (and an engine)
// can be configured for.
type Shape int

const (
	ShapeList Shape = iota
	ShapeMap
)

// String renders the shape for error messages.
func (s Shape) String() string {
	if s == ShapeMap {
		return "map"
	}
	return "list"
}

// ListLimiter is a predicate over the items accumulated so far by a
// list assembly. It must be monotonic: once true on a prefix it must
// remain true under extension. The assembler does not trust this and
// re-checks after every append regardless.
type ListLimiter[I any] func(items []I) bool

// MapLimiter is the map-shaped analogue of ListLimiter.
type MapLimiter[Q comparable, I any] func(accumulated map[Q]I) bool

// Limiter is the shape-tagged limiter configured on an engine. Only one
// of List/Map is meaningful, selected by Shape.
type Limiter[Q comparable, I any] struct {
	Shape Shape
	List  ListLimiter[I]
	Map   MapLimiter[Q, I]
}

// NewListLimiter wraps a ListLimiter for a list-shaped engine.
func NewListLimiter[Q comparable, I any](f ListLimiter[I]) Limiter[Q, I] {
	return Limiter[Q, I]{Shape: ShapeList, List: f}
}

// NewMapLimiter wraps a MapLimiter for a map-shaped engine.
func NewMapLimiter[Q comparable, I any](f MapLimiter[Q, I]) Limiter[Q, I] {
	return Limiter[Q, I]{Shape: ShapeMap, Map: f}
}

// LimitCount stops list assembly once n items have been appended. This
// is the "max queries" knob from the open question in spec §9 — kept
// distinct from LimitByPredicate (the "item-size hint" knob) so both can
// be configured and tested independently, and combined with
// CombineLimiters when both should apply.
func LimitCount[Q comparable, I any](n int) Limiter[Q, I] {
	return NewListLimiter[Q, I](func(items []I) bool { return len(items) >= n })
}

// LimitByPredicate wraps an arbitrary monotonic predicate as a list
// limiter.
func LimitByPredicate[Q comparable, I any](p ListLimiter[I]) Limiter[Q, I] {
	return NewListLimiter[Q, I](p)
}

// LimitMapCount is the map-shaped analogue of LimitCount.
func LimitMapCount[Q comparable, I any](n int) Limiter[Q, I] {
	return NewMapLimiter[Q, I](func(m map[Q]I) bool { return len(m) >= n })
}

// CombineLimiters ORs two same-shaped limiters: assembly stops as soon
// as either one fires. Combining limiters of different shapes panics,
// since it indicates a programming error rather than a recoverable
// input (shape mismatches arriving at runtime via LimiterChange are
// reported as errors instead; see ErrShapeMismatch).
func CombineLimiters[Q comparable, I any](a, b Limiter[Q, I]) Limiter[Q, I] {
	if a.Shape != b.Shape {
		panic("tiler: CombineLimiters called with mismatched shapes")
	}
	switch a.Shape {
	case ShapeMap:
		return NewMapLimiter[Q, I](func(m map[Q]I) bool {
			return (a.Map != nil && a.Map(m)) || (b.Map != nil && b.Map(m))
		})
	default:
		return NewListLimiter[Q, I](func(items []I) bool {
			return (a.List != nil && a.List(items)) || (b.List != nil && b.List(items))
		})
	}
}
