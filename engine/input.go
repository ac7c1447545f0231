package engine

import "github.com/rosscartlidge/tilepager/tiler"

// Input is the closed sum type the engine consumes (§4.1). All variants
// are defined in this package and implement the unexported isInput
// marker method, so the type switch in apply is exhaustive by
// construction.
type Input[Q comparable, I any] interface {
	isInput()
}

// OnInput begins or keeps a subscription for Query.
type OnInput[Q comparable, I any] struct{ Query Q }

func (OnInput[Q, I]) isInput() {}

// On builds an OnInput.
func On[Q comparable, I any](q Q) Input[Q, I] { return OnInput[Q, I]{Query: q} }

// OffInput stops consuming Query while retaining its last item.
type OffInput[Q comparable, I any] struct{ Query Q }

func (OffInput[Q, I]) isInput() {}

// Off builds an OffInput.
func Off[Q comparable, I any](q Q) Input[Q, I] { return OffInput[Q, I]{Query: q} }

// EvictInput stops consuming Query and drops its last item.
type EvictInput[Q comparable, I any] struct{ Query Q }

func (EvictInput[Q, I]) isInput() {}

// Evict builds an EvictInput.
func Evict[Q comparable, I any](q Q) Input[Q, I] { return EvictInput[Q, I]{Query: q} }

// OrderChangeInput replaces the active ordering policy.
type OrderChangeInput[Q comparable, I any] struct{ Policy tiler.OrderPolicy[Q, I] }

func (OrderChangeInput[Q, I]) isInput() {}

// OrderChange builds an OrderChangeInput.
func OrderChange[Q comparable, I any](policy tiler.OrderPolicy[Q, I]) Input[Q, I] {
	return OrderChangeInput[Q, I]{Policy: policy}
}

// LimiterChangeInput replaces the active limiter. The new limiter's
// shape must match the engine's configured output shape or the engine
// fails with ErrShapeMismatch.
type LimiterChangeInput[Q comparable, I any] struct{ Limiter tiler.Limiter[Q, I] }

func (LimiterChangeInput[Q, I]) isInput() {}

// LimiterChange builds a LimiterChangeInput.
func LimiterChange[Q comparable, I any](limiter tiler.Limiter[Q, I]) Input[Q, I] {
	return LimiterChangeInput[Q, I]{Limiter: limiter}
}

// BatchInput is a logical aggregate of inputs, applied in order. It is
// not transactional: intermediate snapshots may be emitted between its
// elements.
type BatchInput[Q comparable, I any] struct{ Inputs []Input[Q, I] }

func (BatchInput[Q, I]) isInput() {}

// Batch builds a BatchInput.
func Batch[Q comparable, I any](inputs ...Input[Q, I]) Input[Q, I] {
	return BatchInput[Q, I]{Inputs: inputs}
}
