package engine

import "time"

// config collects the options an Option mutates.
type config[Q comparable, I any] struct {
	clock         func() time.Time
	bufferSize    int
	snapshotDepth int
	errorPolicy   func(q Q, err error) Disposition
}

func defaultConfig[Q comparable, I any]() config[Q, I] {
	return config[Q, I]{
		clock:         time.Now,
		bufferSize:    64,
		snapshotDepth: 1,
		errorPolicy:   func(Q, error) Disposition { return EvictAndContinue },
	}
}

// Option configures an Engine at construction time, following the
// teacher's functional-option shape.
type Option[Q comparable, I any] func(*config[Q, I])

// WithClock overrides the monotonic clock used to stamp
// Tile.FlowOnAt. Tests use this to make flow-on timestamps
// deterministic.
func WithClock[Q comparable, I any](clock func() time.Time) Option[Q, I] {
	return func(c *config[Q, I]) { c.clock = clock }
}

// WithValveBuffer sizes the channel valves share to send Data/Error
// emissions into the engine's consumer loop.
func WithValveBuffer[Q comparable, I any](n int) Option[Q, I] {
	return func(c *config[Q, I]) { c.bufferSize = n }
}

// WithSnapshotBuffer sizes the downstream snapshot channel. A depth of
// 1 means the engine blocks (suspends, per §5) producing a new snapshot
// until the previous one has been consumed.
func WithSnapshotBuffer[Q comparable, I any](n int) Option[Q, I] {
	return func(c *config[Q, I]) { c.snapshotDepth = n }
}

// WithErrorPolicy overrides how producer errors are handled. The
// default, EvictAndContinue, matches the inferred behavior of §4.2/§7:
// a producer failure evicts its query and the engine continues. This
// satisfies the optional error-policy hook called for in spec §9's open
// question 3.
func WithErrorPolicy[Q comparable, I any](policy func(q Q, err error) Disposition) Option[Q, I] {
	return func(c *config[Q, I]) { c.errorPolicy = policy }
}
