package engine

import (
	"github.com/rosscartlidge/tilepager/assemble"
	"github.com/rosscartlidge/tilepager/tiledlist"
)

// Snapshot is the engine's downstream emission: either a TiledList or
// an OrderedMap depending on the engine's configured output shape,
// never both. Diagnostics is pure observability (SPEC_FULL.md §9) and
// never affects how a consumer should interpret List/Map.
type Snapshot[Q comparable, I any] struct {
	List        *tiledlist.TiledList[Q, I]
	Map         *tiledlist.OrderedMap[Q, I]
	Diagnostics assemble.Diagnostics
}
