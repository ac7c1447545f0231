package tiler

import "github.com/rosscartlidge/tilepager/tiledlist"

// OrderKind tags the active ordering policy.
type OrderKind int

const (
	OrderUnspecified OrderKind = iota
	OrderSorted
	OrderPivotSorted
	OrderCustomList
	OrderCustomMap
)

// String renders the order kind for diagnostics and error messages.
func (k OrderKind) String() string {
	switch k {
	case OrderUnspecified:
		return "unspecified"
	case OrderSorted:
		return "sorted"
	case OrderPivotSorted:
		return "pivot-sorted"
	case OrderCustomList:
		return "custom-list"
	case OrderCustomMap:
		return "custom-map"
	default:
		return "unknown"
	}
}

// Metadata is the value passed to CustomList/CustomMap transforms: a
// value-copied, assembly-time snapshot of the query ordering state.
// Per the "new order, snapshot at assembly time" resolution (see
// DESIGN.md), Queries always reflects the order policy active when the
// snapshot is taken, never a stale one from a concurrent OrderChange.
type Metadata[Q comparable] struct {
	Queries              []Q
	MostRecentlyTurnedOn  *Q
	MostRecentlyEmitted   *Q
}

// CustomListFunc projects metadata and tiles into a list-shaped output.
type CustomListFunc[Q comparable, I any] func(meta Metadata[Q], tiles map[Q]tiledlist.Tile[I]) (*tiledlist.TiledList[Q, I], error)

// CustomMapFunc projects metadata and tiles into a map-shaped output.
type CustomMapFunc[Q comparable, I any] func(meta Metadata[Q], tiles map[Q]tiledlist.Tile[I]) (*tiledlist.OrderedMap[Q, I], error)

// OrderPolicy is the tagged-variant ordering configuration of §3.
type OrderPolicy[Q comparable, I any] struct {
	Kind       OrderKind
	Comparator tiledlist.Comparator[Q]
	CustomList CustomListFunc[Q, I]
	CustomMap  CustomMapFunc[Q, I]
}

// Unspecified orders retained queries by retention (insertion) order.
func Unspecified[Q comparable, I any]() OrderPolicy[Q, I] {
	return OrderPolicy[Q, I]{Kind: OrderUnspecified}
}

// Sorted orders queries by cmp, ascending.
func Sorted[Q comparable, I any](cmp tiledlist.Comparator[Q]) OrderPolicy[Q, I] {
	return OrderPolicy[Q, I]{Kind: OrderSorted, Comparator: cmp}
}

// PivotSorted expands outward from the most-recently-turned-on query
// within the cmp-sorted query set.
func PivotSorted[Q comparable, I any](cmp tiledlist.Comparator[Q]) OrderPolicy[Q, I] {
	return OrderPolicy[Q, I]{Kind: OrderPivotSorted, Comparator: cmp}
}

// CustomListOrder hands assembly to fn, producing a TiledList.
func CustomListOrder[Q comparable, I any](cmp tiledlist.Comparator[Q], fn CustomListFunc[Q, I]) OrderPolicy[Q, I] {
	return OrderPolicy[Q, I]{Kind: OrderCustomList, Comparator: cmp, CustomList: fn}
}

// CustomMapOrder hands assembly to fn, producing an OrderedMap.
func CustomMapOrder[Q comparable, I any](cmp tiledlist.Comparator[Q], fn CustomMapFunc[Q, I]) OrderPolicy[Q, I] {
	return OrderPolicy[Q, I]{Kind: OrderCustomMap, Comparator: cmp, CustomMap: fn}
}
