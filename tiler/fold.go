package tiler

import "github.com/rosscartlidge/tilepager/tiledlist"

// EventKind tags which row of the §4.4 fold table an Event represents.
type EventKind int

const (
	EventData EventKind = iota
	EventTurnedOn
	EventEviction
	EventOrderChange
	EventLimiterChange
)

// Event is the tiler's fold input, produced by the engine from either
// an asynchronous valve.Output or a synchronous input transition.
type Event[Q comparable, I any] struct {
	Kind    EventKind
	Query   Q
	Tile    tiledlist.Tile[I]
	Order   OrderPolicy[Q, I]
	Limiter Limiter[Q, I]
}

// DataEvent builds the Data(q, tile) fold event.
func DataEvent[Q comparable, I any](q Q, tile tiledlist.Tile[I]) Event[Q, I] {
	return Event[Q, I]{Kind: EventData, Query: q, Tile: tile}
}

// TurnedOnEvent builds the TurnedOn(q) fold event.
func TurnedOnEvent[Q comparable, I any](q Q) Event[Q, I] {
	return Event[Q, I]{Kind: EventTurnedOn, Query: q}
}

// EvictionEvent builds the Eviction(q) fold event.
func EvictionEvent[Q comparable, I any](q Q) Event[Q, I] {
	return Event[Q, I]{Kind: EventEviction, Query: q}
}

// OrderChangeEvent builds the OrderChange(policy) fold event.
func OrderChangeEvent[Q comparable, I any](policy OrderPolicy[Q, I]) Event[Q, I] {
	return Event[Q, I]{Kind: EventOrderChange, Order: policy}
}

// LimiterChangeEvent builds the LimiterChange(limiter) fold event.
func LimiterChangeEvent[Q comparable, I any](limiter Limiter[Q, I]) Event[Q, I] {
	return Event[Q, I]{Kind: EventLimiterChange, Limiter: limiter}
}

// Fold applies ev to s per the table in spec §4.4, returning whether the
// engine should emit a new snapshot.
func Fold[Q comparable, I any](s *QueryState[Q, I], ev Event[Q, I]) (shouldEmit bool, err error) {
	switch ev.Kind {
	case EventData:
		if _, existed := s.Tiles[ev.Query]; !existed {
			s.Retention = append(s.Retention, ev.Query)
		}
		s.Tiles[ev.Query] = ev.Tile
		q := ev.Query
		s.MostRecentlyEmitted = &q
		return true, nil

	case EventTurnedOn:
		q := ev.Query
		s.MostRecentlyTurnedOn = &q
		_, cached := s.Tiles[ev.Query]
		return cached, nil

	case EventEviction:
		delete(s.Tiles, ev.Query)
		s.Retention = removeQuery(s.Retention, ev.Query)
		return true, nil

	case EventOrderChange:
		s.Order = ev.Order
		return true, nil

	case EventLimiterChange:
		if ev.Limiter.Shape != s.Shape {
			return false, shapeError(s.Shape, ev.Limiter.Shape)
		}
		s.Limiter = ev.Limiter
		return true, nil

	default:
		return false, nil
	}
}
