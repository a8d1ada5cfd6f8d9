// Package station routes order lines to preparation stations and derives
// ticket prefixes from station type.
package station

import (
	"strings"

	"github.com/google/uuid"
)

type Type string

const (
	TypeKitchen  Type = "KITCHEN"
	TypeBar      Type = "BAR"
	TypeDessert  Type = "DESSERT"
	TypeMocktail Type = "MOCKTAIL"
)

// Normalize maps a free-form station label to a type by substring match.
// Unrecognised labels fall back to the kitchen.
func Normalize(label string) Type {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "mock"):
		return TypeMocktail
	case strings.Contains(l, "bar"):
		return TypeBar
	case strings.Contains(l, "dessert"):
		return TypeDessert
	default:
		return TypeKitchen
	}
}

// Prefix returns the ticket number prefix for a station type. Beverage
// stations print BOTs, everything else prints KOTs.
func Prefix(t Type) string {
	if t == TypeBar || t == TypeMocktail {
		return "BOT"
	}
	return "KOT"
}

// RoutedItem is one pending order line headed for a station.
type RoutedItem struct {
	OrderItemID  uuid.UUID
	StationID    uuid.UUID
	Name         string
	Quantity     int32
	Instructions string
}

// Group is all items routed to one station in a single send.
type Group struct {
	StationID uuid.UUID
	Items     []RoutedItem
}

// GroupByStation buckets items by station identity. Items with no station
// assignment go to the fallback station. Groups come back in first-seen
// item order so ticket creation is deterministic.
func GroupByStation(items []RoutedItem, fallback uuid.UUID) []Group {
	var groups []Group
	index := make(map[uuid.UUID]int)
	for _, item := range items {
		sid := item.StationID
		if sid == uuid.Nil {
			sid = fallback
		}
		item.StationID = sid
		i, ok := index[sid]
		if !ok {
			i = len(groups)
			index[sid] = i
			groups = append(groups, Group{StationID: sid})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
