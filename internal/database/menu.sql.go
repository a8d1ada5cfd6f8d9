package database

import (
	"context"

	"github.com/google/uuid"
)

// Pricing-oracle queries: the order engine treats the menu as an opaque
// source of effective prices and tax groups.

const getMenuItemForOrder = `-- name: GetMenuItemForOrder :one
SELECT id, outlet_id, name, base_price, station_id, tax_group_id
FROM menu_items
WHERE id = $1 AND outlet_id = $2
`

type GetMenuItemForOrderParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemForOrderParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, getMenuItemForOrder, arg.ID, arg.OutletID).
		Scan(&m.ID, &m.OutletID, &m.Name, &m.BasePrice, &m.StationID, &m.TaxGroupID)
	return m, err
}

const getVariantForOrder = `-- name: GetVariantForOrder :one
SELECT id, menu_item_id, name, price_override
FROM menu_variants WHERE id = $1
`

func (q *Queries) GetVariantForOrder(ctx context.Context, id uuid.UUID) (MenuVariant, error) {
	var v MenuVariant
	err := q.db.QueryRow(ctx, getVariantForOrder, id).
		Scan(&v.ID, &v.MenuItemID, &v.Name, &v.PriceOverride)
	return v, err
}

const getAddonForOrder = `-- name: GetAddonForOrder :one
SELECT id, menu_item_id, name, price
FROM menu_addons WHERE id = $1
`

func (q *Queries) GetAddonForOrder(ctx context.Context, id uuid.UUID) (MenuAddon, error) {
	var a MenuAddon
	err := q.db.QueryRow(ctx, getAddonForOrder, id).
		Scan(&a.ID, &a.MenuItemID, &a.Name, &a.Price)
	return a, err
}

const listTaxComponentsByGroup = `-- name: ListTaxComponentsByGroup :many
SELECT id, tax_group_id, code, rate
FROM tax_components WHERE tax_group_id = $1
ORDER BY code
`

func (q *Queries) ListTaxComponentsByGroup(ctx context.Context, taxGroupID uuid.UUID) ([]TaxComponent, error) {
	rows, err := q.db.Query(ctx, listTaxComponentsByGroup, taxGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var components []TaxComponent
	for rows.Next() {
		var c TaxComponent
		if err := rows.Scan(&c.ID, &c.TaxGroupID, &c.Code, &c.Rate); err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

const getStation = `-- name: GetStation :one
SELECT id, outlet_id, name, station_type, created_at
FROM stations WHERE id = $1
`

func (q *Queries) GetStation(ctx context.Context, id uuid.UUID) (Station, error) {
	var s Station
	err := q.db.QueryRow(ctx, getStation, id).
		Scan(&s.ID, &s.OutletID, &s.Name, &s.StationType, &s.CreatedAt)
	return s, err
}

const getDefaultKitchenStation = `-- name: GetDefaultKitchenStation :one
SELECT id, outlet_id, name, station_type, created_at
FROM stations
WHERE outlet_id = $1 AND station_type = 'KITCHEN'
ORDER BY created_at
LIMIT 1
`

// GetDefaultKitchenStation is the fallback bucket for items with no
// configured station.
func (q *Queries) GetDefaultKitchenStation(ctx context.Context, outletID uuid.UUID) (Station, error) {
	var s Station
	err := q.db.QueryRow(ctx, getDefaultKitchenStation, outletID).
		Scan(&s.ID, &s.OutletID, &s.Name, &s.StationType, &s.CreatedAt)
	return s, err
}
