package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const ticketColumns = `id, order_id, outlet_id, station_id, ticket_number, sequence_no, status, priority, accepted_at, ready_at, served_at, created_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (KotTicket, error) {
	var t KotTicket
	err := row.Scan(
		&t.ID, &t.OrderID, &t.OutletID, &t.StationID, &t.TicketNumber,
		&t.SequenceNo, &t.Status, &t.Priority, &t.AcceptedAt, &t.ReadyAt,
		&t.ServedAt, &t.CreatedAt,
	)
	return t, err
}

const getNextKotSequence = `-- name: GetNextKotSequence :one
SELECT COALESCE(MAX(sequence_no), 0) + 1
FROM kot_tickets
WHERE station_id = $1 AND created_at::date = CURRENT_DATE
`

// GetNextKotSequence returns the next ticket sequence, per station per day.
// Racy by itself; callers rely on the unique constraint plus retry.
func (q *Queries) GetNextKotSequence(ctx context.Context, stationID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextKotSequence, stationID).Scan(&n)
	return n, err
}

const createKotTicket = `-- name: CreateKotTicket :one
INSERT INTO kot_tickets (order_id, outlet_id, station_id, ticket_number, sequence_no, status, priority)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + ticketColumns

type CreateKotTicketParams struct {
	OrderID      uuid.UUID
	OutletID     uuid.UUID
	StationID    uuid.UUID
	TicketNumber string
	SequenceNo   int32
	Status       KotStatus
	Priority     bool
}

func (q *Queries) CreateKotTicket(ctx context.Context, arg CreateKotTicketParams) (KotTicket, error) {
	row := q.db.QueryRow(ctx, createKotTicket,
		arg.OrderID, arg.OutletID, arg.StationID, arg.TicketNumber,
		arg.SequenceNo, arg.Status, arg.Priority,
	)
	return scanTicket(row)
}

const getKotTicketForUpdate = `-- name: GetKotTicketForUpdate :one
SELECT ` + ticketColumns + ` FROM kot_tickets
WHERE id = $1 AND outlet_id = $2
FOR NO KEY UPDATE
`

type GetKotTicketForUpdateParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

func (q *Queries) GetKotTicketForUpdate(ctx context.Context, arg GetKotTicketForUpdateParams) (KotTicket, error) {
	return scanTicket(q.db.QueryRow(ctx, getKotTicketForUpdate, arg.ID, arg.OutletID))
}

const getKotTicket = `-- name: GetKotTicket :one
SELECT ` + ticketColumns + ` FROM kot_tickets WHERE id = $1 AND outlet_id = $2
`

type GetKotTicketParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

func (q *Queries) GetKotTicket(ctx context.Context, arg GetKotTicketParams) (KotTicket, error) {
	return scanTicket(q.db.QueryRow(ctx, getKotTicket, arg.ID, arg.OutletID))
}

const listKotTicketsByOrder = `-- name: ListKotTicketsByOrder :many
SELECT ` + ticketColumns + ` FROM kot_tickets
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListKotTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]KotTicket, error) {
	return q.queryTickets(ctx, listKotTicketsByOrder, orderID)
}

const listOpenKotTicketsByOrder = `-- name: ListOpenKotTicketsByOrder :many
SELECT ` + ticketColumns + ` FROM kot_tickets
WHERE order_id = $1 AND status NOT IN ('SERVED', 'CANCELLED')
ORDER BY created_at
FOR NO KEY UPDATE
`

func (q *Queries) ListOpenKotTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]KotTicket, error) {
	return q.queryTickets(ctx, listOpenKotTicketsByOrder, orderID)
}

func (q *Queries) queryTickets(ctx context.Context, sql string, orderID uuid.UUID) ([]KotTicket, error) {
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tickets []KotTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

const updateKotTicketStatus = `-- name: UpdateKotTicketStatus :one
UPDATE kot_tickets SET
    status = $2,
    accepted_at = CASE WHEN $2::text = 'ACCEPTED' THEN NOW() ELSE accepted_at END,
    ready_at    = CASE WHEN $2::text = 'READY'    THEN NOW() ELSE ready_at END,
    served_at   = CASE WHEN $2::text = 'SERVED'   THEN NOW() ELSE served_at END
WHERE id = $1
RETURNING ` + ticketColumns

type UpdateKotTicketStatusParams struct {
	ID     uuid.UUID
	Status KotStatus
}

func (q *Queries) UpdateKotTicketStatus(ctx context.Context, arg UpdateKotTicketStatusParams) (KotTicket, error) {
	return scanTicket(q.db.QueryRow(ctx, updateKotTicketStatus, arg.ID, arg.Status))
}

const kotItemColumns = `id, ticket_id, order_item_id, name, quantity, instructions, status`

func scanKotItem(row interface{ Scan(...interface{}) error }) (KotItem, error) {
	var i KotItem
	err := row.Scan(&i.ID, &i.TicketID, &i.OrderItemID, &i.Name, &i.Quantity, &i.Instructions, &i.Status)
	return i, err
}

const createKotItem = `-- name: CreateKotItem :one
INSERT INTO kot_items (ticket_id, order_item_id, name, quantity, instructions, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + kotItemColumns

type CreateKotItemParams struct {
	TicketID     uuid.UUID
	OrderItemID  uuid.UUID
	Name         string
	Quantity     int32
	Instructions pgtype.Text
	Status       KotStatus
}

func (q *Queries) CreateKotItem(ctx context.Context, arg CreateKotItemParams) (KotItem, error) {
	row := q.db.QueryRow(ctx, createKotItem,
		arg.TicketID, arg.OrderItemID, arg.Name, arg.Quantity,
		arg.Instructions, arg.Status,
	)
	return scanKotItem(row)
}

const getKotItemForUpdate = `-- name: GetKotItemForUpdate :one
SELECT ` + kotItemColumns + ` FROM kot_items
WHERE id = $1 AND ticket_id = $2
FOR NO KEY UPDATE
`

type GetKotItemForUpdateParams struct {
	ID       uuid.UUID
	TicketID uuid.UUID
}

func (q *Queries) GetKotItemForUpdate(ctx context.Context, arg GetKotItemForUpdateParams) (KotItem, error) {
	return scanKotItem(q.db.QueryRow(ctx, getKotItemForUpdate, arg.ID, arg.TicketID))
}

const getKotItemByOrderItem = `-- name: GetKotItemByOrderItem :one
SELECT ` + kotItemColumns + ` FROM kot_items
WHERE order_item_id = $1 AND status <> 'CANCELLED'
`

func (q *Queries) GetKotItemByOrderItem(ctx context.Context, orderItemID uuid.UUID) (KotItem, error) {
	return scanKotItem(q.db.QueryRow(ctx, getKotItemByOrderItem, orderItemID))
}

const listKotItemsByTicket = `-- name: ListKotItemsByTicket :many
SELECT ` + kotItemColumns + ` FROM kot_items WHERE ticket_id = $1
`

func (q *Queries) ListKotItemsByTicket(ctx context.Context, ticketID uuid.UUID) ([]KotItem, error) {
	rows, err := q.db.Query(ctx, listKotItemsByTicket, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []KotItem
	for rows.Next() {
		i, err := scanKotItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateKotItemStatus = `-- name: UpdateKotItemStatus :one
UPDATE kot_items SET status = $2 WHERE id = $1
RETURNING ` + kotItemColumns

type UpdateKotItemStatusParams struct {
	ID     uuid.UUID
	Status KotStatus
}

func (q *Queries) UpdateKotItemStatus(ctx context.Context, arg UpdateKotItemStatusParams) (KotItem, error) {
	return scanKotItem(q.db.QueryRow(ctx, updateKotItemStatus, arg.ID, arg.Status))
}

const cancelKotItemsByTicket = `-- name: CancelKotItemsByTicket :exec
UPDATE kot_items SET status = 'CANCELLED'
WHERE ticket_id = $1 AND status <> 'CANCELLED'
`

func (q *Queries) CancelKotItemsByTicket(ctx context.Context, ticketID uuid.UUID) error {
	_, err := q.db.Exec(ctx, cancelKotItemsByTicket, ticketID)
	return err
}

const countKotItemsNotDone = `-- name: CountKotItemsNotDone :one
SELECT COUNT(*) FROM kot_items
WHERE ticket_id = $1 AND status NOT IN ('READY', 'SERVED', 'CANCELLED')
`

// CountKotItemsNotDone drives the ticket auto-close check.
func (q *Queries) CountKotItemsNotDone(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countKotItemsNotDone, ticketID).Scan(&n)
	return n, err
}

const countKotItemsActive = `-- name: CountKotItemsActive :one
SELECT COUNT(*) FROM kot_items
WHERE ticket_id = $1 AND status <> 'CANCELLED'
`

func (q *Queries) CountKotItemsActive(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countKotItemsActive, ticketID).Scan(&n)
	return n, err
}
