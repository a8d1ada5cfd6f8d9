package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const sessionColumns = `id, table_id, outlet_id, order_id, opened_by, opened_at, closed_at`

func scanSession(row interface{ Scan(...interface{}) error }) (TableSession, error) {
	var s TableSession
	err := row.Scan(&s.ID, &s.TableID, &s.OutletID, &s.OrderID, &s.OpenedBy, &s.OpenedAt, &s.ClosedAt)
	return s, err
}

const getOpenSessionByTable = `-- name: GetOpenSessionByTable :one
SELECT ` + sessionColumns + ` FROM table_sessions
WHERE table_id = $1 AND closed_at IS NULL
`

func (q *Queries) GetOpenSessionByTable(ctx context.Context, tableID uuid.UUID) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, getOpenSessionByTable, tableID))
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + ` FROM table_sessions WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, getSession, id))
}

const createTableSession = `-- name: CreateTableSession :one
INSERT INTO table_sessions (table_id, outlet_id, opened_by)
VALUES ($1, $2, $3)
RETURNING ` + sessionColumns

type CreateTableSessionParams struct {
	TableID  uuid.UUID
	OutletID uuid.UUID
	OpenedBy uuid.UUID
}

func (q *Queries) CreateTableSession(ctx context.Context, arg CreateTableSessionParams) (TableSession, error) {
	return scanSession(q.db.QueryRow(ctx, createTableSession, arg.TableID, arg.OutletID, arg.OpenedBy))
}

const linkSessionOrder = `-- name: LinkSessionOrder :exec
UPDATE table_sessions SET order_id = $2 WHERE id = $1
`

type LinkSessionOrderParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) LinkSessionOrder(ctx context.Context, arg LinkSessionOrderParams) error {
	_, err := q.db.Exec(ctx, linkSessionOrder, arg.ID, arg.OrderID)
	return err
}

const closeTableSession = `-- name: CloseTableSession :exec
UPDATE table_sessions SET closed_at = NOW() WHERE id = $1 AND closed_at IS NULL
`

func (q *Queries) CloseTableSession(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, closeTableSession, id)
	return err
}

const moveSessionToTable = `-- name: MoveSessionToTable :exec
UPDATE table_sessions SET table_id = $2 WHERE id = $1
`

type MoveSessionToTableParams struct {
	ID      uuid.UUID
	TableID uuid.UUID
}

func (q *Queries) MoveSessionToTable(ctx context.Context, arg MoveSessionToTableParams) error {
	_, err := q.db.Exec(ctx, moveSessionToTable, arg.ID, arg.TableID)
	return err
}

const tableColumns = `id, outlet_id, label, status`

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM restaurant_tables
WHERE id = $1 AND outlet_id = $2
FOR NO KEY UPDATE
`

type GetTableForUpdateParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

func (q *Queries) GetTableForUpdate(ctx context.Context, arg GetTableForUpdateParams) (RestaurantTable, error) {
	var t RestaurantTable
	err := q.db.QueryRow(ctx, getTableForUpdate, arg.ID, arg.OutletID).
		Scan(&t.ID, &t.OutletID, &t.Label, &t.Status)
	return t, err
}

const updateTableStatus = `-- name: UpdateTableStatus :exec
UPDATE restaurant_tables SET status = $2 WHERE id = $1
`

type UpdateTableStatusParams struct {
	ID     uuid.UUID
	Status TableStatus
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) error {
	_, err := q.db.Exec(ctx, updateTableStatus, arg.ID, arg.Status)
	return err
}

const getOutlet = `-- name: GetOutlet :one
SELECT id, name, interstate, service_charge_mode, service_charge_value, service_charge_taxable, created_at
FROM outlets WHERE id = $1
`

func (q *Queries) GetOutlet(ctx context.Context, id uuid.UUID) (Outlet, error) {
	var o Outlet
	err := q.db.QueryRow(ctx, getOutlet, id).Scan(
		&o.ID, &o.Name, &o.Interstate, &o.ServiceChargeMode,
		&o.ServiceChargeValue, &o.ServiceChargeTaxable, &o.CreatedAt,
	)
	return o, err
}

const userColumns = `id, outlet_id, full_name, email, hashed_password, pin, role, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.OutletID, &u.FullName, &u.Email,
		&u.HashedPassword, &u.Pin, &u.Role, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const getUserByOutletAndPin = `-- name: GetUserByOutletAndPin :one
SELECT ` + userColumns + ` FROM users WHERE outlet_id = $1 AND pin = $2
`

type GetUserByOutletAndPinParams struct {
	OutletID uuid.UUID
	Pin      pgtype.Text
}

func (q *Queries) GetUserByOutletAndPin(ctx context.Context, arg GetUserByOutletAndPinParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByOutletAndPin, arg.OutletID, arg.Pin))
}
