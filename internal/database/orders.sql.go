package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, outlet_id, order_number, order_type, status, table_session_id, subtotal, discount_total, tax_total, service_charge, round_off, grand_total, tax_breakup, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OutletID, &o.OrderNumber, &o.OrderType, &o.Status,
		&o.TableSessionID, &o.Subtotal, &o.DiscountTotal, &o.TaxTotal,
		&o.ServiceCharge, &o.RoundOff, &o.GrandTotal, &o.TaxBreakup,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT COALESCE(MAX(
    CAST(SPLIT_PART(order_number, '-', 3) AS INTEGER)
), 0) + 1
FROM orders
WHERE outlet_id = $1 AND created_at::date = CURRENT_DATE
`

// GetNextOrderNumber returns the next daily sequence for an outlet. Racy by
// itself; callers rely on the unique constraint plus retry.
func (q *Queries) GetNextOrderNumber(ctx context.Context, outletID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber, outletID).Scan(&n)
	return n, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    outlet_id, order_number, order_type, status, table_session_id,
    subtotal, discount_total, tax_total, service_charge, round_off,
    grand_total, tax_breakup, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OutletID       uuid.UUID
	OrderNumber    string
	OrderType      OrderType
	Status         OrderStatus
	TableSessionID pgtype.UUID
	Subtotal       pgtype.Numeric
	DiscountTotal  pgtype.Numeric
	TaxTotal       pgtype.Numeric
	ServiceCharge  pgtype.Numeric
	RoundOff       pgtype.Numeric
	GrandTotal     pgtype.Numeric
	TaxBreakup     []byte
	CreatedBy      uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OutletID, arg.OrderNumber, arg.OrderType, arg.Status,
		arg.TableSessionID, arg.Subtotal, arg.DiscountTotal, arg.TaxTotal,
		arg.ServiceCharge, arg.RoundOff, arg.GrandTotal, arg.TaxBreakup,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND outlet_id = $2
`

type GetOrderParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.OutletID))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND outlet_id = $2
FOR NO KEY UPDATE
`

type GetOrderForUpdateParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

// GetOrderForUpdate locks the order row so concurrent mutations of the same
// order serialize at the storage layer.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.OutletID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE outlet_id = $1
  AND ($4::text IS NULL OR status = $4)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListOrdersParams struct {
	OutletID uuid.UUID
	Limit    int32
	Offset   int32
	Status   NullOrderStatus
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	var status interface{}
	if arg.Status.Valid {
		status = string(arg.Status.OrderStatus)
	}
	rows, err := q.db.Query(ctx, listOrders, arg.OutletID, arg.Limit, arg.Offset, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     OrderStatus
	FromStatus OrderStatus
}

// UpdateOrderStatus is guarded on the expected current status; pgx.ErrNoRows
// means the order moved underneath the caller.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.FromStatus))
}

const setOrderStatus = `-- name: SetOrderStatus :one
UPDATE orders SET status = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + orderColumns

type SetOrderStatusParams struct {
	ID     uuid.UUID
	Status OrderStatus
}

func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderStatus, arg.ID, arg.Status))
}

const updateOrderTotals = `-- name: UpdateOrderTotals :one
UPDATE orders SET
    subtotal = $2, discount_total = $3, tax_total = $4,
    service_charge = $5, round_off = $6, grand_total = $7,
    tax_breakup = $8, updated_at = NOW()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalsParams struct {
	ID            uuid.UUID
	Subtotal      pgtype.Numeric
	DiscountTotal pgtype.Numeric
	TaxTotal      pgtype.Numeric
	ServiceCharge pgtype.Numeric
	RoundOff      pgtype.Numeric
	GrandTotal    pgtype.Numeric
	TaxBreakup    []byte
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotals,
		arg.ID, arg.Subtotal, arg.DiscountTotal, arg.TaxTotal,
		arg.ServiceCharge, arg.RoundOff, arg.GrandTotal, arg.TaxBreakup,
	))
}

const orderItemColumns = `id, order_id, menu_item_id, variant_id, name, quantity, unit_price, line_total, tax_detail, status, station_id, instructions, created_at`

func scanOrderItem(row interface{ Scan(...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID, &i.OrderID, &i.MenuItemID, &i.VariantID, &i.Name,
		&i.Quantity, &i.UnitPrice, &i.LineTotal, &i.TaxDetail,
		&i.Status, &i.StationID, &i.Instructions, &i.CreatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, menu_item_id, variant_id, name, quantity, unit_price,
    line_total, tax_detail, status, station_id, instructions
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	VariantID    pgtype.UUID
	Name         string
	Quantity     int32
	UnitPrice    pgtype.Numeric
	LineTotal    pgtype.Numeric
	TaxDetail    []byte
	Status       OrderItemStatus
	StationID    pgtype.UUID
	Instructions pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.VariantID, arg.Name, arg.Quantity,
		arg.UnitPrice, arg.LineTotal, arg.TaxDetail, arg.Status,
		arg.StationID, arg.Instructions,
	)
	return scanOrderItem(row)
}

const getOrderItemForUpdate = `-- name: GetOrderItemForUpdate :one
SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1 AND order_id = $2
FOR NO KEY UPDATE
`

type GetOrderItemForUpdateParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) GetOrderItemForUpdate(ctx context.Context, arg GetOrderItemForUpdateParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, getOrderItemForUpdate, arg.ID, arg.OrderID))
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listOrderItemsByOrder, orderID)
}

const listActiveOrderItems = `-- name: ListActiveOrderItems :many
SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = $1 AND status <> 'CANCELLED'
ORDER BY created_at
`

func (q *Queries) ListActiveOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listActiveOrderItems, orderID)
}

const listPendingOrderItemsForUpdate = `-- name: ListPendingOrderItemsForUpdate :many
SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = $1 AND status = 'PENDING'
ORDER BY created_at
FOR NO KEY UPDATE
`

// ListPendingOrderItemsForUpdate locks the pending items so a concurrent
// cancel or second KOT send cannot consume the same rows.
func (q *Queries) ListPendingOrderItemsForUpdate(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listPendingOrderItemsForUpdate, orderID)
}

func (q *Queries) queryOrderItems(ctx context.Context, sql string, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateOrderItemStatus = `-- name: UpdateOrderItemStatus :one
UPDATE order_items SET status = $2 WHERE id = $1
RETURNING ` + orderItemColumns

type UpdateOrderItemStatusParams struct {
	ID     uuid.UUID
	Status OrderItemStatus
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItemStatus, arg.ID, arg.Status))
}

const updateOrderItemQuantity = `-- name: UpdateOrderItemQuantity :one
UPDATE order_items SET quantity = $2, line_total = $3
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + orderItemColumns

type UpdateOrderItemQuantityParams struct {
	ID        uuid.UUID
	Quantity  int32
	LineTotal pgtype.Numeric
}

func (q *Queries) UpdateOrderItemQuantity(ctx context.Context, arg UpdateOrderItemQuantityParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItemQuantity, arg.ID, arg.Quantity, arg.LineTotal))
}

const cancelOrderItemsByOrder = `-- name: CancelOrderItemsByOrder :exec
UPDATE order_items SET status = 'CANCELLED'
WHERE order_id = $1 AND status <> 'CANCELLED'
`

func (q *Queries) CancelOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, cancelOrderItemsByOrder, orderID)
	return err
}

const countUnservedItems = `-- name: CountUnservedItems :one
SELECT COUNT(*) FROM order_items
WHERE order_id = $1 AND status NOT IN ('SERVED', 'CANCELLED')
`

func (q *Queries) CountUnservedItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countUnservedItems, orderID).Scan(&n)
	return n, err
}

const createOrderItemAddon = `-- name: CreateOrderItemAddon :one
INSERT INTO order_item_addons (order_item_id, addon_id, name, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_item_id, addon_id, name, quantity, unit_price
`

type CreateOrderItemAddonParams struct {
	OrderItemID uuid.UUID
	AddonID     uuid.UUID
	Name        string
	Quantity    int32
	UnitPrice   pgtype.Numeric
}

func (q *Queries) CreateOrderItemAddon(ctx context.Context, arg CreateOrderItemAddonParams) (OrderItemAddon, error) {
	var a OrderItemAddon
	err := q.db.QueryRow(ctx, createOrderItemAddon,
		arg.OrderItemID, arg.AddonID, arg.Name, arg.Quantity, arg.UnitPrice,
	).Scan(&a.ID, &a.OrderItemID, &a.AddonID, &a.Name, &a.Quantity, &a.UnitPrice)
	return a, err
}

const listOrderItemAddons = `-- name: ListOrderItemAddons :many
SELECT id, order_item_id, addon_id, name, quantity, unit_price
FROM order_item_addons WHERE order_item_id = $1
`

func (q *Queries) ListOrderItemAddons(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemAddon, error) {
	rows, err := q.db.Query(ctx, listOrderItemAddons, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var addons []OrderItemAddon
	for rows.Next() {
		var a OrderItemAddon
		if err := rows.Scan(&a.ID, &a.OrderItemID, &a.AddonID, &a.Name, &a.Quantity, &a.UnitPrice); err != nil {
			return nil, err
		}
		addons = append(addons, a)
	}
	return addons, rows.Err()
}

const discountColumns = `id, order_id, order_item_id, discount_type, value, amount, reason, cancelled, created_by, created_at`

const createOrderDiscount = `-- name: CreateOrderDiscount :one
INSERT INTO order_discounts (order_id, order_item_id, discount_type, value, amount, reason, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + discountColumns

type CreateOrderDiscountParams struct {
	OrderID      uuid.UUID
	OrderItemID  pgtype.UUID
	DiscountType DiscountType
	Value        pgtype.Numeric
	Amount       pgtype.Numeric
	Reason       pgtype.Text
	CreatedBy    uuid.UUID
}

func (q *Queries) CreateOrderDiscount(ctx context.Context, arg CreateOrderDiscountParams) (OrderDiscount, error) {
	var d OrderDiscount
	err := q.db.QueryRow(ctx, createOrderDiscount,
		arg.OrderID, arg.OrderItemID, arg.DiscountType, arg.Value,
		arg.Amount, arg.Reason, arg.CreatedBy,
	).Scan(&d.ID, &d.OrderID, &d.OrderItemID, &d.DiscountType, &d.Value,
		&d.Amount, &d.Reason, &d.Cancelled, &d.CreatedBy, &d.CreatedAt)
	return d, err
}

const listActiveDiscountsByOrder = `-- name: ListActiveDiscountsByOrder :many
SELECT ` + discountColumns + ` FROM order_discounts
WHERE order_id = $1 AND NOT cancelled
ORDER BY created_at
`

func (q *Queries) ListActiveDiscountsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderDiscount, error) {
	rows, err := q.db.Query(ctx, listActiveDiscountsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var discounts []OrderDiscount
	for rows.Next() {
		var d OrderDiscount
		if err := rows.Scan(&d.ID, &d.OrderID, &d.OrderItemID, &d.DiscountType, &d.Value,
			&d.Amount, &d.Reason, &d.Cancelled, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}

const cancelDiscountsByOrder = `-- name: CancelDiscountsByOrder :exec
UPDATE order_discounts SET cancelled = TRUE WHERE order_id = $1 AND NOT cancelled
`

func (q *Queries) CancelDiscountsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, cancelDiscountsByOrder, orderID)
	return err
}

const createCancelLog = `-- name: CreateCancelLog :one
INSERT INTO cancel_logs (order_id, order_item_id, scope, reason, cancelled_by, approved_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, order_item_id, scope, reason, cancelled_by, approved_by, created_at
`

type CreateCancelLogParams struct {
	OrderID     uuid.UUID
	OrderItemID pgtype.UUID
	Scope       CancelScope
	Reason      pgtype.Text
	CancelledBy uuid.UUID
	ApprovedBy  pgtype.UUID
}

func (q *Queries) CreateCancelLog(ctx context.Context, arg CreateCancelLogParams) (CancelLog, error) {
	var c CancelLog
	err := q.db.QueryRow(ctx, createCancelLog,
		arg.OrderID, arg.OrderItemID, arg.Scope, arg.Reason,
		arg.CancelledBy, arg.ApprovedBy,
	).Scan(&c.ID, &c.OrderID, &c.OrderItemID, &c.Scope, &c.Reason,
		&c.CancelledBy, &c.ApprovedBy, &c.CreatedAt)
	return c, err
}
