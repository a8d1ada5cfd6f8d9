package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dinemate-pos/api/internal/database"
)

// TxBeginner starts a new database transaction. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the persistence surface the services operate on. Satisfied by
// *database.Queries bound to either the pool or a transaction.
type Store interface {
	// outlet / users / tables / sessions
	GetOutlet(ctx context.Context, id uuid.UUID) (database.Outlet, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetTableForUpdate(ctx context.Context, arg database.GetTableForUpdateParams) (database.RestaurantTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) error
	GetOpenSessionByTable(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	CreateTableSession(ctx context.Context, arg database.CreateTableSessionParams) (database.TableSession, error)
	LinkSessionOrder(ctx context.Context, arg database.LinkSessionOrderParams) error
	CloseTableSession(ctx context.Context, id uuid.UUID) error
	MoveSessionToTable(ctx context.Context, arg database.MoveSessionToTableParams) error

	// menu / pricing oracle
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	GetVariantForOrder(ctx context.Context, id uuid.UUID) (database.MenuVariant, error)
	GetAddonForOrder(ctx context.Context, id uuid.UUID) (database.MenuAddon, error)
	ListTaxComponentsByGroup(ctx context.Context, taxGroupID uuid.UUID) ([]database.TaxComponent, error)
	GetStation(ctx context.Context, id uuid.UUID) (database.Station, error)
	GetDefaultKitchenStation(ctx context.Context, outletID uuid.UUID) (database.Station, error)

	// orders
	GetNextOrderNumber(ctx context.Context, outletID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)

	// order items
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItemForUpdate(ctx context.Context, arg database.GetOrderItemForUpdateParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListActiveOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPendingOrderItemsForUpdate(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	CancelOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
	CountUnservedItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error)
	ListOrderItemAddons(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemAddon, error)

	// discounts / cancel logs
	CreateOrderDiscount(ctx context.Context, arg database.CreateOrderDiscountParams) (database.OrderDiscount, error)
	ListActiveDiscountsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderDiscount, error)
	CancelDiscountsByOrder(ctx context.Context, orderID uuid.UUID) error
	CreateCancelLog(ctx context.Context, arg database.CreateCancelLogParams) (database.CancelLog, error)

	// tickets
	GetNextKotSequence(ctx context.Context, stationID uuid.UUID) (int32, error)
	CreateKotTicket(ctx context.Context, arg database.CreateKotTicketParams) (database.KotTicket, error)
	GetKotTicket(ctx context.Context, arg database.GetKotTicketParams) (database.KotTicket, error)
	GetKotTicketForUpdate(ctx context.Context, arg database.GetKotTicketForUpdateParams) (database.KotTicket, error)
	ListKotTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.KotTicket, error)
	ListOpenKotTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.KotTicket, error)
	UpdateKotTicketStatus(ctx context.Context, arg database.UpdateKotTicketStatusParams) (database.KotTicket, error)
	CreateKotItem(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error)
	GetKotItemForUpdate(ctx context.Context, arg database.GetKotItemForUpdateParams) (database.KotItem, error)
	GetKotItemByOrderItem(ctx context.Context, orderItemID uuid.UUID) (database.KotItem, error)
	ListKotItemsByTicket(ctx context.Context, ticketID uuid.UUID) ([]database.KotItem, error)
	UpdateKotItemStatus(ctx context.Context, arg database.UpdateKotItemStatusParams) (database.KotItem, error)
	CancelKotItemsByTicket(ctx context.Context, ticketID uuid.UUID) error
	CountKotItemsNotDone(ctx context.Context, ticketID uuid.UUID) (int64, error)
	CountKotItemsActive(ctx context.Context, ticketID uuid.UUID) (int64, error)

	// invoices
	GetActiveInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	ListActiveInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Invoice, error)
	GetNextInvoiceNumber(ctx context.Context, arg database.GetNextInvoiceNumberParams) (int32, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	GetInvoice(ctx context.Context, arg database.GetInvoiceParams) (database.Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, arg database.GetInvoiceForUpdateParams) (database.Invoice, error)
	MarkInvoicePaid(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	CancelInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	CancelUnpaidInvoicesByOrder(ctx context.Context, orderID uuid.UUID) error
}

// NewStore creates a Store from a DBTX (pool or tx), so services can bind
// the same query set to the transactions they own.
type NewStore func(db database.DBTX) Store

// Actor is the already-authenticated caller of an operation. Role
// resolution happens at the HTTP layer; services only care about identity
// and the privileged bit.
type Actor struct {
	UserID     uuid.UUID
	Privileged bool
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func uuidOrNull(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
