package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dinemate-pos/api/internal/database"
)

// mockTx implements pgx.Tx with only the methods the services call.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	commits   int
	rollbacks int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rollbacks++
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  *mockTx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockStore implements Store with configurable behavior. A function left
// nil falls back to a neutral default: lookups report no rows, writes echo
// their input, counters return zero. Tests override only what they assert.
type mockStore struct {
	getOutletFn                    func(ctx context.Context, id uuid.UUID) (database.Outlet, error)
	getUserByIDFn                  func(ctx context.Context, id uuid.UUID) (database.User, error)
	getTableForUpdateFn            func(ctx context.Context, arg database.GetTableForUpdateParams) (database.RestaurantTable, error)
	updateTableStatusFn            func(ctx context.Context, arg database.UpdateTableStatusParams) error
	getOpenSessionByTableFn        func(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
	getSessionFn                   func(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	createTableSessionFn           func(ctx context.Context, arg database.CreateTableSessionParams) (database.TableSession, error)
	linkSessionOrderFn             func(ctx context.Context, arg database.LinkSessionOrderParams) error
	closeTableSessionFn            func(ctx context.Context, id uuid.UUID) error
	moveSessionToTableFn           func(ctx context.Context, arg database.MoveSessionToTableParams) error
	getMenuItemForOrderFn          func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	getVariantForOrderFn           func(ctx context.Context, id uuid.UUID) (database.MenuVariant, error)
	getAddonForOrderFn             func(ctx context.Context, id uuid.UUID) (database.MenuAddon, error)
	listTaxComponentsByGroupFn     func(ctx context.Context, taxGroupID uuid.UUID) ([]database.TaxComponent, error)
	getStationFn                   func(ctx context.Context, id uuid.UUID) (database.Station, error)
	getDefaultKitchenStationFn     func(ctx context.Context, outletID uuid.UUID) (database.Station, error)
	getNextOrderNumberFn           func(ctx context.Context, outletID uuid.UUID) (int32, error)
	createOrderFn                  func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	getOrderFn                     func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	getOrderForUpdateFn            func(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	listOrdersFn                   func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	updateOrderStatusFn            func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	setOrderStatusFn               func(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	updateOrderTotalsFn            func(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	createOrderItemFn              func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderItemForUpdateFn        func(ctx context.Context, arg database.GetOrderItemForUpdateParams) (database.OrderItem, error)
	listOrderItemsByOrderFn        func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listActiveOrderItemsFn         func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listPendingItemsForUpdateFn    func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	updateOrderItemStatusFn        func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	updateOrderItemQuantityFn      func(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	cancelOrderItemsByOrderFn      func(ctx context.Context, orderID uuid.UUID) error
	countUnservedItemsFn           func(ctx context.Context, orderID uuid.UUID) (int64, error)
	createOrderItemAddonFn         func(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error)
	listOrderItemAddonsFn          func(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemAddon, error)
	createOrderDiscountFn          func(ctx context.Context, arg database.CreateOrderDiscountParams) (database.OrderDiscount, error)
	listActiveDiscountsByOrderFn   func(ctx context.Context, orderID uuid.UUID) ([]database.OrderDiscount, error)
	cancelDiscountsByOrderFn       func(ctx context.Context, orderID uuid.UUID) error
	createCancelLogFn              func(ctx context.Context, arg database.CreateCancelLogParams) (database.CancelLog, error)
	getNextKotSequenceFn           func(ctx context.Context, stationID uuid.UUID) (int32, error)
	createKotTicketFn              func(ctx context.Context, arg database.CreateKotTicketParams) (database.KotTicket, error)
	getKotTicketFn                 func(ctx context.Context, arg database.GetKotTicketParams) (database.KotTicket, error)
	getKotTicketForUpdateFn        func(ctx context.Context, arg database.GetKotTicketForUpdateParams) (database.KotTicket, error)
	listKotTicketsByOrderFn        func(ctx context.Context, orderID uuid.UUID) ([]database.KotTicket, error)
	listOpenKotTicketsByOrderFn    func(ctx context.Context, orderID uuid.UUID) ([]database.KotTicket, error)
	updateKotTicketStatusFn        func(ctx context.Context, arg database.UpdateKotTicketStatusParams) (database.KotTicket, error)
	createKotItemFn                func(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error)
	getKotItemForUpdateFn          func(ctx context.Context, arg database.GetKotItemForUpdateParams) (database.KotItem, error)
	getKotItemByOrderItemFn        func(ctx context.Context, orderItemID uuid.UUID) (database.KotItem, error)
	listKotItemsByTicketFn         func(ctx context.Context, ticketID uuid.UUID) ([]database.KotItem, error)
	updateKotItemStatusFn          func(ctx context.Context, arg database.UpdateKotItemStatusParams) (database.KotItem, error)
	cancelKotItemsByTicketFn       func(ctx context.Context, ticketID uuid.UUID) error
	countKotItemsNotDoneFn         func(ctx context.Context, ticketID uuid.UUID) (int64, error)
	countKotItemsActiveFn          func(ctx context.Context, ticketID uuid.UUID) (int64, error)
	getActiveInvoiceByOrderFn      func(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	listActiveInvoicesByOrderFn    func(ctx context.Context, orderID uuid.UUID) ([]database.Invoice, error)
	getNextInvoiceNumberFn         func(ctx context.Context, arg database.GetNextInvoiceNumberParams) (int32, error)
	createInvoiceFn                func(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	getInvoiceFn                   func(ctx context.Context, arg database.GetInvoiceParams) (database.Invoice, error)
	getInvoiceForUpdateFn          func(ctx context.Context, arg database.GetInvoiceForUpdateParams) (database.Invoice, error)
	markInvoicePaidFn              func(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	cancelInvoiceFn                func(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	cancelUnpaidInvoicesByOrderFn  func(ctx context.Context, orderID uuid.UUID) error
}

func (m *mockStore) GetOutlet(ctx context.Context, id uuid.UUID) (database.Outlet, error) {
	if m.getOutletFn != nil {
		return m.getOutletFn(ctx, id)
	}
	return database.Outlet{ID: id, Name: "Test Outlet"}, nil
}
func (m *mockStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, id)
	}
	return database.User{ID: id, FullName: "Test User"}, nil
}
func (m *mockStore) GetTableForUpdate(ctx context.Context, arg database.GetTableForUpdateParams) (database.RestaurantTable, error) {
	if m.getTableForUpdateFn != nil {
		return m.getTableForUpdateFn(ctx, arg)
	}
	return database.RestaurantTable{ID: arg.ID, OutletID: arg.OutletID, Status: database.TableStatusAVAILABLE}, nil
}
func (m *mockStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) error {
	if m.updateTableStatusFn != nil {
		return m.updateTableStatusFn(ctx, arg)
	}
	return nil
}
func (m *mockStore) GetOpenSessionByTable(ctx context.Context, tableID uuid.UUID) (database.TableSession, error) {
	if m.getOpenSessionByTableFn != nil {
		return m.getOpenSessionByTableFn(ctx, tableID)
	}
	return database.TableSession{}, pgx.ErrNoRows
}
func (m *mockStore) GetSession(ctx context.Context, id uuid.UUID) (database.TableSession, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, id)
	}
	return database.TableSession{}, pgx.ErrNoRows
}
func (m *mockStore) CreateTableSession(ctx context.Context, arg database.CreateTableSessionParams) (database.TableSession, error) {
	if m.createTableSessionFn != nil {
		return m.createTableSessionFn(ctx, arg)
	}
	return database.TableSession{ID: uuid.New(), TableID: arg.TableID, OutletID: arg.OutletID, OpenedBy: arg.OpenedBy}, nil
}
func (m *mockStore) LinkSessionOrder(ctx context.Context, arg database.LinkSessionOrderParams) error {
	if m.linkSessionOrderFn != nil {
		return m.linkSessionOrderFn(ctx, arg)
	}
	return nil
}
func (m *mockStore) CloseTableSession(ctx context.Context, id uuid.UUID) error {
	if m.closeTableSessionFn != nil {
		return m.closeTableSessionFn(ctx, id)
	}
	return nil
}
func (m *mockStore) MoveSessionToTable(ctx context.Context, arg database.MoveSessionToTableParams) error {
	if m.moveSessionToTableFn != nil {
		return m.moveSessionToTableFn(ctx, arg)
	}
	return nil
}
func (m *mockStore) GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
	if m.getMenuItemForOrderFn != nil {
		return m.getMenuItemForOrderFn(ctx, arg)
	}
	return database.MenuItem{}, pgx.ErrNoRows
}
func (m *mockStore) GetVariantForOrder(ctx context.Context, id uuid.UUID) (database.MenuVariant, error) {
	if m.getVariantForOrderFn != nil {
		return m.getVariantForOrderFn(ctx, id)
	}
	return database.MenuVariant{}, pgx.ErrNoRows
}
func (m *mockStore) GetAddonForOrder(ctx context.Context, id uuid.UUID) (database.MenuAddon, error) {
	if m.getAddonForOrderFn != nil {
		return m.getAddonForOrderFn(ctx, id)
	}
	return database.MenuAddon{}, pgx.ErrNoRows
}
func (m *mockStore) ListTaxComponentsByGroup(ctx context.Context, taxGroupID uuid.UUID) ([]database.TaxComponent, error) {
	if m.listTaxComponentsByGroupFn != nil {
		return m.listTaxComponentsByGroupFn(ctx, taxGroupID)
	}
	return nil, nil
}
func (m *mockStore) GetStation(ctx context.Context, id uuid.UUID) (database.Station, error) {
	if m.getStationFn != nil {
		return m.getStationFn(ctx, id)
	}
	return database.Station{ID: id, Name: "Main Kitchen", StationType: database.StationTypeKITCHEN}, nil
}
func (m *mockStore) GetDefaultKitchenStation(ctx context.Context, outletID uuid.UUID) (database.Station, error) {
	if m.getDefaultKitchenStationFn != nil {
		return m.getDefaultKitchenStationFn(ctx, outletID)
	}
	return database.Station{ID: uuid.New(), OutletID: outletID, Name: "Main Kitchen", StationType: database.StationTypeKITCHEN}, nil
}
func (m *mockStore) GetNextOrderNumber(ctx context.Context, outletID uuid.UUID) (int32, error) {
	if m.getNextOrderNumberFn != nil {
		return m.getNextOrderNumberFn(ctx, outletID)
	}
	return 1, nil
}
func (m *mockStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, arg)
	}
	return database.Order{
		ID: uuid.New(), OutletID: arg.OutletID, OrderNumber: arg.OrderNumber,
		OrderType: arg.OrderType, Status: arg.Status, TableSessionID: arg.TableSessionID,
		Subtotal: arg.Subtotal, GrandTotal: arg.GrandTotal, CreatedBy: arg.CreatedBy,
	}, nil
}
func (m *mockStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}
func (m *mockStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
	if m.getOrderForUpdateFn != nil {
		return m.getOrderForUpdateFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}
func (m *mockStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return nil, nil
}
func (m *mockStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if m.updateOrderStatusFn != nil {
		return m.updateOrderStatusFn(ctx, arg)
	}
	return database.Order{ID: arg.ID, Status: arg.Status}, nil
}
func (m *mockStore) SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error) {
	if m.setOrderStatusFn != nil {
		return m.setOrderStatusFn(ctx, arg)
	}
	return database.Order{ID: arg.ID, Status: arg.Status}, nil
}
func (m *mockStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	if m.updateOrderTotalsFn != nil {
		return m.updateOrderTotalsFn(ctx, arg)
	}
	return database.Order{
		ID: arg.ID, Subtotal: arg.Subtotal, DiscountTotal: arg.DiscountTotal,
		TaxTotal: arg.TaxTotal, ServiceCharge: arg.ServiceCharge,
		RoundOff: arg.RoundOff, GrandTotal: arg.GrandTotal, TaxBreakup: arg.TaxBreakup,
	}, nil
}
func (m *mockStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if m.createOrderItemFn != nil {
		return m.createOrderItemFn(ctx, arg)
	}
	return database.OrderItem{
		ID: uuid.New(), OrderID: arg.OrderID, MenuItemID: arg.MenuItemID,
		VariantID: arg.VariantID, Name: arg.Name, Quantity: arg.Quantity,
		UnitPrice: arg.UnitPrice, LineTotal: arg.LineTotal, TaxDetail: arg.TaxDetail,
		Status: database.OrderItemStatusPENDING, StationID: arg.StationID,
		Instructions: arg.Instructions,
	}, nil
}
func (m *mockStore) GetOrderItemForUpdate(ctx context.Context, arg database.GetOrderItemForUpdateParams) (database.OrderItem, error) {
	if m.getOrderItemForUpdateFn != nil {
		return m.getOrderItemForUpdateFn(ctx, arg)
	}
	return database.OrderItem{}, pgx.ErrNoRows
}
func (m *mockStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsByOrderFn != nil {
		return m.listOrderItemsByOrderFn(ctx, orderID)
	}
	return nil, nil
}
func (m *mockStore) ListActiveOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listActiveOrderItemsFn != nil {
		return m.listActiveOrderItemsFn(ctx, orderID)
	}
	return nil, nil
}
func (m *mockStore) ListPendingOrderItemsForUpdate(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listPendingItemsForUpdateFn != nil {
		return m.listPendingItemsForUpdateFn(ctx, orderID)
	}
	return nil, nil
}
func (m *mockStore) UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
	if m.updateOrderItemStatusFn != nil {
		return m.updateOrderItemStatusFn(ctx, arg)
	}
	return database.OrderItem{ID: arg.ID, Status: arg.Status}, nil
}
func (m *mockStore) UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error) {
	if m.updateOrderItemQuantityFn != nil {
		return m.updateOrderItemQuantityFn(ctx, arg)
	}
	return database.OrderItem{ID: arg.ID, Quantity: arg.Quantity, LineTotal: arg.LineTotal}, nil
}
func (m *mockStore) CancelOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	if m.cancelOrderItemsByOrderFn != nil {
		return m.cancelOrderItemsByOrderFn(ctx, orderID)
	}
	return nil
}
func (m *mockStore) CountUnservedItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	if m.countUnservedItemsFn != nil {
		return m.countUnservedItemsFn(ctx, orderID)
	}
	return 0, nil
}
func (m *mockStore) CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error) {
	if m.createOrderItemAddonFn != nil {
		return m.createOrderItemAddonFn(ctx, arg)
	}
	return database.OrderItemAddon{
		ID: uuid.New(), OrderItemID: arg.OrderItemID, AddonID: arg.AddonID,
		Name: arg.Name, Quantity: arg.Quantity, UnitPrice: arg.UnitPrice,
	}, nil
}
func (m *mockStore) ListOrderItemAddons(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemAddon, error) {
	if m.listOrderItemAddonsFn != nil {
		return m.listOrderItemAddonsFn(ctx, orderItemID)
	}
	return nil, nil
}
func (m *mockStore) CreateOrderDiscount(ctx context.Context, arg database.CreateOrderDiscountParams) (database.OrderDiscount, error) {
	if m.createOrderDiscountFn != nil {
		return m.createOrderDiscountFn(ctx, arg)
	}
	return database.OrderDiscount{
		ID: uuid.New(), OrderID: arg.OrderID, OrderItemID: arg.OrderItemID,
		DiscountType: arg.DiscountType, Value: arg.Value, Amount: arg.Amount,
		Reason: arg.Reason, CreatedBy: arg.CreatedBy,
	}, nil
}
func (m *mockStore) ListActiveDiscountsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderDiscount, error) {
	if m.listActiveDiscountsByOrderFn != nil {
		return m.listActiveDiscountsByOrderFn(ctx, orderID)
	}
	return nil, nil
}
func (m *mockStore) CancelDiscountsByOrder(ctx context.Context, orderID uuid.UUID) error {
	if m.cancelDiscountsByOrderFn != nil {
		return m.cancelDiscountsByOrderFn(ctx, orderID)
	}
	return nil
}
func (m *mockStore) CreateCancelLog(ctx context.Context, arg database.CreateCancelLogParams) (database.CancelLog, error) {
	if m.createCancelLogFn != nil {
		return m.createCancelLogFn(ctx, arg)
	}
	return database.CancelLog{
		ID: uuid.New(), OrderID: arg.OrderID, OrderItemID: arg.OrderItemID,
		Scope: arg.Scope, Reason: arg.Reason, CancelledBy: arg.CancelledBy,
		ApprovedBy: arg.ApprovedBy,
	}, nil
}
func (m *mockStore) GetNextKotSequence(ctx context.Context, stationID uuid.UUID) (int32, error) {
	if m.getNextKotSequenceFn != nil {
		return m.getNextKotSequenceFn(ctx, stationID)
	}
	return 1, nil
}
func (m *mockStore) CreateKotTicket(ctx context.Context, arg database.CreateKotTicketParams) (database.KotTicket, error) {
	if m.createKotTicketFn != nil {
		return m.createKotTicketFn(ctx, arg)
	}
	return database.KotTicket{
		ID: uuid.New(), OrderID: arg.OrderID, OutletID: arg.OutletID,
		StationID: arg.StationID, TicketNumber: arg.TicketNumber,
		SequenceNo: arg.SequenceNo, Status: arg.Status, Priority: arg.Priority,
	}, nil
}
func (m *mockStore) GetKotTicket(ctx context.Context, arg database.GetKotTicketParams) (database.KotTicket, error) {
	if m.getKotTicketFn != nil {
		return m.getKotTicketFn(ctx, arg)
	}
	return database.KotTicket{}, pgx.ErrNoRows
}
func (m *mockStore) GetKotTicketForUpdate(ctx context.Context, arg database.GetKotTicketForUpdateParams) (database.KotTicket, error) {
	if m.getKotTicketForUpdateFn != nil {
		return m.getKotTicketForUpdateFn(ctx, arg)
	}
	return database.KotTicket{}, pgx.ErrNoRows
}
func (m *mockStore) ListKotTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.KotTicket, error) {
	if m.listKotTicketsByOrderFn != nil {
		return m.listKotTicketsByOrderFn(ctx, orderID)
	}
	return nil, nil
}
func (m *mockStore) ListOpenKotTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.KotTicket, error) {
	if m.listOpenKotTicketsByOrderFn != nil {
		return m.listOpenKotTicketsByOrderFn(ctx, orderID)
	}
	return nil, nil
}
func (m *mockStore) UpdateKotTicketStatus(ctx context.Context, arg database.UpdateKotTicketStatusParams) (database.KotTicket, error) {
	if m.updateKotTicketStatusFn != nil {
		return m.updateKotTicketStatusFn(ctx, arg)
	}
	return database.KotTicket{ID: arg.ID, Status: arg.Status}, nil
}
func (m *mockStore) CreateKotItem(ctx context.Context, arg database.CreateKotItemParams) (database.KotItem, error) {
	if m.createKotItemFn != nil {
		return m.createKotItemFn(ctx, arg)
	}
	return database.KotItem{
		ID: uuid.New(), TicketID: arg.TicketID, OrderItemID: arg.OrderItemID,
		Name: arg.Name, Quantity: arg.Quantity, Instructions: arg.Instructions,
		Status: arg.Status,
	}, nil
}
func (m *mockStore) GetKotItemForUpdate(ctx context.Context, arg database.GetKotItemForUpdateParams) (database.KotItem, error) {
	if m.getKotItemForUpdateFn != nil {
		return m.getKotItemForUpdateFn(ctx, arg)
	}
	return database.KotItem{}, pgx.ErrNoRows
}
func (m *mockStore) GetKotItemByOrderItem(ctx context.Context, orderItemID uuid.UUID) (database.KotItem, error) {
	if m.getKotItemByOrderItemFn != nil {
		return m.getKotItemByOrderItemFn(ctx, orderItemID)
	}
	return database.KotItem{}, pgx.ErrNoRows
}
func (m *mockStore) ListKotItemsByTicket(ctx context.Context, ticketID uuid.UUID) ([]database.KotItem, error) {
	if m.listKotItemsByTicketFn != nil {
		return m.listKotItemsByTicketFn(ctx, ticketID)
	}
	return nil, nil
}
func (m *mockStore) UpdateKotItemStatus(ctx context.Context, arg database.UpdateKotItemStatusParams) (database.KotItem, error) {
	if m.updateKotItemStatusFn != nil {
		return m.updateKotItemStatusFn(ctx, arg)
	}
	return database.KotItem{ID: arg.ID, Status: arg.Status}, nil
}
func (m *mockStore) CancelKotItemsByTicket(ctx context.Context, ticketID uuid.UUID) error {
	if m.cancelKotItemsByTicketFn != nil {
		return m.cancelKotItemsByTicketFn(ctx, ticketID)
	}
	return nil
}
func (m *mockStore) CountKotItemsNotDone(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	if m.countKotItemsNotDoneFn != nil {
		return m.countKotItemsNotDoneFn(ctx, ticketID)
	}
	return 0, nil
}
func (m *mockStore) CountKotItemsActive(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	if m.countKotItemsActiveFn != nil {
		return m.countKotItemsActiveFn(ctx, ticketID)
	}
	return 0, nil
}
func (m *mockStore) GetActiveInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error) {
	if m.getActiveInvoiceByOrderFn != nil {
		return m.getActiveInvoiceByOrderFn(ctx, orderID)
	}
	return database.Invoice{}, pgx.ErrNoRows
}
func (m *mockStore) ListActiveInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Invoice, error) {
	if m.listActiveInvoicesByOrderFn != nil {
		return m.listActiveInvoicesByOrderFn(ctx, orderID)
	}
	return nil, nil
}
func (m *mockStore) GetNextInvoiceNumber(ctx context.Context, arg database.GetNextInvoiceNumberParams) (int32, error) {
	if m.getNextInvoiceNumberFn != nil {
		return m.getNextInvoiceNumberFn(ctx, arg)
	}
	return 1, nil
}
func (m *mockStore) CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
	if m.createInvoiceFn != nil {
		return m.createInvoiceFn(ctx, arg)
	}
	return database.Invoice{
		ID: uuid.New(), OrderID: arg.OrderID, OutletID: arg.OutletID,
		InvoiceNumber: arg.InvoiceNumber, Status: arg.Status,
		Subtotal: arg.Subtotal, DiscountTotal: arg.DiscountTotal,
		TaxTotal: arg.TaxTotal, ServiceCharge: arg.ServiceCharge,
		PackagingCharge: arg.PackagingCharge, DeliveryCharge: arg.DeliveryCharge,
		RoundOff: arg.RoundOff, GrandTotal: arg.GrandTotal,
		TaxBreakup: arg.TaxBreakup, AmountInWords: arg.AmountInWords,
		GeneratedBy: arg.GeneratedBy,
	}, nil
}
func (m *mockStore) GetInvoice(ctx context.Context, arg database.GetInvoiceParams) (database.Invoice, error) {
	if m.getInvoiceFn != nil {
		return m.getInvoiceFn(ctx, arg)
	}
	return database.Invoice{}, pgx.ErrNoRows
}
func (m *mockStore) GetInvoiceForUpdate(ctx context.Context, arg database.GetInvoiceForUpdateParams) (database.Invoice, error) {
	if m.getInvoiceForUpdateFn != nil {
		return m.getInvoiceForUpdateFn(ctx, arg)
	}
	return database.Invoice{}, pgx.ErrNoRows
}
func (m *mockStore) MarkInvoicePaid(ctx context.Context, id uuid.UUID) (database.Invoice, error) {
	if m.markInvoicePaidFn != nil {
		return m.markInvoicePaidFn(ctx, id)
	}
	return database.Invoice{ID: id, Status: database.InvoiceStatusPAID}, nil
}
func (m *mockStore) CancelInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error) {
	if m.cancelInvoiceFn != nil {
		return m.cancelInvoiceFn(ctx, id)
	}
	return database.Invoice{ID: id, Status: database.InvoiceStatusCANCELLED}, nil
}
func (m *mockStore) CancelUnpaidInvoicesByOrder(ctx context.Context, orderID uuid.UUID) error {
	if m.cancelUnpaidInvoicesByOrderFn != nil {
		return m.cancelUnpaidInvoicesByOrderFn(ctx, orderID)
	}
	return nil
}

// --- shared helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func gstDetail() []byte {
	return []byte(`[{"code":"CGST","rate":"2.5"},{"code":"SGST","rate":"2.5"}]`)
}
