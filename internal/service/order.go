package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/printer"
	"github.com/dinemate-pos/api/internal/tax"
	"github.com/dinemate-pos/api/internal/ws"
)

const maxSequenceRetries = 3

// OrderService owns the order and order-item state machines.
type OrderService struct {
	pool     TxBeginner
	newStore NewStore
	effects  *Effects
}

func NewOrderService(pool TxBeginner, newStore NewStore, effects *Effects) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, effects: effects}
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	OutletID  uuid.UUID
	Actor     Actor
	OrderType string
	TableID   string
	Items     []AddLineRequest
}

// AddLineRequest is a single requested order line.
type AddLineRequest struct {
	MenuItemID   string
	VariantID    string
	Quantity     int32
	Instructions string
	Addons       []AddonLineRequest
}

// AddonLineRequest is an addon on an order line.
type AddonLineRequest struct {
	AddonID  string
	Quantity int32
}

// OrderResult is an order with its item lines.
type OrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult is an item with its addons.
type OrderItemResult struct {
	Item   database.OrderItem
	Addons []database.OrderItemAddon
}

// CreateOrder allocates a per-outlet per-day order number and, for dine-in,
// attaches to or opens a table session after the ownership check. Retries
// on order-number unique violations (concurrent transactions racing the
// same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}
	if orderType == database.OrderTypeDINEIN && req.TableID == "" {
		return nil, ErrTableRequired
	}

	var lastErr error
	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, orderType)
		if err == nil {
			return result, nil
		}
		if isUniqueViolation(err, "orders_outlet_id_order_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, orderType database.OrderType) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Dine-in orders ride on a table session; the table row lock serializes
	// concurrent opens on the same table.
	var sessionID uuid.UUID
	if orderType == database.OrderTypeDINEIN {
		tableID, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid table_id", ErrTableNotFound)
		}
		table, err := store.GetTableForUpdate(ctx, database.GetTableForUpdateParams{
			ID: tableID, OutletID: req.OutletID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}

		session, err := store.GetOpenSessionByTable(ctx, table.ID)
		switch {
		case err == nil:
			if session.OpenedBy != req.Actor.UserID && !req.Actor.Privileged {
				return nil, ownerError(ctx, store, session.OpenedBy)
			}
			sessionID = session.ID
		case errors.Is(err, pgx.ErrNoRows):
			created, err := store.CreateTableSession(ctx, database.CreateTableSessionParams{
				TableID: table.ID, OutletID: req.OutletID, OpenedBy: req.Actor.UserID,
			})
			if err != nil {
				return nil, fmt.Errorf("create session: %w", err)
			}
			sessionID = created.ID
			if err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
				ID: table.ID, Status: database.TableStatusOCCUPIED,
			}); err != nil {
				return nil, fmt.Errorf("occupy table: %w", err)
			}
		default:
			return nil, fmt.Errorf("get session: %w", err)
		}
	}

	nextNum, err := store.GetNextOrderNumber(ctx, req.OutletID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD-%s-%03d", time.Now().Format("20060102"), nextNum)

	lines, err := s.resolveLines(ctx, store, req.OutletID, req.Items)
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OutletID:       req.OutletID,
		OrderNumber:    orderNumber,
		OrderType:      orderType,
		Status:         database.OrderStatusPENDING,
		TableSessionID: uuidOrNull(sessionID),
		Subtotal:       decimalToNumeric(decimal.Zero),
		DiscountTotal:  decimalToNumeric(decimal.Zero),
		TaxTotal:       decimalToNumeric(decimal.Zero),
		ServiceCharge:  decimalToNumeric(decimal.Zero),
		RoundOff:       decimalToNumeric(decimal.Zero),
		GrandTotal:     decimalToNumeric(decimal.Zero),
		TaxBreakup:     []byte(`{}`),
		CreatedBy:      req.Actor.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	itemResults, err := s.insertLines(ctx, store, order.ID, lines)
	if err != nil {
		return nil, err
	}

	order, _, err = recalculateTotals(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if sessionID != uuid.Nil {
		if err := store.LinkSessionOrder(ctx, database.LinkSessionOrderParams{
			ID: sessionID, OrderID: order.ID,
		}); err != nil {
			return nil, fmt.Errorf("link session: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, []effect{
		notifyOutlet(req.OutletID, ws.EventOrderCreated, map[string]any{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"order_type":   order.OrderType,
		}),
	})

	return &OrderResult{Order: order, Items: itemResults}, nil
}

// AddItemsRequest appends lines to an existing order.
type AddItemsRequest struct {
	OrderID  uuid.UUID
	OutletID uuid.UUID
	Actor    Actor
	Items    []AddLineRequest
}

// AddItems resolves prices, snapshots per-line tax detail, persists the new
// lines and recomputes totals. Orders past SERVED no longer accept items.
func (s *OrderService) AddItems(ctx context.Context, req AddItemsRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockMutableOrder(ctx, store, req.OrderID, req.OutletID, req.Actor)
	if err != nil {
		return nil, err
	}

	lines, err := s.resolveLines(ctx, store, req.OutletID, req.Items)
	if err != nil {
		return nil, err
	}
	itemResults, err := s.insertLines(ctx, store, order.ID, lines)
	if err != nil {
		return nil, err
	}

	order, _, err = recalculateTotals(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, []effect{
		notifyOutlet(req.OutletID, ws.EventOrderItemsAdded, map[string]any{
			"order_id":    order.ID,
			"item_count":  len(itemResults),
			"grand_total": numericToDecimal(order.GrandTotal),
		}),
	})

	return &OrderResult{Order: order, Items: itemResults}, nil
}

// UpdateItemQuantityRequest edits a pending line's quantity.
type UpdateItemQuantityRequest struct {
	OrderID  uuid.UUID
	OutletID uuid.UUID
	ItemID   uuid.UUID
	Actor    Actor
	Quantity int32
	Reason   string
}

// UpdateItemQuantity is allowed only while the item is still PENDING; once
// a ticket exists the caller must cancel and re-add. A decrease is recorded
// as a partial_item cancel log.
func (s *OrderService) UpdateItemQuantity(ctx context.Context, req UpdateItemQuantityRequest) (*OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockMutableOrder(ctx, store, req.OrderID, req.OutletID, req.Actor)
	if err != nil {
		return nil, err
	}

	item, err := store.GetOrderItemForUpdate(ctx, database.GetOrderItemForUpdateParams{
		ID: req.ItemID, OrderID: order.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item.Status != database.OrderItemStatusPENDING {
		return nil, fmt.Errorf("%w: item is %s", ErrInvalidTransition, item.Status)
	}

	addons, err := store.ListOrderItemAddons(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list addons: %w", err)
	}
	addonsTotal := decimal.Zero
	for _, a := range addons {
		addonsTotal = addonsTotal.Add(numericToDecimal(a.UnitPrice).Mul(decimal.NewFromInt32(a.Quantity)))
	}
	lineTotal := numericToDecimal(item.UnitPrice).
		Mul(decimal.NewFromInt32(req.Quantity)).
		Add(addonsTotal).
		Round(2)

	oldQuantity := item.Quantity
	item, err = store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
		ID: item.ID, Quantity: req.Quantity, LineTotal: decimalToNumeric(lineTotal),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: item left pending", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("update quantity: %w", err)
	}

	if req.Quantity < oldQuantity {
		if _, err := store.CreateCancelLog(ctx, database.CreateCancelLogParams{
			OrderID:     order.ID,
			OrderItemID: uuidOrNull(item.ID),
			Scope:       database.CancelScopePARTIALITEM,
			Reason:      textOrNull(req.Reason),
			CancelledBy: req.Actor.UserID,
		}); err != nil {
			return nil, fmt.Errorf("create cancel log: %w", err)
		}
	}

	order, _, err = recalculateTotals(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, []effect{
		notifyOutlet(req.OutletID, ws.EventOrderItemsAdded, map[string]any{
			"order_id":    order.ID,
			"item_id":     item.ID,
			"quantity":    item.Quantity,
			"grand_total": numericToDecimal(order.GrandTotal),
		}),
	})

	return &OrderResult{Order: order, Items: []OrderItemResult{{Item: item, Addons: addons}}}, nil
}

// CancelItemRequest cancels one order line.
type CancelItemRequest struct {
	OrderID    uuid.UUID
	OutletID   uuid.UUID
	ItemID     uuid.UUID
	Actor      Actor
	ApprovedBy uuid.UUID
	Reason     string
}

// CancelItem cancels a line, cascading to its KOT item when it is already
// ticketed: the matching KOT item is cancelled, the ticket auto-cancels
// when emptied, and a cancel slip prints at the item's station. Cancelling
// work that is already PREPARING or READY requires an approver.
func (s *OrderService) CancelItem(ctx context.Context, req CancelItemRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockMutableOrder(ctx, store, req.OrderID, req.OutletID, req.Actor)
	if err != nil {
		return nil, err
	}

	item, err := store.GetOrderItemForUpdate(ctx, database.GetOrderItemForUpdateParams{
		ID: req.ItemID, OrderID: order.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	switch item.Status {
	case database.OrderItemStatusCANCELLED:
		return nil, fmt.Errorf("%w: item already cancelled", ErrInvalidTransition)
	case database.OrderItemStatusSERVED:
		return nil, fmt.Errorf("%w: item already served", ErrInvalidTransition)
	case database.OrderItemStatusPREPARING, database.OrderItemStatusREADY:
		if req.ApprovedBy == uuid.Nil {
			return nil, ErrApprovalRequired
		}
	}

	effects := []effect{}

	// Ticketed items cascade into the KOT graph.
	if item.Status != database.OrderItemStatusPENDING {
		kotItem, err := store.GetKotItemByOrderItem(ctx, item.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get kot item: %w", err)
		}
		if err == nil {
			ticket, err := store.GetKotTicketForUpdate(ctx, database.GetKotTicketForUpdateParams{
				ID: kotItem.TicketID, OutletID: req.OutletID,
			})
			if err != nil {
				return nil, fmt.Errorf("get ticket: %w", err)
			}
			if _, err := store.UpdateKotItemStatus(ctx, database.UpdateKotItemStatusParams{
				ID: kotItem.ID, Status: database.KotStatusCANCELLED,
			}); err != nil {
				return nil, fmt.Errorf("cancel kot item: %w", err)
			}
			active, err := store.CountKotItemsActive(ctx, ticket.ID)
			if err != nil {
				return nil, fmt.Errorf("count kot items: %w", err)
			}
			if active == 0 && ticket.Status != database.KotStatusCANCELLED {
				if _, err := store.UpdateKotTicketStatus(ctx, database.UpdateKotTicketStatusParams{
					ID: ticket.ID, Status: database.KotStatusCANCELLED,
				}); err != nil {
					return nil, fmt.Errorf("cancel ticket: %w", err)
				}
				effects = append(effects, notifyStation(req.OutletID, ticket.StationID, ws.EventKotCancelled, map[string]any{
					"ticket_id":     ticket.ID,
					"ticket_number": ticket.TicketNumber,
					"order_id":      order.ID,
				}))
			}
			effects = append(effects, enqueuePrint(printer.Job{
				OutletID:  req.OutletID,
				Type:      database.PrintJobTypeCANCELSLIP,
				StationID: ticket.StationID,
				Payload: map[string]any{
					"ticket_number": ticket.TicketNumber,
					"item":          kotItem.Name,
					"quantity":      kotItem.Quantity,
					"reason":        req.Reason,
				},
			}))
		}
	}

	item, err = store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
		ID: item.ID, Status: database.OrderItemStatusCANCELLED,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel item: %w", err)
	}

	if _, err := store.CreateCancelLog(ctx, database.CreateCancelLogParams{
		OrderID:     order.ID,
		OrderItemID: uuidOrNull(item.ID),
		Scope:       database.CancelScopeFULLITEM,
		Reason:      textOrNull(req.Reason),
		CancelledBy: req.Actor.UserID,
		ApprovedBy:  uuidOrNull(req.ApprovedBy),
	}); err != nil {
		return nil, fmt.Errorf("create cancel log: %w", err)
	}

	order, _, err = recalculateTotals(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	effects = append(effects, notifyOutlet(req.OutletID, ws.EventOrderItemCancelled, map[string]any{
		"order_id":    order.ID,
		"item_id":     item.ID,
		"grand_total": numericToDecimal(order.GrandTotal),
	}))
	runEffects(s.effects, effects)

	return &OrderResult{Order: order, Items: []OrderItemResult{{Item: item}}}, nil
}

// CancelOrderRequest cancels an entire order.
type CancelOrderRequest struct {
	OrderID    uuid.UUID
	OutletID   uuid.UUID
	Actor      Actor
	ApprovedBy uuid.UUID
	Reason     string
}

// CancelOrder runs the full cascade in one transaction: items, KOT items,
// open tickets, any unpaid invoice, discounts, session release and table
// status. Billed orders must cancel their invoice first.
func (s *OrderService) CancelOrder(ctx context.Context, req CancelOrderRequest) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID: req.OrderID, OutletID: req.OutletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	switch order.Status {
	case database.OrderStatusBILLED, database.OrderStatusPAID, database.OrderStatusCANCELLED:
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	case database.OrderStatusPREPARING, database.OrderStatusREADY:
		if req.ApprovedBy == uuid.Nil {
			return nil, ErrApprovalRequired
		}
	}
	if err := checkSessionOwner(ctx, store, order, req.Actor); err != nil {
		return nil, err
	}

	effects := []effect{}

	tickets, err := store.ListOpenKotTicketsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	for _, ticket := range tickets {
		if err := store.CancelKotItemsByTicket(ctx, ticket.ID); err != nil {
			return nil, fmt.Errorf("cancel kot items: %w", err)
		}
		if _, err := store.UpdateKotTicketStatus(ctx, database.UpdateKotTicketStatusParams{
			ID: ticket.ID, Status: database.KotStatusCANCELLED,
		}); err != nil {
			return nil, fmt.Errorf("cancel ticket: %w", err)
		}
		effects = append(effects,
			notifyStation(req.OutletID, ticket.StationID, ws.EventKotCancelled, map[string]any{
				"ticket_id":     ticket.ID,
				"ticket_number": ticket.TicketNumber,
				"order_id":      order.ID,
			}),
			enqueuePrint(printer.Job{
				OutletID:  req.OutletID,
				Type:      database.PrintJobTypeCANCELSLIP,
				StationID: ticket.StationID,
				Payload: map[string]any{
					"ticket_number": ticket.TicketNumber,
					"order_number":  order.OrderNumber,
					"reason":        req.Reason,
				},
			}),
		)
	}

	if err := store.CancelOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("cancel items: %w", err)
	}
	if err := store.CancelUnpaidInvoicesByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("cancel invoices: %w", err)
	}
	if err := store.CancelDiscountsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("cancel discounts: %w", err)
	}

	if err := releaseSession(ctx, store, order); err != nil {
		return nil, err
	}

	order, err = store.SetOrderStatus(ctx, database.SetOrderStatusParams{
		ID: order.ID, Status: database.OrderStatusCANCELLED,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if _, err := store.CreateCancelLog(ctx, database.CreateCancelLogParams{
		OrderID:     order.ID,
		Scope:       database.CancelScopeFULLITEM,
		Reason:      textOrNull(req.Reason),
		CancelledBy: req.Actor.UserID,
		ApprovedBy:  uuidOrNull(req.ApprovedBy),
	}); err != nil {
		return nil, fmt.Errorf("create cancel log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	effects = append(effects, notifyOutlet(req.OutletID, ws.EventOrderCancelled, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	}))
	runEffects(s.effects, effects)

	return &order, nil
}

// TransferTableRequest moves a dine-in order to another table.
type TransferTableRequest struct {
	OrderID       uuid.UUID
	OutletID      uuid.UUID
	TargetTableID uuid.UUID
	Actor         Actor
}

// TransferTable moves the order's session to the target table, freeing the
// source. Occupied targets are rejected.
func (s *OrderService) TransferTable(ctx context.Context, req TransferTableRequest) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockMutableOrder(ctx, store, req.OrderID, req.OutletID, req.Actor)
	if err != nil {
		return nil, err
	}
	if !order.TableSessionID.Valid {
		return nil, fmt.Errorf("%w: order has no table session", ErrInvalidTransition)
	}

	session, err := store.GetSession(ctx, uuid.UUID(order.TableSessionID.Bytes))
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	target, err := store.GetTableForUpdate(ctx, database.GetTableForUpdateParams{
		ID: req.TargetTableID, OutletID: req.OutletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get target table: %w", err)
	}
	if target.Status == database.TableStatusOCCUPIED {
		return nil, ErrTargetUnavailable
	}

	if err := store.MoveSessionToTable(ctx, database.MoveSessionToTableParams{
		ID: session.ID, TableID: target.ID,
	}); err != nil {
		return nil, fmt.Errorf("move session: %w", err)
	}
	if err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID: session.TableID, Status: database.TableStatusAVAILABLE,
	}); err != nil {
		return nil, fmt.Errorf("free source table: %w", err)
	}
	if err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID: target.ID, Status: database.TableStatusOCCUPIED,
	}); err != nil {
		return nil, fmt.Errorf("occupy target table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	log.Printf("order %s transferred from table %s to %s by %s",
		order.OrderNumber, session.TableID, target.ID, req.Actor.UserID)

	return &order, nil
}

// GetOrder returns an order with its item lines.
func (s *OrderService) GetOrder(ctx context.Context, store Store, orderID, outletID uuid.UUID) (*OrderResult, error) {
	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	results := make([]OrderItemResult, 0, len(items))
	for _, item := range items {
		addons, err := store.ListOrderItemAddons(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("list addons: %w", err)
		}
		results = append(results, OrderItemResult{Item: item, Addons: addons})
	}
	return &OrderResult{Order: order, Items: results}, nil
}

// --- internals ---

// lockMutableOrder locks the order row, rejects terminal/billed orders and
// enforces session ownership. Shared by every mutating operation.
func lockMutableOrder(ctx context.Context, store Store, orderID, outletID uuid.UUID, actor Actor) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID: orderID, OutletID: outletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	switch order.Status {
	case database.OrderStatusBILLED, database.OrderStatusPAID, database.OrderStatusCANCELLED:
		return database.Order{}, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}
	if err := checkSessionOwner(ctx, store, order, actor); err != nil {
		return database.Order{}, err
	}
	return order, nil
}

// checkSessionOwner enforces the table-session ownership rule: only the
// user who opened the session, or a privileged role, may mutate the order.
func checkSessionOwner(ctx context.Context, store Store, order database.Order, actor Actor) error {
	if actor.Privileged || !order.TableSessionID.Valid {
		return nil
	}
	session, err := store.GetSession(ctx, uuid.UUID(order.TableSessionID.Bytes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get session: %w", err)
	}
	if !session.ClosedAt.Valid && session.OpenedBy != actor.UserID {
		return ownerError(ctx, store, session.OpenedBy)
	}
	return nil
}

func ownerError(ctx context.Context, store Store, ownerID uuid.UUID) error {
	ownerName := ""
	if owner, err := store.GetUserByID(ctx, ownerID); err == nil {
		ownerName = owner.FullName
	}
	return &NotSessionOwnerError{OwnerID: ownerID, OwnerName: ownerName}
}

func releaseSession(ctx context.Context, store Store, order database.Order) error {
	if !order.TableSessionID.Valid {
		return nil
	}
	session, err := store.GetSession(ctx, uuid.UUID(order.TableSessionID.Bytes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get session: %w", err)
	}
	if session.ClosedAt.Valid {
		return nil
	}
	if err := store.CloseTableSession(ctx, session.ID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID: session.TableID, Status: database.TableStatusAVAILABLE,
	}); err != nil {
		return fmt.Errorf("free table: %w", err)
	}
	return nil
}

// preparedLine is a priced, tax-annotated order line ready to insert.
type preparedLine struct {
	params database.CreateOrderItemParams
	addons []database.CreateOrderItemAddonParams
}

// resolveLines prices each requested line through the menu: base price,
// variant override, addon totals, plus the tax component snapshot from the
// item's tax group.
func (s *OrderService) resolveLines(ctx context.Context, store Store, outletID uuid.UUID, items []AddLineRequest) ([]preparedLine, error) {
	var lines []preparedLine
	for i, line := range items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		menuItemID, err := uuid.Parse(line.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
		}
		menuItem, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemForOrderParams{
			ID: menuItemID, OutletID: outletID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}

		name := menuItem.Name
		unitPrice := numericToDecimal(menuItem.BasePrice)
		var variantID uuid.UUID
		if line.VariantID != "" {
			vid, err := uuid.Parse(line.VariantID)
			if err != nil {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrVariantNotFound)
			}
			variant, err := store.GetVariantForOrder(ctx, vid)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, fmt.Errorf("item[%d]: %w", i, ErrVariantNotFound)
				}
				return nil, fmt.Errorf("item[%d]: get variant: %w", i, err)
			}
			if variant.MenuItemID != menuItem.ID {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrVariantMismatch)
			}
			variantID = variant.ID
			name = menuItem.Name + " - " + variant.Name
			if variant.PriceOverride.Valid {
				unitPrice = numericToDecimal(variant.PriceOverride)
			}
		}

		addonsTotal := decimal.Zero
		var addonParams []database.CreateOrderItemAddonParams
		for j, addon := range line.Addons {
			if addon.Quantity <= 0 {
				return nil, fmt.Errorf("item[%d].addons[%d]: %w", i, j, ErrInvalidQuantity)
			}
			aid, err := uuid.Parse(addon.AddonID)
			if err != nil {
				return nil, fmt.Errorf("item[%d].addons[%d]: %w", i, j, ErrAddonNotFound)
			}
			menuAddon, err := store.GetAddonForOrder(ctx, aid)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, fmt.Errorf("item[%d].addons[%d]: %w", i, j, ErrAddonNotFound)
				}
				return nil, fmt.Errorf("item[%d].addons[%d]: get addon: %w", i, j, err)
			}
			if menuAddon.MenuItemID != menuItem.ID {
				return nil, fmt.Errorf("item[%d].addons[%d]: %w", i, j, ErrAddonMismatch)
			}
			price := numericToDecimal(menuAddon.Price)
			addonsTotal = addonsTotal.Add(price.Mul(decimal.NewFromInt32(addon.Quantity)))
			addonParams = append(addonParams, database.CreateOrderItemAddonParams{
				AddonID:   menuAddon.ID,
				Name:      menuAddon.Name,
				Quantity:  addon.Quantity,
				UnitPrice: decimalToNumeric(price),
			})
		}

		lineTotal := unitPrice.Mul(decimal.NewFromInt32(line.Quantity)).Add(addonsTotal).Round(2)

		taxDetail := []byte(`[]`)
		if menuItem.TaxGroupID.Valid {
			components, err := store.ListTaxComponentsByGroup(ctx, uuid.UUID(menuItem.TaxGroupID.Bytes))
			if err != nil {
				return nil, fmt.Errorf("item[%d]: list tax components: %w", i, err)
			}
			snapshot := make([]tax.Component, 0, len(components))
			for _, c := range components {
				snapshot = append(snapshot, tax.Component{Code: c.Code, Rate: numericToDecimal(c.Rate)})
			}
			if taxDetail, err = json.Marshal(snapshot); err != nil {
				return nil, fmt.Errorf("item[%d]: marshal tax detail: %w", i, err)
			}
		}

		lines = append(lines, preparedLine{
			params: database.CreateOrderItemParams{
				MenuItemID:   menuItem.ID,
				VariantID:    uuidOrNull(variantID),
				Name:         name,
				Quantity:     line.Quantity,
				UnitPrice:    decimalToNumeric(unitPrice),
				LineTotal:    decimalToNumeric(lineTotal),
				TaxDetail:    taxDetail,
				Status:       database.OrderItemStatusPENDING,
				StationID:    menuItem.StationID,
				Instructions: textOrNull(line.Instructions),
			},
			addons: addonParams,
		})
	}
	return lines, nil
}

func (s *OrderService) insertLines(ctx context.Context, store Store, orderID uuid.UUID, lines []preparedLine) ([]OrderItemResult, error) {
	var results []OrderItemResult
	for _, line := range lines {
		line.params.OrderID = orderID
		item, err := store.CreateOrderItem(ctx, line.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		var addons []database.OrderItemAddon
		for _, ap := range line.addons {
			ap.OrderItemID = item.ID
			addon, err := store.CreateOrderItemAddon(ctx, ap)
			if err != nil {
				return nil, fmt.Errorf("create order item addon: %w", err)
			}
			addons = append(addons, addon)
		}
		results = append(results, OrderItemResult{Item: item, Addons: addons})
	}
	return results, nil
}

// buildTaxInput assembles the calculator input from the order's active
// items and discounts. Malformed tax detail on a line degrades to zero tax
// for that line.
func buildTaxInput(ctx context.Context, store Store, order database.Order) (tax.Input, error) {
	outlet, err := store.GetOutlet(ctx, order.OutletID)
	if err != nil {
		return tax.Input{}, fmt.Errorf("get outlet: %w", err)
	}
	items, err := store.ListActiveOrderItems(ctx, order.ID)
	if err != nil {
		return tax.Input{}, fmt.Errorf("list active items: %w", err)
	}
	discounts, err := store.ListActiveDiscountsByOrder(ctx, order.ID)
	if err != nil {
		return tax.Input{}, fmt.Errorf("list discounts: %w", err)
	}

	discountTotal := decimal.Zero
	for _, d := range discounts {
		discountTotal = discountTotal.Add(numericToDecimal(d.Amount))
	}

	lines := make([]tax.Line, 0, len(items))
	var chargeComponents []tax.Component
	for _, item := range items {
		components := parseTaxDetail(item.TaxDetail)
		if components == nil {
			log.Printf("ERROR: order %s item %s has malformed tax detail, taxing at zero", order.ID, item.ID)
		}
		if chargeComponents == nil && len(components) > 0 {
			chargeComponents = components
		}
		lines = append(lines, tax.Line{
			LineTotal:  numericToDecimal(item.LineTotal),
			Components: components,
		})
	}

	// The service-charge rule is outlet configuration; when the charge is
	// flagged taxable it inherits the first taxed line's components.
	var rule *tax.ServiceChargeRule
	if order.OrderType == database.OrderTypeDINEIN && outlet.ServiceChargeMode.Valid {
		rule = &tax.ServiceChargeRule{
			Mode:       tax.ChargeMode(outlet.ServiceChargeMode.String),
			Value:      numericToDecimal(outlet.ServiceChargeValue),
			Taxable:    outlet.ServiceChargeTaxable,
			Components: chargeComponents,
		}
	}

	return tax.Input{
		Lines:         lines,
		DiscountTotal: discountTotal,
		ServiceCharge: rule,
		Interstate:    outlet.Interstate,
	}, nil
}

// recalculateTotals is the only writer of an order's monetary fields: it
// re-reads the active item set and discounts, runs the tax calculator and
// persists the result.
func recalculateTotals(ctx context.Context, store Store, order database.Order) (database.Order, tax.Result, error) {
	in, err := buildTaxInput(ctx, store, order)
	if err != nil {
		return database.Order{}, tax.Result{}, err
	}
	res := tax.Calculate(in)

	breakup, err := json.Marshal(res.Breakup)
	if err != nil {
		return database.Order{}, tax.Result{}, fmt.Errorf("marshal tax breakup: %w", err)
	}

	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:            order.ID,
		Subtotal:      decimalToNumeric(res.Subtotal),
		DiscountTotal: decimalToNumeric(in.DiscountTotal),
		TaxTotal:      decimalToNumeric(res.TotalTax),
		ServiceCharge: decimalToNumeric(res.ServiceCharge),
		RoundOff:      decimalToNumeric(res.RoundOff),
		GrandTotal:    decimalToNumeric(res.GrandTotal),
		TaxBreakup:    breakup,
	})
	if err != nil {
		return database.Order{}, tax.Result{}, fmt.Errorf("update totals: %w", err)
	}
	return updated, res, nil
}

func parseTaxDetail(raw []byte) []tax.Component {
	if len(raw) == 0 {
		return nil
	}
	var components []tax.Component
	if err := json.Unmarshal(raw, &components); err != nil {
		return nil
	}
	return components
}

func validateOrderType(s string) (database.OrderType, error) {
	switch database.OrderType(s) {
	case database.OrderTypeDINEIN, database.OrderTypeTAKEAWAY, database.OrderTypeDELIVERY:
		return database.OrderType(s), nil
	}
	return "", ErrInvalidOrderType
}

// isUniqueViolation checks for a 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
