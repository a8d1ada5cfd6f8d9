package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/printer"
	"github.com/dinemate-pos/api/internal/station"
	"github.com/dinemate-pos/api/internal/ws"
)

// TicketService drives the KOT/BOT ticket state machine.
type TicketService struct {
	pool     TxBeginner
	newStore NewStore
	effects  *Effects
}

func NewTicketService(pool TxBeginner, newStore NewStore, effects *Effects) *TicketService {
	return &TicketService{pool: pool, newStore: newStore, effects: effects}
}

// CreateTicketsRequest sends an order's pending items to their stations.
type CreateTicketsRequest struct {
	OrderID  uuid.UUID
	OutletID uuid.UUID
	Actor    Actor
	Priority bool
}

// TicketResult is a ticket with its item lines.
type TicketResult struct {
	Ticket database.KotTicket
	Items  []database.KotItem
}

// CreateTickets locks the order's pending items, groups them by station and
// creates one ticket per group with a per-station per-day sequence number.
// Consumed items flip to SENT_TO_KITCHEN; each station gets a print job and
// a realtime event after commit. Retries on ticket-number races.
func (s *TicketService) CreateTickets(ctx context.Context, req CreateTicketsRequest) ([]TicketResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		results, err := s.createTicketsTx(ctx, req)
		if err == nil {
			return results, nil
		}
		if isUniqueViolation(err, "kot_tickets_station_id_ticket_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *TicketService) createTicketsTx(ctx context.Context, req CreateTicketsRequest) ([]TicketResult, error) {
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
	}
	if err := checkSessionOwner(ctx, store, order, req.Actor); err != nil {
		return nil, err
	}

	pending, err := store.ListPendingOrderItemsForUpdate(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("lock pending items: %w", err)
	}
	if len(pending) == 0 {
		return nil, ErrNoPendingItems
	}

	// Unassigned items fall back to the outlet's default kitchen.
	fallback := uuid.Nil
	routed := make([]station.RoutedItem, 0, len(pending))
	for _, item := range pending {
		stationID := uuid.Nil
		if item.StationID.Valid {
			stationID = uuid.UUID(item.StationID.Bytes)
		} else if fallback == uuid.Nil {
			kitchen, err := store.GetDefaultKitchenStation(ctx, req.OutletID)
			if err != nil {
				return nil, fmt.Errorf("get default kitchen: %w", err)
			}
			fallback = kitchen.ID
		}
		routed = append(routed, station.RoutedItem{
			OrderItemID:  item.ID,
			StationID:    stationID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			Instructions: item.Instructions.String,
		})
	}

	groups := station.GroupByStation(routed, fallback)

	day := time.Now().Format("20060102")
	var results []TicketResult
	var effects []effect
	for _, group := range groups {
		st, err := store.GetStation(ctx, group.StationID)
		if err != nil {
			return nil, fmt.Errorf("get station: %w", err)
		}
		seq, err := store.GetNextKotSequence(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("get ticket sequence: %w", err)
		}
		prefix := station.Prefix(station.Type(st.StationType))
		ticketNumber := fmt.Sprintf("%s-%s-%03d", prefix, day, seq)

		ticket, err := store.CreateKotTicket(ctx, database.CreateKotTicketParams{
			OrderID:      order.ID,
			OutletID:     req.OutletID,
			StationID:    st.ID,
			TicketNumber: ticketNumber,
			SequenceNo:   seq,
			Status:       database.KotStatusPENDING,
			Priority:     req.Priority,
		})
		if err != nil {
			return nil, fmt.Errorf("create ticket: %w", err)
		}

		var ticketItems []database.KotItem
		printLines := make([]map[string]any, 0, len(group.Items))
		for _, item := range group.Items {
			kotItem, err := store.CreateKotItem(ctx, database.CreateKotItemParams{
				TicketID:     ticket.ID,
				OrderItemID:  item.OrderItemID,
				Name:         item.Name,
				Quantity:     item.Quantity,
				Instructions: textOrNull(item.Instructions),
				Status:       database.KotStatusPENDING,
			})
			if err != nil {
				return nil, fmt.Errorf("create kot item: %w", err)
			}
			if _, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
				ID: item.OrderItemID, Status: database.OrderItemStatusSENTTOKITCHEN,
			}); err != nil {
				return nil, fmt.Errorf("mark item sent: %w", err)
			}
			ticketItems = append(ticketItems, kotItem)
			printLines = append(printLines, map[string]any{
				"name":         item.Name,
				"quantity":     item.Quantity,
				"instructions": item.Instructions,
			})
		}
		results = append(results, TicketResult{Ticket: ticket, Items: ticketItems})

		effects = append(effects,
			notifyStation(req.OutletID, st.ID, ws.EventKotCreated, map[string]any{
				"ticket_id":     ticket.ID,
				"ticket_number": ticket.TicketNumber,
				"order_id":      order.ID,
				"priority":      ticket.Priority,
			}),
			enqueuePrint(printer.Job{
				OutletID:  req.OutletID,
				Type:      database.PrintJobTypeKOTTICKET,
				StationID: st.ID,
				Payload: map[string]any{
					"ticket_number": ticket.TicketNumber,
					"order_number":  order.OrderNumber,
					"priority":      ticket.Priority,
					"items":         printLines,
				},
			}),
		)
	}

	if order.Status == database.OrderStatusPENDING {
		if _, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID: order.ID, Status: database.OrderStatusCONFIRMED, FromStatus: database.OrderStatusPENDING,
		}); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("confirm order: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	effects = append(effects, notifyOutlet(req.OutletID, ws.EventOrderKotSent, map[string]any{
		"order_id":     order.ID,
		"ticket_count": len(results),
	}))
	runEffects(s.effects, effects)

	return results, nil
}

// TicketTransitionRequest advances one ticket's status.
type TicketTransitionRequest struct {
	TicketID uuid.UUID
	OutletID uuid.UUID
	Actor    Actor
}

// Accept marks a pending ticket as acknowledged by the station.
func (s *TicketService) Accept(ctx context.Context, req TicketTransitionRequest) (*database.KotTicket, error) {
	return s.transition(ctx, req, database.KotStatusACCEPTED, ws.EventKotAccepted)
}

// StartPreparing moves the ticket and its order items into preparation,
// advancing the order itself when this is its first active ticket.
func (s *TicketService) StartPreparing(ctx context.Context, req TicketTransitionRequest) (*database.KotTicket, error) {
	return s.transition(ctx, req, database.KotStatusPREPARING, ws.EventKotPreparing)
}

// MarkTicketReady forces every remaining item on the ticket to READY.
func (s *TicketService) MarkTicketReady(ctx context.Context, req TicketTransitionRequest) (*database.KotTicket, error) {
	return s.transition(ctx, req, database.KotStatusREADY, ws.EventKotReady)
}

// MarkServed closes the ticket and propagates to the order's all-served
// check, which may advance the order itself.
func (s *TicketService) MarkServed(ctx context.Context, req TicketTransitionRequest) (*database.KotTicket, error) {
	return s.transition(ctx, req, database.KotStatusSERVED, ws.EventKotServed)
}

func (s *TicketService) transition(ctx context.Context, req TicketTransitionRequest, to database.KotStatus, eventType string) (*database.KotTicket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ticket, err := store.GetKotTicketForUpdate(ctx, database.GetKotTicketForUpdateParams{
		ID: req.TicketID, OutletID: req.OutletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if !canTransition(ticket.Status, to) {
		return nil, fmt.Errorf("%w: ticket is %s", ErrInvalidTransition, ticket.Status)
	}

	ticket, err = store.UpdateKotTicketStatus(ctx, database.UpdateKotTicketStatusParams{
		ID: ticket.ID, Status: to,
	})
	if err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	effects := []effect{
		notifyStation(req.OutletID, ticket.StationID, eventType, map[string]any{
			"ticket_id":     ticket.ID,
			"ticket_number": ticket.TicketNumber,
			"order_id":      ticket.OrderID,
		}),
	}

	switch to {
	case database.KotStatusPREPARING:
		if err := s.cascadeItems(ctx, store, ticket, database.KotStatusPREPARING, database.OrderItemStatusPREPARING); err != nil {
			return nil, err
		}
		// First ticket in preparation pulls the order along.
		if _, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID: ticket.OrderID, Status: database.OrderStatusPREPARING, FromStatus: database.OrderStatusCONFIRMED,
		}); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("advance order: %w", err)
		}

	case database.KotStatusREADY:
		if err := s.cascadeItems(ctx, store, ticket, database.KotStatusREADY, database.OrderItemStatusREADY); err != nil {
			return nil, err
		}

	case database.KotStatusSERVED:
		if err := s.cascadeItems(ctx, store, ticket, database.KotStatusSERVED, database.OrderItemStatusSERVED); err != nil {
			return nil, err
		}
		served, err := s.advanceOrderIfAllServed(ctx, store, ticket.OrderID)
		if err != nil {
			return nil, err
		}
		if served {
			effects = append(effects, notifyOutlet(req.OutletID, ws.EventKotServed, map[string]any{
				"order_id":   ticket.OrderID,
				"all_served": true,
			}))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, effects)
	return &ticket, nil
}

// MarkItemReadyRequest marks one ticket line ready.
type MarkItemReadyRequest struct {
	TicketID  uuid.UUID
	OutletID  uuid.UUID
	KotItemID uuid.UUID
	Actor     Actor
}

// MarkItemReady flips one item to READY and auto-closes the ticket when
// every non-cancelled item has reached READY or SERVED.
func (s *TicketService) MarkItemReady(ctx context.Context, req MarkItemReadyRequest) (*database.KotTicket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ticket, err := store.GetKotTicketForUpdate(ctx, database.GetKotTicketForUpdateParams{
		ID: req.TicketID, OutletID: req.OutletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	switch ticket.Status {
	case database.KotStatusSERVED, database.KotStatusCANCELLED:
		return nil, fmt.Errorf("%w: ticket is %s", ErrInvalidTransition, ticket.Status)
	}

	kotItem, err := store.GetKotItemForUpdate(ctx, database.GetKotItemForUpdateParams{
		ID: req.KotItemID, TicketID: ticket.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get kot item: %w", err)
	}
	switch kotItem.Status {
	case database.KotStatusREADY, database.KotStatusSERVED, database.KotStatusCANCELLED:
		return nil, fmt.Errorf("%w: item is %s", ErrInvalidTransition, kotItem.Status)
	}

	if _, err := store.UpdateKotItemStatus(ctx, database.UpdateKotItemStatusParams{
		ID: kotItem.ID, Status: database.KotStatusREADY,
	}); err != nil {
		return nil, fmt.Errorf("mark kot item ready: %w", err)
	}
	if _, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
		ID: kotItem.OrderItemID, Status: database.OrderItemStatusREADY,
	}); err != nil {
		return nil, fmt.Errorf("mark order item ready: %w", err)
	}

	effects := []effect{}

	// Auto-close: all remaining items done means the ticket is READY.
	notDone, err := store.CountKotItemsNotDone(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("count kot items: %w", err)
	}
	if notDone == 0 {
		ticket, err = store.UpdateKotTicketStatus(ctx, database.UpdateKotTicketStatusParams{
			ID: ticket.ID, Status: database.KotStatusREADY,
		})
		if err != nil {
			return nil, fmt.Errorf("close ticket: %w", err)
		}
		effects = append(effects, notifyStation(req.OutletID, ticket.StationID, ws.EventKotReady, map[string]any{
			"ticket_id":     ticket.ID,
			"ticket_number": ticket.TicketNumber,
			"order_id":      ticket.OrderID,
		}))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, effects)
	return &ticket, nil
}

// ListTickets returns an order's tickets with their items.
func (s *TicketService) ListTickets(ctx context.Context, store Store, orderID, outletID uuid.UUID) ([]TicketResult, error) {
	if _, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, OutletID: outletID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	tickets, err := store.ListKotTicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	results := make([]TicketResult, 0, len(tickets))
	for _, ticket := range tickets {
		items, err := store.ListKotItemsByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, fmt.Errorf("list kot items: %w", err)
		}
		results = append(results, TicketResult{Ticket: ticket, Items: items})
	}
	return results, nil
}

// cascadeItems mirrors a ticket transition onto its non-cancelled items and
// their order items.
func (s *TicketService) cascadeItems(ctx context.Context, store Store, ticket database.KotTicket, kotStatus database.KotStatus, itemStatus database.OrderItemStatus) error {
	items, err := store.ListKotItemsByTicket(ctx, ticket.ID)
	if err != nil {
		return fmt.Errorf("list kot items: %w", err)
	}
	for _, item := range items {
		if item.Status == database.KotStatusCANCELLED || item.Status == database.KotStatusSERVED {
			continue
		}
		if _, err := store.UpdateKotItemStatus(ctx, database.UpdateKotItemStatusParams{
			ID: item.ID, Status: kotStatus,
		}); err != nil {
			return fmt.Errorf("update kot item: %w", err)
		}
		if _, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
			ID: item.OrderItemID, Status: itemStatus,
		}); err != nil {
			return fmt.Errorf("update order item: %w", err)
		}
	}
	return nil
}

// advanceOrderIfAllServed flips the order to SERVED once no active item
// remains unserved. Returns whether the order advanced.
func (s *TicketService) advanceOrderIfAllServed(ctx context.Context, store Store, orderID uuid.UUID) (bool, error) {
	unserved, err := store.CountUnservedItems(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("count unserved: %w", err)
	}
	if unserved > 0 {
		return false, nil
	}
	for _, from := range []database.OrderStatus{
		database.OrderStatusCONFIRMED,
		database.OrderStatusPREPARING,
		database.OrderStatusREADY,
	} {
		_, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID: orderID, Status: database.OrderStatusSERVED, FromStatus: from,
		})
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("advance order: %w", err)
		}
	}
	return false, nil
}

// canTransition is the ticket state machine: forward-only, CANCELLED from
// any non-terminal state.
func canTransition(from, to database.KotStatus) bool {
	if to == database.KotStatusCANCELLED {
		return from != database.KotStatusSERVED && from != database.KotStatusCANCELLED
	}
	switch from {
	case database.KotStatusPENDING:
		return to == database.KotStatusACCEPTED || to == database.KotStatusPREPARING
	case database.KotStatusACCEPTED:
		return to == database.KotStatusPREPARING
	case database.KotStatusPREPARING:
		return to == database.KotStatusREADY
	case database.KotStatusREADY:
		return to == database.KotStatusSERVED
	}
	return false
}
