package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/service"
)

// TicketServicer defines the service methods needed by ticket handlers.
// Satisfied by *service.TicketService; narrow interface for testability.
type TicketServicer interface {
	CreateTickets(ctx context.Context, req service.CreateTicketsRequest) ([]service.TicketResult, error)
	Accept(ctx context.Context, req service.TicketTransitionRequest) (*database.KotTicket, error)
	StartPreparing(ctx context.Context, req service.TicketTransitionRequest) (*database.KotTicket, error)
	MarkTicketReady(ctx context.Context, req service.TicketTransitionRequest) (*database.KotTicket, error)
	MarkServed(ctx context.Context, req service.TicketTransitionRequest) (*database.KotTicket, error)
	MarkItemReady(ctx context.Context, req service.MarkItemReadyRequest) (*database.KotTicket, error)
	ListTickets(ctx context.Context, store service.Store, orderID, outletID uuid.UUID) ([]service.TicketResult, error)
}

// TicketHandler handles kitchen ticket endpoints. queries is handed to
// service read helpers; in production it is *database.Queries.
type TicketHandler struct {
	svc     TicketServicer
	queries service.Store
}

func NewTicketHandler(svc TicketServicer, queries service.Store) *TicketHandler {
	return &TicketHandler{svc: svc, queries: queries}
}

// RegisterOrderRoutes registers the order-nested endpoints.
// Expected mount: /outlets/{oid}/orders
func (h *TicketHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/tickets", h.Send)
	r.Get("/{id}/tickets", h.List)
}

// RegisterRoutes registers ticket transition endpoints.
// Expected mount: /outlets/{oid}/tickets
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/accept", h.Accept)
	r.Post("/{id}/preparing", h.StartPreparing)
	r.Post("/{id}/ready", h.MarkReady)
	r.Post("/{id}/served", h.MarkServed)
	r.Post("/{id}/items/{itemID}/ready", h.MarkItemReady)
}

// --- Request / Response types ---

type sendTicketsRequest struct {
	Priority bool `json:"priority"`
}

type ticketResponse struct {
	ID           uuid.UUID         `json:"id"`
	OrderID      uuid.UUID         `json:"order_id"`
	StationID    uuid.UUID         `json:"station_id"`
	TicketNumber string            `json:"ticket_number"`
	SequenceNo   int32             `json:"sequence_no"`
	Status       string            `json:"status"`
	Priority     bool              `json:"priority"`
	AcceptedAt   *string           `json:"accepted_at"`
	ReadyAt      *string           `json:"ready_at"`
	ServedAt     *string           `json:"served_at"`
	CreatedAt    string            `json:"created_at"`
	Items        []kotItemResponse `json:"items,omitempty"`
}

type kotItemResponse struct {
	ID           uuid.UUID `json:"id"`
	OrderItemID  uuid.UUID `json:"order_item_id"`
	Name         string    `json:"name"`
	Quantity     int32     `json:"quantity"`
	Instructions *string   `json:"instructions"`
	Status       string    `json:"status"`
}

// --- Handlers ---

// Send handles POST /outlets/{oid}/orders/{id}/tickets. It routes every
// pending item of the order to its station, one ticket per station.
func (h *TicketHandler) Send(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req sendTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	results, err := h.svc.CreateTickets(r.Context(), service.CreateTicketsRequest{
		OrderID:  orderID,
		OutletID: outletID,
		Actor:    actor,
		Priority: req.Priority,
	})
	if err != nil {
		writeServiceError(w, "send tickets", err)
		return
	}

	resp := make([]ticketResponse, len(results))
	for i, res := range results {
		resp[i] = toTicketResponse(res)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tickets": resp})
}

// List handles GET /outlets/{oid}/orders/{id}/tickets.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	outletID, _, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	results, err := h.svc.ListTickets(r.Context(), h.queries, orderID, outletID)
	if err != nil {
		writeServiceError(w, "list tickets", err)
		return
	}

	resp := make([]ticketResponse, len(results))
	for i, res := range results {
		resp[i] = toTicketResponse(res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": resp})
}

// Accept handles POST /outlets/{oid}/tickets/{id}/accept.
func (h *TicketHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Accept, "accept ticket")
}

// StartPreparing handles POST /outlets/{oid}/tickets/{id}/preparing.
func (h *TicketHandler) StartPreparing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.StartPreparing, "start preparing")
}

// MarkReady handles POST /outlets/{oid}/tickets/{id}/ready.
func (h *TicketHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkTicketReady, "mark ticket ready")
}

// MarkServed handles POST /outlets/{oid}/tickets/{id}/served.
func (h *TicketHandler) MarkServed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkServed, "mark ticket served")
}

func (h *TicketHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, service.TicketTransitionRequest) (*database.KotTicket, error),
	op string,
) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	ticketID, ok := pathID(w, r, "id", "ticket ID")
	if !ok {
		return
	}

	ticket, err := fn(r.Context(), service.TicketTransitionRequest{
		TicketID: ticketID,
		OutletID: outletID,
		Actor:    actor,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, dbTicketToResponse(*ticket))
}

// MarkItemReady handles POST /outlets/{oid}/tickets/{id}/items/{itemID}/ready.
func (h *TicketHandler) MarkItemReady(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	ticketID, ok := pathID(w, r, "id", "ticket ID")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID", "item ID")
	if !ok {
		return
	}

	ticket, err := h.svc.MarkItemReady(r.Context(), service.MarkItemReadyRequest{
		TicketID:  ticketID,
		OutletID:  outletID,
		KotItemID: itemID,
		Actor:     actor,
	})
	if err != nil {
		writeServiceError(w, "mark item ready", err)
		return
	}

	writeJSON(w, http.StatusOK, dbTicketToResponse(*ticket))
}

// --- Helpers ---

func toTicketResponse(res service.TicketResult) ticketResponse {
	resp := dbTicketToResponse(res.Ticket)
	resp.Items = make([]kotItemResponse, len(res.Items))
	for i, item := range res.Items {
		resp.Items[i] = kotItemResponse{
			ID:          item.ID,
			OrderItemID: item.OrderItemID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			Status:      string(item.Status),
		}
		if item.Instructions.Valid {
			resp.Items[i].Instructions = &item.Instructions.String
		}
	}
	return resp
}

func dbTicketToResponse(t database.KotTicket) ticketResponse {
	return ticketResponse{
		ID:           t.ID,
		OrderID:      t.OrderID,
		StationID:    t.StationID,
		TicketNumber: t.TicketNumber,
		SequenceNo:   t.SequenceNo,
		Status:       string(t.Status),
		Priority:     t.Priority,
		AcceptedAt:   timestampString(t.AcceptedAt),
		ReadyAt:      timestampString(t.ReadyAt),
		ServedAt:     timestampString(t.ServedAt),
		CreatedAt:    t.CreatedAt.UTC().Format(timeFormat),
	}
}

func timestampString(ts pgtype.Timestamptz) *string {
	if !ts.Valid {
		return nil
	}
	s := ts.Time.UTC().Format(timeFormat)
	return &s
}
