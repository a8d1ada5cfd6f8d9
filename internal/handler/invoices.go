package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/service"
)

// BillingServicer defines the service methods needed by invoice handlers.
// Satisfied by *service.BillingService; narrow interface for testability.
type BillingServicer interface {
	GenerateBill(ctx context.Context, req service.GenerateBillRequest) (*database.Invoice, error)
	SplitBill(ctx context.Context, req service.SplitBillRequest) ([]database.Invoice, error)
	MarkInvoicePaid(ctx context.Context, req service.InvoiceActionRequest) (*database.Invoice, error)
	CancelInvoice(ctx context.Context, req service.InvoiceActionRequest) (*database.Invoice, error)
	PrintDuplicateBill(ctx context.Context, store service.Store, req service.InvoiceActionRequest) (*database.Invoice, error)
}

// InvoiceStore defines the database methods invoice handlers call
// directly. Satisfied by *database.Queries.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, arg database.GetInvoiceParams) (database.Invoice, error)
}

// InvoiceHandler handles billing endpoints. queries is handed to service
// read helpers; in production it is the same *database.Queries as store.
type InvoiceHandler struct {
	svc     BillingServicer
	store   InvoiceStore
	queries service.Store
}

func NewInvoiceHandler(svc BillingServicer, store InvoiceStore, queries service.Store) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, store: store, queries: queries}
}

// RegisterOrderRoutes registers the order-nested billing endpoints.
// Expected mount: /outlets/{oid}/orders
func (h *InvoiceHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/bill", h.Generate)
	r.Post("/{id}/split-bill", h.Split)
}

// RegisterRoutes registers invoice endpoints.
// Expected mount: /outlets/{oid}/invoices
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Post("/{id}/pay", h.Pay)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/print", h.PrintDuplicate)
}

// --- Request / Response types ---

type generateBillRequest struct {
	PackagingCharge string `json:"packaging_charge"`
	DeliveryCharge  string `json:"delivery_charge"`
}

type splitBillRequest struct {
	Groups [][]string `json:"groups"`
}

type invoiceResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	OutletID        uuid.UUID       `json:"outlet_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	Status          string          `json:"status"`
	Subtotal        string          `json:"subtotal"`
	DiscountTotal   string          `json:"discount_total"`
	TaxTotal        string          `json:"tax_total"`
	ServiceCharge   string          `json:"service_charge"`
	PackagingCharge string          `json:"packaging_charge"`
	DeliveryCharge  string          `json:"delivery_charge"`
	RoundOff        string          `json:"round_off"`
	GrandTotal      string          `json:"grand_total"`
	TaxBreakup      json.RawMessage `json:"tax_breakup"`
	AmountInWords   string          `json:"amount_in_words"`
	GeneratedBy     uuid.UUID       `json:"generated_by"`
	CreatedAt       string          `json:"created_at"`
	PaidAt          *string         `json:"paid_at"`
	CancelledAt     *string         `json:"cancelled_at"`
}

// --- Handlers ---

// Generate handles POST /outlets/{oid}/orders/{id}/bill.
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req generateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	packaging, ok := parseCharge(w, req.PackagingCharge, "packaging_charge")
	if !ok {
		return
	}
	delivery, ok := parseCharge(w, req.DeliveryCharge, "delivery_charge")
	if !ok {
		return
	}

	invoice, err := h.svc.GenerateBill(r.Context(), service.GenerateBillRequest{
		OrderID:         orderID,
		OutletID:        outletID,
		Actor:           actor,
		PackagingCharge: packaging,
		DeliveryCharge:  delivery,
	})
	if err != nil {
		writeServiceError(w, "generate bill", err)
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceResponse(*invoice))
}

// Split handles POST /outlets/{oid}/orders/{id}/split-bill.
func (h *InvoiceHandler) Split(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req splitBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	invoices, err := h.svc.SplitBill(r.Context(), service.SplitBillRequest{
		OrderID:  orderID,
		OutletID: outletID,
		Actor:    actor,
		Groups:   req.Groups,
	})
	if err != nil {
		writeServiceError(w, "split bill", err)
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toInvoiceResponse(inv)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoices": resp})
}

// Get handles GET /outlets/{oid}/invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	outletID, _, ok := outletScope(w, r)
	if !ok {
		return
	}
	invoiceID, ok := pathID(w, r, "id", "invoice ID")
	if !ok {
		return
	}

	invoice, err := h.store.GetInvoice(r.Context(), database.GetInvoiceParams{
		ID:       invoiceID,
		OutletID: outletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
			return
		}
		log.Printf("ERROR: get invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

// Pay handles POST /outlets/{oid}/invoices/{id}/pay.
func (h *InvoiceHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.MarkInvoicePaid, "mark invoice paid")
}

// Cancel handles POST /outlets/{oid}/invoices/{id}/cancel.
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.CancelInvoice, "cancel invoice")
}

func (h *InvoiceHandler) action(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, service.InvoiceActionRequest) (*database.Invoice, error),
	op string,
) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	invoiceID, ok := pathID(w, r, "id", "invoice ID")
	if !ok {
		return
	}

	invoice, err := fn(r.Context(), service.InvoiceActionRequest{
		InvoiceID: invoiceID,
		OutletID:  outletID,
		Actor:     actor,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResponse(*invoice))
}

// PrintDuplicate handles POST /outlets/{oid}/invoices/{id}/print. It
// re-enqueues the bill print without touching invoice state.
func (h *InvoiceHandler) PrintDuplicate(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	invoiceID, ok := pathID(w, r, "id", "invoice ID")
	if !ok {
		return
	}

	invoice, err := h.svc.PrintDuplicateBill(r.Context(), h.queries, service.InvoiceActionRequest{
		InvoiceID: invoiceID,
		OutletID:  outletID,
		Actor:     actor,
	})
	if err != nil {
		writeServiceError(w, "print duplicate bill", err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResponse(*invoice))
}

// --- Helpers ---

func parseCharge(w http.ResponseWriter, s, label string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label})
		return decimal.Decimal{}, false
	}
	return d, true
}

func toInvoiceResponse(inv database.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:              inv.ID,
		OrderID:         inv.OrderID,
		OutletID:        inv.OutletID,
		InvoiceNumber:   inv.InvoiceNumber,
		Status:          string(inv.Status),
		Subtotal:        numericToString(inv.Subtotal),
		DiscountTotal:   numericToString(inv.DiscountTotal),
		TaxTotal:        numericToString(inv.TaxTotal),
		ServiceCharge:   numericToString(inv.ServiceCharge),
		PackagingCharge: numericToString(inv.PackagingCharge),
		DeliveryCharge:  numericToString(inv.DeliveryCharge),
		RoundOff:        numericToString(inv.RoundOff),
		GrandTotal:      numericToString(inv.GrandTotal),
		TaxBreakup:      json.RawMessage(inv.TaxBreakup),
		AmountInWords:   inv.AmountInWords,
		GeneratedBy:     inv.GeneratedBy,
		CreatedAt:       inv.CreatedAt.UTC().Format(timeFormat),
		PaidAt:          timestampString(inv.PaidAt),
		CancelledAt:     timestampString(inv.CancelledAt),
	}
	if len(resp.TaxBreakup) == 0 {
		resp.TaxBreakup = json.RawMessage("{}")
	}
	return resp
}
