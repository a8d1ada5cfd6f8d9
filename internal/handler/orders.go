package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	AddItems(ctx context.Context, req service.AddItemsRequest) (*service.OrderResult, error)
	UpdateItemQuantity(ctx context.Context, req service.UpdateItemQuantityRequest) (*service.OrderResult, error)
	CancelItem(ctx context.Context, req service.CancelItemRequest) (*service.OrderResult, error)
	CancelOrder(ctx context.Context, req service.CancelOrderRequest) (*database.Order, error)
	TransferTable(ctx context.Context, req service.TransferTableRequest) (*database.Order, error)
	GetOrder(ctx context.Context, store service.Store, orderID, outletID uuid.UUID) (*service.OrderResult, error)
}

// Discounter applies discounts; satisfied by *service.BillingService.
type Discounter interface {
	ApplyDiscount(ctx context.Context, req service.ApplyDiscountRequest) (*database.Order, error)
}

// OrderStore defines the database methods order handlers call directly.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// OrderHandler handles order endpoints. queries is handed to service read
// helpers; in production it is the same *database.Queries as store.
type OrderHandler struct {
	svc       OrderServicer
	discounts Discounter
	store     OrderStore
	queries   service.Store
}

func NewOrderHandler(svc OrderServicer, discounts Discounter, store OrderStore, queries service.Store) *OrderHandler {
	return &OrderHandler{svc: svc, discounts: discounts, store: store, queries: queries}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Cancel)
	r.Post("/{id}/items", h.AddItems)
	r.Patch("/{id}/items/{itemID}", h.UpdateItemQuantity)
	r.Delete("/{id}/items/{itemID}", h.CancelItem)
	r.Post("/{id}/transfer", h.Transfer)
	r.Post("/{id}/discounts", h.ApplyDiscount)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType string        `json:"order_type"`
	TableID   string        `json:"table_id"`
	Items     []lineRequest `json:"items"`
}

type lineRequest struct {
	MenuItemID   string         `json:"menu_item_id"`
	VariantID    string         `json:"variant_id"`
	Quantity     int32          `json:"quantity"`
	Instructions string         `json:"instructions"`
	Addons       []addonRequest `json:"addons"`
}

type addonRequest struct {
	AddonID  string `json:"addon_id"`
	Quantity int32  `json:"quantity"`
}

type addItemsRequest struct {
	Items []lineRequest `json:"items"`
}

type updateQuantityRequest struct {
	Quantity int32  `json:"quantity"`
	Reason   string `json:"reason"`
}

type cancelRequest struct {
	ApprovedBy string `json:"approved_by"`
	Reason     string `json:"reason"`
}

type transferRequest struct {
	TableID string `json:"table_id"`
}

type discountRequest struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OutletID       uuid.UUID           `json:"outlet_id"`
	OrderNumber    string              `json:"order_number"`
	OrderType      string              `json:"order_type"`
	Status         string              `json:"status"`
	TableSessionID *string             `json:"table_session_id"`
	Subtotal       string              `json:"subtotal"`
	DiscountTotal  string              `json:"discount_total"`
	TaxTotal       string              `json:"tax_total"`
	ServiceCharge  string              `json:"service_charge"`
	RoundOff       string              `json:"round_off"`
	GrandTotal     string              `json:"grand_total"`
	TaxBreakup     json.RawMessage     `json:"tax_breakup"`
	CreatedBy      uuid.UUID           `json:"created_by"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	MenuItemID   uuid.UUID       `json:"menu_item_id"`
	VariantID    *string         `json:"variant_id"`
	Name         string          `json:"name"`
	Quantity     int32           `json:"quantity"`
	UnitPrice    string          `json:"unit_price"`
	LineTotal    string          `json:"line_total"`
	Status       string          `json:"status"`
	StationID    *string         `json:"station_id"`
	Instructions *string         `json:"instructions"`
	Addons       []addonResponse `json:"addons"`
}

type addonResponse struct {
	ID        uuid.UUID `json:"id"`
	AddonID   uuid.UUID `json:"addon_id"`
	Name      string    `json:"name"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /outlets/{oid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}
	if !validateLines(w, req.Items) {
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		OutletID:  outletID,
		Actor:     actor,
		OrderType: req.OrderType,
		TableID:   req.TableID,
		Items:     toLineRequests(req.Items),
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// List handles GET /outlets/{oid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	outletID, _, ok := outletScope(w, r)
	if !ok {
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		OutletID: outletID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = database.NullOrderStatus{OrderStatus: database.OrderStatus(s), Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /outlets/{oid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	outletID, _, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.GetOrder(r.Context(), h.queries, orderID, outletID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// AddItems handles POST /outlets/{oid}/orders/{id}/items.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req addItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validateLines(w, req.Items) {
		return
	}

	result, err := h.svc.AddItems(r.Context(), service.AddItemsRequest{
		OrderID:  orderID,
		OutletID: outletID,
		Actor:    actor,
		Items:    toLineRequests(req.Items),
	})
	if err != nil {
		writeServiceError(w, "add items", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// UpdateItemQuantity handles PATCH /outlets/{oid}/orders/{id}/items/{itemID}.
func (h *OrderHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID", "item ID")
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.UpdateItemQuantity(r.Context(), service.UpdateItemQuantityRequest{
		OrderID:  orderID,
		OutletID: outletID,
		ItemID:   itemID,
		Actor:    actor,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(w, "update item quantity", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// CancelItem handles DELETE /outlets/{oid}/orders/{id}/items/{itemID}.
func (h *OrderHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID", "item ID")
	if !ok {
		return
	}

	req, ok := decodeCancelRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.CancelItem(r.Context(), service.CancelItemRequest{
		OrderID:    orderID,
		OutletID:   outletID,
		ItemID:     itemID,
		Actor:      actor,
		ApprovedBy: req.approvedBy,
		Reason:     req.reason,
	})
	if err != nil {
		writeServiceError(w, "cancel item", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Cancel handles DELETE /outlets/{oid}/orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	req, ok := decodeCancelRequest(w, r)
	if !ok {
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), service.CancelOrderRequest{
		OrderID:    orderID,
		OutletID:   outletID,
		Actor:      actor,
		ApprovedBy: req.approvedBy,
		Reason:     req.reason,
	})
	if err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}

// Transfer handles POST /outlets/{oid}/orders/{id}/transfer.
func (h *OrderHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	targetID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}

	order, err := h.svc.TransferTable(r.Context(), service.TransferTableRequest{
		OrderID:       orderID,
		OutletID:      outletID,
		TargetTableID: targetID,
		Actor:         actor,
	})
	if err != nil {
		writeServiceError(w, "transfer table", err)
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}

// ApplyDiscount handles POST /outlets/{oid}/orders/{id}/discounts.
func (h *OrderHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	outletID, actor, ok := outletScope(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount value"})
		return
	}

	order, err := h.discounts.ApplyDiscount(r.Context(), service.ApplyDiscountRequest{
		OrderID:  orderID,
		OutletID: outletID,
		Actor:    actor,
		Type:     req.Type,
		Value:    value,
		ItemID:   req.ItemID,
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(w, "apply discount", err)
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}

// --- Helpers ---

func validateLines(w http.ResponseWriter, items []lineRequest) bool {
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return false
	}
	for i, item := range items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "items[" + strconv.Itoa(i) + "]: menu_item_id is required",
			})
			return false
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "items[" + strconv.Itoa(i) + "]: quantity must be > 0",
			})
			return false
		}
	}
	return true
}

func toLineRequests(items []lineRequest) []service.AddLineRequest {
	lines := make([]service.AddLineRequest, len(items))
	for i, item := range items {
		addons := make([]service.AddonLineRequest, len(item.Addons))
		for j, a := range item.Addons {
			addons[j] = service.AddonLineRequest{AddonID: a.AddonID, Quantity: a.Quantity}
		}
		lines[i] = service.AddLineRequest{
			MenuItemID:   item.MenuItemID,
			VariantID:    item.VariantID,
			Quantity:     item.Quantity,
			Instructions: item.Instructions,
			Addons:       addons,
		}
	}
	return lines
}

type parsedCancel struct {
	approvedBy uuid.UUID
	reason     string
}

// decodeCancelRequest tolerates an empty body; approved_by must be a valid
// UUID when present.
func decodeCancelRequest(w http.ResponseWriter, r *http.Request) (parsedCancel, bool) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return parsedCancel{}, false
	}

	parsed := parsedCancel{reason: req.Reason}
	if req.ApprovedBy != "" {
		id, err := uuid.Parse(req.ApprovedBy)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid approved_by"})
			return parsedCancel{}, false
		}
		parsed.approvedBy = id
	}
	return parsed, true
}

func toOrderResponse(result *service.OrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = toOrderItemResponse(ir)
	}
	return resp
}

func toOrderItemResponse(ir service.OrderItemResult) orderItemResponse {
	item := ir.Item
	resp := orderItemResponse{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Name:       item.Name,
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		LineTotal:  numericToString(item.LineTotal),
		Status:     string(item.Status),
	}

	if item.VariantID.Valid {
		s := uuid.UUID(item.VariantID.Bytes).String()
		resp.VariantID = &s
	}
	if item.StationID.Valid {
		s := uuid.UUID(item.StationID.Bytes).String()
		resp.StationID = &s
	}
	if item.Instructions.Valid {
		resp.Instructions = &item.Instructions.String
	}

	resp.Addons = make([]addonResponse, len(ir.Addons))
	for j, a := range ir.Addons {
		resp.Addons[j] = addonResponse{
			ID:        a.ID,
			AddonID:   a.AddonID,
			Name:      a.Name,
			Quantity:  a.Quantity,
			UnitPrice: numericToString(a.UnitPrice),
		}
	}
	return resp
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OutletID:      o.OutletID,
		OrderNumber:   o.OrderNumber,
		OrderType:     string(o.OrderType),
		Status:        string(o.Status),
		Subtotal:      numericToString(o.Subtotal),
		DiscountTotal: numericToString(o.DiscountTotal),
		TaxTotal:      numericToString(o.TaxTotal),
		ServiceCharge: numericToString(o.ServiceCharge),
		RoundOff:      numericToString(o.RoundOff),
		GrandTotal:    numericToString(o.GrandTotal),
		TaxBreakup:    json.RawMessage(o.TaxBreakup),
		CreatedBy:     o.CreatedBy,
		CreatedAt:     o.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:     o.UpdatedAt.UTC().Format(timeFormat),
	}
	if o.TableSessionID.Valid {
		s := uuid.UUID(o.TableSessionID.Bytes).String()
		resp.TableSessionID = &s
	}
	if len(resp.TaxBreakup) == 0 {
		resp.TaxBreakup = json.RawMessage("{}")
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
