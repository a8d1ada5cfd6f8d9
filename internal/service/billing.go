package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/printer"
	"github.com/dinemate-pos/api/internal/tax"
	"github.com/dinemate-pos/api/internal/words"
	"github.com/dinemate-pos/api/internal/ws"
)

// BillingService owns invoice generation, payment and order-level pricing
// adjustments. An order carries at most one active invoice, or one active
// invoice per split group.
type BillingService struct {
	pool     TxBeginner
	newStore NewStore
	effects  *Effects
}

func NewBillingService(pool TxBeginner, newStore NewStore, effects *Effects) *BillingService {
	return &BillingService{pool: pool, newStore: newStore, effects: effects}
}

// GenerateBillRequest asks for the final bill of an order. Packaging and
// delivery charges apply to takeaway and delivery orders and land on the
// invoice only, never on the order row.
type GenerateBillRequest struct {
	OrderID         uuid.UUID
	OutletID        uuid.UUID
	Actor           Actor
	PackagingCharge decimal.Decimal
	DeliveryCharge  decimal.Decimal
}

// GenerateBill freezes the order's monetary state into an invoice and moves
// the order to BILLED. Calling it again while an active invoice exists
// returns that invoice unchanged. Retries on invoice-number unique
// violations.
func (s *BillingService) GenerateBill(ctx context.Context, req GenerateBillRequest) (*database.Invoice, error) {
	var lastErr error
	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		inv, err := s.generateBillTx(ctx, req)
		if err == nil {
			return inv, nil
		}
		if isUniqueViolation(err, "invoices_outlet_id_invoice_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *BillingService) generateBillTx(ctx context.Context, req GenerateBillRequest) (*database.Invoice, error) {
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
	case database.OrderStatusPAID:
		return nil, ErrOrderAlreadyPaid
	case database.OrderStatusCANCELLED:
		return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}

	if err := checkSessionOwner(ctx, store, order, req.Actor); err != nil {
		return nil, err
	}

	existing, err := store.GetActiveInvoiceByOrder(ctx, order.ID)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active invoice: %w", err)
	}

	// The order row keeps its own totals without the delivery-time charges;
	// only the invoice carries them.
	order, _, err = recalculateTotals(ctx, store, order)
	if err != nil {
		return nil, err
	}
	in, err := buildTaxInput(ctx, store, order)
	if err != nil {
		return nil, err
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: order has no active items", ErrInvalidTransition)
	}
	in.PackagingCharge = req.PackagingCharge
	in.DeliveryCharge = req.DeliveryCharge
	res := tax.Calculate(in)

	year := time.Now().Year()
	seq, err := store.GetNextInvoiceNumber(ctx, database.GetNextInvoiceNumberParams{
		OutletID: req.OutletID, Year: int32(year),
	})
	if err != nil {
		return nil, fmt.Errorf("next invoice number: %w", err)
	}

	invoice, err := s.insertInvoice(ctx, store, order, res, req.Actor,
		fmt.Sprintf("INV-%d-%05d", year, seq), req.PackagingCharge, req.DeliveryCharge)
	if err != nil {
		return nil, err
	}

	if _, err := store.SetOrderStatus(ctx, database.SetOrderStatusParams{
		ID: order.ID, Status: database.OrderStatusBILLED,
	}); err != nil {
		return nil, fmt.Errorf("mark order billed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, []effect{
		billStatusEvent(order, invoice),
		billPrintJob(order, invoice),
	})
	return &invoice, nil
}

// SplitBillRequest divides an order's active items into groups, one invoice
// per group. Every active item must appear in exactly one group.
type SplitBillRequest struct {
	OrderID  uuid.UUID
	OutletID uuid.UUID
	Actor    Actor
	Groups   [][]string
}

// SplitBill issues one invoice per item group. Item-targeted discounts
// reduce their own group's taxable base; order-level discounts and the
// service charge do not participate in a split.
func (s *BillingService) SplitBill(ctx context.Context, req SplitBillRequest) ([]database.Invoice, error) {
	if len(req.Groups) == 0 {
		return nil, ErrEmptySplit
	}
	for _, group := range req.Groups {
		if len(group) == 0 {
			return nil, ErrEmptySplit
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		invoices, err := s.splitBillTx(ctx, req)
		if err == nil {
			return invoices, nil
		}
		if isUniqueViolation(err, "invoices_outlet_id_invoice_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *BillingService) splitBillTx(ctx context.Context, req SplitBillRequest) ([]database.Invoice, error) {
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
	case database.OrderStatusPAID:
		return nil, ErrOrderAlreadyPaid
	case database.OrderStatusCANCELLED:
		return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}
	if _, err := store.GetActiveInvoiceByOrder(ctx, order.ID); err == nil {
		return nil, fmt.Errorf("%w: order already has an active invoice", ErrInvalidTransition)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active invoice: %w", err)
	}

	if err := checkSessionOwner(ctx, store, order, req.Actor); err != nil {
		return nil, err
	}

	outlet, err := store.GetOutlet(ctx, order.OutletID)
	if err != nil {
		return nil, fmt.Errorf("get outlet: %w", err)
	}
	items, err := store.ListActiveOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order has no active items", ErrInvalidTransition)
	}
	byID := make(map[uuid.UUID]database.OrderItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	discounts, err := store.ListActiveDiscountsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	itemDiscounts := make(map[uuid.UUID]decimal.Decimal)
	for _, d := range discounts {
		if !d.OrderItemID.Valid {
			continue
		}
		id := uuid.UUID(d.OrderItemID.Bytes)
		itemDiscounts[id] = itemDiscounts[id].Add(numericToDecimal(d.Amount))
	}

	year := time.Now().Year()
	seq, err := store.GetNextInvoiceNumber(ctx, database.GetNextInvoiceNumberParams{
		OutletID: req.OutletID, Year: int32(year),
	})
	if err != nil {
		return nil, fmt.Errorf("next invoice number: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(items))
	invoices := make([]database.Invoice, 0, len(req.Groups))
	for gi, group := range req.Groups {
		lines := make([]tax.Line, 0, len(group))
		groupDiscount := decimal.Zero
		for _, raw := range group {
			itemID, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("group[%d]: %w: invalid item id", gi, ErrItemNotFound)
			}
			item, ok := byID[itemID]
			if !ok {
				return nil, fmt.Errorf("group[%d]: %w", gi, ErrItemNotFound)
			}
			if seen[itemID] {
				return nil, fmt.Errorf("%w: item %s appears in more than one group", ErrEmptySplit, itemID)
			}
			seen[itemID] = true
			lines = append(lines, tax.Line{
				LineTotal:  numericToDecimal(item.LineTotal),
				Components: parseTaxDetail(item.TaxDetail),
			})
			groupDiscount = groupDiscount.Add(itemDiscounts[itemID])
		}

		res := tax.Calculate(tax.Input{
			Lines:         lines,
			DiscountTotal: groupDiscount,
			Interstate:    outlet.Interstate,
		})
		invoice, err := s.insertInvoice(ctx, store, order, res, req.Actor,
			fmt.Sprintf("INV-%d-%05d", year, seq+int32(gi)), decimal.Zero, decimal.Zero)
		if err != nil {
			return nil, fmt.Errorf("group[%d]: %w", gi, err)
		}
		invoices = append(invoices, invoice)
	}
	if len(seen) != len(items) {
		return nil, fmt.Errorf("%w: groups must cover every active item", ErrEmptySplit)
	}

	if _, err := store.SetOrderStatus(ctx, database.SetOrderStatusParams{
		ID: order.ID, Status: database.OrderStatusBILLED,
	}); err != nil {
		return nil, fmt.Errorf("mark order billed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	effects := make([]effect, 0, 2*len(invoices))
	for i := range invoices {
		effects = append(effects, billStatusEvent(order, invoices[i]), billPrintJob(order, invoices[i]))
	}
	runEffects(s.effects, effects)
	return invoices, nil
}

// InvoiceActionRequest identifies an invoice for payment or cancellation.
type InvoiceActionRequest struct {
	InvoiceID uuid.UUID
	OutletID  uuid.UUID
	Actor     Actor
}

// MarkInvoicePaid settles one invoice. When every active invoice of the
// order is paid the order moves to PAID and its table session closes.
func (s *BillingService) MarkInvoicePaid(ctx context.Context, req InvoiceActionRequest) (*database.Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	invoice, order, err := lockInvoiceAndOrder(ctx, store, req)
	if err != nil {
		return nil, err
	}

	paid, err := store.MarkInvoicePaid(ctx, invoice.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if invoice.Status == database.InvoiceStatusPAID {
				return nil, ErrInvoicePaid
			}
			return nil, fmt.Errorf("%w: invoice is cancelled", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("mark invoice paid: %w", err)
	}

	active, err := store.ListActiveInvoicesByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	allPaid := true
	for _, inv := range active {
		if inv.Status != database.InvoiceStatusPAID {
			allPaid = false
			break
		}
	}
	if allPaid {
		if _, err := store.SetOrderStatus(ctx, database.SetOrderStatusParams{
			ID: order.ID, Status: database.OrderStatusPAID,
		}); err != nil {
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
		if err := releaseSession(ctx, store, order); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, []effect{billStatusEvent(order, paid)})
	return &paid, nil
}

// CancelInvoice voids a GENERATED invoice so the order can be re-billed.
// When no active invoice remains the order returns from BILLED to SERVED.
func (s *BillingService) CancelInvoice(ctx context.Context, req InvoiceActionRequest) (*database.Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	invoice, order, err := lockInvoiceAndOrder(ctx, store, req)
	if err != nil {
		return nil, err
	}
	if invoice.Status == database.InvoiceStatusPAID {
		return nil, ErrInvoicePaid
	}

	cancelled, err := store.CancelInvoice(ctx, invoice.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice is not open", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("cancel invoice: %w", err)
	}

	active, err := store.ListActiveInvoicesByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if len(active) == 0 {
		// pgx.ErrNoRows here means the order already left BILLED.
		_, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID: order.ID, Status: database.OrderStatusSERVED, FromStatus: database.OrderStatusBILLED,
		})
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("revert order status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	runEffects(s.effects, []effect{billStatusEvent(order, cancelled)})
	return &cancelled, nil
}

// ApplyDiscountRequest adds a discount to an order or one of its items.
type ApplyDiscountRequest struct {
	OrderID  uuid.UUID
	OutletID uuid.UUID
	Actor    Actor
	Type     string
	Value    decimal.Decimal
	ItemID   string
	Reason   string
}

// ApplyDiscount records a discount and re-derives the order totals. A
// percentage is taken off the order subtotal, or off the targeted item's
// line total; a flat amount is capped at its base so the taxable amount
// cannot go negative from a single discount.
func (s *BillingService) ApplyDiscount(ctx context.Context, req ApplyDiscountRequest) (*database.Order, error) {
	discountType := database.DiscountType(req.Type)
	if discountType != database.DiscountTypePERCENTAGE && discountType != database.DiscountTypeFLAT {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, req.Type)
	}
	if !req.Value.IsPositive() {
		return nil, fmt.Errorf("%w: value must be > 0", ErrInvalidDiscount)
	}
	if discountType == database.DiscountTypePERCENTAGE && req.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: percentage exceeds 100", ErrInvalidDiscount)
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

	base := numericToDecimal(order.Subtotal)
	itemID := uuid.Nil
	if req.ItemID != "" {
		itemID, err = uuid.Parse(req.ItemID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid item id", ErrItemNotFound)
		}
		item, err := store.GetOrderItemForUpdate(ctx, database.GetOrderItemForUpdateParams{
			ID: itemID, OrderID: order.ID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrItemNotFound
			}
			return nil, fmt.Errorf("get item: %w", err)
		}
		if item.Status == database.OrderItemStatusCANCELLED {
			return nil, fmt.Errorf("%w: item is cancelled", ErrInvalidTransition)
		}
		base = numericToDecimal(item.LineTotal)
	}

	var amount decimal.Decimal
	if discountType == database.DiscountTypePERCENTAGE {
		amount = base.Mul(req.Value).Div(decimal.NewFromInt(100)).Round(2)
	} else {
		amount = decimal.Min(req.Value, base).Round(2)
	}

	if _, err := store.CreateOrderDiscount(ctx, database.CreateOrderDiscountParams{
		OrderID:      order.ID,
		OrderItemID:  uuidOrNull(itemID),
		DiscountType: discountType,
		Value:        decimalToNumeric(req.Value),
		Amount:       decimalToNumeric(amount),
		Reason:       textOrNull(req.Reason),
		CreatedBy:    req.Actor.UserID,
	}); err != nil {
		return nil, fmt.Errorf("create discount: %w", err)
	}

	order, _, err = recalculateTotals(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// PrintDuplicateBill re-queues the invoice's print payload without touching
// any state. The printed copy is marked as a duplicate.
func (s *BillingService) PrintDuplicateBill(ctx context.Context, store Store, req InvoiceActionRequest) (*database.Invoice, error) {
	invoice, err := store.GetInvoice(ctx, database.GetInvoiceParams{
		ID: req.InvoiceID, OutletID: req.OutletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	order, err := store.GetOrder(ctx, database.GetOrderParams{
		ID: invoice.OrderID, OutletID: req.OutletID,
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	payload := billPayload(order, invoice)
	payload["duplicate"] = true
	runEffects(s.effects, []effect{enqueuePrint(printer.Job{
		OutletID: invoice.OutletID,
		Type:     database.PrintJobTypeBILL,
		Payload:  payload,
	})})
	return &invoice, nil
}

func (s *BillingService) insertInvoice(ctx context.Context, store Store, order database.Order, res tax.Result, actor Actor, number string, packaging, delivery decimal.Decimal) (database.Invoice, error) {
	breakup, err := json.Marshal(res.Breakup)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("marshal tax breakup: %w", err)
	}
	invoice, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		OrderID:         order.ID,
		OutletID:        order.OutletID,
		InvoiceNumber:   number,
		Status:          database.InvoiceStatusGENERATED,
		Subtotal:        decimalToNumeric(res.Subtotal),
		DiscountTotal:   decimalToNumeric(res.Subtotal.Sub(res.TaxableAmount)),
		TaxTotal:        decimalToNumeric(res.TotalTax),
		ServiceCharge:   decimalToNumeric(res.ServiceCharge),
		PackagingCharge: decimalToNumeric(packaging),
		DeliveryCharge:  decimalToNumeric(delivery),
		RoundOff:        decimalToNumeric(res.RoundOff),
		GrandTotal:      decimalToNumeric(res.GrandTotal),
		TaxBreakup:      breakup,
		AmountInWords:   words.AmountInWords(res.GrandTotal),
		GeneratedBy:     actor.UserID,
	})
	if err != nil {
		return database.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return invoice, nil
}

// lockInvoiceAndOrder resolves the invoice, then locks order first and
// invoice second. Every service takes the order lock before any child row
// lock, so cross-service deadlocks cannot form.
func lockInvoiceAndOrder(ctx context.Context, store Store, req InvoiceActionRequest) (database.Invoice, database.Order, error) {
	invoice, err := store.GetInvoice(ctx, database.GetInvoiceParams{
		ID: req.InvoiceID, OutletID: req.OutletID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, database.Order{}, ErrInvoiceNotFound
		}
		return database.Invoice{}, database.Order{}, fmt.Errorf("get invoice: %w", err)
	}
	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID: invoice.OrderID, OutletID: req.OutletID,
	})
	if err != nil {
		return database.Invoice{}, database.Order{}, fmt.Errorf("lock order: %w", err)
	}
	invoice, err = store.GetInvoiceForUpdate(ctx, database.GetInvoiceForUpdateParams{
		ID: req.InvoiceID, OutletID: req.OutletID,
	})
	if err != nil {
		return database.Invoice{}, database.Order{}, fmt.Errorf("lock invoice: %w", err)
	}
	if err := checkSessionOwner(ctx, store, order, req.Actor); err != nil {
		return database.Invoice{}, database.Order{}, err
	}
	return invoice, order, nil
}

func billStatusEvent(order database.Order, invoice database.Invoice) effect {
	return notifyOutlet(order.OutletID, ws.EventBillStatus, map[string]any{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"status":         invoice.Status,
	})
}

func billPrintJob(order database.Order, invoice database.Invoice) effect {
	return enqueuePrint(printer.Job{
		OutletID: invoice.OutletID,
		Type:     database.PrintJobTypeBILL,
		Payload:  billPayload(order, invoice),
	})
}

func billPayload(order database.Order, invoice database.Invoice) map[string]any {
	return map[string]any{
		"invoice_number":  invoice.InvoiceNumber,
		"order_number":    order.OrderNumber,
		"order_type":      order.OrderType,
		"subtotal":        numericToDecimal(invoice.Subtotal),
		"discount_total":  numericToDecimal(invoice.DiscountTotal),
		"tax_total":       numericToDecimal(invoice.TaxTotal),
		"service_charge":  numericToDecimal(invoice.ServiceCharge),
		"round_off":       numericToDecimal(invoice.RoundOff),
		"grand_total":     numericToDecimal(invoice.GrandTotal),
		"amount_in_words": invoice.AmountInWords,
	}
}
