package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, order_id, outlet_id, invoice_number, status, subtotal, discount_total, tax_total, service_charge, packaging_charge, delivery_charge, round_off, grand_total, tax_breakup, amount_in_words, generated_by, created_at, paid_at, cancelled_at`

func scanInvoice(row interface{ Scan(...interface{}) error }) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.OrderID, &inv.OutletID, &inv.InvoiceNumber, &inv.Status,
		&inv.Subtotal, &inv.DiscountTotal, &inv.TaxTotal, &inv.ServiceCharge,
		&inv.PackagingCharge, &inv.DeliveryCharge, &inv.RoundOff,
		&inv.GrandTotal, &inv.TaxBreakup, &inv.AmountInWords,
		&inv.GeneratedBy, &inv.CreatedAt, &inv.PaidAt, &inv.CancelledAt,
	)
	return inv, err
}

const getActiveInvoiceByOrder = `-- name: GetActiveInvoiceByOrder :one
SELECT ` + invoiceColumns + ` FROM invoices
WHERE order_id = $1 AND status <> 'CANCELLED'
`

// GetActiveInvoiceByOrder returns the non-cancelled invoice for an order,
// if any. Callers generating a bill check this under the order row lock;
// split billing writes several active invoices, so there is no uniqueness
// on order_id in the schema.
func (q *Queries) GetActiveInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getActiveInvoiceByOrder, orderID))
}

const listActiveInvoicesByOrder = `-- name: ListActiveInvoicesByOrder :many
SELECT ` + invoiceColumns + ` FROM invoices
WHERE order_id = $1 AND status <> 'CANCELLED'
ORDER BY created_at
`

func (q *Queries) ListActiveInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listActiveInvoicesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

const getNextInvoiceNumber = `-- name: GetNextInvoiceNumber :one
SELECT COALESCE(MAX(
    CAST(SPLIT_PART(invoice_number, '-', 3) AS INTEGER)
), 0) + 1
FROM invoices
WHERE outlet_id = $1 AND EXTRACT(YEAR FROM created_at) = $2
`

type GetNextInvoiceNumberParams struct {
	OutletID uuid.UUID
	Year     int32
}

// GetNextInvoiceNumber returns the next sequence scoped to outlet + year.
// Racy by itself; callers rely on the unique constraint plus retry.
func (q *Queries) GetNextInvoiceNumber(ctx context.Context, arg GetNextInvoiceNumberParams) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextInvoiceNumber, arg.OutletID, arg.Year).Scan(&n)
	return n, err
}

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO invoices (
    order_id, outlet_id, invoice_number, status, subtotal, discount_total,
    tax_total, service_charge, packaging_charge, delivery_charge, round_off,
    grand_total, tax_breakup, amount_in_words, generated_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + invoiceColumns

type CreateInvoiceParams struct {
	OrderID         uuid.UUID
	OutletID        uuid.UUID
	InvoiceNumber   string
	Status          InvoiceStatus
	Subtotal        pgtype.Numeric
	DiscountTotal   pgtype.Numeric
	TaxTotal        pgtype.Numeric
	ServiceCharge   pgtype.Numeric
	PackagingCharge pgtype.Numeric
	DeliveryCharge  pgtype.Numeric
	RoundOff        pgtype.Numeric
	GrandTotal      pgtype.Numeric
	TaxBreakup      []byte
	AmountInWords   string
	GeneratedBy     uuid.UUID
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, createInvoice,
		arg.OrderID, arg.OutletID, arg.InvoiceNumber, arg.Status,
		arg.Subtotal, arg.DiscountTotal, arg.TaxTotal, arg.ServiceCharge,
		arg.PackagingCharge, arg.DeliveryCharge, arg.RoundOff, arg.GrandTotal,
		arg.TaxBreakup, arg.AmountInWords, arg.GeneratedBy,
	)
	return scanInvoice(row)
}

const getInvoiceForUpdate = `-- name: GetInvoiceForUpdate :one
SELECT ` + invoiceColumns + ` FROM invoices
WHERE id = $1 AND outlet_id = $2
FOR NO KEY UPDATE
`

type GetInvoiceForUpdateParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

func (q *Queries) GetInvoiceForUpdate(ctx context.Context, arg GetInvoiceForUpdateParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceForUpdate, arg.ID, arg.OutletID))
}

const getInvoice = `-- name: GetInvoice :one
SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND outlet_id = $2
`

type GetInvoiceParams struct {
	ID       uuid.UUID
	OutletID uuid.UUID
}

func (q *Queries) GetInvoice(ctx context.Context, arg GetInvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoice, arg.ID, arg.OutletID))
}

const markInvoicePaid = `-- name: MarkInvoicePaid :one
UPDATE invoices SET status = 'PAID', paid_at = NOW()
WHERE id = $1 AND status = 'GENERATED'
RETURNING ` + invoiceColumns

// MarkInvoicePaid is guarded on GENERATED; pgx.ErrNoRows means the invoice
// was already paid or cancelled.
func (q *Queries) MarkInvoicePaid(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, markInvoicePaid, id))
}

const cancelInvoice = `-- name: CancelInvoice :one
UPDATE invoices SET status = 'CANCELLED', cancelled_at = NOW()
WHERE id = $1 AND status = 'GENERATED'
RETURNING ` + invoiceColumns

func (q *Queries) CancelInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, cancelInvoice, id))
}

const cancelUnpaidInvoicesByOrder = `-- name: CancelUnpaidInvoicesByOrder :exec
UPDATE invoices SET status = 'CANCELLED', cancelled_at = NOW()
WHERE order_id = $1 AND status = 'GENERATED'
`

func (q *Queries) CancelUnpaidInvoicesByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, cancelUnpaidInvoicesByOrder, orderID)
	return err
}

const createPrintJob = `-- name: CreatePrintJob :one
INSERT INTO print_jobs (outlet_id, job_type, station_id, payload)
VALUES ($1, $2, $3, $4)
RETURNING id, outlet_id, job_type, station_id, payload, created_at
`

type CreatePrintJobParams struct {
	OutletID  uuid.UUID
	JobType   PrintJobType
	StationID pgtype.UUID
	Payload   []byte
}

func (q *Queries) CreatePrintJob(ctx context.Context, arg CreatePrintJobParams) (PrintJob, error) {
	var j PrintJob
	err := q.db.QueryRow(ctx, createPrintJob,
		arg.OutletID, arg.JobType, arg.StationID, arg.Payload,
	).Scan(&j.ID, &j.OutletID, &j.JobType, &j.StationID, &j.Payload, &j.CreatedAt)
	return j, err
}
