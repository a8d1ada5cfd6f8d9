package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors returned by the order, ticket and billing services. All abort the
// unit of work cleanly; nothing partial persists.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrTableNotFound     = errors.New("table not found")
	ErrMenuItemNotFound  = errors.New("menu item not found in outlet")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrVariantMismatch   = errors.New("variant does not belong to menu item")
	ErrAddonNotFound     = errors.New("addon not found")
	ErrAddonMismatch     = errors.New("addon does not belong to menu item")
	ErrInvalidOrderType  = errors.New("invalid order_type")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidDiscount   = errors.New("invalid discount")
	ErrTableRequired     = errors.New("table_id is required for DINE_IN orders")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrApprovalRequired  = errors.New("cancelling prepared work requires an approver")
	ErrNoPendingItems    = errors.New("no pending items to send")
	ErrOrderAlreadyPaid  = errors.New("order is already paid")
	ErrInvoicePaid       = errors.New("invoice is already paid")
	ErrTargetUnavailable = errors.New("target table is occupied")
	ErrEmptySplit        = errors.New("split groups must not be empty")
)

// NotSessionOwnerError names the user running the table so the caller can
// request a transfer instead of guessing.
type NotSessionOwnerError struct {
	OwnerID   uuid.UUID
	OwnerName string
}

func (e *NotSessionOwnerError) Error() string {
	return fmt.Sprintf("table session is owned by %s", e.OwnerName)
}

// IsNotSessionOwner reports whether err is an ownership violation.
func IsNotSessionOwner(err error) bool {
	var e *NotSessionOwnerError
	return errors.As(err, &e)
}
