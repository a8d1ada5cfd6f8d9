package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dinemate-pos/api/internal/middleware"
	"github.com/dinemate-pos/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// outletScope extracts the outlet ID from the route and the acting user
// from the request context. Both are required on every outlet-scoped
// endpoint; a false return means the response has already been written.
func outletScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, service.Actor, bool) {
	outletID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid outlet ID"})
		return uuid.Nil, service.Actor{}, false
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, service.Actor{}, false
	}

	return outletID, service.Actor{UserID: claims.UserID, Privileged: claims.Privileged()}, true
}

// pathID parses a UUID route parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label})
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service-layer errors onto HTTP status codes.
// Anything unrecognized is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var owner *service.NotSessionOwnerError
	if errors.As(err, &owner) {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":      owner.Error(),
			"owner_id":   owner.OwnerID.String(),
			"owner_name": owner.OwnerName,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrApprovalRequired):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})

	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrTicketNotFound),
		errors.Is(err, service.ErrInvoiceNotFound),
		errors.Is(err, service.ErrTableNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderAlreadyPaid),
		errors.Is(err, service.ErrInvoicePaid),
		errors.Is(err, service.ErrTargetUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})

	case errors.Is(err, service.ErrNoPendingItems):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})

	case errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, service.ErrVariantMismatch),
		errors.Is(err, service.ErrAddonNotFound),
		errors.Is(err, service.ErrAddonMismatch),
		errors.Is(err, service.ErrInvalidOrderType),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrTableRequired),
		errors.Is(err, service.ErrEmptySplit):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})

	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
