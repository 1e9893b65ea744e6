package httpx

import (
	"errors"
	"net/http"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

// statusOf maps an error kind to its HTTP status and a stable code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found"
	case errors.Is(err, domain.ErrParentNotFound):
		return http.StatusNotFound, "parent_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrHierarchyMismatch):
		return http.StatusUnprocessableEntity, "hierarchy_mismatch"
	case errors.Is(err, domain.ErrParentInactive):
		return http.StatusConflict, "parent_inactive"
	case errors.Is(err, domain.ErrProductNotPurchasable):
		return http.StatusConflict, "product_not_purchasable"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition"
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, domain.ErrProductReferenced):
		return http.StatusConflict, "product_referenced"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable, "concurrency_conflict"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusOf(err)
	body := errorBody{Error: err.Error(), Code: kind}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	var se *domain.InsufficientStockError
	if errors.As(err, &se) {
		body.ProductID, body.Requested = se.ProductID, se.Requested
		body.Available = &se.Available
	}

	switch code {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		logging.Warn(r.Context(), "transaction aborted", "err", err)
	case http.StatusInternalServerError:
		logging.Error(r.Context(), "request failed", "err", err)
		body.Error = "internal error"
	}
	writeJSON(w, code, body)
}
