package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"go.uber.org/zap"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeValidationFailed   = "validation_failed"
	codeProductNotFound    = "product_not_found"
	codeOrderNotFound      = "order_not_found"
	codeInsufficientStock  = "insufficient_stock"
	codeInvalidTransition  = "invalid_transition"
	codeStorageConflict    = "storage_conflict"
	codeInternalError      = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg, "code": code} plus any details.
func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	body := make(map[string]any, len(details)+2)
	for k, v := range details {
		body[k] = v
	}
	body["error"] = msg
	body["code"] = code

	payload, err := json.Marshal(body)
	if err != nil {
		payload = []byte(`{"error":"internal error","code":"internal_error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeDomainError maps the orders error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		ve  *orders.ValidationError
		pnf *orders.ProductNotFoundError
		ise *orders.InsufficientStockError
		ite *orders.InvalidTransitionError
		pe  *orders.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error(), map[string]any{"field": ve.Field})
	case errors.As(err, &pnf):
		details := map[string]any{"product_id": pnf.ProductID}
		if pnf.Line >= 0 {
			details["line"] = pnf.Line
		}
		writeError(w, http.StatusNotFound, codeProductNotFound, err.Error(), details)
	case errors.Is(err, orders.ErrProductNotFound):
		writeError(w, http.StatusNotFound, codeProductNotFound, err.Error(), nil)
	case errors.As(err, &ise):
		details := map[string]any{
			"product_id":   ise.ProductID,
			"product_name": ise.Name,
			"requested":    ise.Requested,
			"available":    ise.Available,
		}
		if ise.Line >= 0 {
			details["line"] = ise.Line
		}
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error(), details)
	case errors.As(err, &ite):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error(), map[string]any{
			"current_status":   ite.From,
			"requested_status": ite.To,
		})
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error(), nil)
	case errors.As(err, &pe) && pe.Retryable:
		logger.Warn("storage conflict", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, codeStorageConflict, "storage conflict, retry the request", nil)
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error", nil)
	}
}
