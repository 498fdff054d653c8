package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rtbecker76/universal-electronics2/internal/admin"
	"github.com/rtbecker76/universal-electronics2/internal/cart"
	"github.com/rtbecker76/universal-electronics2/internal/catalog"
	"github.com/rtbecker76/universal-electronics2/internal/forms"
	"github.com/rtbecker76/universal-electronics2/internal/history"
	"github.com/rtbecker76/universal-electronics2/internal/logger"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleError maps domain and store errors to a status and a message fit for the client.
// Server side failures are logged with the request's trace ids and never leak their cause.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ve *forms.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: forms.ErrValidation.Error(), Code: "validation_failed", Details: ve.Fields,
		})
	case errors.Is(err, forms.ErrValidation):
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())

	case errors.Is(err, cart.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, cart.ErrPurchaseInProgress):
		respondError(w, http.StatusConflict, "purchase_in_progress", err.Error())
	case errors.Is(err, cart.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "line_not_found", err.Error())
	case errors.Is(err, cart.ErrNoSession):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())

	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", catalog.ErrProductNotFound.Error())
	case errors.Is(err, history.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", history.ErrOrderNotFound.Error())
	case errors.Is(err, history.ErrNoCustomer):
		respondError(w, http.StatusForbidden, "forbidden", history.ErrNoCustomer.Error())
	case errors.Is(err, admin.ErrUnknownTable):
		respondError(w, http.StatusNotFound, "unknown_table", err.Error())

	case errors.Is(err, recordstore.ErrConstraint):
		respondError(w, http.StatusConflict, "constraint_violation", recordstore.MessageConstraint)
	case errors.Is(err, recordstore.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", recordstore.ErrNotFound.Error())
	case errors.Is(err, recordstore.ErrInvalid):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.WithTrace(r.Context(), log).Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", recordstore.MessageUnexpected)
	}
}
