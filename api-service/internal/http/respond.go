package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rei1089/ec-ring/api-service/internal/repository"
	"github.com/rei1089/ec-ring/api-service/internal/service"
	"github.com/rei1089/ec-ring/pkg/logger"
	"github.com/rei1089/ec-ring/pkg/shipping"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// handleServiceError maps service and repository errors to HTTP statuses.
// Anything unrecognised is logged and answered with a 500.
func handleServiceError(ctx context.Context, log *zap.Logger, w http.ResponseWriter, err error) {
	var (
		status  int
		code    string
		message string
	)

	switch {
	case errors.Is(err, service.ErrInvalidBarcode):
		status, code, message = http.StatusBadRequest, "invalid_barcode", "Invalid barcode"
	case errors.Is(err, service.ErrValidation):
		status, code, message = http.StatusBadRequest, "validation_error", "Invalid request"
	case errors.Is(err, shipping.ErrUnsupportedDestination):
		status, code, message = http.StatusBadRequest, "unsupported_destination", "Unsupported destination"
	case errors.Is(err, shipping.ErrInvalidWeight):
		status, code, message = http.StatusBadRequest, "invalid_weight", "Invalid weight"
	case errors.Is(err, repository.ErrCartNotFound):
		status, code, message = http.StatusNotFound, "cart_not_found", "Cart not found"
	case errors.Is(err, repository.ErrItemNotFound):
		status, code, message = http.StatusNotFound, "item_not_found", "Cart item not found"
	case errors.Is(err, repository.ErrProductNotFound):
		status, code, message = http.StatusNotFound, "product_not_found", "Product not found"
	case errors.Is(err, repository.ErrOfferNotFound):
		status, code, message = http.StatusNotFound, "offer_not_found", "Offer not found"
	case errors.Is(err, repository.ErrShareNotFound):
		status, code, message = http.StatusNotFound, "share_not_found", "Shared cart not found"
	case errors.Is(err, service.ErrShareExpired):
		status, code, message = http.StatusGone, "share_expired", "Share link has expired"
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "timeout", "Request timed out"
	default:
		logger.FromContext(ctx, log).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	respondErrorDetails(w, status, code, message, err.Error())
}

// decodeJSON reads a JSON body, rejecting unknown trailing data.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
