package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"go.uber.org/zap"
)

type ScanResolver interface {
	Resolve(ctx context.Context, raw string) (*domain.Product, error)
}

type ScanHandler struct {
	scans   ScanResolver
	timeout time.Duration
	log     *zap.Logger
}

func NewScanHandler(scans ScanResolver, timeout time.Duration, log *zap.Logger) *ScanHandler {
	return &ScanHandler{scans: scans, timeout: timeout, log: log}
}

type ResolveRequestDTO struct {
	RawBarcode string `json:"rawBarcode"`
}

type ResolveResponseDTO struct {
	Product *domain.Product `json:"product"`
}

// Resolve answers {"product": null} for a well-formed barcode that is not
// in the catalog.
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ResolveRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.scans.Resolve(ctx, req.RawBarcode)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, ResolveResponseDTO{Product: product})
}
