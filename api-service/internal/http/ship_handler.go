package http

import (
	"net/http"

	"github.com/rei1089/ec-ring/pkg/shipping"
	"go.uber.org/zap"
)

type ShipHandler struct {
	log *zap.Logger
}

func NewShipHandler(log *zap.Logger) *ShipHandler {
	return &ShipHandler{log: log}
}

type QuoteRequestDTO struct {
	Country      string   `json:"country"`
	TotalWeightG *float64 `json:"totalWeightG"`
}

type CountriesResponseDTO struct {
	Countries []shipping.Country `json:"countries"`
}

func (h *ShipHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Country == "" || req.TotalWeightG == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "country and totalWeightG are required")
		return
	}

	quote, err := shipping.Calculate(req.Country, *req.TotalWeightG)
	if err != nil {
		handleServiceError(r.Context(), h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (h *ShipHandler) Countries(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, CountriesResponseDTO{Countries: shipping.Countries()})
}
