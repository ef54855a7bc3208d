package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"github.com/rei1089/ec-ring/api-service/internal/service"
	"go.uber.org/zap"
)

type CartManager interface {
	GetCart(ctx context.Context, userID string) (*domain.CartView, error)
	AddItem(ctx context.Context, userID string, in domain.NewCartItem) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, itemID string, upd domain.CartItemUpdate) (*domain.CartItem, bool, error)
	RemoveItem(ctx context.Context, itemID string) error
	Quote(ctx context.Context, userID, country string) (*service.CartQuote, error)
}

type CartHandler struct {
	carts   CartManager
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartManager, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout, log: log}
}

type AddItemRequestDTO struct {
	ProductID       string  `json:"productId"`
	Quantity        *int    `json:"quantity"`
	UserID          string  `json:"userId"`
	SelectedOfferID *string `json:"selectedOfferId"`
}

type UpdateItemRequestDTO struct {
	Quantity *int    `json:"quantity"`
	Note     *string `json:"note"`
}

type CartItemResponseDTO struct {
	CartItem *domain.CartItem `json:"cartItem"`
}

type SuccessResponseDTO struct {
	Success bool `json:"success"`
	Removed bool `json:"removed,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "userId query parameter is required")
		return
	}

	view, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	item, err := h.carts.AddItem(ctx, req.UserID, domain.NewCartItem{
		ProductID:       req.ProductID,
		Quantity:        *req.Quantity,
		SelectedOfferID: req.SelectedOfferID,
	})
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, CartItemResponseDTO{CartItem: item})
}

// UpdateItem deletes the line when quantity drops below 1 and answers
// {"success": true, "removed": true}.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID := chi.URLParam(r, "id")

	var req UpdateItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	item, removed, err := h.carts.UpdateItem(ctx, itemID, domain.CartItemUpdate{
		Quantity: req.Quantity,
		Note:     req.Note,
	})
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	if removed {
		respondJSON(w, http.StatusOK, SuccessResponseDTO{Success: true, Removed: true})
		return
	}
	respondJSON(w, http.StatusOK, CartItemResponseDTO{CartItem: item})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.RemoveItem(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponseDTO{Success: true})
}

func (h *CartHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	userID, country := q.Get("userId"), q.Get("country")
	if userID == "" || country == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "userId and country query parameters are required")
		return
	}

	quote, err := h.carts.Quote(ctx, userID, country)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}
