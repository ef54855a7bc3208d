package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"go.uber.org/zap"
)

// maxShareLifetime bounds expiresIn so the millisecond value always fits a
// time.Duration.
const maxShareLifetime = 365 * 24 * time.Hour

type ShareIssuer interface {
	CreateShare(ctx context.Context, userID string, ttl *time.Duration) (*domain.CartShare, error)
	ResolveShare(ctx context.Context, token string) (*domain.SharedCart, error)
}

type ShareHandler struct {
	shares  ShareIssuer
	baseURL string
	timeout time.Duration
	log     *zap.Logger
}

// NewShareHandler builds share links as baseURL + "/cart/shared/" + token.
func NewShareHandler(shares ShareIssuer, baseURL string, timeout time.Duration, log *zap.Logger) *ShareHandler {
	return &ShareHandler{
		shares:  shares,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		log:     log,
	}
}

type CreateShareRequestDTO struct {
	UserID string `json:"userId"`

	// ExpiresIn is in milliseconds; omitted means the default lifetime.
	ExpiresIn *int64 `json:"expiresIn"`
}

type ShareLinkDTO struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CreateShareResponseDTO struct {
	ShareLink ShareLinkDTO `json:"shareLink"`
}

type ShareInfoDTO struct {
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SharedCartResponseDTO struct {
	*domain.CartView
	ShareInfo ShareInfoDTO `json:"shareInfo"`
}

func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateShareRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var ttl *time.Duration
	if req.ExpiresIn != nil {
		if *req.ExpiresIn > maxShareLifetime.Milliseconds() {
			respondError(w, http.StatusBadRequest, "validation_error", "expiresIn must not exceed 365 days")
			return
		}
		d := time.Duration(*req.ExpiresIn) * time.Millisecond
		ttl = &d
	}

	share, err := h.shares.CreateShare(ctx, req.UserID, ttl)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, CreateShareResponseDTO{ShareLink: ShareLinkDTO{
		Token:     share.Token,
		URL:       h.baseURL + "/cart/shared/" + share.Token,
		ExpiresAt: share.ExpiresAt,
	}})
}

// GetShared answers 404 for an unknown token and 410 for an expired one.
func (h *ShareHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing_token", "token query parameter is required")
		return
	}

	shared, err := h.shares.ResolveShare(ctx, token)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}
	respondJSON(w, http.StatusOK, SharedCartResponseDTO{
		CartView: shared.View,
		ShareInfo: ShareInfoDTO{
			CreatedBy: shared.Share.CreatedBy,
			CreatedAt: shared.Share.CreatedAt,
			ExpiresAt: shared.Share.ExpiresAt,
		},
	})
}
