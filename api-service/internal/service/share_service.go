package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"github.com/rei1089/ec-ring/api-service/internal/events"
	"github.com/rei1089/ec-ring/api-service/internal/repository"
	"github.com/rei1089/ec-ring/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultShareTTL = 7 * 24 * time.Hour

	tokenLength       = 16
	tokenAttempts     = 3
	tokenRandomLength = 16
)

type ShareService struct {
	carts  repository.CartRepository
	shares repository.ShareRepository
	events events.Publisher
	log    *zap.Logger

	now    func() time.Time
	random io.Reader
}

func NewShareService(carts repository.CartRepository, shares repository.ShareRepository, pub events.Publisher, log *zap.Logger) *ShareService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ShareService{
		carts:  carts,
		shares: shares,
		events: pub,
		log:    log,
		now:    time.Now,
		random: rand.Reader,
	}
}

// CreateShare issues a share link for the user's active cart. A nil ttl
// means DefaultShareTTL.
func (s *ShareService) CreateShare(ctx context.Context, userID string, ttl *time.Duration) (*domain.CartShare, error) {
	if err := validateID("userId", userID); err != nil {
		return nil, err
	}
	expiresIn := DefaultShareTTL
	if ttl != nil {
		if *ttl <= 0 {
			return nil, fmt.Errorf("%w: expiresIn must be positive", ErrValidation)
		}
		expiresIn = *ttl
	}

	cart, err := s.carts.FindActiveCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find active cart: %w", err)
	}
	if cart == nil {
		return nil, repository.ErrCartNotFound
	}

	var share *domain.CartShare
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		now := s.now().UTC()
		token, err := s.newToken(cart.ID, now)
		if err != nil {
			return nil, err
		}
		share = &domain.CartShare{
			ID:        uuid.NewString(),
			Token:     token,
			CartID:    cart.ID,
			CreatedBy: userID,
			ExpiresAt: now.Add(expiresIn),
			CreatedAt: now,
		}
		err = s.shares.CreateShare(ctx, share)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateToken) || attempt == tokenAttempts-1 {
			return nil, fmt.Errorf("create share: %w", err)
		}
		logger.FromContext(ctx, s.log).Warn("share token collision, retrying", zap.Int("attempt", attempt+1))
	}

	ctxPub, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.events.Publish(ctxPub, events.Event{
		Type: events.TypeCartShared,
		Key:  cart.ID,
		Payload: events.CartShared{
			CartID:    cart.ID,
			Token:     share.Token,
			CreatedBy: userID,
			ExpiresAt: share.ExpiresAt,
		},
	}); err != nil {
		logger.FromContext(ctx, s.log).Warn("failed to publish event", zap.String("type", events.TypeCartShared), zap.Error(err))
	}
	return share, nil
}

// ResolveShare returns the current state of the shared cart. Items added
// after the link was issued show up; the link does not freeze the cart.
func (s *ShareService) ResolveShare(ctx context.Context, token string) (*domain.SharedCart, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrValidation)
	}
	share, err := s.shares.FindShareByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find share: %w", err)
	}
	if share.Expired(s.now()) {
		return nil, ErrShareExpired
	}

	cart, err := s.carts.GetCart(ctx, share.CartID)
	if err != nil {
		return nil, fmt.Errorf("get shared cart: %w", err)
	}
	lines, err := s.carts.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	return &domain.SharedCart{View: AggregateCart(cart, lines), Share: share}, nil
}

func (s *ShareService) newToken(cartID string, now time.Time) (string, error) {
	buf := make([]byte, tokenRandomLength)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	seed := fmt.Sprintf("%s-%d-%s", cartID, now.UnixMilli(), hex.EncodeToString(buf))
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:tokenLength], nil
}
