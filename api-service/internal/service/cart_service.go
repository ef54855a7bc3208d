package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"github.com/rei1089/ec-ring/api-service/internal/events"
	"github.com/rei1089/ec-ring/api-service/internal/repository"
	"github.com/rei1089/ec-ring/pkg/logger"
	"github.com/rei1089/ec-ring/pkg/shipping"
	"go.uber.org/zap"
)

type CartService struct {
	repo   repository.CartRepository
	events events.Publisher
	log    *zap.Logger
}

// CartQuote is a shipping estimate over everything in a user's active cart.
type CartQuote struct {
	Country            string         `json:"country"`
	Quote              shipping.Quote `json:"quote"`
	ItemCount          int            `json:"itemCount"`
	ItemsMissingWeight int            `json:"itemsMissingWeight"`
}

func NewCartService(repo repository.CartRepository, pub events.Publisher, log *zap.Logger) *CartService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{repo: repo, events: pub, log: log}
}

// GetCart returns the priced view of the user's active cart. A user with no
// cart gets an empty view with a nil Cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	if err := validateID("userId", userID); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindActiveCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find active cart: %w", err)
	}
	if cart == nil {
		return AggregateCart(nil, nil), nil
	}
	lines, err := s.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	return AggregateCart(cart, lines), nil
}

// AddItem puts a product in the user's active cart, creating the cart on
// first use. Adding a product already present with the same offer raises
// that line's quantity.
func (s *CartService) AddItem(ctx context.Context, userID string, in domain.NewCartItem) (*domain.CartItem, error) {
	if err := validateID("userId", userID); err != nil {
		return nil, err
	}
	if err := validateID("productId", in.ProductID); err != nil {
		return nil, err
	}
	if in.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if in.SelectedOfferID != nil {
		if err := validateID("selectedOfferId", *in.SelectedOfferID); err != nil {
			return nil, err
		}
	}

	cart, err := s.repo.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	item, err := s.repo.AddItem(ctx, cart.ID, in)
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}

	s.publish(ctx, events.Event{
		Type: events.TypeCartItemAdded,
		Key:  cart.ID,
		Payload: events.CartItemAdded{
			CartID:    cart.ID,
			UserID:    userID,
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Quantity:  in.Quantity,
		},
	})
	return item, nil
}

// UpdateItem changes quantity or note. A quantity below 1 deletes the line;
// the returned bool reports that removal and the item is nil.
func (s *CartService) UpdateItem(ctx context.Context, itemID string, upd domain.CartItemUpdate) (*domain.CartItem, bool, error) {
	if err := validateID("itemId", itemID); err != nil {
		return nil, false, err
	}
	if upd.Quantity == nil && upd.Note == nil {
		return nil, false, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if upd.Quantity != nil && *upd.Quantity < 1 {
		if err := s.RemoveItem(ctx, itemID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}
	item, err := s.repo.UpdateItem(ctx, itemID, upd)
	if err != nil {
		return nil, false, fmt.Errorf("update item: %w", err)
	}
	return item, false, nil
}

func (s *CartService) RemoveItem(ctx context.Context, itemID string) error {
	if err := validateID("itemId", itemID); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Quote estimates shipping for the user's active cart. Lines without a
// known weight contribute nothing and are counted in ItemsMissingWeight.
func (s *CartService) Quote(ctx context.Context, userID, country string) (*CartQuote, error) {
	view, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view.Cart == nil {
		return nil, repository.ErrCartNotFound
	}
	q, err := shipping.Calculate(country, float64(view.TotalWeightG))
	if err != nil {
		return nil, err
	}
	return &CartQuote{
		Country:            country,
		Quote:              q,
		ItemCount:          len(view.Items),
		ItemsMissingWeight: view.ItemsMissingWeight,
	}, nil
}

func (s *CartService) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, e); err != nil {
		logger.FromContext(ctx, s.log).Warn("failed to publish event", zap.String("type", e.Type), zap.Error(err))
	}
}

func validateID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %s must be a UUID", ErrValidation, field)
	}
	return nil
}
