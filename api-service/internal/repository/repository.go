package repository

import (
	"context"
	"errors"

	"github.com/rei1089/ec-ring/api-service/internal/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOfferNotFound   = errors.New("offer not found")
	ErrShareNotFound   = errors.New("share not found")
	ErrDuplicateToken  = errors.New("share token already exists")
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CatalogRepository interface {
	// FindProductByBarcode returns nil, nil when no product carries the code.
	FindProductByBarcode(ctx context.Context, code string) (*domain.Product, error)
}

type CartRepository interface {
	// FindActiveCart returns nil, nil when the user has no active cart.
	FindActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetOrCreateActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	// AddItem merges into an existing line for the same product and offer.
	AddItem(ctx context.Context, cartID string, item domain.NewCartItem) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, itemID string, upd domain.CartItemUpdate) (*domain.CartItem, error)
	DeleteItem(ctx context.Context, itemID string) error
	ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error)
}

type ShareRepository interface {
	CreateShare(ctx context.Context, share *domain.CartShare) error
	FindShareByToken(ctx context.Context, token string) (*domain.CartShare, error)
}

type RepoInterface interface {
	CatalogRepository
	CartRepository
	ShareRepository
	RunMigrations() error
	Ping(ctx context.Context) error
	Close() error
}
