package cache

import (
	"context"
	"errors"

	"github.com/rei1089/ec-ring/api-service/internal/domain"
)

// ResolutionCache memoizes barcode lookups. A nil product is a valid cached
// answer meaning the barcode is not in the catalog.
type ResolutionCache interface {
	Get(ctx context.Context, barcode string) (*domain.Product, error)
	Set(ctx context.Context, barcode string, product *domain.Product) error
	Delete(ctx context.Context, barcode string) error
}

var ErrCacheMiss = errors.New("cache miss")
