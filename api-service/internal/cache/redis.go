package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rei1089/ec-ring/api-service/internal/domain"
)

const (
	defaultBaseTTL     = 15 * time.Minute
	defaultNotFoundTTL = time.Minute
	maxJitterMinutes   = 5
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:      client,
		baseTTL:     defaultBaseTTL,
		notFoundTTL: defaultNotFoundTTL,
	}
}

type RedisCache struct {
	client      *redis.Client
	baseTTL     time.Duration
	notFoundTTL time.Duration
}

var _ ResolutionCache = (*RedisCache)(nil)

// entry wraps the product so that a cached miss ({"product":null}) can be
// told apart from an absent key.
type entry struct {
	Product *domain.Product `json:"product"`
}

func (r *RedisCache) Get(ctx context.Context, barcode string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, cacheKey(barcode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return e.Product, nil
}

// Set stores a hit for baseTTL plus up to five minutes of jitter, and a miss
// for the shorter notFoundTTL so newly catalogued products show up quickly.
func (r *RedisCache) Set(ctx context.Context, barcode string, product *domain.Product) error {
	data, err := json.Marshal(entry{Product: product})
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	ttl := r.notFoundTTL
	if product != nil {
		jitter := time.Duration(rand.Intn(maxJitterMinutes)) * time.Minute
		ttl = r.baseTTL + jitter
	}
	if err := r.client.Set(ctx, cacheKey(barcode), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, barcode string) error {
	if err := r.client.Del(ctx, cacheKey(barcode)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(barcode string) string {
	return fmt.Sprintf("barcode:%s", barcode)
}
