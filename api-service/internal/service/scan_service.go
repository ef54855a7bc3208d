package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rei1089/ec-ring/api-service/internal/cache"
	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"github.com/rei1089/ec-ring/api-service/internal/events"
	"github.com/rei1089/ec-ring/api-service/internal/repository"
	"github.com/rei1089/ec-ring/pkg/barcode"
	"github.com/rei1089/ec-ring/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ResolutionRecorder counts resolution outcomes by label.
type ResolutionRecorder interface {
	ObserveResolution(result string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveResolution(string) {}

type ScanService struct {
	catalog  repository.CatalogRepository
	cache    cache.ResolutionCache
	events   events.Publisher
	sfg      singleflight.Group // one catalog lookup per barcode at a time
	recorder ResolutionRecorder
	log      *zap.Logger
}

func NewScanService(catalog repository.CatalogRepository, cache cache.ResolutionCache, pub events.Publisher, log *zap.Logger) *ScanService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ScanService{
		catalog:  catalog,
		cache:    cache,
		events:   pub,
		recorder: noopRecorder{},
		log:      log,
	}
}

// SetRecorder routes resolution outcomes to r. Call before serving traffic.
func (s *ScanService) SetRecorder(r ResolutionRecorder) {
	if r != nil {
		s.recorder = r
	}
}

// Resolve maps a raw barcode to a catalog product. It returns nil, nil when
// the barcode is well formed but unknown.
func (s *ScanService) Resolve(ctx context.Context, code string) (*domain.Product, error) {
	v := barcode.Validate(code)
	if !v.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBarcode, v.Err)
	}
	log := logger.FromContext(ctx, s.log)

	res, err, _ := s.sfg.Do(code, func() (interface{}, error) {
		product, err := s.cache.Get(ctx, code)
		if err == nil {
			s.recorder.ObserveResolution("cache_hit")
			return product, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn("resolution cache read failed", zap.String("barcode", code), zap.Error(err))
		}

		product, err = s.catalog.FindProductByBarcode(ctx, code)
		if err != nil {
			s.recorder.ObserveResolution("error")
			return nil, err
		}

		if err := s.cache.Set(ctx, code, product); err != nil {
			log.Warn("resolution cache write failed", zap.String("barcode", code), zap.Error(err))
		}

		if product != nil {
			s.recorder.ObserveResolution("found")
		} else {
			s.recorder.ObserveResolution("not_found")
			s.publish(ctx, log, events.Event{
				Type:    events.TypeScanUnresolved,
				Key:     code,
				Payload: events.ScanUnresolved{Barcode: code, Symbology: v.Symbology.String()},
			})
		}
		return product, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", code, err)
	}
	return res.(*domain.Product), nil
}

func (s *ScanService) publish(ctx context.Context, log *zap.Logger, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, e); err != nil {
		log.Warn("failed to publish event", zap.String("type", e.Type), zap.Error(err))
	}
}
