package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rei1089/ec-ring/api-service/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Scan  *ScanHandler
	Cart  *CartHandler
	Share *ShareHandler
	Ship  *ShipHandler

	// Health is pinged by GET /health; nil always reports ok.
	Health Pinger

	// Metrics, when set, instruments every route and serves GET /metrics.
	Metrics *metrics.Metrics
}

func NewRouter(h Handlers, cfg RouterConfig, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Compress(5))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(MaxBodySize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", healthHandler(h.Health))
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Post("/scan/resolve", h.Scan.Resolve)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.Cart.GetCart)
		r.Get("/quote", h.Cart.Quote)
		r.Post("/items", h.Cart.AddItem)
		r.Patch("/items/{id}", h.Cart.UpdateItem)
		r.Delete("/items/{id}", h.Cart.RemoveItem)
		r.Post("/share", h.Share.CreateShare)
		r.Get("/share", h.Share.GetShared)
	})

	r.Route("/ship", func(r chi.Router) {
		r.Post("/quote", h.Ship.Quote)
		r.Get("/countries", h.Ship.Countries)
	})

	return otelhttp.NewHandler(r, "api-service")
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				respondError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
