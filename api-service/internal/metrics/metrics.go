// Package metrics exposes Prometheus instruments for the api-service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes recorded by ObserveResolution.
const (
	ResolutionCacheHit = "cache_hit"
	ResolutionFound    = "found"
	ResolutionNotFound = "not_found"
	ResolutionError    = "error"
)

type Config struct {
	ServiceName string
	Environment string
}

type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

// New registers the instruments on reg. A nil reg gets a fresh registry,
// which keeps tests independent of the default one.
func New(reg *prometheus.Registry, cfg Config) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "api-service"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "scancart_http_requests_total",
			Help:        "HTTP requests served, by route and status.",
			ConstLabels: constLabels,
		},
		[]string{"method", "route", "status"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "scancart_http_request_duration_seconds",
			Help:        "HTTP request latency.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "route"},
	)

	resolutions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "scancart_barcode_resolutions_total",
			Help:        "Barcode resolutions by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // cache_hit | found | not_found | error
	)

	reg.MustRegister(requests, duration, resolutions)

	return &Metrics{
		requests:    requests,
		duration:    duration,
		resolutions: resolutions,
		gatherer:    reg,
	}
}

func (m *Metrics) ObserveResolution(result string) {
	m.resolutions.WithLabelValues(result).Inc()
}

// Middleware records every request under its chi route pattern, so ids in
// paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
