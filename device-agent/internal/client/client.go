// Package client talks to the api-service over HTTP on behalf of the device.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	"github.com/rei1089/ec-ring/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether retrying later could succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is a network failure, an open breaker or a
// retryable status. Validation answers from the backend are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return true
}

type Config struct {
	BaseURL string
	UserID  string
	Timeout time.Duration
	Breaker circuitbreaker.Settings
}

type Client struct {
	baseURL string
	userID  string
	http    *http.Client
	probe   *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.DefaultSettings("api-service")
	}
	if cfg.Breaker.IsSuccessful == nil {
		// a 4xx is a healthy backend refusing the request
		cfg.Breaker.IsSuccessful = func(err error) bool {
			return err == nil || !IsTransient(err)
		}
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		userID:  cfg.UserID,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		probe:   &http.Client{Timeout: 3 * time.Second, Transport: transport},
		breaker: circuitbreaker.New[[]byte](cfg.Breaker, log),
		log:     log,
	}
}

type resolveRequest struct {
	RawBarcode string `json:"rawBarcode"`
}

type resolveResponse struct {
	Product *domain.Product `json:"product"`
}

// ResolveBarcode returns nil, nil when the backend knows no product for the
// barcode.
func (c *Client) ResolveBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	body, err := c.do(ctx, http.MethodPost, "/scan/resolve", resolveRequest{RawBarcode: barcode})
	if err != nil {
		return nil, err
	}

	var resp resolveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode resolve response: %w", err)
	}
	return resp.Product, nil
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"userId"`
}

func (c *Client) AddCartItem(ctx context.Context, productID string, quantity int) error {
	_, err := c.do(ctx, http.MethodPost, "/cart/items", addCartItemRequest{
		ProductID: productID,
		Quantity:  quantity,
		UserID:    c.userID,
	})
	return err
}

// Online probes GET /health. It bypasses the breaker so a recovered backend
// is noticed while the breaker is still open.
func (c *Client) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		c.log.Debug("health probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
		}
		return body, nil
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	return er.Error
}
