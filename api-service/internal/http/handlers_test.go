package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"github.com/rei1089/ec-ring/api-service/internal/metrics"
	"github.com/rei1089/ec-ring/api-service/internal/repository"
	"github.com/rei1089/ec-ring/api-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ScanResolverMock struct {
	product *domain.Product
	err     error
	got     string
}

func (m *ScanResolverMock) Resolve(_ context.Context, raw string) (*domain.Product, error) {
	m.got = raw
	return m.product, m.err
}

type CartManagerMock struct {
	view    *domain.CartView
	item    *domain.CartItem
	removed bool
	quote   *service.CartQuote
	err     error

	gotUser   string
	gotItemID string
	gotNew    domain.NewCartItem
	gotUpdate domain.CartItemUpdate
}

func (m *CartManagerMock) GetCart(_ context.Context, userID string) (*domain.CartView, error) {
	m.gotUser = userID
	return m.view, m.err
}

func (m *CartManagerMock) AddItem(_ context.Context, userID string, in domain.NewCartItem) (*domain.CartItem, error) {
	m.gotUser = userID
	m.gotNew = in
	return m.item, m.err
}

func (m *CartManagerMock) UpdateItem(_ context.Context, itemID string, upd domain.CartItemUpdate) (*domain.CartItem, bool, error) {
	m.gotItemID = itemID
	m.gotUpdate = upd
	return m.item, m.removed, m.err
}

func (m *CartManagerMock) RemoveItem(_ context.Context, itemID string) error {
	m.gotItemID = itemID
	return m.err
}

func (m *CartManagerMock) Quote(_ context.Context, userID, _ string) (*service.CartQuote, error) {
	m.gotUser = userID
	return m.quote, m.err
}

type ShareIssuerMock struct {
	share  *domain.CartShare
	shared *domain.SharedCart
	err    error
	gotTTL *time.Duration
}

func (m *ShareIssuerMock) CreateShare(_ context.Context, _ string, ttl *time.Duration) (*domain.CartShare, error) {
	m.gotTTL = ttl
	return m.share, m.err
}

func (m *ShareIssuerMock) ResolveShare(_ context.Context, _ string) (*domain.SharedCart, error) {
	return m.shared, m.err
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(scan ScanResolver, carts CartManager, shares ShareIssuer, health Pinger) http.Handler {
	log := zap.NewNop()
	return NewRouter(Handlers{
		Scan:   NewScanHandler(scan, 5*time.Second, log),
		Cart:   NewCartHandler(carts, 5*time.Second, log),
		Share:  NewShareHandler(shares, "http://localhost:3000/", 5*time.Second, log),
		Ship:   NewShipHandler(log),
		Health: health,
	}, RouterConfig{RequestTimeout: 10 * time.Second, MaxRequestBodySize: 1 << 20}, log)
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestResolve_Found(t *testing.T) {
	scan := &ScanResolverMock{product: &domain.Product{ID: "p1", Title: "Pocky"}}
	h := newTestRouter(scan, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/scan/resolve", map[string]string{"rawBarcode": "4901234567894"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4901234567894", scan.got)
	var resp ResolveResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Product)
	assert.Equal(t, "Pocky", resp.Product.Title)
}

func TestResolve_NotFoundIsNullProduct(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/scan/resolve", map[string]string{"rawBarcode": "4006381333931"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"product":null}`, rec.Body.String())
}

func TestResolve_InvalidBarcode(t *testing.T) {
	scan := &ScanResolverMock{err: fmt.Errorf("%w: bad check digit", service.ErrInvalidBarcode)}
	h := newTestRouter(scan, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/scan/resolve", map[string]string{"rawBarcode": "4901234567890"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "invalid_barcode", resp.Code)
	assert.Contains(t, resp.Details, "bad check digit")
}

func TestResolve_InvalidJSON(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/scan/resolve", "not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Code)
}

func TestResolve_InternalErrorHidesDetails(t *testing.T) {
	scan := &ScanResolverMock{err: errors.New("pq: connection refused")}
	h := newTestRouter(scan, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/scan/resolve", map[string]string{"rawBarcode": "4901234567894"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal_error", resp.Code)
	assert.Empty(t, resp.Details)
}

func TestGetCart(t *testing.T) {
	carts := &CartManagerMock{view: &domain.CartView{
		Cart:       &domain.Cart{ID: "c1"},
		Items:      []domain.LineItem{},
		ShopGroups: []domain.ShopGroup{{ShopName: "Lawson", Subtotal: 396}},
		GrandTotal: 396,
	}}
	h := newTestRouter(&ScanResolverMock{}, carts, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodGet, "/cart?userId=u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", carts.gotUser)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.EqualValues(t, 396, body["grandTotal"])
	assert.Contains(t, body, "shopGroups")
	assert.Contains(t, body, "items")
}

func TestGetCart_MissingUser(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodGet, "/cart", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_user_id", decodeError(t, rec).Code)
}

func TestAddItem_Success(t *testing.T) {
	carts := &CartManagerMock{item: &domain.CartItem{ID: "i1", Quantity: 2}}
	h := newTestRouter(&ScanResolverMock{}, carts, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/cart/items", map[string]interface{}{
		"productId":       "p1",
		"quantity":        2,
		"userId":          "u1",
		"selectedOfferId": "o1",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", carts.gotUser)
	assert.Equal(t, "p1", carts.gotNew.ProductID)
	assert.Equal(t, 2, carts.gotNew.Quantity)
	require.NotNil(t, carts.gotNew.SelectedOfferID)
	assert.Equal(t, "o1", *carts.gotNew.SelectedOfferID)

	var resp CartItemResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "i1", resp.CartItem.ID)
}

func TestAddItem_MissingQuantity(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/cart/items", map[string]string{"productId": "p1", "userId": "u1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decodeError(t, rec).Code)
}

func TestAddItem_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: quantity must be at least 1", service.ErrValidation), http.StatusBadRequest, "validation_error"},
		{repository.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		{repository.ErrOfferNotFound, http.StatusNotFound, "offer_not_found"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{err: tt.err}, &ShareIssuerMock{}, nil)

			rec := do(t, h, http.MethodPost, "/cart/items", map[string]interface{}{"productId": "p1", "quantity": 1, "userId": "u1"})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestUpdateItem(t *testing.T) {
	carts := &CartManagerMock{item: &domain.CartItem{ID: "i1", Quantity: 4}}
	h := newTestRouter(&ScanResolverMock{}, carts, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPatch, "/cart/items/i1", map[string]interface{}{"quantity": 4, "note": "gift"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "i1", carts.gotItemID)
	require.NotNil(t, carts.gotUpdate.Quantity)
	assert.Equal(t, 4, *carts.gotUpdate.Quantity)
	assert.Equal(t, "gift", *carts.gotUpdate.Note)
}

func TestUpdateItem_Removed(t *testing.T) {
	carts := &CartManagerMock{removed: true}
	h := newTestRouter(&ScanResolverMock{}, carts, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPatch, "/cart/items/i1", map[string]interface{}{"quantity": 0})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"removed":true}`, rec.Body.String())
}

func TestRemoveItem(t *testing.T) {
	carts := &CartManagerMock{}
	h := newTestRouter(&ScanResolverMock{}, carts, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodDelete, "/cart/items/i9", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "i9", carts.gotItemID)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	carts.err = repository.ErrItemNotFound
	rec = do(t, h, http.MethodDelete, "/cart/items/i9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartQuote(t *testing.T) {
	carts := &CartManagerMock{quote: &service.CartQuote{Country: "US", ItemCount: 2}}
	h := newTestRouter(&ScanResolverMock{}, carts, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodGet, "/cart/quote?userId=u1&country=US", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", carts.gotUser)

	rec = do(t, h, http.MethodGet, "/cart/quote?userId=u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateShare(t *testing.T) {
	expires := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	shares := &ShareIssuerMock{share: &domain.CartShare{Token: "0123456789abcdef", ExpiresAt: expires}}
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, shares, nil)

	rec := do(t, h, http.MethodPost, "/cart/share", map[string]interface{}{"userId": "u1", "expiresIn": 3600000})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, shares.gotTTL)
	assert.Equal(t, time.Hour, *shares.gotTTL)

	var resp CreateShareResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "0123456789abcdef", resp.ShareLink.Token)
	assert.Equal(t, "http://localhost:3000/cart/shared/0123456789abcdef", resp.ShareLink.URL)
	assert.True(t, expires.Equal(resp.ShareLink.ExpiresAt))
}

func TestCreateShare_ExpiresInTooLarge(t *testing.T) {
	shares := &ShareIssuerMock{share: &domain.CartShare{Token: "t"}}
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, shares, nil)

	for _, ms := range []int64{366 * 24 * 3600 * 1000, 9300000000000000, math.MaxInt64} {
		rec := do(t, h, http.MethodPost, "/cart/share", map[string]interface{}{"userId": "u1", "expiresIn": ms})
		assert.Equal(t, http.StatusBadRequest, rec.Code, ms)
		assert.Equal(t, "validation_error", decodeError(t, rec).Code)
	}
	assert.Nil(t, shares.gotTTL)

	year := int64(365 * 24 * 3600 * 1000)
	rec := do(t, h, http.MethodPost, "/cart/share", map[string]interface{}{"userId": "u1", "expiresIn": year})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, shares.gotTTL)
	assert.Equal(t, 365*24*time.Hour, *shares.gotTTL)
}

func TestCreateShare_DefaultTTL(t *testing.T) {
	shares := &ShareIssuerMock{share: &domain.CartShare{Token: "t"}}
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, shares, nil)

	rec := do(t, h, http.MethodPost, "/cart/share", map[string]string{"userId": "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, shares.gotTTL)
}

func TestGetShared(t *testing.T) {
	shares := &ShareIssuerMock{shared: &domain.SharedCart{
		View:  &domain.CartView{Cart: &domain.Cart{ID: "c1"}, GrandTotal: 178},
		Share: &domain.CartShare{CreatedBy: "u1"},
	}}
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, shares, nil)

	rec := do(t, h, http.MethodGet, "/cart/share?token=abc", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.EqualValues(t, 178, body["grandTotal"])
	info, ok := body["shareInfo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "u1", info["createdBy"])
}

func TestGetShared_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{repository.ErrShareNotFound, http.StatusNotFound},
		{service.ErrShareExpired, http.StatusGone},
	}
	for _, tt := range tests {
		h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{err: tt.err}, nil)
		rec := do(t, h, http.MethodGet, "/cart/share?token=abc", nil)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}

	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)
	rec := do(t, h, http.MethodGet, "/cart/share", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShipQuote(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/ship/quote", map[string]interface{}{"country": "US", "totalWeightG": 1000})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body, "shipping_cost_jpy")
	assert.Contains(t, body, "estimated_days")
	assert.Contains(t, body, "breakdown")
}

func TestShipQuote_Errors(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodPost, "/ship/quote", map[string]interface{}{"country": "XX", "totalWeightG": 1000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_destination", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/ship/quote", map[string]interface{}{"country": "US", "totalWeightG": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_weight", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/ship/quote", map[string]interface{}{"country": "US", "totalWeightG": 1e20})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_weight", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/ship/quote", map[string]interface{}{"country": "US"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShipCountries(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)

	rec := do(t, h, http.MethodGet, "/ship/countries", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CountriesResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Countries, 7)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, nil)
	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := pingerFunc(func(context.Context) error { return errors.New("down") })
	h = newTestRouter(&ScanResolverMock{}, &CartManagerMock{}, &ShareIssuerMock{}, down)
	rec = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	log := zap.NewNop()
	m := metrics.New(nil, metrics.Config{Environment: "test"})
	h := NewRouter(Handlers{
		Scan:    NewScanHandler(&ScanResolverMock{}, 5*time.Second, log),
		Cart:    NewCartHandler(&CartManagerMock{}, 5*time.Second, log),
		Share:   NewShareHandler(&ShareIssuerMock{}, "http://localhost:3000", 5*time.Second, log),
		Ship:    NewShipHandler(log),
		Metrics: m,
	}, RouterConfig{RequestTimeout: 10 * time.Second}, log)

	rec := do(t, h, http.MethodGet, "/ship/countries", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/ship/countries"`)
}
