package service

import (
	"context"
	"sync"

	"github.com/rei1089/ec-ring/api-service/internal/cache"
	"github.com/rei1089/ec-ring/api-service/internal/domain"
	"github.com/rei1089/ec-ring/api-service/internal/events"
	"github.com/rei1089/ec-ring/api-service/internal/repository"
)

const (
	testUserID  = "11111111-1111-4111-8111-111111111111"
	testCartID  = "22222222-2222-4222-8222-222222222222"
	testItemID  = "33333333-3333-4333-8333-333333333333"
	testProduct = "6f1c2a10-0000-4000-8000-000000000001"
	testOfferID = "8b3e4c30-0000-4000-8000-000000000001"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func int64Ptr(i int64) *int64 { return &i }

// MockCatalog implements repository.CatalogRepository for testing
type MockCatalog struct {
	mu       sync.Mutex
	Products map[string]*domain.Product
	Err      error
	Calls    int
	Release  chan struct{} // when set, lookups block until it is closed
}

func (m *MockCatalog) FindProductByBarcode(_ context.Context, code string) (*domain.Product, error) {
	if m.Release != nil {
		<-m.Release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Products[code], nil
}

func (m *MockCatalog) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockCache implements cache.ResolutionCache for testing
type MockCache struct {
	mu      sync.Mutex
	Entries map[string]*domain.Product
	GetErr  error
	SetErr  error
}

func newMockCache() *MockCache {
	return &MockCache{Entries: make(map[string]*domain.Product)}
}

func (m *MockCache) Get(_ context.Context, barcode string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.Entries[barcode]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return p, nil
}

func (m *MockCache) Set(_ context.Context, barcode string, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Entries[barcode] = product
	return nil
}

func (m *MockCache) Delete(_ context.Context, barcode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Entries, barcode)
	return nil
}

// MockPublisher implements events.Publisher for testing
type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event
	Err    error
}

func (m *MockPublisher) Publish(_ context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return m.Err
}

func (m *MockPublisher) Close() error {
	return nil
}

func (m *MockPublisher) published() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.Events...)
}

// MockCartRepository implements repository.CartRepository for testing
type MockCartRepository struct {
	Cart    *domain.Cart
	Lines   []domain.CartLine
	Item    *domain.CartItem
	FindErr error
	AddErr  error
	UpdErr  error
	DelErr  error

	AddedTo   string             // captures the cart id passed to AddItem
	Added     domain.NewCartItem // captures the item passed to AddItem
	Updated   *domain.CartItemUpdate
	DeletedID string
}

func (m *MockCartRepository) FindActiveCart(_ context.Context, _ string) (*domain.Cart, error) {
	return m.Cart, m.FindErr
}

func (m *MockCartRepository) GetOrCreateActiveCart(_ context.Context, userID string) (*domain.Cart, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	if m.Cart == nil {
		m.Cart = &domain.Cart{ID: testCartID, UserID: userID, Status: domain.CartStatusActive}
	}
	return m.Cart, nil
}

func (m *MockCartRepository) GetCart(_ context.Context, cartID string) (*domain.Cart, error) {
	if m.Cart == nil || m.Cart.ID != cartID {
		return nil, repository.ErrCartNotFound
	}
	return m.Cart, nil
}

func (m *MockCartRepository) AddItem(_ context.Context, cartID string, item domain.NewCartItem) (*domain.CartItem, error) {
	m.AddedTo = cartID
	m.Added = item
	if m.AddErr != nil {
		return nil, m.AddErr
	}
	return &domain.CartItem{
		ID:              testItemID,
		CartID:          cartID,
		ProductID:       item.ProductID,
		Quantity:        item.Quantity,
		SelectedOfferID: item.SelectedOfferID,
	}, nil
}

func (m *MockCartRepository) UpdateItem(_ context.Context, itemID string, upd domain.CartItemUpdate) (*domain.CartItem, error) {
	m.Updated = &upd
	if m.UpdErr != nil {
		return nil, m.UpdErr
	}
	item := &domain.CartItem{ID: itemID, CartID: testCartID, ProductID: testProduct, Quantity: 1, Note: upd.Note}
	if upd.Quantity != nil {
		item.Quantity = *upd.Quantity
	}
	return item, nil
}

func (m *MockCartRepository) DeleteItem(_ context.Context, itemID string) error {
	m.DeletedID = itemID
	return m.DelErr
}

func (m *MockCartRepository) ListLines(_ context.Context, _ string) ([]domain.CartLine, error) {
	return m.Lines, nil
}

// MockShareRepository implements repository.ShareRepository for testing
type MockShareRepository struct {
	Shares    map[string]*domain.CartShare
	CreateErr []error // consumed one per CreateShare call
	Created   []*domain.CartShare
}

func (m *MockShareRepository) CreateShare(_ context.Context, share *domain.CartShare) error {
	m.Created = append(m.Created, share)
	if len(m.CreateErr) > 0 {
		err := m.CreateErr[0]
		m.CreateErr = m.CreateErr[1:]
		if err != nil {
			return err
		}
	}
	if m.Shares == nil {
		m.Shares = make(map[string]*domain.CartShare)
	}
	m.Shares[share.Token] = share
	return nil
}

func (m *MockShareRepository) FindShareByToken(_ context.Context, token string) (*domain.CartShare, error) {
	s, ok := m.Shares[token]
	if !ok {
		return nil, repository.ErrShareNotFound
	}
	return s, nil
}
