package offline

import (
	"context"
	"sync"
	"time"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
)

// MemoryStorage implements Storage with in-memory slices. Contents are lost
// when the process exits.
type MemoryStorage struct {
	mu        sync.RWMutex
	scans     []domain.ScanRecord
	cartItems []domain.CartItemRecord
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) AppendScan(_ context.Context, rec domain.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanIndex(rec.ID) >= 0 {
		return ErrDuplicateID
	}
	rec.ResolvedProduct = copyProduct(rec.ResolvedProduct)
	s.scans = append(s.scans, rec)
	return nil
}

func (s *MemoryStorage) AppendCartItem(_ context.Context, rec domain.CartItemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cartIndex(rec.ID) >= 0 {
		return ErrDuplicateID
	}
	s.cartItems = append(s.cartItems, rec)
	return nil
}

func (s *MemoryStorage) ListScans(_ context.Context) ([]domain.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScanRecord, len(s.scans))
	for i, rec := range s.scans {
		rec.ResolvedProduct = copyProduct(rec.ResolvedProduct)
		out[i] = rec
	}
	return out, nil
}

func (s *MemoryStorage) ListCartItems(_ context.Context) ([]domain.CartItemRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CartItemRecord, len(s.cartItems))
	copy(out, s.cartItems)
	return out, nil
}

func (s *MemoryStorage) Status(_ context.Context, log domain.Log, id string) (domain.Status, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch log {
	case domain.LogScans:
		if i := s.scanIndex(id); i >= 0 {
			return s.scans[i].Status, true, nil
		}
	case domain.LogCartItems:
		if i := s.cartIndex(id); i >= 0 {
			return s.cartItems[i].Status, true, nil
		}
	default:
		return "", false, ErrUnknownLog
	}
	return "", false, nil
}

func (s *MemoryStorage) Transition(_ context.Context, log domain.Log, t domain.Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch log {
	case domain.LogScans:
		i := s.scanIndex(t.ID)
		if i < 0 || s.scans[i].Status != t.From {
			return false, nil
		}
		rec := &s.scans[i]
		rec.Status = t.To
		rec.FailureReason = t.Reason
		rec.UpdatedAt = t.At
		if t.Product != nil {
			rec.ResolvedProduct = copyProduct(t.Product)
		}
		return true, nil
	case domain.LogCartItems:
		i := s.cartIndex(t.ID)
		if i < 0 || s.cartItems[i].Status != t.From {
			return false, nil
		}
		rec := &s.cartItems[i]
		rec.Status = t.To
		rec.FailureReason = t.Reason
		rec.UpdatedAt = t.At
		return true, nil
	default:
		return false, ErrUnknownLog
	}
}

func (s *MemoryStorage) SetCartItemQuantity(_ context.Context, id string, quantity int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cartIndex(id)
	if i < 0 || s.cartItems[i].Status != domain.StatusPending {
		return false, nil
	}
	s.cartItems[i].Quantity = quantity
	s.cartItems[i].UpdatedAt = at
	return true, nil
}

func (s *MemoryStorage) Delete(_ context.Context, log domain.Log, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch log {
	case domain.LogScans:
		if i := s.scanIndex(id); i >= 0 {
			s.scans = append(s.scans[:i], s.scans[i+1:]...)
		}
	case domain.LogCartItems:
		if i := s.cartIndex(id); i >= 0 {
			s.cartItems = append(s.cartItems[:i], s.cartItems[i+1:]...)
		}
	default:
		return ErrUnknownLog
	}
	return nil
}

func (s *MemoryStorage) PruneTerminal(_ context.Context, log domain.Log, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	switch log {
	case domain.LogScans:
		kept := s.scans[:0]
		for _, rec := range s.scans {
			if rec.Status.IsTerminal() && rec.UpdatedAt.Before(before) {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		s.scans = kept
	case domain.LogCartItems:
		kept := s.cartItems[:0]
		for _, rec := range s.cartItems {
			if rec.Status.IsTerminal() && rec.UpdatedAt.Before(before) {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		s.cartItems = kept
	default:
		return 0, ErrUnknownLog
	}
	return removed, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

// callers must hold s.mu
func (s *MemoryStorage) scanIndex(id string) int {
	for i := range s.scans {
		if s.scans[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStorage) cartIndex(id string) int {
	for i := range s.cartItems {
		if s.cartItems[i].ID == id {
			return i
		}
	}
	return -1
}

func copyProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
