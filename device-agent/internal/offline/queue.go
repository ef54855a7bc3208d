// Package offline holds the device-local queue of scans and cart additions
// captured while the device had no connectivity.
package offline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrEmptyBarcode      = errors.New("barcode is required")
	ErrEmptyProductID    = errors.New("product id is required")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidStatus     = errors.New("invalid queue status")
	ErrIllegalTransition = errors.New("illegal transition of queue record status")
	ErrRecordSettled     = errors.New("queue record is no longer pending")
)

// IDGenerator returns a fresh unique record id.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

type Queue struct {
	store Storage
	ids   IDGenerator
	now   func() time.Time
	log   *zap.Logger
}

func NewQueue(store Storage, ids IDGenerator, log *zap.Logger) *Queue {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		store: store,
		ids:   ids,
		now:   time.Now,
		log:   log,
	}
}

// timestamps are stored with millisecond precision
func (q *Queue) timestamp() time.Time {
	return q.now().UTC().Truncate(time.Millisecond)
}

func (q *Queue) EnqueueScan(ctx context.Context, barcode string) (string, error) {
	if strings.TrimSpace(barcode) == "" {
		return "", ErrEmptyBarcode
	}
	now := q.timestamp()
	rec := domain.ScanRecord{
		ID:         q.ids.NewID(),
		Barcode:    barcode,
		CapturedAt: now,
		UpdatedAt:  now,
		Status:     domain.StatusPending,
	}
	if err := q.store.AppendScan(ctx, rec); err != nil {
		return "", fmt.Errorf("enqueue scan: %w", err)
	}
	q.log.Debug("scan queued", zap.String("id", rec.ID), zap.String("barcode", barcode))
	return rec.ID, nil
}

func (q *Queue) EnqueueCartItem(ctx context.Context, productID string, quantity int) (string, error) {
	if strings.TrimSpace(productID) == "" {
		return "", ErrEmptyProductID
	}
	if quantity < 1 {
		return "", ErrInvalidQuantity
	}
	now := q.timestamp()
	rec := domain.CartItemRecord{
		ID:         q.ids.NewID(),
		ProductID:  productID,
		Quantity:   quantity,
		CapturedAt: now,
		UpdatedAt:  now,
		Status:     domain.StatusPending,
	}
	if err := q.store.AppendCartItem(ctx, rec); err != nil {
		return "", fmt.Errorf("enqueue cart item: %w", err)
	}
	q.log.Debug("cart item queued", zap.String("id", rec.ID), zap.String("product_id", productID), zap.Int("quantity", quantity))
	return rec.ID, nil
}

// UpdateStatus moves a record to status. Unknown ids are ignored. A record
// that already reached synced or failed cannot move again.
func (q *Queue) UpdateStatus(ctx context.Context, log domain.Log, id string, status domain.Status, reason string) error {
	return q.transition(ctx, log, domain.Transition{ID: id, To: status, Reason: reason})
}

// MarkScanSynced settles a scan as synced and attaches the resolved product,
// which may be nil when the catalog had no match.
func (q *Queue) MarkScanSynced(ctx context.Context, id string, product *domain.Product) error {
	return q.transition(ctx, domain.LogScans, domain.Transition{ID: id, To: domain.StatusSynced, Product: product})
}

func (q *Queue) transition(ctx context.Context, log domain.Log, t domain.Transition) error {
	if !log.Valid() {
		return ErrUnknownLog
	}
	if !t.To.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.To)
	}

	current, found, err := q.store.Status(ctx, log, t.ID)
	if err != nil {
		return fmt.Errorf("read status of %s: %w", t.ID, err)
	}
	if !found || current == t.To {
		return nil
	}
	if !current.CanTransitionTo(t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, t.To)
	}

	t.From = current
	t.At = q.timestamp()
	if t.To != domain.StatusFailed {
		t.Reason = ""
	}
	ok, err := q.store.Transition(ctx, log, t)
	if err != nil {
		return fmt.Errorf("update status of %s: %w", t.ID, err)
	}
	if !ok {
		// another writer settled or removed the record between the read and the write
		return fmt.Errorf("%w: %s changed concurrently", ErrIllegalTransition, t.ID)
	}
	return nil
}

// SetCartItemQuantity changes the quantity of a pending cart record. A
// quantity below 1 removes the record instead.
func (q *Queue) SetCartItemQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		return q.Remove(ctx, domain.LogCartItems, id)
	}
	ok, err := q.store.SetCartItemQuantity(ctx, id, quantity, q.timestamp())
	if err != nil {
		return fmt.Errorf("set quantity of %s: %w", id, err)
	}
	if ok {
		return nil
	}
	_, found, err := q.store.Status(ctx, domain.LogCartItems, id)
	if err != nil {
		return fmt.Errorf("read status of %s: %w", id, err)
	}
	if found {
		return ErrRecordSettled
	}
	return nil
}

func (q *Queue) Remove(ctx context.Context, log domain.Log, id string) error {
	if !log.Valid() {
		return ErrUnknownLog
	}
	if err := q.store.Delete(ctx, log, id); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

func (q *Queue) Scans(ctx context.Context) ([]domain.ScanRecord, error) {
	return q.store.ListScans(ctx)
}

func (q *Queue) CartItems(ctx context.Context) ([]domain.CartItemRecord, error) {
	return q.store.ListCartItems(ctx)
}

func (q *Queue) PendingScans(ctx context.Context) ([]domain.ScanRecord, error) {
	all, err := q.store.ListScans(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]domain.ScanRecord, 0, len(all))
	for _, rec := range all {
		if rec.Status == domain.StatusPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

func (q *Queue) PendingCartItems(ctx context.Context) ([]domain.CartItemRecord, error) {
	all, err := q.store.ListCartItems(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]domain.CartItemRecord, 0, len(all))
	for _, rec := range all {
		if rec.Status == domain.StatusPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// Prune deletes settled records of both logs whose last update is older than
// retention. Pending records are never pruned.
func (q *Queue) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	before := q.timestamp().Add(-retention)
	var total int64
	for _, log := range []domain.Log{domain.LogScans, domain.LogCartItems} {
		n, err := q.store.PruneTerminal(ctx, log, before)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", log, err)
		}
		total += n
	}
	if total > 0 {
		q.log.Info("pruned settled queue records", zap.Int64("count", total), zap.Duration("retention", retention))
	}
	return total, nil
}
