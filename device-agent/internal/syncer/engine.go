// Package syncer drains the offline queue against the backend once the
// device is back online.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	"github.com/rei1089/ec-ring/device-agent/internal/offline"
	"go.uber.org/zap"
)

// Remote is the backend as seen by the engine.
type Remote interface {
	// ResolveBarcode returns nil, nil when the catalog has no match.
	ResolveBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	AddCartItem(ctx context.Context, productID string, quantity int) error
}

type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// LogReport is the outcome of one drain for a single log.
type LogReport struct {
	Synced []string  `json:"synced"`
	Failed []Failure `json:"failed"`
}

func (r LogReport) Attempted() int {
	return len(r.Synced) + len(r.Failed)
}

type Report struct {
	Scans      LogReport `json:"scans"`
	CartItems  LogReport `json:"cart_items"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r Report) Attempted() int {
	return r.Scans.Attempted() + r.CartItems.Attempted()
}

func (r Report) FailedCount() int {
	return len(r.Scans.Failed) + len(r.CartItems.Failed)
}

// Engine uploads pending queue records in insertion order. A failing record
// is marked failed and the drain moves on; nothing is retried.
type Engine struct {
	mu     sync.Mutex
	queue  *offline.Queue
	remote Remote
	log    *zap.Logger
	now    func() time.Time
}

func NewEngine(queue *offline.Queue, remote Remote, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		queue:  queue,
		remote: remote,
		log:    log,
		now:    time.Now,
	}
}

// Drain processes every pending record of both logs. Drains are serialized,
// so a second caller waits and then only sees what is still pending.
// Cancelling ctx stops the drain: a record whose call was interrupted is
// marked failed and records not yet reached stay pending.
func (e *Engine) Drain(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{StartedAt: e.now()}

	scans, err := e.drainScans(ctx)
	report.Scans = scans
	if err != nil {
		report.FinishedAt = e.now()
		return report, err
	}

	items, err := e.drainCartItems(ctx)
	report.CartItems = items
	report.FinishedAt = e.now()
	if err != nil {
		return report, err
	}

	if report.Attempted() > 0 {
		e.log.Info("offline queue drained",
			zap.Int("scans_synced", len(report.Scans.Synced)),
			zap.Int("scans_failed", len(report.Scans.Failed)),
			zap.Int("cart_items_synced", len(report.CartItems.Synced)),
			zap.Int("cart_items_failed", len(report.CartItems.Failed)),
		)
	}
	return report, nil
}

func (e *Engine) drainScans(ctx context.Context) (LogReport, error) {
	var out LogReport

	pending, err := e.queue.PendingScans(ctx)
	if err != nil {
		return out, err
	}

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		product, callErr := e.remote.ResolveBarcode(ctx, rec.Barcode)
		if callErr != nil && ctx.Err() != nil {
			// The request may already have reached the backend, so the record
			// is settled rather than sent again by the next drain.
			reason := callErr.Error()
			if e.settle(ctx, domain.LogScans, rec.ID, domain.StatusFailed, reason) {
				out.Failed = append(out.Failed, Failure{ID: rec.ID, Reason: reason})
			}
			return out, ctx.Err()
		}

		if callErr != nil {
			reason := callErr.Error()
			if e.settle(ctx, domain.LogScans, rec.ID, domain.StatusFailed, reason) {
				out.Failed = append(out.Failed, Failure{ID: rec.ID, Reason: reason})
			}
			continue
		}

		if err := e.queue.MarkScanSynced(context.WithoutCancel(ctx), rec.ID, product); err != nil {
			e.logSettleError(domain.LogScans, rec.ID, err)
			continue
		}
		out.Synced = append(out.Synced, rec.ID)
	}
	return out, nil
}

func (e *Engine) drainCartItems(ctx context.Context) (LogReport, error) {
	var out LogReport

	pending, err := e.queue.PendingCartItems(ctx)
	if err != nil {
		return out, err
	}

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		callErr := e.remote.AddCartItem(ctx, rec.ProductID, rec.Quantity)
		if callErr != nil && ctx.Err() != nil {
			// The request may already have reached the backend, so the record
			// is settled rather than sent again by the next drain.
			reason := callErr.Error()
			if e.settle(ctx, domain.LogCartItems, rec.ID, domain.StatusFailed, reason) {
				out.Failed = append(out.Failed, Failure{ID: rec.ID, Reason: reason})
			}
			return out, ctx.Err()
		}

		if callErr != nil {
			reason := callErr.Error()
			if e.settle(ctx, domain.LogCartItems, rec.ID, domain.StatusFailed, reason) {
				out.Failed = append(out.Failed, Failure{ID: rec.ID, Reason: reason})
			}
			continue
		}

		if e.settle(ctx, domain.LogCartItems, rec.ID, domain.StatusSynced, "") {
			out.Synced = append(out.Synced, rec.ID)
		}
	}
	return out, nil
}

// settle records the outcome of a call that was already made, so it ignores
// cancellation of the drain.
func (e *Engine) settle(ctx context.Context, log domain.Log, id string, status domain.Status, reason string) bool {
	if err := e.queue.UpdateStatus(context.WithoutCancel(ctx), log, id, status, reason); err != nil {
		e.logSettleError(log, id, err)
		return false
	}
	return true
}

func (e *Engine) logSettleError(log domain.Log, id string, err error) {
	if errors.Is(err, offline.ErrIllegalTransition) {
		e.log.Warn("queue record settled by another writer", zap.String("log", string(log)), zap.String("id", id))
		return
	}
	e.log.Error("failed to record sync outcome", zap.String("log", string(log)), zap.String("id", id), zap.Error(err))
}
