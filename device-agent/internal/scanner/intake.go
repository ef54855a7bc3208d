// Package scanner turns raw barcode reads into catalog lookups, or into
// queued work while the device is offline.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
	"github.com/rei1089/ec-ring/device-agent/internal/offline"
	"github.com/rei1089/ec-ring/device-agent/internal/syncer"
	"github.com/rei1089/ec-ring/pkg/barcode"
	"go.uber.org/zap"
)

var ErrInvalidBarcode = errors.New("invalid barcode")

type Outcome string

const (
	OutcomeResolved  Outcome = "resolved"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeQueued    Outcome = "queued"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeAdded     Outcome = "added"
)

type ScanResult struct {
	Barcode   string
	Symbology barcode.Symbology
	Outcome   Outcome
	Product   *domain.Product

	// QueueID is set when the scan was queued for a later sync.
	QueueID string
}

type CartResult struct {
	Outcome Outcome
	QueueID string
}

type Intake struct {
	queue    *offline.Queue
	remote   syncer.Remote
	probe    syncer.ConnectivityProbe
	debounce *barcode.Debouncer
	log      *zap.Logger
}

func NewIntake(queue *offline.Queue, remote syncer.Remote, probe syncer.ConnectivityProbe, debounce *barcode.Debouncer, log *zap.Logger) *Intake {
	if debounce == nil {
		debounce = barcode.NewDebouncer(barcode.DefaultDebounceWindow, nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Intake{
		queue:    queue,
		remote:   remote,
		probe:    probe,
		debounce: debounce,
		log:      log,
	}
}

// Scan handles one read from the camera. Invalid codes never reach the queue
// or the network. A remote failure while online is returned to the caller
// and the code may be scanned again straight away.
func (in *Intake) Scan(ctx context.Context, code string) (ScanResult, error) {
	v := barcode.Validate(code)
	result := ScanResult{Barcode: code, Symbology: v.Symbology}
	if !v.Valid {
		return result, fmt.Errorf("%w: %v", ErrInvalidBarcode, v.Err)
	}

	if !in.debounce.Accept(code) {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	if !in.probe.Online(ctx) {
		id, err := in.queue.EnqueueScan(ctx, code)
		if err != nil {
			in.debounce.Reset()
			return result, err
		}
		in.log.Info("offline, scan queued", zap.String("barcode", code), zap.String("id", id))
		result.Outcome = OutcomeQueued
		result.QueueID = id
		return result, nil
	}

	product, err := in.remote.ResolveBarcode(ctx, code)
	if err != nil {
		in.debounce.Reset()
		return result, fmt.Errorf("resolve %s: %w", code, err)
	}
	if product == nil {
		result.Outcome = OutcomeNotFound
		return result, nil
	}
	result.Outcome = OutcomeResolved
	result.Product = product
	return result, nil
}

func (in *Intake) AddToCart(ctx context.Context, productID string, quantity int) (CartResult, error) {
	if strings.TrimSpace(productID) == "" {
		return CartResult{}, offline.ErrEmptyProductID
	}
	if quantity < 1 {
		return CartResult{}, offline.ErrInvalidQuantity
	}

	if !in.probe.Online(ctx) {
		id, err := in.queue.EnqueueCartItem(ctx, productID, quantity)
		if err != nil {
			return CartResult{}, err
		}
		in.log.Info("offline, cart item queued", zap.String("product_id", productID), zap.String("id", id))
		return CartResult{Outcome: OutcomeQueued, QueueID: id}, nil
	}

	if err := in.remote.AddCartItem(ctx, productID, quantity); err != nil {
		return CartResult{}, fmt.Errorf("add %s to cart: %w", productID, err)
	}
	return CartResult{Outcome: OutcomeAdded}, nil
}
