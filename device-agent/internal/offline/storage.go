package offline

import (
	"context"
	"errors"
	"time"

	"github.com/rei1089/ec-ring/device-agent/internal/domain"
)

var (
	ErrUnknownLog  = errors.New("unknown offline log")
	ErrDuplicateID = errors.New("queue record id already exists")
)

// Storage is the device-local persistence behind Queue. Implementations keep
// each log in insertion order and make every method atomic on its own.
type Storage interface {
	AppendScan(ctx context.Context, rec domain.ScanRecord) error
	AppendCartItem(ctx context.Context, rec domain.CartItemRecord) error
	ListScans(ctx context.Context) ([]domain.ScanRecord, error)
	ListCartItems(ctx context.Context) ([]domain.CartItemRecord, error)

	// Status returns the current status of a record; found is false when the
	// id is not in the log.
	Status(ctx context.Context, log domain.Log, id string) (status domain.Status, found bool, err error)
	// Transition applies t only if the record is still in t.From and reports
	// whether it did.
	Transition(ctx context.Context, log domain.Log, t domain.Transition) (bool, error)
	// SetCartItemQuantity updates a pending cart record and reports whether a
	// pending record with that id existed.
	SetCartItemQuantity(ctx context.Context, id string, quantity int, at time.Time) (bool, error)
	Delete(ctx context.Context, log domain.Log, id string) error
	// PruneTerminal deletes synced and failed records last updated before the
	// given time.
	PruneTerminal(ctx context.Context, log domain.Log, before time.Time) (int64, error)

	Close() error
}
