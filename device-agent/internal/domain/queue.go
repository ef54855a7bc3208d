package domain

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusSynced || s == StatusFailed
}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSynced || s == StatusFailed
}

// CanTransitionTo reports whether s may move to next. Only pending records
// move, and only to a terminal status.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

// Log names one of the two independent offline logs.
type Log string

const (
	LogScans     Log = "scans"
	LogCartItems Log = "cart_items"
)

func (l Log) Valid() bool {
	return l == LogScans || l == LogCartItems
}

// Product is the catalog snapshot returned when a barcode resolves.
type Product struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Brand          *string `json:"brand"`
	Category       *string `json:"category"`
	CoverImageURL  *string `json:"cover_image_url"`
	Description    *string `json:"description"`
	WeightG        *int    `json:"weight_g"`
	EstimatedPrice *int64  `json:"estimated_price"`
}

type ScanRecord struct {
	ID              string    `json:"id"`
	Barcode         string    `json:"barcode"`
	CapturedAt      time.Time `json:"captured_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ResolvedProduct *Product  `json:"resolved_product,omitempty"`
	Status          Status    `json:"status"`
	FailureReason   string    `json:"failure_reason,omitempty"`
}

type CartItemRecord struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	CapturedAt    time.Time `json:"captured_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// Transition is a compare-and-set status change of one record.
type Transition struct {
	ID     string
	From   Status
	To     Status
	Reason string
	At     time.Time

	// Product is attached to scan records that resolved during sync.
	Product *Product
}

// MarshalProduct encodes p for storage; nil encodes to nil.
func MarshalProduct(p *Product) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func UnmarshalProduct(data []byte) (*Product, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
