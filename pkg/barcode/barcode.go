// Package barcode classifies scanned product codes and verifies their check digits.
package barcode

import (
	"errors"
	"fmt"
)

type Symbology string

const (
	EAN13   Symbology = "EAN-13"
	EAN8    Symbology = "EAN-8"
	UPCA    Symbology = "UPC-A"
	UPCE    Symbology = "UPC-E"
	Unknown Symbology = "Unknown"
)

func (s Symbology) String() string {
	return string(s)
}

var (
	ErrChecksum    = errors.New("invalid check digit")
	ErrUnsupported = errors.New("unsupported barcode format")
)

// Result is the outcome of Validate. Err is nil iff Valid is true.
type Result struct {
	Valid     bool      `json:"is_valid"`
	Symbology Symbology `json:"symbology"`
	Err       error     `json:"-"`
}

// Error returns the validation failure message, or "" for a valid code.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Validate classifies raw by length and, for EAN-13, checks the check digit.
// UPC-A and EAN-8 codes are accepted without checksum verification. An 8-digit
// code is always reported as EAN-8, so UPCE is never returned.
func Validate(raw string) Result {
	if !allDigits(raw) {
		return Result{Symbology: Unknown, Err: ErrUnsupported}
	}

	switch len(raw) {
	case 13:
		want := CheckDigit(raw[:12])
		got := int(raw[12] - '0')
		if got != want {
			return Result{
				Symbology: EAN13,
				Err:       fmt.Errorf("%w: got %d, want %d", ErrChecksum, got, want),
			}
		}
		return Result{Valid: true, Symbology: EAN13}
	case 12:
		return Result{Valid: true, Symbology: UPCA}
	case 8:
		return Result{Valid: true, Symbology: EAN8}
	default:
		return Result{Symbology: Unknown, Err: ErrUnsupported}
	}
}

// CheckDigit computes the EAN check digit for the given payload digits, weighting
// positions counted from the left with 1 (even index) and 3 (odd index).
// The caller guarantees payload contains only ASCII digits.
func CheckDigit(payload string) int {
	sum := 0
	for i := 0; i < len(payload); i++ {
		d := int(payload[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
