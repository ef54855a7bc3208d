package service

import "errors"

var (
	ErrInvalidBarcode = errors.New("invalid barcode")
	ErrValidation     = errors.New("validation failed")
	ErrShareExpired   = errors.New("share link has expired")
)
