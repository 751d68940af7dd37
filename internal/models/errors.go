package models

import "errors"

// Sentinel errors for the booking engine. Services wrap these with
// context via fmt.Errorf and %w; handlers map them to HTTP statuses
// with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("resource not found")
	ErrInvalidState           = errors.New("invalid state transition")
	ErrConflict               = errors.New("conflicting update")
	ErrInsufficientCoins      = errors.New("insufficient coin balance")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrForbidden              = errors.New("forbidden")
)
