package sentinel

import "errors"

// Slot backends return these, optionally wrapped. The store translates them
// into domain codes exactly once.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnavailable   = errors.New("unavailable")
	ErrQuotaExceeded = errors.New("quota exceeded")
)
