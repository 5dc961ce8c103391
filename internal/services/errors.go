package services

import (
	"errors"
	"fmt"
)

// Request-level failures. Each is returned before any mutation happens.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var errDeliveryPanic = errors.New("delivery panicked")
