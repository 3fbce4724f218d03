package ports

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrThrottled = errors.New("throttled")
	ErrTooLarge  = errors.New("payload too large")
)

// StaleStateError reports a rejected blob write and carries the authoritative
// updatedAt the caller must reload from.
type StaleStateError struct {
	UpdatedAt string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("base state is stale: server updatedAt=%s", e.UpdatedAt)
}

func (e *StaleStateError) Unwrap() error {
	return ErrConflict
}
