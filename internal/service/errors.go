package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Sentinel errors forming the taxonomy handlers map to HTTP responses.
// Messages are deliberately generic so callers cannot distinguish why a
// credential or token was rejected.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccessDenied       = errors.New("access denied")
	ErrConflict           = errors.New("conflict, retry the operation")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// AccountLockedError carries the unlock time. It is returned instead of the
// bare sentinel only when configuration permits leaking lockout timing.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// classify maps storage-boundary errors into the taxonomy. Errors are never
// swallowed here, only renamed.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
