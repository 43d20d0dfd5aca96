package types

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by the registry, scheduler and intake. Handlers map these
// onto response codes with errors.Is / errors.As.
var (
	ErrDowngradeNotAllowed  = errors.New("downgrade_not_allowed")
	ErrNoActiveSubscription = errors.New("no_active_subscription")
	ErrCancelLocked         = errors.New("cancel_locked")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidArgument      = errors.New("invalid_argument")
	ErrWalletBusy           = errors.New("wallet_busy")
)

// CancelLockedError is returned by cancel while an upgrade is pending.
type CancelLockedError struct {
	LockedUntil int64
	Reason      CancelLockReason
}

func (e *CancelLockedError) Error() string {
	return fmt.Sprintf("%s: %s until %s", ErrCancelLocked, e.Reason, time.Unix(e.LockedUntil, 0).UTC().Format(time.RFC3339))
}

func (e *CancelLockedError) Is(target error) bool { return target == ErrCancelLocked }

// InvalidArgument wraps ErrInvalidArgument with a field-specific message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
