package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCancelLockedError_IsWrapFriendly(t *testing.T) {
	err := fmt.Errorf("cancel: %w", &CancelLockedError{LockedUntil: 1735689600, Reason: CancelLockReasonUpgradePending})
	require.True(t, errors.Is(err, ErrCancelLocked))

	var lockErr *CancelLockedError
	require.True(t, errors.As(err, &lockErr))
	require.Equal(t, int64(1735689600), lockErr.LockedUntil)
	require.Contains(t, err.Error(), "2025-01-01T00:00:00Z")
}

func TestInvalidArgument_WrapsSentinel(t *testing.T) {
	err := InvalidArgument("period_seconds must be positive, got %d", 0)
	require.True(t, errors.Is(err, ErrInvalidArgument))
	require.Contains(t, err.Error(), "period_seconds")
}
