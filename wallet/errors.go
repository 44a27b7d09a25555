/*
errors.go - Centralized error types for the wallet engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations map database-level failures onto these sentinels;
  callers use errors.Is().

ERROR CATEGORIES:
  1. Idempotency signals - duplicate (user, coupon) inserts; not failures
  2. Roster errors - the run cannot start without a roster
  3. Store errors - database-level failures, recovered per user

SEE ALSO:
  - store/sqlite: absorbs (user, coupon) conflicts via ON CONFLICT DO NOTHING,
    so ErrDuplicateEntry only surfaces from stores that report conflicts
  - runner.go: per-user recovery and the fatal roster path
*/
package wallet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateEntry is returned by stores when an insert hits an existing
	// (user, coupon) pair. The replenisher treats it as a successful no-op:
	// first writer wins.
	ErrDuplicateEntry = errors.New("wallet entry already exists")

	// ErrRosterUnavailable is returned when the user roster cannot be listed.
	// Fatal for a run; no partial roster is processed.
	ErrRosterUnavailable = errors.New("user roster unavailable")

	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrCouponNotFound is returned when a referenced coupon does not exist.
	ErrCouponNotFound = errors.New("coupon not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ReplenishError carries the user identity for a failed per-user pass.
type ReplenishError struct {
	UserID UserID
	Err    error
}

func (e *ReplenishError) Error() string {
	return fmt.Sprintf("replenish user %s: %v", e.UserID, e.Err)
}

func (e *ReplenishError) Unwrap() error { return e.Err }
