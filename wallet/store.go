/*
store.go - Persistence interfaces for the wallet engine

PURPOSE:
  Defines the interface between the wallet logic and the relational store
  holding coupons, users, and wallet entries. Different implementations can
  use SQLite, PostgreSQL, or in-memory storage.

IDEMPOTENT, CAP-GUARDED INSERTS:
  InsertEntries is insert-if-absent at (user, coupon) granularity, enforced
  by a uniqueness constraint at the store level. A conflicting row is
  silently dropped, never an error; the returned count covers only rows
  actually written. Each row additionally re-checks the user's active count
  for its quota group inside the same transaction and is dropped once the
  group cap is reached, so overlapping replenishment passes that both read
  a stale pre-insert count still cannot overfill a wallet. All rows of one
  call commit as a single transaction, so a reader never observes a
  partially-replenished wallet for one user.

OWNERSHIP:
  Coupons are owned by the catalog tooling and users by the directory sync;
  this subsystem only reads them. Wallet entries are the only rows it writes.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - wallet/store: in-memory store for tests and dev mode
*/
package wallet

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Relational backing for coupons and wallet entries
// =============================================================================

type Store interface {
	// EligibleCouponIDs returns the ids of catalog coupons whose type is in
	// types, whose expiration is after now, which are not deactivated, and
	// whose id is not in exclude. Order is unspecified.
	EligibleCouponIDs(ctx context.Context, types []CouponType, exclude []CouponID, now time.Time) ([]CouponID, error)

	// HistoricalCouponIDs returns every coupon id ever assigned to the user,
	// expired assignments included.
	HistoricalCouponIDs(ctx context.Context, userID UserID) ([]CouponID, error)

	// ActiveCounts returns the user's currently-usable entry counts,
	// partitioned by quota group and judged against now.
	ActiveCounts(ctx context.Context, userID UserID, now time.Time) (Counts, error)

	// InsertEntries writes the batch atomically with first-writer-wins
	// conflict handling and returns the number of rows actually inserted.
	// Each row is guarded by a transactional re-count of the user's active
	// entries in the row's quota group, judged against now: rows that
	// would push the group past its policy cap are silently dropped.
	InsertEntries(ctx context.Context, entries []WalletEntry, policy QuotaPolicy, now time.Time) (int, error)

	// WalletEntries returns all of the user's entries joined to their
	// coupons, expired ones included.
	WalletEntries(ctx context.Context, userID UserID) ([]EntryWithCoupon, error)
}

// =============================================================================
// USER DIRECTORY - External roster, read-only input
// =============================================================================

// UserDirectory supplies the canonical user roster, sourced from the
// external identity directory. Implementations return users in a stable
// deterministic order (most recently created last).
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]User, error)
}
