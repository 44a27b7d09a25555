/*
Package wallet provides the coupon wallet core engine.

PURPOSE:
  Maintains, for each user of the coupon platform, a bounded personal wallet
  of currently-usable coupons, replenished on demand so that every user stays
  within fixed per-group quotas until coupons naturally expire.

KEY CONCEPTS IN THIS FILE (types.go):
  - Coupon: a catalog record (type, discount, expiration, activity flag)
  - WalletEntry: one (user, coupon) assignment with its validity window
  - User: a roster record, owned by the external directory sync
  - QuotaPolicy: per-group caps and the assignment validity duration

DESIGN PRINCIPLES:
  1. Real clock only: every timestamp on Coupon and WalletEntry is wall-clock
     time; the accelerated simulation calendar never enters this package.
  2. At-most-once: a coupon is assigned to a user at most once, ever. The
     store's uniqueness constraint is the arbiter, not application locks.
  3. Precision: discount magnitudes use decimal.Decimal, never float64.

USAGE:
  rep := wallet.NewReplenisher(store, wallet.DefaultQuotaPolicy(), logger)
  n, err := rep.Replenish(ctx, userID, clk.Now())

SEE ALSO:
  - eligibility.go: usability rules for coupons and entries
  - selector.go: uniform random candidate selection
  - replenisher.go: the quota top-up algorithm
  - runner.go: roster-wide orchestration with failure isolation
*/
package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type CouponID string

// =============================================================================
// COUPON - Catalog record, immutable from this subsystem's perspective
// =============================================================================

// CouponType partitions the catalog into quota groups.
type CouponType string

const (
	TypeFrontstore CouponType = "frontstore"
	TypeCategory   CouponType = "category"
	TypeBrand      CouponType = "brand"
)

// CategoryBrandTypes is the type set sharing the category/brand quota group.
var CategoryBrandTypes = []CouponType{TypeCategory, TypeBrand}

// FrontstoreTypes is the type set for the frontstore quota group.
var FrontstoreTypes = []CouponType{TypeFrontstore}

// Coupon is one catalog record. ExpirationDate is real wall-clock time.
// IsActive is tri-state: nil (unset) is treated as active.
type Coupon struct {
	ID             CouponID
	Type           CouponType
	DiscountType   string // e.g. "percent_off", "amount_off"
	DiscountValue  decimal.Decimal
	ExpirationDate time.Time
	IsActive       *bool
}

// =============================================================================
// WALLET ENTRY - One (user, coupon) assignment
// =============================================================================

// Entry statuses. A nil Status means usable, same as StatusActive.
const StatusActive = "active"

// WalletEntry records one coupon assignment. The (UserID, CouponID) pair is
// unique for all time: an expired entry still blocks re-assignment.
// AssignedAt and EligibleUntil are real wall-clock timestamps; EligibleUntil
// is set at creation to AssignedAt plus the policy validity duration and is
// never derived from the simulated calendar.
type WalletEntry struct {
	UserID        UserID
	CouponID      CouponID
	Status        *string
	AssignedAt    time.Time
	EligibleUntil time.Time
}

// EntryWithCoupon joins a wallet entry to its catalog coupon for presentation.
type EntryWithCoupon struct {
	Entry  WalletEntry
	Coupon Coupon
}

// =============================================================================
// USER - Roster record, owned by the external directory sync
// =============================================================================

type User struct {
	ID        UserID
	Email     string
	CreatedAt time.Time
}

// =============================================================================
// QUOTA POLICY - Per-group caps and assignment validity
// =============================================================================

// QuotaPolicy fixes how full a wallet may be and how long an assignment
// stays usable.
type QuotaPolicy struct {
	FrontstoreCap    int
	CategoryBrandCap int
	Validity         time.Duration
}

// DefaultQuotaPolicy returns the platform quotas: 2 frontstore coupons,
// 30 category/brand coupons, 14 real days of validity per assignment.
func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		FrontstoreCap:    2,
		CategoryBrandCap: 30,
		Validity:         14 * 24 * time.Hour,
	}
}

// TotalCap is the full-wallet threshold used by the runner to skip users.
func (p QuotaPolicy) TotalCap() int { return p.FrontstoreCap + p.CategoryBrandCap }

// Counts partitions a user's currently-usable entries by quota group.
type Counts struct {
	Frontstore    int
	CategoryBrand int
}

// Total is the user's combined active entry count.
func (c Counts) Total() int { return c.Frontstore + c.CategoryBrand }
