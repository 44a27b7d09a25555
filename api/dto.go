/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/dealgrid/wallet-engine/wallet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// UserDTO represents a roster user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// CouponDTO represents a catalog coupon.
type CouponDTO struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	DiscountType   string `json:"discount_type"`
	DiscountValue  string `json:"discount_value"`
	ExpirationDate string `json:"expiration_date"`
	IsActive       *bool  `json:"is_active,omitempty"`
}

// WalletEntryDTO represents one assignment joined to its coupon.
type WalletEntryDTO struct {
	Coupon        CouponDTO `json:"coupon"`
	Status        *string   `json:"status,omitempty"`
	AssignedAt    string    `json:"assigned_at"`
	EligibleUntil string    `json:"eligible_until"`
	Usable        bool      `json:"usable"`
}

// WalletDTO is one user's wallet view.
type WalletDTO struct {
	UserID      string           `json:"user_id"`
	ActiveTotal int              `json:"active_total"`
	Entries     []WalletEntryDTO `json:"entries"`
}

// RunSummaryDTO is the result of a roster-wide replenishment run.
type RunSummaryDTO struct {
	RunID                  string `json:"run_id"`
	UsersProcessed         int    `json:"users_processed"`
	CouponsAssigned        int    `json:"coupons_assigned"`
	UsersSkippedFullWallet int    `json:"users_skipped_full_wallet"`
	UsersFailed            int    `json:"users_failed"`
	Clean                  bool   `json:"clean"`
}

// ClockDTO reports the simulation clock state alongside the real clock.
type ClockDTO struct {
	RealNow       string  `json:"real_now"`
	IsActive      bool    `json:"is_active"`
	SimulatedDate *string `json:"simulated_date,omitempty"`
	TimeScale     float64 `json:"time_scale"`
	CycleRealCost string  `json:"cycle_real_cost"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to seed.
type LoadScenarioRequest struct {
	ID string `json:"id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCouponDTO(c wallet.Coupon) CouponDTO {
	return CouponDTO{
		ID:             string(c.ID),
		Type:           string(c.Type),
		DiscountType:   c.DiscountType,
		DiscountValue:  c.DiscountValue.String(),
		ExpirationDate: c.ExpirationDate.Format(time.RFC3339),
		IsActive:       c.IsActive,
	}
}

func toWalletEntryDTO(ec wallet.EntryWithCoupon, now time.Time) WalletEntryDTO {
	return WalletEntryDTO{
		Coupon:        toCouponDTO(ec.Coupon),
		Status:        ec.Entry.Status,
		AssignedAt:    ec.Entry.AssignedAt.Format(time.RFC3339),
		EligibleUntil: ec.Entry.EligibleUntil.Format(time.RFC3339),
		Usable:        wallet.Presentable(ec.Coupon, ec.Entry, now),
	}
}
