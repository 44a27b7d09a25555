/*
eligibility.go - Usability rules for coupons and wallet entries

PURPOSE:
  Decides whether a coupon, a wallet entry, or the pair is currently
  usable. Every comparison here is against real wall-clock "now" - the
  simulated calendar is forbidden on this code path. A coupon's 14-day
  validity is 14 real days from assignment no matter how many simulated
  days elapse during that window.

TRI-STATE FLAGS:
  Coupon.IsActive:    nil or true means active; only an explicit false
                      deactivates a coupon.
  WalletEntry.Status: nil or "active" means usable; any other value
                      (set by out-of-band cleanup) makes the entry unusable.

SEE ALSO:
  - clock/clock.go: the sanctioned source of "now"
*/
package wallet

import "time"

// CouponUsable reports whether the coupon itself is currently usable:
// unexpired and not explicitly deactivated.
func CouponUsable(c Coupon, now time.Time) bool {
	if !c.ExpirationDate.After(now) {
		return false
	}
	return c.IsActive == nil || *c.IsActive
}

// EntryUsable reports whether the wallet entry is held-and-usable:
// within its validity window and not marked inactive.
func EntryUsable(e WalletEntry, now time.Time) bool {
	if !e.EligibleUntil.After(now) {
		return false
	}
	return e.Status == nil || *e.Status == StatusActive
}

// Presentable reports whether the coupon may be shown to the holder of the
// entry: both the coupon and the entry must be usable.
func Presentable(c Coupon, e WalletEntry, now time.Time) bool {
	return CouponUsable(c, now) && EntryUsable(e, now)
}
