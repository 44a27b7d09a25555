/*
Package clock provides the dual-clock model for the coupon platform.

PURPOSE:
  The platform runs an accelerated agent simulation with its own calendar,
  driven by a configurable time-scale factor. Coupon and wallet validity
  windows are defined in real wall-clock time. Mixing the two clocks is a
  silent correctness failure: once the simulated calendar runs far into
  the future, every coupon looks expired.

THE RULE:
  All wallet and coupon timestamp logic goes through a Clock (a single
  real-clock "now" accessor) or an explicit now argument. The simulated
  calendar never enters that code path. The Model in sim.go is consulted
  only by the simulation orchestrator (cycle scheduling) and by reporting.

USAGE:
  clk := clock.System
  now := clk.Now() // real wall-clock, UTC

  // Tests pin time:
  clk := clock.Fixed(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

SEE ALSO:
  - sim.go: simulated-calendar state and conversions
  - wallet/eligibility.go: the only consumers of real "now"
*/
package clock

import "time"

// =============================================================================
// CLOCK - Single real-clock accessor
// =============================================================================

// Clock yields the current real wall-clock time. It is the only sanctioned
// source of "now" for wallet and coupon validity logic.
type Clock interface {
	Now() time.Time
}

// System is the production clock. Always UTC.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns a constant instant. For tests.
type FixedClock struct {
	At time.Time
}

func (f FixedClock) Now() time.Time { return f.At }

// Fixed pins the clock to a specific instant.
func Fixed(at time.Time) FixedClock { return FixedClock{At: at.UTC()} }
