/*
scheduler.go - Cycle-driven replenishment scheduler

PURPOSE:
  Runs roster-wide replenishment on a fixed cadence so wallets refill
  without an external trigger. The cadence follows the clock model: one
  tick per cycle, where a cycle is one simulated hour (3600/scale real
  seconds).

DESIGN:
  - Background goroutine on a time.Ticker
  - Each tick is a full runner pass; per-user failures are already
    isolated inside the runner, so a tick never dies half way
  - Overlap-safe: the store's uniqueness constraint makes a tick that
    races the manual /api/replenish trigger harmless

USAGE:
  sched := NewReplenishmentScheduler(runner, model, log)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - wallet/runner.go: the per-tick work
  - clock/sim.go: cycle real cost
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/wallet"
)

// ReplenishmentScheduler triggers a roster-wide run every cycle.
type ReplenishmentScheduler struct {
	Runner   *wallet.Runner
	Interval time.Duration
	Enabled  bool
	Log      zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReplenishmentScheduler creates a scheduler ticking once per cycle of
// the given clock model.
func NewReplenishmentScheduler(runner *wallet.Runner, model clock.Model, log zerolog.Logger) *ReplenishmentScheduler {
	return &ReplenishmentScheduler{
		Runner:   runner,
		Interval: model.CycleRealCost(),
		Enabled:  true,
		Log:      log,
		stop:     make(chan struct{}),
	}
}

// Start begins the background loop. A disabled scheduler is a no-op.
func (rs *ReplenishmentScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info().Msg("scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)
	go rs.run()

	rs.Log.Info().Dur("interval", rs.Interval).Msg("replenishment scheduler started")
}

// Stop halts the loop and waits for an in-flight tick to finish. Safe to
// call more than once.
func (rs *ReplenishmentScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	rs.ticker = nil
	close(rs.stop)
	rs.wg.Wait()
	rs.Log.Info().Msg("replenishment scheduler stopped")
}

func (rs *ReplenishmentScheduler) run() {
	defer rs.wg.Done()

	// First pass immediately on start.
	rs.tick()

	for {
		select {
		case <-rs.ticker.C:
			rs.tick()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReplenishmentScheduler) tick() {
	summary, err := rs.Runner.RunAll(context.Background())
	if err != nil {
		rs.Log.Error().Err(err).Msg("scheduled replenishment run aborted")
		return
	}
	if summary.CouponsAssigned > 0 || !summary.Clean() {
		rs.Log.Info().
			Int("coupons_assigned", summary.CouponsAssigned).
			Int("users_failed", summary.UsersFailed).
			Msg("scheduled replenishment tick")
	}
}

// RunNow triggers an immediate pass outside the cadence (admin/testing).
func (rs *ReplenishmentScheduler) RunNow() {
	rs.tick()
}
