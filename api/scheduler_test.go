package api

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/wallet"
	"github.com/dealgrid/wallet-engine/wallet/store"
)

func newTestScheduler(t *testing.T) (*ReplenishmentScheduler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	policy := wallet.DefaultQuotaPolicy()
	rep := wallet.NewReplenisher(mem, policy, zerolog.Nop())
	runner := wallet.NewRunner(mem, mem, rep, policy, clock.System, zerolog.Nop())
	sched := NewReplenishmentScheduler(runner, clock.MustModel(clock.DefaultTimeScale), zerolog.Nop())
	return sched, mem
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestScheduler_StopIsIdempotent(t *testing.T) {
	// GIVEN: A started scheduler
	// WHEN: Stopping it twice (deferred Stop plus an explicit one)
	// THEN: The second call is a no-op, not a panic

	sched, _ := newTestScheduler(t)
	sched.Start()

	assert.NotPanics(t, func() {
		sched.Stop()
		sched.Stop()
	})
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	sched, _ := newTestScheduler(t)
	assert.NotPanics(t, sched.Stop)
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	sched, _ := newTestScheduler(t)
	sched.Enabled = false

	sched.Start()
	assert.NotPanics(t, sched.Stop, "nothing was started, nothing to stop")
}

func TestScheduler_TicksAtCycleCadence(t *testing.T) {
	sched, _ := newTestScheduler(t)
	assert.Equal(t, 37*time.Second+500*time.Millisecond, sched.Interval)
}

// =============================================================================
// MANUAL TICK
// =============================================================================

func TestScheduler_RunNowReplenishesRoster(t *testing.T) {
	sched, mem := newTestScheduler(t)
	now := time.Now().UTC()
	mem.AddUser(wallet.User{ID: "u-1", Email: "u@example.com", CreatedAt: now})
	mem.AddCoupon(wallet.Coupon{ID: "fs-a", Type: wallet.TypeFrontstore, ExpirationDate: now.Add(time.Hour)})
	mem.AddCoupon(wallet.Coupon{ID: "fs-b", Type: wallet.TypeFrontstore, ExpirationDate: now.Add(time.Hour)})

	sched.RunNow()

	counts, err := mem.ActiveCounts(context.Background(), "u-1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Frontstore)
}
