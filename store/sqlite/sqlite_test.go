package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/store/sqlite"
	"github.com/dealgrid/wallet-engine/wallet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testCoupon(id string, typ wallet.CouponType, expiry time.Time) wallet.Coupon {
	return wallet.Coupon{
		ID:             wallet.CouponID(id),
		Type:           typ,
		DiscountType:   "percentage",
		DiscountValue:  decimal.NewFromInt(15),
		ExpirationDate: expiry,
	}
}

func mustSaveCoupons(t *testing.T, st *sqlite.Store, coupons ...wallet.Coupon) {
	t.Helper()
	for _, c := range coupons {
		require.NoError(t, st.SaveCoupon(context.Background(), c))
	}
}

// =============================================================================
// ROSTER
// =============================================================================

func TestStore_SaveAndListUsers_StableOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of creation order.
	require.NoError(t, st.SaveUser(ctx, wallet.User{ID: "u-b", Email: "b@example.com", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, st.SaveUser(ctx, wallet.User{ID: "u-a", Email: "a@example.com", CreatedAt: base}))

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, wallet.UserID("u-a"), users[0].ID)
	assert.Equal(t, wallet.UserID("u-b"), users[1].ID)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, wallet.ErrUserNotFound)
}

func TestStore_SaveUser_UpsertKeepsOneRow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.SaveUser(ctx, wallet.User{ID: "u-1", Email: "old@example.com", CreatedAt: at}))
	require.NoError(t, st.SaveUser(ctx, wallet.User{ID: "u-1", Email: "new@example.com", CreatedAt: at}))

	u, err := st.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestStore_SaveAndGetCoupon_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	expiry := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)

	inactive := false
	c := testCoupon("c-1", wallet.TypeBrand, expiry)
	c.DiscountValue = decimal.RequireFromString("12.50")
	c.IsActive = &inactive
	require.NoError(t, st.SaveCoupon(ctx, c))

	got, err := st.GetCoupon(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.TypeBrand, got.Type)
	assert.True(t, got.DiscountValue.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, got.ExpirationDate.Equal(expiry))
	require.NotNil(t, got.IsActive)
	assert.False(t, *got.IsActive)
}

func TestStore_GetCoupon_NotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetCoupon(context.Background(), "ghost")
	assert.ErrorIs(t, err, wallet.ErrCouponNotFound)
}

func TestStore_EligibleCouponIDs_Filters(t *testing.T) {
	// GIVEN: A catalog with expired, deactivated, wrong-type, and excluded
	//        coupons around one genuinely eligible row
	// WHEN: Querying the category/brand pool
	// THEN: Only the eligible coupon comes back

	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	inactive := false

	ok := testCoupon("ok", wallet.TypeCategory, now.Add(time.Hour))
	expired := testCoupon("expired", wallet.TypeCategory, now.Add(-time.Hour))
	dark := testCoupon("dark", wallet.TypeBrand, now.Add(time.Hour))
	dark.IsActive = &inactive
	fs := testCoupon("fs", wallet.TypeFrontstore, now.Add(time.Hour))
	held := testCoupon("held", wallet.TypeBrand, now.Add(time.Hour))
	mustSaveCoupons(t, st, ok, expired, dark, fs, held)

	ids, err := st.EligibleCouponIDs(ctx, wallet.CategoryBrandTypes, []wallet.CouponID{"held"}, now)
	require.NoError(t, err)
	assert.Equal(t, []wallet.CouponID{"ok"}, ids)
}

func TestStore_EligibleCouponIDs_NilActiveCountsAsActive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	active := true

	implicit := testCoupon("implicit", wallet.TypeCategory, now.Add(time.Hour))
	explicit := testCoupon("explicit", wallet.TypeCategory, now.Add(time.Hour))
	explicit.IsActive = &active
	mustSaveCoupons(t, st, implicit, explicit)

	ids, err := st.EligibleCouponIDs(ctx, wallet.CategoryBrandTypes, nil, now)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

// =============================================================================
// WALLET ENTRIES - uniqueness constraint and first-writer-wins
// =============================================================================

func TestStore_InsertEntries_ConflictIsSilentNoOp(t *testing.T) {
	// GIVEN: An entry already assigned to the user
	// WHEN: Inserting a batch containing the same (user, coupon) pair
	// THEN: The duplicate is dropped, the new pair lands, and the count
	//       reflects rows actually written

	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustSaveCoupons(t, st,
		testCoupon("c-1", wallet.TypeCategory, now.Add(time.Hour)),
		testCoupon("c-2", wallet.TypeCategory, now.Add(time.Hour)),
	)

	entry := func(couponID string) wallet.WalletEntry {
		return wallet.WalletEntry{
			UserID:        "u-1",
			CouponID:      wallet.CouponID(couponID),
			AssignedAt:    now,
			EligibleUntil: now.Add(14 * 24 * time.Hour),
		}
	}

	policy := wallet.DefaultQuotaPolicy()
	n, err := st.InsertEntries(ctx, []wallet.WalletEntry{entry("c-1")}, policy, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = st.InsertEntries(ctx, []wallet.WalletEntry{entry("c-1"), entry("c-2")}, policy, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the new pair counts")

	entries, err := st.WalletEntries(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_InsertEntries_CapGuardBlocksOverfill(t *testing.T) {
	// GIVEN: Two batches drawn against the same stale pre-insert count,
	//        with disjoint frontstore coupons
	// WHEN: Both batches are written
	// THEN: The transactional re-count drops the second batch entirely;
	//       the group never exceeds its cap

	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 6; i++ {
		mustSaveCoupons(t, st, testCoupon(fmt.Sprintf("fs-%d", i), wallet.TypeFrontstore, now.Add(time.Hour)))
	}

	policy := wallet.DefaultQuotaPolicy()
	entry := func(couponID string) wallet.WalletEntry {
		return wallet.WalletEntry{
			UserID:        "u-1",
			CouponID:      wallet.CouponID(couponID),
			AssignedAt:    now,
			EligibleUntil: now.Add(policy.Validity),
		}
	}

	n, err := st.InsertEntries(ctx, []wallet.WalletEntry{entry("fs-0"), entry("fs-1")}, policy, now)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = st.InsertEntries(ctx, []wallet.WalletEntry{entry("fs-2"), entry("fs-3")}, policy, now)
	require.NoError(t, err)
	assert.Zero(t, n, "the cap guard drops rows the stale count would have admitted")

	counts, err := st.ActiveCounts(ctx, "u-1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Frontstore)
}

func TestStore_InsertEntries_CapGuardBoundsOneBatch(t *testing.T) {
	// A single oversized batch is also clipped at the cap, front to back.
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		mustSaveCoupons(t, st, testCoupon(fmt.Sprintf("fs-%d", i), wallet.TypeFrontstore, now.Add(time.Hour)))
	}

	policy := wallet.DefaultQuotaPolicy()
	var batch []wallet.WalletEntry
	for i := 0; i < 4; i++ {
		batch = append(batch, wallet.WalletEntry{
			UserID:        "u-1",
			CouponID:      wallet.CouponID(fmt.Sprintf("fs-%d", i)),
			AssignedAt:    now,
			EligibleUntil: now.Add(policy.Validity),
		})
	}

	n, err := st.InsertEntries(ctx, batch, policy, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := st.ActiveCounts(ctx, "u-1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Frontstore)
}

func TestStore_InsertEntries_LapsedEntriesFreeTheirSlots(t *testing.T) {
	// GIVEN: A frontstore group at cap whose entries have since lapsed
	// WHEN: Inserting fresh entries judged at the later instant
	// THEN: The guard counts only active entries, so the inserts land

	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		mustSaveCoupons(t, st, testCoupon(fmt.Sprintf("fs-%d", i), wallet.TypeFrontstore, now.Add(30*24*time.Hour)))
	}

	policy := wallet.DefaultQuotaPolicy()
	old := []wallet.WalletEntry{
		{UserID: "u-1", CouponID: "fs-0", AssignedAt: now.Add(-20 * 24 * time.Hour), EligibleUntil: now.Add(-6 * 24 * time.Hour)},
		{UserID: "u-1", CouponID: "fs-1", AssignedAt: now.Add(-20 * 24 * time.Hour), EligibleUntil: now.Add(-6 * 24 * time.Hour)},
	}
	n, err := st.InsertEntries(ctx, old, policy, now.Add(-20*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	fresh := []wallet.WalletEntry{
		{UserID: "u-1", CouponID: "fs-2", AssignedAt: now, EligibleUntil: now.Add(policy.Validity)},
		{UserID: "u-1", CouponID: "fs-3", AssignedAt: now, EligibleUntil: now.Add(policy.Validity)},
	}
	n, err = st.InsertEntries(ctx, fresh, policy, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := st.ActiveCounts(ctx, "u-1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Frontstore)
}

func TestStore_InsertEntries_UnknownCouponRejected(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	_, err := st.InsertEntries(context.Background(), []wallet.WalletEntry{{
		UserID: "u-1", CouponID: "ghost", AssignedAt: now, EligibleUntil: now.Add(time.Hour),
	}}, wallet.DefaultQuotaPolicy(), now)
	assert.ErrorIs(t, err, wallet.ErrCouponNotFound)
}

func TestStore_InsertEntries_EmptyBatch(t *testing.T) {
	st := newTestStore(t)

	n, err := st.InsertEntries(context.Background(), nil, wallet.DefaultQuotaPolicy(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_HistoricalCouponIDs_IncludesLapsedEntries(t *testing.T) {
	// The exclusion set is for all time: a long-expired assignment still
	// blocks re-assignment.
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustSaveCoupons(t, st, testCoupon("c-old", wallet.TypeBrand, now.Add(time.Hour)))

	_, err := st.InsertEntries(ctx, []wallet.WalletEntry{{
		UserID:        "u-1",
		CouponID:      "c-old",
		AssignedAt:    now.Add(-30 * 24 * time.Hour),
		EligibleUntil: now.Add(-16 * 24 * time.Hour),
	}}, wallet.DefaultQuotaPolicy(), now)
	require.NoError(t, err)

	ids, err := st.HistoricalCouponIDs(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []wallet.CouponID{"c-old"}, ids)
}

func TestStore_ActiveCounts_PartitionsAndFilters(t *testing.T) {
	// GIVEN: A wallet holding usable, lapsed, revoked, and dead-coupon entries
	// WHEN: Counting active entries per quota group
	// THEN: Only pairs where both sides are usable count

	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	inactive := false
	revoked := "revoked"

	dead := testCoupon("cat-dead", wallet.TypeCategory, now.Add(time.Hour))
	dead.IsActive = &inactive
	mustSaveCoupons(t, st,
		testCoupon("fs-1", wallet.TypeFrontstore, now.Add(time.Hour)),
		testCoupon("cat-1", wallet.TypeCategory, now.Add(time.Hour)),
		testCoupon("br-1", wallet.TypeBrand, now.Add(time.Hour)),
		testCoupon("cat-lapsed", wallet.TypeCategory, now.Add(time.Hour)),
		testCoupon("cat-revoked", wallet.TypeCategory, now.Add(time.Hour)),
		dead,
	)

	entries := []wallet.WalletEntry{
		{UserID: "u-1", CouponID: "fs-1", AssignedAt: now, EligibleUntil: now.Add(time.Hour)},
		{UserID: "u-1", CouponID: "cat-1", AssignedAt: now, EligibleUntil: now.Add(time.Hour)},
		{UserID: "u-1", CouponID: "br-1", AssignedAt: now, EligibleUntil: now.Add(time.Hour)},
		{UserID: "u-1", CouponID: "cat-lapsed", AssignedAt: now.Add(-15 * 24 * time.Hour), EligibleUntil: now.Add(-24 * time.Hour)},
		{UserID: "u-1", CouponID: "cat-revoked", AssignedAt: now, EligibleUntil: now.Add(time.Hour), Status: &revoked},
		{UserID: "u-1", CouponID: "cat-dead", AssignedAt: now, EligibleUntil: now.Add(time.Hour)},
	}
	n, err := st.InsertEntries(ctx, entries, wallet.DefaultQuotaPolicy(), now)
	require.NoError(t, err)
	require.Equal(t, len(entries), n)

	counts, err := st.ActiveCounts(ctx, "u-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Frontstore)
	assert.Equal(t, 2, counts.CategoryBrand, "category and brand share one count")
	assert.Equal(t, 3, counts.Total())
}

func TestStore_WalletEntries_JoinsCouponAndKeepsStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	revoked := "revoked"
	mustSaveCoupons(t, st, testCoupon("c-1", wallet.TypeBrand, now.Add(time.Hour)))

	_, err := st.InsertEntries(ctx, []wallet.WalletEntry{{
		UserID:        "u-1",
		CouponID:      "c-1",
		Status:        &revoked,
		AssignedAt:    now,
		EligibleUntil: now.Add(14 * 24 * time.Hour),
	}}, wallet.DefaultQuotaPolicy(), now)
	require.NoError(t, err)

	entries, err := st.WalletEntries(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, wallet.CouponID("c-1"), got.Coupon.ID)
	assert.Equal(t, wallet.TypeBrand, got.Coupon.Type)
	require.NotNil(t, got.Entry.Status)
	assert.Equal(t, "revoked", *got.Entry.Status)
	assert.True(t, got.Entry.AssignedAt.Equal(now))
	assert.True(t, got.Entry.EligibleUntil.Equal(now.Add(14*24*time.Hour)))
}

// =============================================================================
// SIMULATION CLOCK SINGLETON
// =============================================================================

func TestStore_SimulationClock_DefaultRow(t *testing.T) {
	// Migration seeds the singleton: inactive, no dates, scale 96.
	st := newTestStore(t)

	state, err := st.GetSimulationState(context.Background())
	require.NoError(t, err)
	assert.False(t, state.IsActive)
	assert.Nil(t, state.CurrentSimulatedDate)
	assert.Equal(t, clock.DefaultTimeScale, state.TimeScale)
}

func TestStore_SimulationClock_SaveRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	simDate := time.Date(2030, time.January, 15, 8, 0, 0, 0, time.UTC)
	realStart := time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveSimulationState(ctx, clock.SimulationState{
		IsActive:             true,
		CurrentSimulatedDate: &simDate,
		RealStartTime:        &realStart,
		TimeScale:            96,
	}))

	state, err := st.GetSimulationState(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsActive)
	require.NotNil(t, state.CurrentSimulatedDate)
	assert.True(t, state.CurrentSimulatedDate.Equal(simDate))
	require.NotNil(t, state.RealStartTime)
	assert.True(t, state.RealStartTime.Equal(realStart))
	assert.Nil(t, state.SimulationCalendarStart)
}

func TestStore_ResetSimulationClock(t *testing.T) {
	// GIVEN: An active simulation
	// WHEN: Resetting the clock
	// THEN: Inactive, dates cleared, time scale back to 168

	st := newTestStore(t)
	ctx := context.Background()

	simDate := time.Now().UTC()
	require.NoError(t, st.SaveSimulationState(ctx, clock.SimulationState{
		IsActive:             true,
		CurrentSimulatedDate: &simDate,
		RealStartTime:        &simDate,
		TimeScale:            24,
	}))

	require.NoError(t, st.ResetSimulationClock(ctx))

	state, err := st.GetSimulationState(ctx)
	require.NoError(t, err)
	assert.False(t, state.IsActive)
	assert.Nil(t, state.CurrentSimulatedDate)
	assert.Nil(t, state.RealStartTime)
	assert.Equal(t, clock.ResetTimeScale, state.TimeScale)
}

// =============================================================================
// RESET
// =============================================================================

func TestStore_Reset_ClearsWalletDataButKeepsClock(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.SaveUser(ctx, wallet.User{ID: "u-1", Email: "u@example.com", CreatedAt: now}))
	mustSaveCoupons(t, st, testCoupon("c-1", wallet.TypeCategory, now.Add(time.Hour)))
	_, err := st.InsertEntries(ctx, []wallet.WalletEntry{{
		UserID: "u-1", CouponID: "c-1", AssignedAt: now, EligibleUntil: now.Add(time.Hour),
	}}, wallet.DefaultQuotaPolicy(), now)
	require.NoError(t, err)

	require.NoError(t, st.Reset(ctx))

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = st.GetCoupon(ctx, "c-1")
	assert.ErrorIs(t, err, wallet.ErrCouponNotFound)

	_, err = st.GetSimulationState(ctx)
	assert.NoError(t, err, "clock singleton survives a data reset")
}

// =============================================================================
// END-TO-END THROUGH THE DOMAIN LAYER
// =============================================================================

func TestStore_FullReplenishmentRoundTrip(t *testing.T) {
	// The constraint-backed store and the in-memory store must behave the
	// same under the replenisher; this pins the SQLite side.
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)
	expiry := now.Add(60 * 24 * time.Hour)

	for i := 0; i < 5; i++ {
		mustSaveCoupons(t, st, testCoupon(fmt.Sprintf("fs-%02d", i), wallet.TypeFrontstore, expiry))
	}
	for i := 0; i < 40; i++ {
		typ := wallet.TypeCategory
		if i%2 == 1 {
			typ = wallet.TypeBrand
		}
		mustSaveCoupons(t, st, testCoupon(fmt.Sprintf("cb-%02d", i), typ, expiry))
	}

	ids, err := st.EligibleCouponIDs(ctx, wallet.FrontstoreTypes, nil, now)
	require.NoError(t, err)
	require.Len(t, ids, 5)

	ids, err = st.EligibleCouponIDs(ctx, wallet.CategoryBrandTypes, nil, now)
	require.NoError(t, err)
	require.Len(t, ids, 40)
}
