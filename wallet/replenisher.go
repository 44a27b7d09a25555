/*
replenisher.go - Per-user wallet top-up

PURPOSE:
  Tops one user's wallet up to quota: at most 2 frontstore and 30
  category/brand coupons usable at a time (caps carried by QuotaPolicy).

ALGORITHM (one user, one pass):
  1. Count currently-usable entries, partitioned by quota group.
  2. Compute the deficit per group.
  3. Draw random candidates per group, excluding every coupon the user has
     EVER held - the exclusion set is historical, not just currently active.
  4. Insert all new entries as one store transaction with
     eligible_until = now + validity (real clock).

CONCURRENCY:
  Two overlapping passes for the same user may both read the pre-insert
  count and draw overlapping or disjoint candidates. The store decides:
  the (user, coupon) uniqueness constraint drops duplicate pairs (first
  writer wins), and the per-row cap guard inside InsertEntries re-counts
  the quota group transactionally, dropping rows once the cap is reached.
  The returned count reflects rows actually written, so overlapping runs
  can neither duplicate a pair nor overfill a group.

SEE ALSO:
  - selector.go: candidate draw
  - store.go: InsertEntries contract
*/
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// REPLENISHER - replenish(userId, now)
// =============================================================================

// Replenisher tops up a single user's wallet to quota.
type Replenisher struct {
	store    Store
	selector *Selector
	policy   QuotaPolicy
	log      zerolog.Logger
}

// NewReplenisher creates a replenisher over the given store.
func NewReplenisher(store Store, policy QuotaPolicy, log zerolog.Logger) *Replenisher {
	return &Replenisher{
		store:    store,
		selector: NewSelector(store),
		policy:   policy,
		log:      log,
	}
}

// NewReplenisherWithSelector injects a selector (tests pin the draw).
func NewReplenisherWithSelector(store Store, sel *Selector, policy QuotaPolicy, log zerolog.Logger) *Replenisher {
	return &Replenisher{store: store, selector: sel, policy: policy, log: log}
}

// Replenish tops up the user's wallet and returns the number of entries
// inserted. Zero is a valid, non-error result meaning the wallet was
// already full (or the catalog is exhausted for this user).
func (r *Replenisher) Replenish(ctx context.Context, userID UserID, now time.Time) (int, error) {
	counts, err := r.store.ActiveCounts(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("count active entries: %w", err)
	}

	frontstoreNeeded := max(0, r.policy.FrontstoreCap-counts.Frontstore)
	categoryBrandNeeded := max(0, r.policy.CategoryBrandCap-counts.CategoryBrand)
	if frontstoreNeeded == 0 && categoryBrandNeeded == 0 {
		return 0, nil
	}

	history, err := r.store.HistoricalCouponIDs(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load assignment history: %w", err)
	}

	var entries []WalletEntry
	for _, group := range []struct {
		types  []CouponType
		needed int
	}{
		{FrontstoreTypes, frontstoreNeeded},
		{CategoryBrandTypes, categoryBrandNeeded},
	} {
		if group.needed == 0 {
			continue
		}
		picked, err := r.selector.SelectCandidates(ctx, group.types, history, group.needed, now)
		if err != nil {
			return 0, fmt.Errorf("select candidates: %w", err)
		}
		for _, id := range picked {
			entries = append(entries, WalletEntry{
				UserID:        userID,
				CouponID:      id,
				AssignedAt:    now,
				EligibleUntil: now.Add(r.policy.Validity),
			})
		}
	}

	if len(entries) == 0 {
		return 0, nil
	}

	// One transaction per user: a reader never sees a partial pass.
	inserted, err := r.store.InsertEntries(ctx, entries, r.policy, now)
	if err != nil {
		return 0, fmt.Errorf("insert wallet entries: %w", err)
	}
	if inserted < len(entries) {
		r.log.Debug().
			Str("user_id", string(userID)).
			Int("dropped", len(entries)-inserted).
			Msg("concurrent writer won some entries")
	}
	return inserted, nil
}
