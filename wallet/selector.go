/*
selector.go - Uniform random candidate selection from the catalog

PURPOSE:
  Draws the coupons a replenishment pass will assign. The store supplies
  the qualifying set (type, expiration, activity, and the user's full
  historical exclusion set); the selector takes a uniform random sample
  without replacement.

DEFICIT IS NOT AN ERROR:
  If the qualifying set has fewer members than the limit, all of them are
  returned. A user whose pool is exhausted simply gets a partial fill.

SCALE NOTE:
  Sampling here shuffles the qualifying id set in memory, which is fine at
  catalog scale (thousands of rows). If the catalog ever grows to millions
  of rows, switch to reservoir sampling over a streaming store query.
*/
package wallet

import (
	"context"
	"math/rand"
	"time"
)

// =============================================================================
// SELECTOR - selectCandidates over the catalog
// =============================================================================

// Selector draws random coupon candidates for assignment.
type Selector struct {
	store Store
	rng   *rand.Rand
}

// NewSelector creates a selector with a time-seeded randomness source.
func NewSelector(store Store) *Selector {
	return NewSelectorWithSource(store, rand.NewSource(time.Now().UnixNano()))
}

// NewSelectorWithSource creates a selector with an explicit source, so tests
// can pin the draw.
func NewSelectorWithSource(store Store, src rand.Source) *Selector {
	return &Selector{store: store, rng: rand.New(src)}
}

// SelectCandidates returns up to limit coupon ids whose type is in types,
// which are unexpired and active at now, and whose id is not in exclude.
// The result is a uniform random sample without replacement from the
// qualifying set; fewer than limit qualifying coupons is a partial result,
// not an error.
func (s *Selector) SelectCandidates(ctx context.Context, types []CouponType, exclude []CouponID, limit int, now time.Time) ([]CouponID, error) {
	if limit <= 0 {
		return nil, nil
	}

	pool, err := s.store.EligibleCouponIDs(ctx, types, exclude, now)
	if err != nil {
		return nil, err
	}
	if len(pool) <= limit {
		return pool, nil
	}

	// Partial Fisher-Yates: after k swaps the first k slots are a uniform
	// sample without replacement.
	for i := 0; i < limit; i++ {
		j := i + s.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:limit], nil
}
