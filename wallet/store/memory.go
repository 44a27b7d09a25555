// Package store provides wallet.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dealgrid/wallet-engine/wallet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements wallet.Store and wallet.UserDirectory in memory with
// the same first-writer-wins insert semantics as the SQLite store.
type Memory struct {
	mu      sync.RWMutex
	users   []wallet.User
	coupons map[wallet.CouponID]wallet.Coupon
	entries map[entryKey]wallet.WalletEntry
}

type entryKey struct {
	UserID   wallet.UserID
	CouponID wallet.CouponID
}

func NewMemory() *Memory {
	return &Memory{
		coupons: make(map[wallet.CouponID]wallet.Coupon),
		entries: make(map[entryKey]wallet.WalletEntry),
	}
}

// =============================================================================
// SEEDING (catalog and roster are externally owned; tests seed directly)
// =============================================================================

// AddUser appends a roster record.
func (m *Memory) AddUser(u wallet.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, u)
}

// AddCoupon adds a catalog record.
func (m *Memory) AddCoupon(c wallet.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[c.ID] = c
}

// =============================================================================
// USER DIRECTORY
// =============================================================================

// ListUsers returns the roster ordered by creation time, most recent last.
func (m *Memory) ListUsers(_ context.Context) ([]wallet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]wallet.User, len(m.users))
	copy(out, m.users)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// WALLET STORE
// =============================================================================

func (m *Memory) EligibleCouponIDs(_ context.Context, types []wallet.CouponType, exclude []wallet.CouponID, now time.Time) ([]wallet.CouponID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := make(map[wallet.CouponID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	typed := make(map[wallet.CouponType]bool, len(types))
	for _, t := range types {
		typed[t] = true
	}

	var ids []wallet.CouponID
	for id, c := range m.coupons {
		if typed[c.Type] && !excluded[id] && wallet.CouponUsable(c, now) {
			ids = append(ids, id)
		}
	}
	// Stable order keeps seeded-selector tests deterministic.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) HistoricalCouponIDs(_ context.Context, userID wallet.UserID) ([]wallet.CouponID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []wallet.CouponID
	for k := range m.entries {
		if k.UserID == userID {
			ids = append(ids, k.CouponID)
		}
	}
	return ids, nil
}

func (m *Memory) ActiveCounts(_ context.Context, userID wallet.UserID, now time.Time) (wallet.Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var counts wallet.Counts
	for k, e := range m.entries {
		if k.UserID != userID {
			continue
		}
		c, ok := m.coupons[k.CouponID]
		if !ok || !wallet.Presentable(c, e, now) {
			continue
		}
		if c.Type == wallet.TypeFrontstore {
			counts.Frontstore++
		} else {
			counts.CategoryBrand++
		}
	}
	return counts, nil
}

// InsertEntries is atomic under the store mutex; conflicting pairs are
// dropped, first writer wins, and each row re-checks its quota group's
// active count so overlapping passes cannot overfill a group.
func (m *Memory) InsertEntries(_ context.Context, entries []wallet.WalletEntry, policy wallet.QuotaPolicy, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, e := range entries {
		k := entryKey{UserID: e.UserID, CouponID: e.CouponID}
		if _, exists := m.entries[k]; exists {
			continue
		}
		c, ok := m.coupons[e.CouponID]
		if !ok {
			return 0, wallet.ErrCouponNotFound
		}
		if m.activeGroupCount(e.UserID, c.Type, now) >= groupCap(policy, c.Type) {
			continue
		}
		m.entries[k] = e
		inserted++
	}
	return inserted, nil
}

// activeGroupCount counts the user's presentable entries in the quota group
// of typ. Callers hold the mutex.
func (m *Memory) activeGroupCount(userID wallet.UserID, typ wallet.CouponType, now time.Time) int {
	frontstore := typ == wallet.TypeFrontstore
	count := 0
	for k, e := range m.entries {
		if k.UserID != userID {
			continue
		}
		c, ok := m.coupons[k.CouponID]
		if !ok || !wallet.Presentable(c, e, now) {
			continue
		}
		if (c.Type == wallet.TypeFrontstore) == frontstore {
			count++
		}
	}
	return count
}

func groupCap(policy wallet.QuotaPolicy, typ wallet.CouponType) int {
	if typ == wallet.TypeFrontstore {
		return policy.FrontstoreCap
	}
	return policy.CategoryBrandCap
}

func (m *Memory) WalletEntries(_ context.Context, userID wallet.UserID) ([]wallet.EntryWithCoupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []wallet.EntryWithCoupon
	for k, e := range m.entries {
		if k.UserID != userID {
			continue
		}
		c, ok := m.coupons[k.CouponID]
		if !ok {
			return nil, wallet.ErrCouponNotFound
		}
		out = append(out, wallet.EntryWithCoupon{Entry: e, Coupon: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coupon.ID < out[j].Coupon.ID })
	return out, nil
}
