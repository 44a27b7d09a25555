/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario seeds users and a coupon catalog so the
	replenisher can be exercised end to end from the API.

AVAILABLE SCENARIOS:

	fresh-market:      Small roster, plentiful catalog (full 2+30 fills)
	scarce-frontstore: One frontstore coupon left (partial fill)
	fast-forward:      Simulation clock pushed years ahead (clock separation)

HOW SCENARIOS WORK:
 1. Reset database (clear wallet data)
 2. Seed users (stand-in for the external directory sync)
 3. Seed coupons (stand-in for catalog migration/seeding)
 4. Optionally write the simulation clock singleton

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - server.go: scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/wallet"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-market",
		Name:        "Fresh Market",
		Description: "Three users, plentiful catalog; every wallet fills to 2+30",
	},
	{
		ID:          "scarce-frontstore",
		Name:        "Scarce Frontstore",
		Description: "Only one eligible frontstore coupon remains; partial fill",
	},
	{
		ID:          "fast-forward",
		Name:        "Fast Forward",
		Description: "Simulated calendar years ahead; real-clock validity unaffected",
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario reports which scenario was last loaded.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"current": h.currentScenario})
}

// LoadScenario resets the database and seeds the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ID {
	case "fresh-market":
		err = h.loadFreshMarket(ctx)
	case "scarce-frontstore":
		err = h.loadScarceFrontstore(ctx)
	case "fast-forward":
		err = h.loadFastForward(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ID
	h.Log.Info().Str("scenario", req.ID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFreshMarket(ctx context.Context) error {
	now := h.Clock.Now()
	if err := h.seedUsers(ctx, now, "ada@example.com", "grace@example.com", "alan@example.com"); err != nil {
		return err
	}
	if err := h.seedCoupons(ctx, now, 5, 40); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadScarceFrontstore(ctx context.Context) error {
	now := h.Clock.Now()
	if err := h.seedUsers(ctx, now, "ada@example.com"); err != nil {
		return err
	}
	return h.seedCoupons(ctx, now, 1, 40)
}

func (h *Handler) loadFastForward(ctx context.Context) error {
	now := h.Clock.Now()
	if err := h.seedUsers(ctx, now, "ada@example.com"); err != nil {
		return err
	}
	if err := h.seedCoupons(ctx, now, 5, 40); err != nil {
		return err
	}

	// Simulated calendar far in the future. Wallet validity must not notice.
	simDate := now.AddDate(4, 0, 0)
	return h.Store.SaveSimulationState(ctx, clock.SimulationState{
		IsActive:             true,
		CurrentSimulatedDate: &simDate,
		RealStartTime:        &now,
		TimeScale:            clock.DefaultTimeScale,
	})
}

func (h *Handler) seedUsers(ctx context.Context, now time.Time, emails ...string) error {
	for i, email := range emails {
		u := wallet.User{
			ID:        wallet.UserID(uuid.NewString()),
			Email:     email,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedCoupons(ctx context.Context, now time.Time, frontstore, categoryBrand int) error {
	expiry := now.AddDate(0, 2, 0)

	for i := 0; i < frontstore; i++ {
		c := wallet.Coupon{
			ID:             wallet.CouponID(fmt.Sprintf("fs-%s", uuid.NewString()[:8])),
			Type:           wallet.TypeFrontstore,
			DiscountType:   "percent_off",
			DiscountValue:  decimal.NewFromInt(int64(5 + i)),
			ExpirationDate: expiry,
		}
		if err := h.Store.SaveCoupon(ctx, c); err != nil {
			return err
		}
	}

	for i := 0; i < categoryBrand; i++ {
		typ := wallet.TypeCategory
		if i%2 == 1 {
			typ = wallet.TypeBrand
		}
		c := wallet.Coupon{
			ID:             wallet.CouponID(fmt.Sprintf("cb-%s", uuid.NewString()[:8])),
			Type:           typ,
			DiscountType:   "amount_off",
			DiscountValue:  decimal.NewFromInt(int64(1 + i%10)),
			ExpirationDate: expiry,
		}
		if err := h.Store.SaveCoupon(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
