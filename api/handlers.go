/*
handlers.go - HTTP API handlers for the wallet engine

PURPOSE:
  Exposes the wallet subsystem over REST: roster views, per-user wallet
  views, the idempotent "replenish all wallets" trigger, and the simulation
  clock state.

ENDPOINT GROUPS:
  /api/users          Roster and wallet views
  /api/replenish      Roster-wide replenishment (safe to invoke repeatedly)
  /api/clock          Simulation clock state and operational reset
  /api/scenarios      Demo seeding

ERROR MAPPING:
  Unknown user           -> 404
  Store failures         -> 500
  Per-user run failures  -> 200 with clean=false (the run itself succeeded)

SEE ALSO:
  - server.go: router wiring
  - dto.go: response shapes
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/store/sqlite"
	"github.com/dealgrid/wallet-engine/wallet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. No package-level state:
// the store handle is injected, never a process-wide singleton.
type Handler struct {
	Store  *sqlite.Store
	Runner *wallet.Runner
	Policy wallet.QuotaPolicy
	Clock  clock.Clock
	Model  clock.Model
	Log    zerolog.Logger

	currentScenario string
}

// NewHandler creates a handler over the given store and runner.
func NewHandler(store *sqlite.Store, runner *wallet.Runner, policy wallet.QuotaPolicy, clk clock.Clock, model clock.Model, log zerolog.Logger) *Handler {
	return &Handler{
		Store:  store,
		Runner: runner,
		Policy: policy,
		Clock:  clk,
		Model:  model,
		Log:    log,
	}
}

// =============================================================================
// USER / WALLET HANDLERS
// =============================================================================

// ListUsers returns the roster.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = UserDTO{
			ID:        string(u.ID),
			Email:     u.Email,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWallet returns one user's wallet, every assignment included, with a
// per-entry usability verdict at real "now".
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := wallet.UserID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, wallet.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}

	entries, err := h.Store.WalletEntries(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load wallet", err)
		return
	}

	now := h.Clock.Now()
	dto := WalletDTO{UserID: string(userID), Entries: make([]WalletEntryDTO, 0, len(entries))}
	for _, ec := range entries {
		e := toWalletEntryDTO(ec, now)
		if e.Usable {
			dto.ActiveTotal++
		}
		dto.Entries = append(dto.Entries, e)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// REPLENISHMENT
// =============================================================================

// Replenish runs roster-wide replenishment. Idempotent: a second immediate
// call assigns nothing and still reports a clean run.
func (h *Handler) Replenish(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	summary, err := h.Runner.RunAll(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Replenishment run aborted", err)
		return
	}

	writeJSON(w, http.StatusOK, RunSummaryDTO{
		RunID:                  runID,
		UsersProcessed:         summary.UsersProcessed,
		CouponsAssigned:        summary.CouponsAssigned,
		UsersSkippedFullWallet: summary.UsersSkippedFullWallet,
		UsersFailed:            summary.UsersFailed,
		Clean:                  summary.Clean(),
	})
}

// =============================================================================
// SIMULATION CLOCK
// =============================================================================

// GetClock reports the persisted simulation state and the real clock side
// by side. The two never mix: wallet validity always follows real_now.
func (h *Handler) GetClock(w http.ResponseWriter, r *http.Request) {
	state, err := h.Store.GetSimulationState(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read simulation clock", err)
		return
	}

	model := h.Model
	if state.TimeScale > 0 {
		if m, err := clock.NewModel(state.TimeScale); err == nil {
			model = m
		}
	}

	realNow := h.Clock.Now()
	dto := ClockDTO{
		RealNow:       realNow.Format(time.RFC3339),
		IsActive:      state.IsActive,
		TimeScale:     model.TimeScale(),
		CycleRealCost: model.CycleRealCost().String(),
	}
	if simNow, ok := model.SimulatedNow(state, realNow); ok {
		s := simNow.Format(time.RFC3339)
		dto.SimulatedDate = &s
	}
	writeJSON(w, http.StatusOK, dto)
}

// ResetClock restores the simulation clock singleton to operational
// defaults. This is the external tooling surface, not a simulation feature.
func (h *Handler) ResetClock(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ResetSimulationClock(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset simulation clock", err)
		return
	}
	h.Log.Info().Msg("simulation clock reset to defaults")
	h.GetClock(w, r)
}

// Healthz is a liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
