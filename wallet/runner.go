/*
runner.go - Roster-wide replenishment with failure isolation

PURPOSE:
  Iterates the user roster and tops up each wallet, producing an aggregate
  summary. One user's failure never aborts the run: the failure is logged
  with the user identity, recorded in the summary, and processing continues.
  A failed user is simply absent this run and retried on the next invocation;
  there are no in-run retries.

FATAL VS RECOVERED:
  - Roster unavailable: fatal, no partial roster is processed.
  - Per-user store error: recovered, recorded as a typed per-user result.

CANCELLATION:
  The context is checked between users, never mid-user-transaction. Users
  not yet reached are deferred to the next run with no state corruption.

CONCURRENT RUNS:
  Safe. Correctness rests on the store's (user, coupon) uniqueness
  constraint plus per-user transaction boundaries; no leader election or
  distributed locks.
*/
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/metrics"
)

// =============================================================================
// RUN SUMMARY
// =============================================================================

// UserResult is the typed outcome for one user in a run. Exactly one of
// SkippedFull, Err, or a normal pass (possibly zero assigned) applies.
type UserResult struct {
	UserID      UserID
	Assigned    int
	SkippedFull bool
	Err         error
}

// Summary aggregates one roster-wide run.
type Summary struct {
	UsersProcessed         int
	CouponsAssigned        int
	UsersSkippedFullWallet int
	UsersFailed            int
	Results                []UserResult
}

// Clean reports whether the run completed without per-user failures.
func (s Summary) Clean() bool { return s.UsersFailed == 0 }

// =============================================================================
// RUNNER - runAll()
// =============================================================================

// Runner drives replenishment across the whole roster, sequentially.
type Runner struct {
	directory   UserDirectory
	store       Store
	replenisher *Replenisher
	policy      QuotaPolicy
	clk         clock.Clock
	log         zerolog.Logger
}

// NewRunner wires a runner. The clock is the single real-time source for
// the whole run.
func NewRunner(dir UserDirectory, store Store, rep *Replenisher, policy QuotaPolicy, clk clock.Clock, log zerolog.Logger) *Runner {
	return &Runner{
		directory:   dir,
		store:       store,
		replenisher: rep,
		policy:      policy,
		clk:         clk,
		log:         log,
	}
}

// RunAll replenishes every wallet in the roster and returns the summary.
// The returned error is non-nil only for fatal conditions (roster
// unavailable, cancellation); per-user failures live in the summary.
func (r *Runner) RunAll(ctx context.Context) (Summary, error) {
	users, err := r.directory.ListUsers(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrRosterUnavailable, err)
	}

	metrics.RunsTotal.Inc()
	started := time.Now()
	var summary Summary

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			// Remaining users are deferred to the next run.
			return summary, err
		}
		res := r.runUser(ctx, u.ID)
		summary.Results = append(summary.Results, res)
		switch {
		case res.SkippedFull:
			summary.UsersSkippedFullWallet++
			metrics.UsersSkippedFull.Inc()
		case res.Err != nil:
			summary.UsersFailed++
			metrics.UserFailures.Inc()
			r.log.Error().
				Err(res.Err).
				Str("user_id", string(u.ID)).
				Msg("replenishment failed for user")
		default:
			summary.UsersProcessed++
			summary.CouponsAssigned += res.Assigned
			metrics.UsersProcessed.Inc()
			metrics.CouponsAssigned.Add(float64(res.Assigned))
		}
	}

	metrics.LastRunAssigned.Set(float64(summary.CouponsAssigned))
	r.log.Info().
		Int("users_processed", summary.UsersProcessed).
		Int("coupons_assigned", summary.CouponsAssigned).
		Int("users_skipped_full", summary.UsersSkippedFullWallet).
		Int("users_failed", summary.UsersFailed).
		Dur("elapsed", time.Since(started)).
		Msg("replenishment run complete")

	return summary, nil
}

// runUser handles one user; failures come back as typed results, never
// raw errors, so the run loop can keep going.
func (r *Runner) runUser(ctx context.Context, userID UserID) UserResult {
	now := r.clk.Now()

	counts, err := r.store.ActiveCounts(ctx, userID, now)
	if err != nil {
		return UserResult{UserID: userID, Err: &ReplenishError{UserID: userID, Err: err}}
	}
	if counts.Total() >= r.policy.TotalCap() {
		return UserResult{UserID: userID, SkippedFull: true}
	}

	assigned, err := r.replenisher.Replenish(ctx, userID, now)
	if err != nil {
		// A duplicate-entry sentinel leaking this far would mean a store bug;
		// it is still not a user-visible failure.
		if errors.Is(err, ErrDuplicateEntry) {
			return UserResult{UserID: userID, Assigned: assigned}
		}
		return UserResult{UserID: userID, Err: &ReplenishError{UserID: userID, Err: err}}
	}
	return UserResult{UserID: userID, Assigned: assigned}
}
