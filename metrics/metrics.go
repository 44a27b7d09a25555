// Package metrics exposes Prometheus instrumentation for the wallet engine.
// Scrape via the /metrics endpoint mounted by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// REPLENISHMENT RUN METRICS
// =============================================================================

var RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "wallet_replenishment_runs_total",
	Help: "Number of roster-wide replenishment runs started.",
})

var UsersProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "wallet_users_processed_total",
	Help: "Users whose wallets were replenished (including zero-assignment passes).",
})

var UsersSkippedFull = promauto.NewCounter(prometheus.CounterOpts{
	Name: "wallet_users_skipped_full_total",
	Help: "Users skipped because their wallet was already at the total cap.",
})

var UserFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "wallet_user_failures_total",
	Help: "Per-user replenishment failures recovered by the runner.",
})

var CouponsAssigned = promauto.NewCounter(prometheus.CounterOpts{
	Name: "wallet_coupons_assigned_total",
	Help: "Wallet entries created across all runs.",
})

var LastRunAssigned = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "wallet_last_run_coupons_assigned",
	Help: "Wallet entries created by the most recent run.",
})
