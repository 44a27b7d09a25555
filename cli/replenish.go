package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/store/sqlite"
	"github.com/dealgrid/wallet-engine/wallet"
)

// Exit codes for the replenish command.
const (
	exitClean       = 0 // every user processed or skipped, no failures
	exitUserFailure = 1 // run completed but some users failed
	exitFatal       = 2 // configuration, store, or roster failure
)

func init() {
	rootCmd.AddCommand(replenishCmd)
}

var replenishCmd = &cobra.Command{
	Use:   "replenish",
	Short: "Replenish every wallet once and exit",
	Long: `Run one roster-wide replenishment pass. The command is idempotent:
invoking it repeatedly with no time elapsed assigns nothing new. The exit
status distinguishes a fully clean run (0) from a run with recovered
per-user failures (1) and a fatal abort (2).`,
	Run: runReplenish,
}

func runReplenish(cmd *cobra.Command, args []string) {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(exitFatal)
	}

	st, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Store.Path).Msg("failed to open store")
		os.Exit(exitFatal)
	}
	defer st.Close()

	// Interruption between users defers the rest of the roster to the
	// next invocation; no state is corrupted.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := cfg.QuotaPolicy()
	rep := wallet.NewReplenisher(st, policy, log)
	runner := wallet.NewRunner(st, st, rep, policy, clock.System, log)

	summary, err := runner.RunAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("replenishment run aborted")
		os.Exit(exitFatal)
	}

	fmt.Printf("users processed:     %d\n", summary.UsersProcessed)
	fmt.Printf("coupons assigned:    %d\n", summary.CouponsAssigned)
	fmt.Printf("wallets already full: %d\n", summary.UsersSkippedFullWallet)
	fmt.Printf("users failed:        %d\n", summary.UsersFailed)

	if !summary.Clean() {
		os.Exit(exitUserFailure)
	}
	os.Exit(exitClean)
}
