// Package cli implements the walletd command tree.
//
// Commands:
//
//	walletd serve       Run the HTTP API server
//	walletd replenish   Replenish every wallet once and exit
//	walletd clock reset Reset the simulation clock singleton to defaults
//
// All commands share --config (TOML) and --db (store path override).
// A bad configuration or unreachable store aborts before any user is
// processed.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dealgrid/wallet-engine/config"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Coupon wallet engine",
	Long: `walletd maintains bounded per-user coupon wallets for the commerce
platform: it replenishes each wallet to its per-group quota on demand and
serves wallet views over HTTP. Coupon validity is always real wall-clock
time, independent of the accelerated simulation calendar.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// loadConfig resolves configuration with flag overrides applied.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
