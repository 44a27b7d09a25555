package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dealgrid/wallet-engine/api"
	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/store/sqlite"
	"github.com/dealgrid/wallet-engine/wallet"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve wallet views, the replenishment trigger, the simulation clock
state, and Prometheus metrics. Shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	policy := cfg.QuotaPolicy()
	model := clock.MustModel(cfg.Clock.TimeScale)
	rep := wallet.NewReplenisher(st, policy, log)
	runner := wallet.NewRunner(st, st, rep, policy, clock.System, log)
	handler := api.NewHandler(st, runner, policy, clock.System, model, log)

	sched := api.NewReplenishmentScheduler(runner, model, log)
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
