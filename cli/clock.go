package cli

import (
	"github.com/spf13/cobra"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/store/sqlite"
)

func init() {
	clockCmd.AddCommand(clockResetCmd)
	rootCmd.AddCommand(clockCmd)
}

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Inspect and manage the simulation clock",
}

var clockResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the simulation calendar and restore the reset time scale",
	RunE:  runClockReset,
}

func runClockReset(cmd *cobra.Command, args []string) error {
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

	if err := st.ResetSimulationClock(cmd.Context()); err != nil {
		return err
	}

	log.Info().Float64("time_scale", clock.ResetTimeScale).Msg("simulation clock reset")
	return nil
}
