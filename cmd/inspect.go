package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/sim"
	"dxmsg/pkg/ui/inspector"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Watch the actor world in a terminal inspector",
	Long:  "Runs the actor world with diagnostics enabled and shows the emission history, the registration log and actor state live.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		applySimFlags(cmd, cfg)

		// Log lines would tear the full-screen view.
		quiet := logger.Discard()

		b, _, err := newBus(cfg.Bus, "inspect", quiet, bus.WithDiagnostics(true))
		if err != nil {
			return err
		}

		world, err := sim.NewWorld(b, cfg.Sim, sim.WithLogger(quiet))
		if err != nil {
			return fmt.Errorf("create world: %w", err)
		}
		defer world.Close()

		interval := time.Duration(cfg.Sim.TickMillis) * time.Millisecond
		return inspector.Run(world, interval, cfg.Sim.Ticks)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addSimFlags(inspectCmd)
}
