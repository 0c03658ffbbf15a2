package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dxmsg/pkg/gateway"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/sim"
)

var serveFlags struct {
	host string
	port int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the actor world behind an HTTP status server",
	Long:  "Runs the actor world with metrics enabled and serves /healthz, /readyz, /metrics, /report, /history and /registrations until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, appLogger, err := loadRuntime()
		if err != nil {
			return err
		}
		applySimFlags(cmd, cfg)
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveFlags.host
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serveFlags.port
		}
		cfg.Bus.Metrics = true
		log := logger.For(appLogger, "cmd.serve")

		b, registry, err := newBus(cfg.Bus, "serve", appLogger)
		if err != nil {
			return err
		}

		world, err := sim.NewWorld(b, cfg.Sim, sim.WithLogger(appLogger))
		if err != nil {
			return fmt.Errorf("create world: %w", err)
		}
		defer world.Close()

		svc, err := gateway.NewService(cfg, world, registry, appLogger)
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("Serving world", "actors", cfg.Sim.Actors, "ticks", cfg.Sim.Ticks, "diagnostics", cfg.Bus.Diagnostics)
		return svc.Run(runCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSimFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "bind host (overrides server.host)")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "bind port (overrides server.port)")
}
