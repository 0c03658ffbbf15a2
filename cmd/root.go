/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/config"
	"dxmsg/pkg/diag"
	"dxmsg/pkg/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dxmsg",
	Short: "Synchronous priority-ordered message bus",
	Long: `dxmsg runs a small world of actors on an in-process message bus and
shows how untargeted, targeted and broadcast messages flow through
interceptors, handlers and post-processors.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime resolves the config, falling back to defaults when no file is
// present, and installs the process logger.
func loadRuntime() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, appLogger, nil
}

// newBus builds the bus from the bus section of cfg. The returned registry is
// nil unless metrics are enabled.
func newBus(cfg config.BusConfig, name string, log *slog.Logger, opts ...bus.Option) (*bus.Bus, *prometheus.Registry, error) {
	base := []bus.Option{bus.WithName(name), bus.WithLogger(log)}

	var registry *prometheus.Registry
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		metrics, err := diag.NewMetrics(registry, name)
		if err != nil {
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
		base = append(base, bus.WithMetrics(metrics))
	}

	return bus.NewFromConfig(cfg, append(base, opts...)...), registry, nil
}
