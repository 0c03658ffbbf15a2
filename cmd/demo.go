package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"dxmsg/pkg/config"
	"dxmsg/pkg/diag"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/message"
	"dxmsg/pkg/sim"
)

var demoFlags struct {
	actors      int
	ticks       int
	tickMillis  int
	seed        int64
	diagnostics bool
	metrics     bool
	history     int
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the actor world and print a diagnostics report",
	Long:  "Runs the actor world for the configured number of ticks on a fresh bus, then prints actor state, bus counters, the newest emissions and the metrics summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		applySimFlags(cmd, cfg)

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runDemo(runCtx, cfg, logger.For(log, "cmd.demo"), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	addSimFlags(demoCmd)
	demoCmd.Flags().BoolVar(&demoFlags.diagnostics, "diagnostics", false, "record emission history and the registration log")
	demoCmd.Flags().BoolVar(&demoFlags.metrics, "metrics", false, "collect Prometheus metrics and print their summary")
	demoCmd.Flags().IntVar(&demoFlags.history, "history", 10, "number of newest emissions to print")
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&demoFlags.actors, "actors", 0, "number of actors (overrides sim.actors)")
	cmd.Flags().IntVar(&demoFlags.ticks, "ticks", 0, "ticks to run, 0 runs until interrupted (overrides sim.ticks)")
	cmd.Flags().IntVar(&demoFlags.tickMillis, "tick-millis", 0, "milliseconds between ticks (overrides sim.tick_millis)")
	cmd.Flags().Int64Var(&demoFlags.seed, "seed", 0, "random seed (overrides sim.seed)")
}

// applySimFlags copies explicitly set flags over cfg.
func applySimFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("actors") {
		cfg.Sim.Actors = demoFlags.actors
	}
	if flags.Changed("ticks") {
		cfg.Sim.Ticks = demoFlags.ticks
	}
	if flags.Changed("tick-millis") {
		cfg.Sim.TickMillis = demoFlags.tickMillis
	}
	if flags.Changed("seed") {
		cfg.Sim.Seed = demoFlags.seed
	}
	if flags.Changed("diagnostics") {
		cfg.Bus.Diagnostics = demoFlags.diagnostics
	}
	if flags.Changed("metrics") {
		cfg.Bus.Metrics = demoFlags.metrics
	}
}

func runDemo(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) error {
	b, registry, err := newBus(cfg.Bus, "demo", log)
	if err != nil {
		return err
	}

	world, err := sim.NewWorld(b, cfg.Sim, sim.WithLogger(log))
	if err != nil {
		return fmt.Errorf("create world: %w", err)
	}
	defer world.Close()

	interval := time.Duration(cfg.Sim.TickMillis) * time.Millisecond
	err = world.Run(ctx, cfg.Sim.Ticks, interval, func(r sim.Report) {
		log.Debug("Tick complete", "tick", r.Tick, "emitted", r.Bus.Emitted, "vetoed", r.Bus.Vetoed)
	})
	// An interrupted run still prints what happened so far.
	if err != nil && ctx.Err() == nil {
		return err
	}

	var samples []diag.Sample
	if registry != nil {
		if samples, err = diag.Summary(registry); err != nil {
			return fmt.Errorf("gather metrics: %w", err)
		}
	}

	history := b.History()
	history = history[max(0, len(history)-demoFlags.history):]

	_, err = fmt.Fprintln(out, renderReport(world.Report(), history, samples))
	return err
}

var (
	reportTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24"))
	reportSection = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))
	reportBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("130")).
			Padding(0, 1)
	reportDim = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

func renderReport(r sim.Report, history []diag.Emission, samples []diag.Sample) string {
	parts := []string{
		reportTitle.Render(fmt.Sprintf("dxmsg demo · %d ticks", r.Tick)),
		reportSection.Render("Actors"),
		reportBox.Render(actorTable(r.Actors)),
		reportSection.Render("Bus"),
		reportBox.Render(busSummary(r)),
	}

	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, e := range history {
			lines = append(lines, e.String())
		}
		parts = append(parts, reportSection.Render("Recent emissions"), reportBox.Render(strings.Join(lines, "\n")))
	}

	if len(samples) > 0 {
		lines := make([]string, 0, len(samples))
		for _, s := range samples {
			lines = append(lines, fmt.Sprintf("%-32s %-36s %g", s.Name, s.Labels, s.Value))
		}
		parts = append(parts, reportSection.Render("Metrics"), reportBox.Render(strings.Join(lines, "\n")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func actorTable(actors []sim.ActorState) string {
	lines := []string{reportDim.Render(fmt.Sprintf("%-10s %-6s %6s %6s %6s %6s %6s", "actor", "state", "health", "pings", "heals", "hits", "deaths"))}
	for _, a := range actors {
		state := "alive"
		if !a.Alive {
			state = "dead"
		}
		lines = append(lines, fmt.Sprintf("%-10s %-6s %6d %6d %6d %6d %6d", a.Name, state, a.Health, a.Pings, a.Heals, a.Hits, a.Deaths))
	}
	return strings.Join(lines, "\n")
}

func busSummary(r sim.Report) string {
	categories := []message.Category{message.CategoryUntargeted, message.CategoryTargeted, message.CategoryBroadcast}
	observed := make([]string, 0, len(categories))
	for _, c := range categories {
		observed = append(observed, fmt.Sprintf("%s=%d", c, r.Observed[c]))
	}

	return strings.Join([]string{
		fmt.Sprintf("emitted %d · vetoed %d · delivered %d · subscriptions %d", r.Bus.Emitted, r.Bus.Vetoed, r.Bus.Delivered, r.Bus.Subscriptions),
		fmt.Sprintf("observed %s", strings.Join(observed, " ")),
		fmt.Sprintf("damage dealt %d · heals vetoed %d", r.DamageDealt, r.VetoedHeals),
	}, "\n")
}
