package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
)

var (
	configPath     string // Path to a YAML or TOML config (empty = defaults)
	seed           int64  // RNG seed (0 = config, then time-based)
	maxTicks       int64  // Stop after N ticks (0 = unlimited)
	mode           string // Overrides simulation.mode
	workers        int    // Overrides simulation.workers
	stepsPerUpdate int    // Ticks per update call
	outputDir      string // Output directory for CSV logs and config snapshot
	logStats       bool   // Output stats via slog
)

// runCmd runs a headless simulation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation headless",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rngSeed := resolveSeed(seed, cfg.Simulation.Seed)

		g, err := game.NewGameWithOptions(game.Options{
			Seed:           rngSeed,
			OutputDir:      outputDir,
			LogStats:       logStats,
			StepsPerUpdate: stepsPerUpdate,
			MaxTicks:       maxTicks,
			Config:         cfg,
		})
		if err != nil {
			return err
		}
		defer g.Unload()

		slog.Info("starting headless simulation",
			"run_id", g.RunID(),
			"seed", rngSeed,
			"mode", g.Simulation().Mode().String(),
			"max_ticks", maxTicks,
			"steps_per_update", stepsPerUpdate,
		)

		for {
			if err := g.UpdateHeadless(); err != nil {
				return err
			}

			if maxTicks > 0 && g.Tick() >= maxTicks {
				slog.Info("max ticks reached", "tick", g.Tick(), "agents", g.AgentCount())
				return nil
			}
		}
	},
}

// loadConfig loads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("mode") && !cmd.Flags().Changed("workers") {
		return cfg, nil
	}

	if cmd.Flags().Changed("mode") {
		cfg.Simulation.Mode = mode
	}
	if cmd.Flags().Changed("workers") {
		cfg.Simulation.Workers = workers
	}
	return config.Finalize(cfg)
}

// resolveSeed picks the flag, then the config, then the clock.
func resolveSeed(flagSeed, cfgSeed int64) int64 {
	if flagSeed != 0 {
		return flagSeed
	}
	if cfgSeed != 0 {
		return cfgSeed
	}
	return time.Now().UnixNano()
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML or TOML config file (empty = use defaults)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "RNG seed (0 = config seed, then time-based)")
	runCmd.Flags().Int64Var(&maxTicks, "max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	runCmd.Flags().StringVar(&mode, "mode", "sequential", "Step mode (sequential, parallel)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Worker count for parallel mode (0 = GOMAXPROCS)")
	runCmd.Flags().IntVar(&stepsPerUpdate, "steps-per-update", 1, "Simulation ticks per update call")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	runCmd.Flags().BoolVar(&logStats, "log-stats", false, "Output window stats via slog")

	rootCmd.AddCommand(runCmd)
}
