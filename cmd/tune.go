package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/tune"
)

var (
	tuneConfigPath   string
	tuneMaxTicks     int64
	tuneSeeds        int
	tuneMaxEvals     int
	tunePopulation   int
	tuneOutputDir    string
	tunePolarization float64
	tuneNeighbors    float64
)

// tuneCmd searches flocking parameters with CMA-ES
var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search flocking parameters for a target flock shape",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseCfg, err := config.Load(tuneConfigPath)
		if err != nil {
			return err
		}

		_, err = tune.Run(tune.Options{
			BaseConfig: baseCfg,
			MaxTicks:   tuneMaxTicks,
			Seeds:      tuneSeeds,
			MaxEvals:   tuneMaxEvals,
			Population: tunePopulation,
			OutputDir:  tuneOutputDir,
			Targets: tune.Targets{
				Polarization: tunePolarization,
				Neighbors:    tuneNeighbors,
			},
		})
		return err
	},
}

func init() {
	defaults := tune.DefaultTargets()

	tuneCmd.Flags().StringVar(&tuneConfigPath, "config", "", "Base config file (empty = use defaults)")
	tuneCmd.Flags().Int64Var(&tuneMaxTicks, "max-ticks", 3600, "Ticks per simulation run")
	tuneCmd.Flags().IntVar(&tuneSeeds, "seeds", 3, "Number of seeds per evaluation")
	tuneCmd.Flags().IntVar(&tuneMaxEvals, "max-evals", 200, "Maximum number of evaluations")
	tuneCmd.Flags().IntVar(&tunePopulation, "population", 0, "CMA-ES population size (0 = auto)")
	tuneCmd.Flags().StringVar(&tuneOutputDir, "output", "", "Output directory for results")
	tuneCmd.Flags().Float64Var(&tunePolarization, "target-polarization", defaults.Polarization, "Target mean polarization")
	tuneCmd.Flags().Float64Var(&tuneNeighbors, "target-neighbors", defaults.Neighbors, "Target mean neighbors per agent")
	_ = tuneCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(tuneCmd)
}
