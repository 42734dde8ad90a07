package tune

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flock/config"
)

// Options configures a tuning run.
type Options struct {
	BaseConfig *config.Config // nil uses the embedded defaults
	MaxTicks   int64          // ticks per simulation run
	Seeds      int            // seeds per evaluation
	MaxEvals   int
	Population int // CMA-ES population size; 0 picks one from the dimension
	OutputDir  string
	Targets    Targets
}

// Result is the outcome of a tuning run.
type Result struct {
	Evals       int
	BestFitness float64
	BestParams  []float64 // raw values in ParamVector.Specs order
	BestConfig  *config.Config
}

// formatDuration formats a duration as HhMMmSSs or MmSSs for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// Run minimizes the fitness with CMA-ES, logging every evaluation to
// tune_log.csv and writing best_config.yaml to opts.OutputDir.
func Run(opts Options) (*Result, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.MaxTicks < 1 || opts.Seeds < 1 || opts.MaxEvals < 1 {
		return nil, fmt.Errorf("max ticks, seeds and max evals must be positive")
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg := opts.BaseConfig
	if baseCfg == nil {
		baseCfg = config.Default()
	}

	params := NewParamVector()

	// Generate seeds for evaluation
	evalSeeds := make([]int64, opts.Seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, opts.MaxTicks, evalSeeds, baseCfg, opts.Targets)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	popSize := opts.Population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	logFile, err := os.Create(filepath.Join(opts.OutputDir, "tune_log.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating tune log: %w", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness", "polarization", "neighbors"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := logWriter.Write(header); err != nil {
		return nil, fmt.Errorf("writing tune log: %w", err)
	}

	res := &Result{BestFitness: failedPenalty}
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			res.Evals++

			if res.BestParams == nil || fitness < res.BestFitness {
				res.BestFitness = fitness
				res.BestParams = clamped
			}

			pol, nb := evaluator.LastScore()
			row := []string{
				strconv.Itoa(res.Evals),
				strconv.FormatFloat(fitness, 'f', 6, 64),
				strconv.FormatFloat(pol, 'f', 4, 64),
				strconv.FormatFloat(nb, 'f', 4, 64),
			}
			for _, v := range clamped {
				row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
			}
			if err := logWriter.Write(row); err != nil {
				slog.Error("failed to write tune log", "error", err)
			}
			logWriter.Flush()

			elapsed := time.Since(startTime)
			remaining := time.Duration(opts.MaxEvals-res.Evals) * (elapsed / time.Duration(res.Evals))
			slog.Info("eval",
				"n", res.Evals,
				"of", opts.MaxEvals,
				"fitness", fitness,
				"polarization", pol,
				"neighbors", nb,
				"best", res.BestFitness,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)

			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvals,
		Concurrent:      0, // Seeds already run in parallel
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	slog.Info("starting CMA-ES",
		"params", dim,
		"population", popSize,
		"max_evals", opts.MaxEvals,
		"seeds", opts.Seeds,
		"max_ticks", opts.MaxTicks,
	)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if res.BestParams == nil {
		if result == nil {
			return nil, fmt.Errorf("optimization produced no evaluations: %w", err)
		}
		res.BestParams = params.Clamp(params.Denormalize(result.X))
	}

	res.BestConfig = baseCfg.Clone()
	params.ApplyToConfig(res.BestConfig, res.BestParams)
	if err := res.BestConfig.WriteYAML(filepath.Join(opts.OutputDir, "best_config.yaml")); err != nil {
		return res, err
	}

	attrs := []any{"evals", res.Evals, "best_fitness", res.BestFitness, "elapsed", formatDuration(time.Since(startTime))}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, res.BestParams[i])
	}
	slog.Info("optimization complete", attrs...)

	return res, nil
}
