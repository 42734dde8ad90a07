package tune

import (
	"math"
	"sync"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
	"github.com/pthm-cable/flock/telemetry"
)

// failedPenalty is the fitness of a run that could not start.
const failedPenalty = 1e6

// Targets is the flock shape a tuning run aims for.
type Targets struct {
	Polarization float64 // mean polarization, in [0, 1]
	Neighbors    float64 // mean neighbors per agent, > 0
}

// DefaultTargets returns a loosely aligned flock with a handful of neighbors each.
func DefaultTargets() Targets {
	return Targets{Polarization: 0.8, Neighbors: 4}
}

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int64
	seeds      []int64
	baseConfig *config.Config
	targets    Targets

	mu          sync.Mutex
	bestFitness float64
	lastScore   runScore // averaged over seeds from the most recent Evaluate call
}

// runScore holds the measured flock shape from one or more runs.
type runScore struct {
	Polarization float64
	Neighbors    float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config, targets Targets) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		targets:     targets,
		bestFitness: math.Inf(1),
	}
}

// LastScore returns the mean polarization and neighbor count from the most
// recent evaluation.
func (fe *FitnessEvaluator) LastScore() (polarization, neighbors float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastScore.Polarization, fe.lastScore.Neighbors
}

// BestFitness returns the lowest fitness seen so far.
func (fe *FitnessEvaluator) BestFitness() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	score   runScore
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)

	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(cfg, s)
			if err != nil {
				results[idx] = seedResult{fitness: failedPenalty}
				return
			}
			score := measure(windows)
			results[idx] = seedResult{
				fitness: fe.computeFitness(score),
				score:   score,
			}
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var total float64
	var mean runScore
	for _, r := range results {
		total += r.fitness
		mean.Polarization += r.score.Polarization
		mean.Neighbors += r.score.Neighbors
	}
	n := float64(len(results))
	avgFitness := total / n
	mean.Polarization /= n
	mean.Neighbors /= n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
	}
	fe.lastScore = mean
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) ([]telemetry.WindowStats, error) {
	var windows []telemetry.WindowStats

	g, err := game.NewGameWithOptions(game.Options{
		Seed:           seed,
		StepsPerUpdate: 1,
		Config:         cfg,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		if err := g.UpdateHeadless(); err != nil {
			return nil, err
		}
	}
	return windows, nil
}

// measure averages the second half of the windows, skipping empty ones, so
// the flock has time to settle.
func measure(windows []telemetry.WindowStats) runScore {
	var s runScore
	count := 0
	for _, w := range windows[len(windows)/2:] {
		if w.Agents == 0 {
			continue
		}
		s.Polarization += w.Polarization
		s.Neighbors += w.NeighborsMean
		count++
	}
	if count > 0 {
		s.Polarization /= float64(count)
		s.Neighbors /= float64(count)
	}
	return s
}

// computeFitness is the squared error against the targets, with the
// neighbor term relative to the target count.
func (fe *FitnessEvaluator) computeFitness(s runScore) float64 {
	dp := s.Polarization - fe.targets.Polarization
	dn := s.Neighbors - fe.targets.Neighbors
	if fe.targets.Neighbors > 0 {
		dn /= fe.targets.Neighbors
	}
	return dp*dp + dn*dn
}
