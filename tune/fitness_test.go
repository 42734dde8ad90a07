package tune

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/telemetry"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Population.Initial = 30
	cfg.Telemetry.StatsWindow = 10 * cfg.Simulation.DT
	return cfg
}

func TestMeasure_UsesSecondHalf(t *testing.T) {
	windows := []telemetry.WindowStats{
		{Agents: 10, FlockStats: telemetry.FlockStats{Polarization: 0.1, NeighborsMean: 1}},
		{Agents: 10, FlockStats: telemetry.FlockStats{Polarization: 0.1, NeighborsMean: 1}},
		{Agents: 10, FlockStats: telemetry.FlockStats{Polarization: 0.6, NeighborsMean: 3}},
		{Agents: 10, FlockStats: telemetry.FlockStats{Polarization: 0.8, NeighborsMean: 5}},
	}

	s := measure(windows)

	assert.InDelta(t, 0.7, s.Polarization, 1e-9)
	assert.InDelta(t, 4.0, s.Neighbors, 1e-9)
	assert.Equal(t, runScore{}, measure(nil))
}

func TestComputeFitness(t *testing.T) {
	fe := NewFitnessEvaluator(NewParamVector(), 1, []int64{1}, config.Default(), Targets{Polarization: 0.8, Neighbors: 4})

	assert.Zero(t, fe.computeFitness(runScore{Polarization: 0.8, Neighbors: 4}))
	assert.InDelta(t, 0.04+0.25, fe.computeFitness(runScore{Polarization: 0.6, Neighbors: 2}), 1e-9)
}

func TestFitnessEvaluator_Evaluate(t *testing.T) {
	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 40, []int64{1, 2}, smallConfig(), DefaultTargets())

	fitness := fe.Evaluate(pv.DefaultVector())

	assert.GreaterOrEqual(t, fitness, 0.0)
	assert.Less(t, fitness, failedPenalty)
	assert.Equal(t, fitness, fe.BestFitness())
	pol, nb := fe.LastScore()
	assert.GreaterOrEqual(t, pol, 0.0)
	assert.LessOrEqual(t, pol, 1.0)
	assert.GreaterOrEqual(t, nb, 0.0)
}

func TestFitnessEvaluator_Deterministic(t *testing.T) {
	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 30, []int64{5}, smallConfig(), DefaultTargets())

	assert.Equal(t, fe.Evaluate(pv.DefaultVector()), fe.Evaluate(pv.DefaultVector()))
}

func TestRun_WritesOutputs(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(Options{
		BaseConfig: smallConfig(),
		MaxTicks:   20,
		Seeds:      1,
		MaxEvals:   4,
		Population: 4,
		OutputDir:  dir,
		Targets:    DefaultTargets(),
	})
	require.NoError(t, err)

	assert.Positive(t, res.Evals)
	assert.Len(t, res.BestParams, NewParamVector().Dim())
	require.NotNil(t, res.BestConfig)
	assert.NoError(t, res.BestConfig.Flock.Validate())

	data, err := os.ReadFile(filepath.Join(dir, "tune_log.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, res.Evals+1, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "eval,fitness,polarization,neighbors,separation_weight"))

	loaded, err := config.Load(filepath.Join(dir, "best_config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, res.BestConfig.Flock, loaded.Flock)
}

func TestRun_RequiresOutputDir(t *testing.T) {
	_, err := Run(Options{MaxTicks: 1, Seeds: 1, MaxEvals: 1})
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1m05s", formatDuration(65*time.Second))
	assert.Equal(t, "2h03m04s", formatDuration(2*time.Hour+3*time.Minute+4*time.Second))
}
