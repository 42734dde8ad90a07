package flock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/flock/systems"
)

type recordingObserver struct {
	phases []string
}

func (r *recordingObserver) StartPhase(name string) {
	r.phases = append(r.phases, name)
}

func TestScheduler_PhaseOrder(t *testing.T) {
	for _, mode := range []Mode{ModeSequential, ModeParallel} {
		t.Run(mode.String(), func(t *testing.T) {
			sim := newSim(t, DefaultParams(), Options{Seed: 1, Mode: mode, Workers: 3, ParallelThreshold: 1})
			obs := &recordingObserver{}
			sim.SetObserver(obs)
			require.NoError(t, sim.SetTargetPopulation(10))

			_, err := sim.Step(dt)
			require.NoError(t, err)

			assert.Equal(t, []string{PhaseResize, PhaseNeighborScan, PhaseForces, PhaseIntegrate}, obs.phases)
		})
	}
}

type stageRecorder struct {
	recordingObserver
	stages []Stage
	busy   [NumStages]time.Duration
}

func (r *stageRecorder) EndStage(st Stage, busy time.Duration) {
	r.stages = append(r.stages, st)
	r.busy[st] += busy
}

func TestScheduler_TimesEveryStage(t *testing.T) {
	for _, mode := range []Mode{ModeSequential, ModeParallel} {
		t.Run(mode.String(), func(t *testing.T) {
			sim := newSim(t, DefaultParams(), Options{Seed: 1, Mode: mode, Workers: 3, ParallelThreshold: 1})
			obs := &stageRecorder{}
			sim.SetObserver(obs)
			require.NoError(t, sim.SetTargetPopulation(200))

			_, err := sim.Step(dt)
			require.NoError(t, err)

			assert.Equal(t, []Stage{
				StageNeighborScan,
				StageWall, StageSeparation, StageAlignment, StageCohesion,
				StageIntegrate,
			}, obs.stages)
			assert.Positive(t, obs.busy[StageNeighborScan])
			assert.Equal(t, []string{PhaseResize, PhaseNeighborScan, PhaseForces, PhaseIntegrate}, obs.phases)
		})
	}
}

func TestScheduler_NoStageTimingForPlainObserver(t *testing.T) {
	s := NewScheduler(ModeSequential, 1, 1)
	s.SetObserver(&recordingObserver{})
	assert.Nil(t, s.stageObs)

	s.SetObserver(nil)
	assert.Nil(t, s.observer)
	s.notify(PhaseResize)
}

func TestScheduler_EmptyStoreIsNoop(t *testing.T) {
	s := NewScheduler(ModeParallel, 2, 1)
	defer s.Close()
	store := systems.NewStore(1)

	assert.NotPanics(t, func() { s.Run(store, DefaultParams(), dt) })
}

func TestWorkerPool_CoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		n       int
		kernels int
	}{
		{"even split", 4, 100, 1},
		{"ragged split", 3, 10, 4},
		{"fewer agents than workers", 8, 3, 4},
		{"many kernels", 2, 1000, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newWorkerPool(tt.workers)
			defer p.stop()

			hits := make([][]int, tt.kernels)
			kernels := make([]kernel, tt.kernels)
			for k := range kernels {
				hits[k] = make([]int, tt.n)
				row := hits[k]
				kernels[k] = func(i0, i1 int) {
					for i := i0; i < i1; i++ {
						row[i]++
					}
				}
			}

			p.runPhase(tt.n, kernels)

			for k := range hits {
				for i, h := range hits[k] {
					assert.Equal(t, 1, h, "kernel %d index %d", k, i)
				}
			}
		})
	}
}

func TestWorkerPool_RestartAfterStop(t *testing.T) {
	p := newWorkerPool(2)
	total := 0
	noop := func(i0, i1 int) {}
	p.runPhase(10, []kernel{noop})
	p.stop()
	assert.False(t, p.running)

	// A stopped pool starts again on the next phase.
	hits := make([]int, 10)
	p.runPhase(10, []kernel{func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			hits[i]++
		}
	}})
	assert.True(t, p.running)
	p.stop()
	for _, h := range hits {
		total += h
	}
	assert.Equal(t, 10, total)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("parallel")
	require.NoError(t, err)
	assert.Equal(t, ModeParallel, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSequential, m)

	_, err = ParseMode("gpu")
	assert.Error(t, err)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "neighbor_scan", StageNeighborScan.String())
	assert.Equal(t, "integrate", StageIntegrate.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
