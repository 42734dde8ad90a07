package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pthm-cable/flock/flock"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseNeighborScan)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseForces)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick(10)
	}

	stats := pc.Stats()

	assert.Equal(t, 5, stats.Ticks)
	assert.Positive(t, stats.AvgTick)
	assert.LessOrEqual(t, stats.P50Tick, stats.MaxTick)
	assert.Contains(t, stats.PhaseAvg, PhaseNeighborScan)
	assert.Contains(t, stats.PhaseAvg, PhaseForces)
	assert.NotContains(t, stats.PhaseAvg, PhaseScene)
	assert.Equal(t, 10.0, stats.MeanAgents)
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseIntegrate)
		pc.EndTick(i)
	}

	stats := pc.Stats()

	assert.Equal(t, 5, stats.Ticks)
	assert.Positive(t, stats.TicksPerSecond)
	// Only ticks 5..9 remain
	assert.Equal(t, 7.0, stats.MeanAgents)
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseScene)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseTelemetry)
		time.Sleep(2 * time.Millisecond)
		pc.EndTick(1)
	}

	stats := pc.Stats()

	assert.Greater(t, stats.PhasePct[PhaseTelemetry], stats.PhasePct[PhaseScene])
	assert.LessOrEqual(t, stats.PhasePct[PhaseTelemetry]+stats.PhasePct[PhaseScene], 100.0+1e-9)
}

func TestPerfCollector_UnknownPhaseEndsPrevious(t *testing.T) {
	pc := NewPerfCollector(4)

	pc.StartTick()
	pc.StartPhase(PhaseScene)
	pc.StartPhase("elsewhere")
	time.Sleep(time.Millisecond)
	pc.EndTick(1)

	stats := pc.Stats()
	assert.Len(t, stats.PhaseAvg, 1)
	assert.Less(t, stats.PhaseAvg[PhaseScene], time.Millisecond)
}

func TestPerfCollector_StageCostPerPair(t *testing.T) {
	pc := NewPerfCollector(4)

	for i := 0; i < 2; i++ {
		pc.StartTick()
		pc.EndStage(flock.StageNeighborScan, 9900*time.Nanosecond)
		pc.EndStage(flock.StageWall, 2*time.Microsecond)
		pc.EndStage(flock.StageWall, 1*time.Microsecond) // second chunk
		pc.EndStage(flock.NumStages, time.Hour)          // ignored
		pc.EndTick(100)
	}

	stats := pc.Stats()

	// 100 agents scan 100*99 candidate pairs
	assert.InDelta(t, 1.0, stats.ScanNsPerPair, 1e-9)
	assert.Equal(t, 3*time.Microsecond, stats.StageBusy[flock.StageWall])
	assert.Zero(t, stats.StageBusy[flock.StageCohesion])
	assert.Positive(t, stats.NsPerAgent)
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	assert.Zero(t, stats.AvgTick)
	assert.Zero(t, stats.ScanNsPerPair)
	assert.NotNil(t, stats.PhaseAvg)
	assert.NotNil(t, stats.PhasePct)
}

func TestPerfCollector_ObservesSimulation(t *testing.T) {
	sim, err := flock.New(flock.DefaultParams(), flock.Options{Seed: 1})
	assert.NoError(t, err)
	defer sim.Close()
	pc := NewPerfCollector(8)
	sim.SetObserver(pc)
	assert.NoError(t, sim.SetTargetPopulation(200))

	pc.StartTick()
	_, err = sim.Step(1.0 / 60.0)
	assert.NoError(t, err)
	pc.EndTick(sim.AgentCount())

	stats := pc.Stats()
	for _, phase := range []string{PhaseResize, PhaseNeighborScan, PhaseForces, PhaseIntegrate} {
		assert.Contains(t, stats.PhaseAvg, phase)
	}
	assert.Positive(t, stats.StageBusy[flock.StageNeighborScan])
	assert.Positive(t, stats.ScanNsPerPair)
}

func TestPerfStats_ToCSV(t *testing.T) {
	s := PerfStats{
		Ticks:         60,
		AvgTick:       250 * time.Microsecond,
		ScanNsPerPair: 1.5,
		PhasePct: map[string]float64{
			PhaseNeighborScan: 60,
			PhaseForces:       30,
			PhaseScene:        5,
		},
	}
	s.StageBusy[flock.StageSeparation] = 1500 * time.Nanosecond

	row := s.ToCSV(900)

	assert.Equal(t, int64(900), row.WindowEnd)
	assert.Equal(t, 60, row.Ticks)
	assert.Equal(t, 250.0, row.AvgTickUS)
	assert.Equal(t, 1.5, row.ScanNsPerPair)
	assert.Equal(t, 60.0, row.NeighborScanPct)
	assert.Equal(t, 30.0, row.ForcesPct)
	assert.Equal(t, 5.0, row.ScenePct)
	assert.Zero(t, row.IntegratePct)
	assert.Equal(t, 1.5, row.SeparationBusyUS)
}
