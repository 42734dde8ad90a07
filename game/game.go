// Package game hosts a flock simulation for headless runs: it drives the
// population schedule, mirrors agents into an ECS scene and feeds telemetry.
package game

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/flock"
	"github.com/pthm-cable/flock/telemetry"
)

// Options configures a Game.
type Options struct {
	Seed           int64
	OutputDir      string // empty disables file output
	LogStats       bool
	StepsPerUpdate int    // ticks per UpdateHeadless call; < 1 means 1
	RunID          string // empty generates one
	MaxTicks       int64  // recorded in run.yaml only

	// Config overrides the embedded defaults when set. It is copied and
	// revalidated, so later edits by the caller have no effect.
	Config *config.Config

	// StatsCallback is called with each flushed window.
	StatsCallback func(telemetry.WindowStats)
}

// Game holds the complete host state.
type Game struct {
	cfg   *config.Config
	sim   *flock.Simulation
	scene *Scene

	rngSeed        int64
	runID          string
	stepsPerUpdate int

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	logStats         bool
	statsCallback    func(telemetry.WindowStats)

	// Scratch for neighbor counts at flush time
	neighborCounts []float64
}

// NewGameWithOptions creates a game, spawns nothing yet and writes the run
// header to the output directory. The initial population is created by the
// first update.
func NewGameWithOptions(opts Options) (*Game, error) {
	var cfg *config.Config
	if opts.Config != nil {
		cfg = opts.Config.Clone()
	} else {
		cfg = config.Default()
	}
	// Callers may have edited fields since loading
	cfg, err := config.Finalize(cfg)
	if err != nil {
		return nil, err
	}

	sim, err := flock.New(cfg.Flock, cfg.Options(opts.Seed))
	if err != nil {
		return nil, fmt.Errorf("creating simulation: %w", err)
	}

	steps := opts.StepsPerUpdate
	if steps < 1 {
		steps = 1
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	g := &Game{
		cfg:              cfg,
		sim:              sim,
		scene:            NewScene(),
		rngSeed:          opts.Seed,
		runID:            runID,
		stepsPerUpdate:   steps,
		collector:        telemetry.NewCollector(cfg.Derived.TicksPerWindow, cfg.Simulation.DT),
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		bookmarkDetector: telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize, cfg.Bookmarks),
		logStats:         opts.LogStats,
		statsCallback:    opts.StatsCallback,
	}
	sim.SetObserver(g.perfCollector)

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		sim.Close()
		return nil, err
	}
	g.outputManager = om

	if err := om.WriteConfig(cfg); err != nil {
		g.Unload()
		return nil, err
	}
	info := telemetry.RunInfo{
		RunID:     runID,
		Seed:      opts.Seed,
		Mode:      sim.Mode().String(),
		Workers:   cfg.Simulation.Workers,
		StartTime: time.Now().UTC(),
		MaxTicks:  opts.MaxTicks,
	}
	if err := om.WriteRun(info); err != nil {
		g.Unload()
		return nil, err
	}

	return g, nil
}

// UpdateHeadless advances the simulation by StepsPerUpdate ticks.
func (g *Game) UpdateHeadless() error {
	for i := 0; i < g.stepsPerUpdate; i++ {
		if err := g.simulationStep(); err != nil {
			return err
		}
	}
	return nil
}

// simulationStep runs one tick: schedule, step, scene, telemetry.
func (g *Game) simulationStep() error {
	g.perfCollector.StartTick()

	target := g.cfg.TargetAt(g.sim.Tick())
	if target != g.sim.TargetPopulation() {
		if err := g.sim.SetTargetPopulation(target); err != nil {
			return err
		}
		slog.Debug("population target", "tick", g.sim.Tick(), "target", target)
	}

	poses, err := g.sim.Step(g.cfg.Simulation.DT)
	if err != nil {
		return fmt.Errorf("tick %d: %w", g.sim.Tick(), err)
	}
	diff := g.sim.LastDiff()
	g.collector.RecordDiff(len(diff.Added), len(diff.Removed))

	g.perfCollector.StartPhase(telemetry.PhaseScene)
	g.scene.Reconcile(g.sim.Tick(), diff, poses)

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()

	g.perfCollector.EndTick(g.sim.AgentCount())
	return nil
}

// Unload flushes and releases all resources.
func (g *Game) Unload() {
	if err := g.outputManager.FinishRun(g.sim.Tick(), g.sim.AgentCount()); err != nil {
		slog.Error("failed to finish run", "error", err)
	}
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	g.sim.Close()
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int64 {
	return g.sim.Tick()
}

// AgentCount returns the number of live agents.
func (g *Game) AgentCount() int {
	return g.sim.AgentCount()
}

// RunID returns the identifier written to run.yaml.
func (g *Game) RunID() string {
	return g.runID
}

// Seed returns the simulation seed.
func (g *Game) Seed() int64 {
	return g.rngSeed
}

// Simulation exposes the underlying simulation.
func (g *Game) Simulation() *flock.Simulation {
	return g.sim
}

// Scene exposes the ECS mirror.
func (g *Game) Scene() *Scene {
	return g.scene
}

// PerfStats returns timing over the perf window.
func (g *Game) PerfStats() telemetry.PerfStats {
	return g.perfCollector.Stats()
}
