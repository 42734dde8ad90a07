package flock

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/flock/systems"
)

// Mode selects how the scheduler executes a tick.
type Mode int

const (
	// ModeSequential runs every stage on the calling goroutine.
	ModeSequential Mode = iota
	// ModeParallel splits each stage into index chunks on a worker pool.
	ModeParallel
)

func (m Mode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeParallel:
		return "parallel"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sequential", "":
		return ModeSequential, nil
	case "parallel":
		return ModeParallel, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Stage is one unit of per-tick work.
type Stage int

const (
	StageNeighborScan Stage = iota
	StageWall
	StageSeparation
	StageAlignment
	StageCohesion
	StageIntegrate
	NumStages
)

var stageNames = [NumStages]string{
	StageNeighborScan: "neighbor_scan",
	StageWall:         "wall",
	StageSeparation:   "separation",
	StageAlignment:    "alignment",
	StageCohesion:     "cohesion",
	StageIntegrate:    "integrate",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Phase names reported to a PhaseObserver.
const (
	PhaseResize       = "resize"
	PhaseNeighborScan = "neighbor_scan"
	PhaseForces       = "forces"
	PhaseIntegrate    = "integrate"
)

// phase is a group of stages that may run concurrently. Consecutive phases
// are separated by a barrier.
type phase struct {
	name   string
	stages []Stage
}

// pipeline is the fixed stage graph of one tick.
var pipeline = []phase{
	{PhaseNeighborScan, []Stage{StageNeighborScan}},
	{PhaseForces, []Stage{StageWall, StageSeparation, StageAlignment, StageCohesion}},
	{PhaseIntegrate, []Stage{StageIntegrate}},
}

// PhaseObserver is notified as each phase starts.
type PhaseObserver interface {
	StartPhase(name string)
}

// StageObserver additionally receives the busy time of every stage once its
// phase has completed. Busy time is summed over all chunks, so in parallel
// mode it can exceed the wall time of the phase.
type StageObserver interface {
	PhaseObserver
	EndStage(st Stage, busy time.Duration)
}

// Scheduler runs the tick pipeline over a store.
type Scheduler struct {
	mode      Mode
	threshold int
	pool      *workerPool
	observer  PhaseObserver
	stageObs  StageObserver

	kernels []kernel // reused per phase
	busy    [NumStages]atomic.Int64
}

// NewScheduler creates a scheduler. workers < 1 uses GOMAXPROCS. threshold is
// the smallest population dispatched to the pool; threshold < 1 uses the
// default.
func NewScheduler(mode Mode, workers, threshold int) *Scheduler {
	if threshold < 1 {
		threshold = defaultParallelThreshold
	}
	s := &Scheduler{
		mode:      mode,
		threshold: threshold,
	}
	if mode == ModeParallel {
		s.pool = newWorkerPool(workers)
	}
	return s
}

// Mode returns the execution mode.
func (s *Scheduler) Mode() Mode { return s.mode }

// SetObserver installs o to receive phase notifications. nil disables them.
// If o is also a StageObserver every stage is timed.
func (s *Scheduler) SetObserver(o PhaseObserver) {
	s.observer = o
	s.stageObs, _ = o.(StageObserver)
}

func (s *Scheduler) notify(name string) {
	if s.observer != nil {
		s.observer.StartPhase(name)
	}
}

// Run executes one tick: every phase in order, each finishing before the next
// begins.
func (s *Scheduler) Run(store *systems.Store, p Params, dt float64) {
	n := store.Len()
	for _, ph := range pipeline {
		s.notify(ph.name)
		if n == 0 {
			continue
		}

		s.kernels = s.kernels[:0]
		for _, st := range ph.stages {
			k := stageKernel(st, store, p, dt)
			if s.stageObs != nil {
				k = s.timed(st, k)
			}
			s.kernels = append(s.kernels, k)
		}

		if s.pool == nil || n < s.threshold {
			for _, k := range s.kernels {
				k(0, n)
			}
		} else {
			s.pool.runPhase(n, s.kernels)
		}

		if s.stageObs != nil {
			for _, st := range ph.stages {
				s.stageObs.EndStage(st, time.Duration(s.busy[st].Swap(0)))
			}
		}
	}
}

// timed wraps k so every chunk adds its elapsed time to the stage's counter.
func (s *Scheduler) timed(st Stage, k kernel) kernel {
	return func(i0, i1 int) {
		start := time.Now()
		k(i0, i1)
		s.busy[st].Add(int64(time.Since(start)))
	}
}

// Close stops the worker pool.
func (s *Scheduler) Close() {
	if s.pool != nil {
		s.pool.stop()
	}
}

func stageKernel(st Stage, store *systems.Store, p Params, dt float64) kernel {
	switch st {
	case StageNeighborScan:
		return func(i0, i1 int) { systems.ScanNeighbors(store, p, i0, i1) }
	case StageWall:
		return func(i0, i1 int) { systems.ApplyWall(store, p, i0, i1) }
	case StageSeparation:
		return func(i0, i1 int) { systems.ApplySeparation(store, p, i0, i1) }
	case StageAlignment:
		return func(i0, i1 int) { systems.ApplyAlignment(store, p, i0, i1) }
	case StageCohesion:
		return func(i0, i1 int) { systems.ApplyCohesion(store, p, i0, i1) }
	case StageIntegrate:
		return func(i0, i1 int) { systems.Integrate(store, p, dt, i0, i1) }
	default:
		panic(fmt.Sprintf("flock: no kernel for %s", st))
	}
}
