package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"github.com/pthm-cable/flock/flock"
)

// Phase names for a host tick. The first four are reported by the
// simulation itself through flock.PhaseObserver.
const (
	PhaseResize       = flock.PhaseResize
	PhaseNeighborScan = flock.PhaseNeighborScan
	PhaseForces       = flock.PhaseForces
	PhaseIntegrate    = flock.PhaseIntegrate
	PhaseScene        = "scene"
	PhaseTelemetry    = "telemetry"
)

// hostPhases is the reporting order.
var hostPhases = [...]string{
	PhaseResize, PhaseNeighborScan, PhaseForces,
	PhaseIntegrate, PhaseScene, PhaseTelemetry,
}

const numPhases = len(hostPhases)

func phaseIndex(name string) int {
	for i, p := range hostPhases {
		if p == name {
			return i
		}
	}
	return -1
}

var _ flock.StageObserver = (*PerfCollector)(nil)

// tickSample is the timing of one host tick.
type tickSample struct {
	total  time.Duration
	phases [numPhases]time.Duration
	seen   [numPhases]bool
	stages [flock.NumStages]time.Duration // busy time summed over chunks
	agents int
}

// PerfCollector keeps timing for the last few ticks. Phases partition the
// wall time of a tick; stages report the work done inside the simulation's
// phases, which in parallel mode is spread across workers.
type PerfCollector struct {
	ring   []tickSample
	next   int
	filled int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	phase      int // running phase, -1 when none
}

// NewPerfCollector creates a collector over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		ring:  make([]tickSample, windowSize),
		phase: -1,
	}
}

// StartTick begins timing a host tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.cur = tickSample{}
	p.phase = -1
}

// StartPhase closes the running phase and starts timing name. Names outside
// the host phases still end the previous phase but are not recorded.
func (p *PerfCollector) StartPhase(name string) {
	now := time.Now()
	p.closePhase(now)
	p.phase = phaseIndex(name)
	p.phaseStart = now
	if p.phase >= 0 {
		p.cur.seen[p.phase] = true
	}
}

// EndStage adds the busy time of one simulation stage.
func (p *PerfCollector) EndStage(st flock.Stage, busy time.Duration) {
	if st >= 0 && st < flock.NumStages {
		p.cur.stages[st] += busy
	}
}

// EndTick records the tick. agents is the population it was run over.
func (p *PerfCollector) EndTick(agents int) {
	now := time.Now()
	p.closePhase(now)
	p.phase = -1

	p.cur.total = now.Sub(p.tickStart)
	p.cur.agents = agents
	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	if p.filled < len(p.ring) {
		p.filled++
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase >= 0 {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// PerfStats summarizes the collector window.
type PerfStats struct {
	Ticks int

	AvgTick time.Duration
	P50Tick time.Duration
	P95Tick time.Duration
	MaxTick time.Duration

	TicksPerSecond float64

	// Cost normalized by population. The neighbor scan visits n*(n-1)
	// candidate pairs per tick.
	MeanAgents    float64
	NsPerAgent    float64
	ScanNsPerPair float64

	// Average wall time and share of the tick per host phase. Only phases
	// that ran in the window are present.
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	// Average busy time per tick for each simulation stage
	StageBusy [flock.NumStages]time.Duration
}

// Stats computes the summary over the current window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		Ticks:    p.filled,
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.filled == 0 {
		return s
	}

	var (
		total     time.Duration
		phaseSum  [numPhases]time.Duration
		seen      [numPhases]bool
		stageSum  [flock.NumStages]time.Duration
		agentSum  float64
		pairSum   float64
		durations = make([]float64, 0, p.filled)
	)
	for _, ts := range p.ring[:p.filled] {
		total += ts.total
		durations = append(durations, float64(ts.total))
		for i := range phaseSum {
			phaseSum[i] += ts.phases[i]
			seen[i] = seen[i] || ts.seen[i]
		}
		for i := range stageSum {
			stageSum[i] += ts.stages[i]
		}
		n := float64(ts.agents)
		agentSum += n
		if ts.agents > 1 {
			pairSum += n * (n - 1)
		}
	}

	ticks := time.Duration(p.filled)
	s.AvgTick = total / ticks

	sort.Float64s(durations)
	s.P50Tick = time.Duration(Percentile(durations, 0.50))
	s.P95Tick = time.Duration(Percentile(durations, 0.95))
	s.MaxTick = time.Duration(durations[len(durations)-1])

	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}

	s.MeanAgents = agentSum / float64(p.filled)
	if agentSum > 0 {
		s.NsPerAgent = float64(total) / agentSum
	}
	if pairSum > 0 {
		s.ScanNsPerPair = float64(stageSum[flock.StageNeighborScan]) / pairSum
	}

	for i, name := range hostPhases {
		if !seen[i] {
			continue
		}
		avg := phaseSum[i] / ticks
		s.PhaseAvg[name] = avg
		if s.AvgTick > 0 {
			s.PhasePct[name] = float64(avg) / float64(s.AvgTick) * 100
		}
	}
	for i := range stageSum {
		s.StageBusy[i] = stageSum[i] / ticks
	}

	return s
}

// LogStats logs the summary using slog.
func (s PerfStats) LogStats() {
	attrs := []any{
		"ticks", s.Ticks,
		"avg_tick_us", micros(s.AvgTick),
		"p95_tick_us", micros(s.P95Tick),
		"ticks_per_sec", int(s.TicksPerSecond),
		"agents", s.MeanAgents,
		"ns_per_agent", int(s.NsPerAgent),
		"scan_ns_per_pair", s.ScanNsPerPair,
	}
	for _, phase := range hostPhases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	for st := flock.StageWall; st <= flock.StageCohesion; st++ {
		attrs = append(attrs, st.String()+"_busy_us", micros(s.StageBusy[st]))
	}

	slog.Info("perf", attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd     int64   `csv:"window_end"`
	Ticks         int     `csv:"ticks"`
	AvgTickUS     float64 `csv:"avg_tick_us"`
	P50TickUS     float64 `csv:"p50_tick_us"`
	P95TickUS     float64 `csv:"p95_tick_us"`
	MaxTickUS     float64 `csv:"max_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	MeanAgents    float64 `csv:"mean_agents"`
	NsPerAgent    float64 `csv:"ns_per_agent"`
	ScanNsPerPair float64 `csv:"scan_ns_per_pair"`

	ResizePct       float64 `csv:"resize_pct"`
	NeighborScanPct float64 `csv:"neighbor_scan_pct"`
	ForcesPct       float64 `csv:"forces_pct"`
	IntegratePct    float64 `csv:"integrate_pct"`
	ScenePct        float64 `csv:"scene_pct"`
	TelemetryPct    float64 `csv:"telemetry_pct"`

	ScanBusyUS       float64 `csv:"neighbor_scan_busy_us"`
	WallBusyUS       float64 `csv:"wall_busy_us"`
	SeparationBusyUS float64 `csv:"separation_busy_us"`
	AlignmentBusyUS  float64 `csv:"alignment_busy_us"`
	CohesionBusyUS   float64 `csv:"cohesion_busy_us"`
	IntegrateBusyUS  float64 `csv:"integrate_busy_us"`
}

// ToCSV flattens the summary for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		Ticks:         s.Ticks,
		AvgTickUS:     micros(s.AvgTick),
		P50TickUS:     micros(s.P50Tick),
		P95TickUS:     micros(s.P95Tick),
		MaxTickUS:     micros(s.MaxTick),
		TicksPerSec:   s.TicksPerSecond,
		MeanAgents:    s.MeanAgents,
		NsPerAgent:    s.NsPerAgent,
		ScanNsPerPair: s.ScanNsPerPair,

		ResizePct:       s.PhasePct[PhaseResize],
		NeighborScanPct: s.PhasePct[PhaseNeighborScan],
		ForcesPct:       s.PhasePct[PhaseForces],
		IntegratePct:    s.PhasePct[PhaseIntegrate],
		ScenePct:        s.PhasePct[PhaseScene],
		TelemetryPct:    s.PhasePct[PhaseTelemetry],

		ScanBusyUS:       micros(s.StageBusy[flock.StageNeighborScan]),
		WallBusyUS:       micros(s.StageBusy[flock.StageWall]),
		SeparationBusyUS: micros(s.StageBusy[flock.StageSeparation]),
		AlignmentBusyUS:  micros(s.StageBusy[flock.StageAlignment]),
		CohesionBusyUS:   micros(s.StageBusy[flock.StageCohesion]),
		IntegrateBusyUS:  micros(s.StageBusy[flock.StageIntegrate]),
	}
}

func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
