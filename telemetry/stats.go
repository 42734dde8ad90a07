package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/systems"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end and churn during the window
	Agents  int `csv:"agents"`
	Added   int `csv:"added"`
	Removed int `csv:"removed"`

	FlockStats
}

// FlockStats is a snapshot of flock shape and motion.
type FlockStats struct {
	MeanSpeed float64 `csv:"mean_speed"`
	SpeedStd  float64 `csv:"speed_std"`

	// Magnitude of the mean unit heading, 1 when every agent points the same way
	Polarization float64 `csv:"polarization"`

	NeighborsMean float64 `csv:"neighbors_mean"`
	NeighborsP10  float64 `csv:"neighbors_p10"`
	NeighborsP50  float64 `csv:"neighbors_p50"`
	NeighborsP90  float64 `csv:"neighbors_p90"`

	CentroidDist float64 `csv:"centroid_dist"`
	OutsideFrac  float64 `csv:"outside_frac"`
}

// Percentile returns the empirical p-th quantile of a sorted slice.
// p is clamped to [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ComputeFlockStats summarizes the flock. wallScale is the edge length of the
// containing cube; agents with any coordinate beyond half of it count as
// outside.
func ComputeFlockStats(pos, vel []r3.Vec, neighborCounts []float64, wallScale float64) FlockStats {
	n := len(pos)
	if n == 0 {
		return FlockStats{}
	}

	var fs FlockStats

	speeds := make([]float64, len(vel))
	var heading r3.Vec
	for i, v := range vel {
		speeds[i] = r3.Norm(v)
		if u, ok := systems.Unit(v); ok {
			heading = r3.Add(heading, u)
		}
	}
	fs.MeanSpeed, fs.SpeedStd = stat.PopMeanStdDev(speeds, nil)
	if len(vel) > 0 {
		fs.Polarization = r3.Norm(heading) / float64(len(vel))
	}

	if len(neighborCounts) > 0 {
		sorted := make([]float64, len(neighborCounts))
		copy(sorted, neighborCounts)
		sort.Float64s(sorted)
		fs.NeighborsMean = stat.Mean(sorted, nil)
		fs.NeighborsP10 = Percentile(sorted, 0.10)
		fs.NeighborsP50 = Percentile(sorted, 0.50)
		fs.NeighborsP90 = Percentile(sorted, 0.90)
	}

	var centroid r3.Vec
	for _, p := range pos {
		centroid = r3.Add(centroid, p)
	}
	centroid = r3.Scale(1/float64(n), centroid)

	half := wallScale / 2
	var dist float64
	outside := 0
	for _, p := range pos {
		dist += r3.Norm(r3.Sub(p, centroid))
		if math.Abs(p.X) > half || math.Abs(p.Y) > half || math.Abs(p.Z) > half {
			outside++
		}
	}
	fs.CentroidDist = dist / float64(n)
	fs.OutsideFrac = float64(outside) / float64(n)

	return fs
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.Agents),
		slog.Int("added", s.Added),
		slog.Int("removed", s.Removed),
		slog.Float64("mean_speed", s.MeanSpeed),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("polarization", s.Polarization),
		slog.Float64("neighbors_mean", s.NeighborsMean),
		slog.Float64("neighbors_p10", s.NeighborsP10),
		slog.Float64("neighbors_p50", s.NeighborsP50),
		slog.Float64("neighbors_p90", s.NeighborsP90),
		slog.Float64("centroid_dist", s.CentroidDist),
		slog.Float64("outside_frac", s.OutsideFrac),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"agents", s.Agents,
		"added", s.Added,
		"removed", s.Removed,
		"mean_speed", s.MeanSpeed,
		"speed_std", s.SpeedStd,
		"polarization", s.Polarization,
		"neighbors_mean", s.NeighborsMean,
		"neighbors_p50", s.NeighborsP50,
		"centroid_dist", s.CentroidDist,
		"outside_frac", s.OutsideFrac,
	)
}
