package game

import (
	"log/slog"

	"github.com/pthm-cable/flock/flock"
	"github.com/pthm-cable/flock/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	tick := g.sim.Tick()
	if !g.collector.ShouldFlush(tick) {
		return
	}

	// Flush the stats window
	stats := g.collector.Flush(tick, g.sim.AgentCount(), g.sampleFlock())
	perfStats := g.perfCollector.Stats()

	// Call stats callback if provided
	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	// Check for bookmarks
	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
}

// sampleFlock summarizes the current agent state.
func (g *Game) sampleFlock() telemetry.FlockStats {
	store := g.sim.Store()
	n := store.Len()

	g.neighborCounts = g.neighborCounts[:0]
	for i := 0; i < n; i++ {
		g.neighborCounts = append(g.neighborCounts, float64(len(store.Neighbors(flock.AgentID(i)))))
	}

	return telemetry.ComputeFlockStats(store.Positions(), store.Velocities(), g.neighborCounts, g.sim.Params().WallScale)
}
