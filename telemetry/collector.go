package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	added   int
	removed int
}

// NewCollector creates a new stats collector.
// ticksPerWindow: window length, normally config Derived.TicksPerWindow
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(ticksPerWindow int64, dt float64) *Collector {
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordDiff records agents spawned and despawned by one step.
func (c *Collector) RecordDiff(added, removed int) {
	c.added += added
	c.removed += removed
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64, agents int, fs FlockStats) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,
		Agents:          agents,
		Added:           c.added,
		Removed:         c.removed,
		FlockStats:      fs,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.added = 0
	c.removed = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
