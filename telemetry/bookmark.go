package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/flock/config"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFlockFormed       BookmarkType = "flock_formed"
	BookmarkFlockScattered    BookmarkType = "flock_scattered"
	BookmarkPopulationShift   BookmarkType = "population_shift"
	BookmarkContainmentBreach BookmarkType = "containment_breach"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	cfg config.BookmarksConfig

	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// Latched while the outside fraction stays above the limit
	breached bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, cfg config.BookmarksConfig) *BookmarkDetector {
	if historySize < 2 {
		historySize = 2
	}
	return &BookmarkDetector{
		cfg:         cfg,
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkFlockFormed(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkFlockScattered(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkPopulationShift(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Containment needs no history
	if b := bd.checkContainmentBreach(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// previous returns the most recently added window.
func (bd *BookmarkDetector) previous() WindowStats {
	idx := (bd.historyIdx - 1 + bd.historySize) % bd.historySize
	return bd.history[idx]
}

func (bd *BookmarkDetector) checkFlockFormed(stats WindowStats) *Bookmark {
	cfg := bd.cfg.FlockFormed
	if stats.Agents < 2 || stats.Polarization < cfg.Threshold {
		return nil
	}
	// Fire on the crossing only
	if bd.previous().Polarization >= cfg.Threshold {
		return nil
	}

	low := stats.Polarization
	for _, h := range bd.getHistory() {
		if h.Agents >= 2 && h.Polarization < low {
			low = h.Polarization
		}
	}
	if low >= cfg.FromBelow {
		return nil
	}

	return &Bookmark{
		Type:        BookmarkFlockFormed,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Polarization rose from %.2f to %.2f", low, stats.Polarization),
	}
}

func (bd *BookmarkDetector) checkFlockScattered(stats WindowStats) *Bookmark {
	cfg := bd.cfg.FlockScattered
	if stats.Agents < 2 || stats.Polarization >= cfg.Threshold {
		return nil
	}
	if bd.previous().Polarization < cfg.Threshold {
		return nil
	}

	high := stats.Polarization
	for _, h := range bd.getHistory() {
		if h.Agents >= 2 && h.Polarization > high {
			high = h.Polarization
		}
	}
	if high <= cfg.FromAbove {
		return nil
	}

	return &Bookmark{
		Type:        BookmarkFlockScattered,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Polarization fell from %.2f to %.2f", high, stats.Polarization),
	}
}

func (bd *BookmarkDetector) checkPopulationShift(stats WindowStats) *Bookmark {
	prev := bd.previous().Agents
	if prev == 0 {
		if stats.Agents == 0 {
			return nil
		}
		return &Bookmark{
			Type:        BookmarkPopulationShift,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population grew from 0 to %d", stats.Agents),
		}
	}

	change := float64(stats.Agents-prev) / float64(prev)
	if change < 0 {
		change = -change
	}
	if change < bd.cfg.PopulationShift.MinChange {
		return nil
	}

	return &Bookmark{
		Type:        BookmarkPopulationShift,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Population changed %.0f%% from %d to %d", change*100, prev, stats.Agents),
	}
}

func (bd *BookmarkDetector) checkContainmentBreach(stats WindowStats) *Bookmark {
	over := stats.Agents > 0 && stats.OutsideFrac > bd.cfg.ContainmentBreach.MaxOutside
	if !over {
		bd.breached = false
		return nil
	}
	if bd.breached {
		return nil
	}
	bd.breached = true

	return &Bookmark{
		Type:        BookmarkContainmentBreach,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%.0f%% of agents outside the walls", stats.OutsideFrac*100),
	}
}
