package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flock/config"
)

// Output file names inside a run directory.
const (
	TelemetryFile = "telemetry.csv"
	PerfFile      = "perf.csv"
	BookmarksFile = "bookmarks.csv"
	ConfigFile    = "config.yaml"
	RunFile       = "run.yaml"
)

// RunInfo identifies one run in run.yaml. The end fields are filled in by
// FinishRun.
type RunInfo struct {
	RunID     string    `yaml:"run_id"`
	Seed      int64     `yaml:"seed"`
	Mode      string    `yaml:"mode"`
	Workers   int       `yaml:"workers"`
	StartTime time.Time `yaml:"start_time"`
	MaxTicks  int64     `yaml:"max_ticks,omitempty"`

	EndTime     *time.Time `yaml:"end_time,omitempty"`
	Ticks       int64      `yaml:"ticks,omitempty"`
	FinalAgents int        `yaml:"final_agents,omitempty"`
	Bookmarks   int        `yaml:"bookmarks,omitempty"`
}

// csvLog appends records of one type to a CSV file, writing the header with
// the first record.
type csvLog[T any] struct {
	name   string
	f      *os.File
	header bool
}

func createCSVLog[T any](dir, name string) (*csvLog[T], error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvLog[T]{name: name, f: f}, nil
}

func (l *csvLog[T]) append(rec T) error {
	records := []T{rec}
	var err error
	if l.header {
		err = gocsv.MarshalWithoutHeaders(records, l.f)
	} else {
		err = gocsv.Marshal(records, l.f)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", l.name, err)
	}
	l.header = true
	return nil
}

func (l *csvLog[T]) close() error {
	if l == nil {
		return nil
	}
	return l.f.Close()
}

// OutputManager writes the files of one run directory. A nil manager
// discards everything.
type OutputManager struct {
	dir string

	telemetry *csvLog[WindowStats]
	perf      *csvLog[PerfStatsCSV]
	bookmarks *csvLog[Bookmark]

	run          RunInfo
	bookmarkSeen int
}

// NewOutputManager creates dir and the CSV logs in it. Returns nil if dir is
// empty.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	if om.telemetry, err = createCSVLog[WindowStats](dir, TelemetryFile); err != nil {
		return nil, err
	}
	if om.perf, err = createCSVLog[PerfStatsCSV](dir, PerfFile); err != nil {
		om.Close()
		return nil, err
	}
	if om.bookmarks, err = createCSVLog[Bookmark](dir, BookmarksFile); err != nil {
		om.Close()
		return nil, err
	}
	return om, nil
}

// WriteConfig saves the configuration snapshot.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, ConfigFile))
}

// WriteTelemetry appends a window to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return om.telemetry.append(stats)
}

// WritePerf appends the perf summary for the window ending at windowEnd.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}
	return om.perf.append(stats.ToCSV(windowEnd))
}

// WriteBookmark appends a bookmark to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	om.bookmarkSeen++
	return om.bookmarks.append(b)
}

// WriteRun saves the run header.
func (om *OutputManager) WriteRun(info RunInfo) error {
	if om == nil {
		return nil
	}
	om.run = info
	return om.writeRun()
}

// FinishRun rewrites run.yaml with the final tick and population.
func (om *OutputManager) FinishRun(tick int64, agents int) error {
	if om == nil {
		return nil
	}
	end := time.Now().UTC()
	om.run.EndTime = &end
	om.run.Ticks = tick
	om.run.FinalAgents = agents
	om.run.Bookmarks = om.bookmarkSeen
	return om.writeRun()
}

func (om *OutputManager) writeRun() error {
	data, err := yaml.Marshal(om.run)
	if err != nil {
		return fmt.Errorf("marshaling run info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, RunFile), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", RunFile, err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes every CSV log.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return errors.Join(om.telemetry.close(), om.perf.close(), om.bookmarks.close())
}
