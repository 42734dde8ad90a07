// Package config provides configuration loading for the simulation host.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flock/flock"
	"github.com/pthm-cable/flock/systems"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "config.schema.json"

// Config holds all host configuration.
type Config struct {
	Flock      systems.Params   `yaml:"flock" toml:"flock"`
	Simulation SimulationConfig `yaml:"simulation" toml:"simulation"`
	Population PopulationConfig `yaml:"population" toml:"population"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" toml:"telemetry"`
	Bookmarks  BookmarksConfig  `yaml:"bookmarks" toml:"bookmarks"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" toml:"-"`
}

// SimulationConfig holds stepping and execution settings.
type SimulationConfig struct {
	DT                float64 `yaml:"dt" toml:"dt"`
	Seed              int64   `yaml:"seed" toml:"seed"` // 0 = time-based
	Mode              string  `yaml:"mode" toml:"mode"`
	Workers           int     `yaml:"workers" toml:"workers"`
	ParallelThreshold int     `yaml:"parallel_threshold" toml:"parallel_threshold"`
	MaxAgents         int     `yaml:"max_agents" toml:"max_agents"`
}

// PopulationConfig holds the target population over time.
type PopulationConfig struct {
	Initial  int              `yaml:"initial" toml:"initial"`
	Schedule []PopulationStep `yaml:"schedule" toml:"schedule"`
}

// PopulationStep sets the target population to Count from Tick on.
type PopulationStep struct {
	Tick  int64 `yaml:"tick" toml:"tick"`
	Count int   `yaml:"count" toml:"count"`
}

// TelemetryConfig holds telemetry and logging parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window" toml:"stats_window"`
	BookmarkHistorySize int     `yaml:"bookmark_history_size" toml:"bookmark_history_size"`
	PerfCollectorWindow int     `yaml:"perf_collector_window" toml:"perf_collector_window"`
}

// BookmarksConfig holds bookmark detection thresholds.
type BookmarksConfig struct {
	FlockFormed       FlockFormedConfig       `yaml:"flock_formed" toml:"flock_formed"`
	FlockScattered    FlockScatteredConfig    `yaml:"flock_scattered" toml:"flock_scattered"`
	PopulationShift   PopulationShiftConfig   `yaml:"population_shift" toml:"population_shift"`
	ContainmentBreach ContainmentBreachConfig `yaml:"containment_breach" toml:"containment_breach"`
}

// FlockFormedConfig triggers when polarization rises past Threshold after
// being below FromBelow within the history.
type FlockFormedConfig struct {
	Threshold float64 `yaml:"threshold" toml:"threshold"`
	FromBelow float64 `yaml:"from_below" toml:"from_below"`
}

// FlockScatteredConfig triggers when polarization drops under Threshold after
// being above FromAbove within the history.
type FlockScatteredConfig struct {
	Threshold float64 `yaml:"threshold" toml:"threshold"`
	FromAbove float64 `yaml:"from_above" toml:"from_above"`
}

// PopulationShiftConfig triggers on a relative agent count change.
type PopulationShiftConfig struct {
	MinChange float64 `yaml:"min_change" toml:"min_change"`
}

// ContainmentBreachConfig triggers when too many agents are outside the cube.
type ContainmentBreachConfig struct {
	MaxOutside float64 `yaml:"max_outside" toml:"max_outside"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Mode           flock.Mode // parsed Simulation.Mode
	TicksPerWindow int64      // Telemetry.StatsWindow in ticks
}

// Load reads configuration from path on top of the embedded defaults. An
// empty path uses the defaults alone. YAML and TOML files are accepted; the
// format is chosen by extension.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.overlay(data, formatOf(path)); err != nil {
			return nil, err
		}
	}

	return Finalize(cfg)
}

// Finalize validates cfg after in-code edits and recomputes derived values.
func Finalize(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

type format int

const (
	formatYAML format = iota
	formatTOML
)

func formatOf(path string) format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return formatTOML
	}
	return formatYAML
}

// overlay validates data against the schema and decodes it into c. Only keys
// present in data overwrite the current values.
func (c *Config) overlay(data []byte, f format) error {
	var doc map[string]any
	switch f {
	case formatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := validateSchema(doc); err != nil {
		return fmt.Errorf("validating config file: %w", err)
	}

	// Unmarshal into same struct - only overwrites fields present in file
	switch f {
	case formatTOML:
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}
	return nil
}

// validateSchema checks a decoded document against the embedded JSON Schema.
// The document is first normalized to the JSON data model.
func validateSchema(doc map[string]any) error {
	if doc == nil {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	sch, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalizing config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("normalizing config: %w", err)
	}

	return sch.Validate(v)
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if err := c.Flock.Validate(); err != nil {
		return err
	}
	if _, err := flock.ParseMode(c.Simulation.Mode); err != nil {
		return err
	}
	if c.Simulation.DT <= 0 {
		return fmt.Errorf("simulation.dt must be positive, got %g", c.Simulation.DT)
	}
	if c.Telemetry.StatsWindow <= 0 {
		return fmt.Errorf("telemetry.stats_window must be positive, got %g", c.Telemetry.StatsWindow)
	}

	limit := c.Simulation.MaxAgents
	if c.Population.Initial < 0 || (limit > 0 && c.Population.Initial > limit) {
		return fmt.Errorf("population.initial %d outside [0, %d]", c.Population.Initial, limit)
	}
	for i, step := range c.Population.Schedule {
		if step.Count < 0 || (limit > 0 && step.Count > limit) {
			return fmt.Errorf("population.schedule[%d].count %d outside [0, %d]", i, step.Count, limit)
		}
	}
	if !sort.SliceIsSorted(c.Population.Schedule, func(i, j int) bool {
		return c.Population.Schedule[i].Tick < c.Population.Schedule[j].Tick
	}) {
		return fmt.Errorf("population.schedule must be ordered by tick")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Mode, _ = flock.ParseMode(c.Simulation.Mode)

	ticks := int64(math.Round(c.Telemetry.StatsWindow / c.Simulation.DT))
	if ticks < 1 {
		ticks = 1
	}
	c.Derived.TicksPerWindow = ticks
}

// TargetAt returns the scheduled population for tick.
func (c *Config) TargetAt(tick int64) int {
	target := c.Population.Initial
	for _, step := range c.Population.Schedule {
		if step.Tick > tick {
			break
		}
		target = step.Count
	}
	return target
}

// Options builds the simulation options for seed.
func (c *Config) Options(seed int64) flock.Options {
	return flock.Options{
		Seed:              seed,
		Mode:              c.Derived.Mode,
		Workers:           c.Simulation.Workers,
		ParallelThreshold: c.Simulation.ParallelThreshold,
		MaxAgents:         c.Simulation.MaxAgents,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Population.Schedule = append([]PopulationStep(nil), c.Population.Schedule...)
	return &out
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
