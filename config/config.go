// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Run modes.
const (
	ModeTraining = "training"
	ModeDataset  = "dataset"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Sim       SimConfig       `yaml:"sim"`
	Field     FieldConfig     `yaml:"field"`
	Agent     AgentConfig     `yaml:"agent"`
	Variants  VariantsConfig  `yaml:"variants"`
	Avoidance AvoidanceConfig `yaml:"avoidance"`
	Spawn     SpawnConfig     `yaml:"spawn"`
	Policy    PolicyConfig    `yaml:"policy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimConfig holds the tick loop parameters.
type SimConfig struct {
	DT       float64 `yaml:"dt"`        // seconds per tick
	MaxTicks int     `yaml:"max_ticks"` // 0 runs until the scene empties
	Seed     int64   `yaml:"seed"`
	Mode     string  `yaml:"mode"`      // training or dataset
	MaxSteps int     `yaml:"max_steps"` // episode length in controller steps; 0 disables expiry
}

// FieldConfig holds the profile field layout.
type FieldConfig struct {
	Rows           int        `yaml:"rows"`
	Cols           int        `yaml:"cols"`
	CellHalfSize   float64    `yaml:"cell_half_size"`
	Buckets        int        `yaml:"buckets"`        // synthesized time buckets when no dataset is given
	FrameInterval  int        `yaml:"frame_interval"` // ticks per bucket when no dataset is given
	UpdateProfiles bool       `yaml:"update_profiles"`
	DefaultProfile [4]float64 `yaml:"default_profile"` // goal, group, interaction, connectivity; fills the field when buckets is 0
}

// AgentConfig holds per-agent controller parameters. Capability fields left
// at zero keep the active variant's value.
type AgentConfig struct {
	MaxSpeed            float64 `yaml:"max_speed"`
	SlowSpeed           float64 `yaml:"slow_speed"`
	SlowRadius          float64 `yaml:"slow_radius"`
	GoalDistance        float64 `yaml:"goal_distance"`
	GroupingDistance    float64 `yaml:"grouping_distance"`
	InteractionDistance float64 `yaml:"interaction_distance"`
	NeighbourDistance   float64 `yaml:"neighbour_distance"` // exact proximity radius
	MaxNeighbours       int     `yaml:"max_neighbours"`
	StationaryThreshold float64 `yaml:"stationary_threshold"`
	WarmupSteps         int     `yaml:"warmup_steps"`
	PoolSize            int     `yaml:"pool_size"` // agents preallocated in the ECS world
}

// VariantsConfig selects the capability set.
type VariantsConfig struct {
	Active string `yaml:"active"` // framework or training; empty follows sim.mode
}

// AvoidanceConfig holds the local avoidance solver parameters.
type AvoidanceConfig struct {
	NeighborDist    float64 `yaml:"neighbor_dist"`
	MaxNeighbors    int     `yaml:"max_neighbors"`
	TimeHorizon     float64 `yaml:"time_horizon"`
	TimeHorizonObst float64 `yaml:"time_horizon_obst"`
	Radius          float64 `yaml:"radius"`
	MaxSpeed        float64 `yaml:"max_speed"`
	Workers         int     `yaml:"workers"`
}

// AreaConfig is an axis-aligned rectangle on the ground plane.
type AreaConfig struct {
	Center     [2]float64 `yaml:"center"`      // x, z
	HalfExtent [2]float64 `yaml:"half_extent"` // x, z
}

// SpawnConfig holds spawn scheduling parameters.
type SpawnConfig struct {
	Agents        int          `yaml:"agents"` // training agents per run
	GroupMin      int          `yaml:"group_min"`
	GroupMax      int          `yaml:"group_max"` // exclusive
	SpeedMin      float64      `yaml:"speed_min"`
	SpeedMax      float64      `yaml:"speed_max"`
	DelayMin      float64      `yaml:"delay_min"` // seconds between training groups
	DelayMax      float64      `yaml:"delay_max"`
	GoalNoise     float64      `yaml:"goal_noise"`
	RingRadius    float64      `yaml:"ring_radius"`
	EndMultiplier float64      `yaml:"end_multiplier"` // dataset agents expire this many frame intervals after their window
	Areas         []AreaConfig `yaml:"areas"`
	Inheritance   *AreaConfig  `yaml:"inheritance"` // nil disables inheritance latching
}

// SeekConfig holds the heuristic policy gains.
type SeekConfig struct {
	TurnGain float64 `yaml:"turn_gain"`
	Cruise   float64 `yaml:"cruise"`
	Settle   float64 `yaml:"settle"`
	Arrive   float64 `yaml:"arrive"`
}

// PolicyConfig selects the decision source.
type PolicyConfig struct {
	Kind     string     `yaml:"kind"` // seek, ffnn or straight
	Seek     SeekConfig `yaml:"seek"`
	Weights  string     `yaml:"weights"` // ffnn weights JSON; empty uses a seeded random network
	FFNNSeed int64      `yaml:"ffnn_seed"`
}

// TelemetryConfig holds telemetry and output parameters.
type TelemetryConfig struct {
	StatsWindow  float64 `yaml:"stats_window"` // seconds per stats window
	PerfWindow   int     `yaml:"perf_window"`  // ticks averaged by the perf collector
	LogStats     bool    `yaml:"log_stats"`
	Trajectories bool    `yaml:"trajectories"`
	IndexPath    string  `yaml:"index_path"` // sqlite run index; empty disables
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	CellSize       float64 // 2 * Field.CellHalfSize
	TicksPerBucket int     // Field.FrameInterval, at least 1
	MaxStepsF      float64 // Sim.MaxSteps as float64
	WindowTicks    int     // Telemetry.StatsWindow in ticks, at least 1
	Variant        string  // resolved capability set name
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Sim.Mode {
	case ModeTraining, ModeDataset:
	default:
		return fmt.Errorf("sim.mode %q: want %s or %s", c.Sim.Mode, ModeTraining, ModeDataset)
	}
	if c.Sim.DT <= 0 {
		return fmt.Errorf("sim.dt must be positive, got %v", c.Sim.DT)
	}
	if c.Field.Rows < 1 || c.Field.Cols < 1 || c.Field.CellHalfSize <= 0 {
		return fmt.Errorf("field %dx%d with half size %v is empty", c.Field.Rows, c.Field.Cols, c.Field.CellHalfSize)
	}
	if c.Spawn.GroupMin < 1 || c.Spawn.GroupMax <= c.Spawn.GroupMin {
		return fmt.Errorf("spawn group range [%d, %d) is empty", c.Spawn.GroupMin, c.Spawn.GroupMax)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.CellSize = 2 * c.Field.CellHalfSize
	c.Derived.TicksPerBucket = max(c.Field.FrameInterval, 1)
	c.Derived.MaxStepsF = float64(c.Sim.MaxSteps)
	c.Derived.WindowTicks = max(int(math.Round(c.Telemetry.StatsWindow/c.Sim.DT)), 1)

	c.Derived.Variant = c.Variants.Active
	if c.Derived.Variant == "" {
		c.Derived.Variant = "framework"
		if c.Sim.Mode == ModeTraining {
			c.Derived.Variant = "training"
		}
	}
}

// SetMode switches the run mode and re-resolves derived values.
func (c *Config) SetMode(mode string) error {
	prev := c.Sim.Mode
	c.Sim.Mode = mode
	if err := c.validate(); err != nil {
		c.Sim.Mode = prev
		return err
	}
	c.computeDerived()
	return nil
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
