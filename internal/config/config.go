package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// PoolConfig tunes the agent pool.
type PoolConfig struct {
	// Capacity is the maximum number of live agents (standard profile)
	Capacity int `yaml:"capacity"`

	// ExtendedCapacity is the maximum for the extended conductor profile
	ExtendedCapacity int `yaml:"extended_capacity"`

	// WaitTimeout bounds how long Acquire waits for a free agent
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// PollInterval is the poll cadence while waiting for a free agent
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MemoryConfig tunes the shared memory bridge.
type MemoryConfig struct {
	// LockTimeout bounds the write-lock backoff budget
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// RegionSize is the default byte size of per-agent state regions
	RegionSize int `yaml:"region_size"`

	// MirrorDir, when set, switches the bridge into fallback mode with
	// file mirrors under this directory
	MirrorDir string `yaml:"mirror_dir"`
}

// CoordinationConfig tunes the conductors and the file coordinator.
type CoordinationConfig struct {
	// BatchSize is the maximum number of ready tasks pulled per round
	BatchSize int `yaml:"batch_size"`

	// Tick is the standard conductor's refill interval
	Tick time.Duration `yaml:"tick"`

	// ExtendedTick is the extended conductor's refill interval
	ExtendedTick time.Duration `yaml:"extended_tick"`

	// FileTick is the extended conductor's file-coordination interval
	FileTick time.Duration `yaml:"file_tick"`

	// LockTimeout bounds file range-lock waits
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// HandoffGrace is how long a predecessor keeps running after its
	// successor is seeded
	HandoffGrace time.Duration `yaml:"handoff_grace"`

	// ContextThreshold is the context usage ratio above which the
	// conductor starts a handoff
	ContextThreshold float64 `yaml:"context_threshold"`
}

// HistoryConfig tunes the persistence sink.
type HistoryConfig struct {
	// Enabled enables the sqlite history store
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database
	DBPath string `yaml:"db_path"`
}

// Config represents engine configuration options.
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written
	LogDir string `yaml:"log_dir"`

	// AgentsFile is the optional agent catalog override file
	AgentsFile string `yaml:"agents_file"`

	Pool         PoolConfig         `yaml:"pool"`
	Memory       MemoryConfig       `yaml:"memory"`
	Coordination CoordinationConfig `yaml:"coordination"`
	History      HistoryConfig      `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		LogDir:     ".symphony/logs",
		AgentsFile: ".symphony/agents.yaml",
		Pool: PoolConfig{
			Capacity:         15,
			ExtendedCapacity: 30,
			WaitTimeout:      30 * time.Second,
			PollInterval:     100 * time.Millisecond,
		},
		Memory: MemoryConfig{
			LockTimeout: 2 * time.Second,
			RegionSize:  64 * 1024,
			MirrorDir:   "",
		},
		Coordination: CoordinationConfig{
			BatchSize:        5,
			Tick:             5 * time.Second,
			ExtendedTick:     2 * time.Second,
			FileTick:         10 * time.Second,
			LockTimeout:      5 * time.Second,
			HandoffGrace:     5 * time.Second,
			ContextThreshold: 0.9,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".symphony/history.db",
		},
	}
}

// yamlConfig mirrors Config for file decoding: durations are strings
// and every field is a pointer so absent keys keep their defaults.
type yamlConfig struct {
	LogLevel   *string `yaml:"log_level"`
	LogDir     *string `yaml:"log_dir"`
	AgentsFile *string `yaml:"agents_file"`

	Pool *struct {
		Capacity         *int    `yaml:"capacity"`
		ExtendedCapacity *int    `yaml:"extended_capacity"`
		WaitTimeout      *string `yaml:"wait_timeout"`
		PollInterval     *string `yaml:"poll_interval"`
	} `yaml:"pool"`

	Memory *struct {
		LockTimeout *string `yaml:"lock_timeout"`
		RegionSize  *int    `yaml:"region_size"`
		MirrorDir   *string `yaml:"mirror_dir"`
	} `yaml:"memory"`

	Coordination *struct {
		BatchSize        *int     `yaml:"batch_size"`
		Tick             *string  `yaml:"tick"`
		ExtendedTick     *string  `yaml:"extended_tick"`
		FileTick         *string  `yaml:"file_tick"`
		LockTimeout      *string  `yaml:"lock_timeout"`
		HandoffGrace     *string  `yaml:"handoff_grace"`
		ContextThreshold *float64 `yaml:"context_threshold"`
	} `yaml:"coordination"`

	History *struct {
		Enabled *bool   `yaml:"enabled"`
		DBPath  *string `yaml:"db_path"`
	} `yaml:"history"`
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without
// error. If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.LogDir, raw.LogDir)
	setString(&cfg.AgentsFile, raw.AgentsFile)

	if p := raw.Pool; p != nil {
		setInt(&cfg.Pool.Capacity, p.Capacity)
		setInt(&cfg.Pool.ExtendedCapacity, p.ExtendedCapacity)
		if err := setDuration(&cfg.Pool.WaitTimeout, "pool.wait_timeout", p.WaitTimeout); err != nil {
			return nil, err
		}
		if err := setDuration(&cfg.Pool.PollInterval, "pool.poll_interval", p.PollInterval); err != nil {
			return nil, err
		}
	}

	if m := raw.Memory; m != nil {
		if err := setDuration(&cfg.Memory.LockTimeout, "memory.lock_timeout", m.LockTimeout); err != nil {
			return nil, err
		}
		setInt(&cfg.Memory.RegionSize, m.RegionSize)
		setString(&cfg.Memory.MirrorDir, m.MirrorDir)
	}

	if co := raw.Coordination; co != nil {
		setInt(&cfg.Coordination.BatchSize, co.BatchSize)
		if err := setDuration(&cfg.Coordination.Tick, "coordination.tick", co.Tick); err != nil {
			return nil, err
		}
		if err := setDuration(&cfg.Coordination.ExtendedTick, "coordination.extended_tick", co.ExtendedTick); err != nil {
			return nil, err
		}
		if err := setDuration(&cfg.Coordination.FileTick, "coordination.file_tick", co.FileTick); err != nil {
			return nil, err
		}
		if err := setDuration(&cfg.Coordination.LockTimeout, "coordination.lock_timeout", co.LockTimeout); err != nil {
			return nil, err
		}
		if err := setDuration(&cfg.Coordination.HandoffGrace, "coordination.handoff_grace", co.HandoffGrace); err != nil {
			return nil, err
		}
		if co.ContextThreshold != nil {
			cfg.Coordination.ContextThreshold = *co.ContextThreshold
		}
	}

	if h := raw.History; h != nil {
		if h.Enabled != nil {
			cfg.History.Enabled = *h.Enabled
		}
		setString(&cfg.History.DBPath, h.DBPath)
	}

	return cfg, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, field string, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, *src, err)
	}
	*dst = d
	return nil
}

// LoadConfigFromDir loads configuration from .symphony/config.yaml in
// the specified directory. If the directory or file doesn't exist,
// returns default configuration without error.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".symphony", "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil flag
// values override configuration values, letting flags take precedence
// over config file settings.
func (c *Config) MergeWithFlags(capacity *int, logLevel, logDir, mirrorDir *string) {
	if capacity != nil {
		c.Pool.Capacity = *capacity
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if mirrorDir != nil {
		c.Memory.MirrorDir = *mirrorDir
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Pool.Capacity < 1 {
		return fmt.Errorf("pool.capacity must be >= 1, got %d", c.Pool.Capacity)
	}
	if c.Pool.ExtendedCapacity < c.Pool.Capacity {
		return fmt.Errorf("pool.extended_capacity must be >= pool.capacity, got %d < %d",
			c.Pool.ExtendedCapacity, c.Pool.Capacity)
	}
	if c.Pool.WaitTimeout <= 0 {
		return fmt.Errorf("pool.wait_timeout must be > 0, got %v", c.Pool.WaitTimeout)
	}
	if c.Pool.PollInterval <= 0 {
		return fmt.Errorf("pool.poll_interval must be > 0, got %v", c.Pool.PollInterval)
	}

	if c.Memory.LockTimeout <= 0 {
		return fmt.Errorf("memory.lock_timeout must be > 0, got %v", c.Memory.LockTimeout)
	}
	if c.Memory.RegionSize < 1 {
		return fmt.Errorf("memory.region_size must be >= 1, got %d", c.Memory.RegionSize)
	}

	if c.Coordination.BatchSize < 1 {
		return fmt.Errorf("coordination.batch_size must be >= 1, got %d", c.Coordination.BatchSize)
	}
	if c.Coordination.Tick <= 0 || c.Coordination.ExtendedTick <= 0 || c.Coordination.FileTick <= 0 {
		return fmt.Errorf("coordination ticks must be > 0")
	}
	if c.Coordination.LockTimeout <= 0 {
		return fmt.Errorf("coordination.lock_timeout must be > 0, got %v", c.Coordination.LockTimeout)
	}
	if c.Coordination.HandoffGrace < 0 {
		return fmt.Errorf("coordination.handoff_grace must be >= 0, got %v", c.Coordination.HandoffGrace)
	}
	if c.Coordination.ContextThreshold <= 0 || c.Coordination.ContextThreshold > 1 {
		return fmt.Errorf("coordination.context_threshold must be in (0,1], got %v", c.Coordination.ContextThreshold)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}
