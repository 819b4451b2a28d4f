package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Pool.Capacity != 15 {
		t.Errorf("Pool.Capacity = %d, want 15", cfg.Pool.Capacity)
	}
	if cfg.Pool.ExtendedCapacity != 30 {
		t.Errorf("Pool.ExtendedCapacity = %d, want 30", cfg.Pool.ExtendedCapacity)
	}
	if cfg.Pool.WaitTimeout != 30*time.Second {
		t.Errorf("Pool.WaitTimeout = %v, want 30s", cfg.Pool.WaitTimeout)
	}
	if cfg.Pool.PollInterval != 100*time.Millisecond {
		t.Errorf("Pool.PollInterval = %v, want 100ms", cfg.Pool.PollInterval)
	}
	if cfg.Memory.LockTimeout != 2*time.Second {
		t.Errorf("Memory.LockTimeout = %v, want 2s", cfg.Memory.LockTimeout)
	}
	if cfg.Memory.RegionSize != 64*1024 {
		t.Errorf("Memory.RegionSize = %d, want 65536", cfg.Memory.RegionSize)
	}
	if cfg.Coordination.Tick != 5*time.Second {
		t.Errorf("Coordination.Tick = %v, want 5s", cfg.Coordination.Tick)
	}
	if cfg.Coordination.ExtendedTick != 2*time.Second {
		t.Errorf("Coordination.ExtendedTick = %v, want 2s", cfg.Coordination.ExtendedTick)
	}
	if cfg.Coordination.FileTick != 10*time.Second {
		t.Errorf("Coordination.FileTick = %v, want 10s", cfg.Coordination.FileTick)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled should default to true")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `log_level: debug
log_dir: /tmp/symphony-logs
pool:
  capacity: 8
  wait_timeout: 10s
memory:
  region_size: 4096
  mirror_dir: /tmp/mirror
coordination:
  batch_size: 3
  tick: 1s
  context_threshold: 0.8
history:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Pool.Capacity != 8 {
		t.Errorf("Pool.Capacity = %d, want 8", cfg.Pool.Capacity)
	}
	if cfg.Pool.WaitTimeout != 10*time.Second {
		t.Errorf("Pool.WaitTimeout = %v, want 10s", cfg.Pool.WaitTimeout)
	}
	if cfg.Memory.RegionSize != 4096 {
		t.Errorf("Memory.RegionSize = %d, want 4096", cfg.Memory.RegionSize)
	}
	if cfg.Memory.MirrorDir != "/tmp/mirror" {
		t.Errorf("Memory.MirrorDir = %q, want /tmp/mirror", cfg.Memory.MirrorDir)
	}
	if cfg.Coordination.BatchSize != 3 {
		t.Errorf("Coordination.BatchSize = %d, want 3", cfg.Coordination.BatchSize)
	}
	if cfg.Coordination.Tick != time.Second {
		t.Errorf("Coordination.Tick = %v, want 1s", cfg.Coordination.Tick)
	}
	if cfg.Coordination.ContextThreshold != 0.8 {
		t.Errorf("ContextThreshold = %v, want 0.8", cfg.Coordination.ContextThreshold)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled should be false")
	}

	// Unset keys keep their defaults.
	if cfg.Pool.PollInterval != 100*time.Millisecond {
		t.Errorf("Pool.PollInterval = %v, want default 100ms", cfg.Pool.PollInterval)
	}
	if cfg.Pool.ExtendedCapacity != 30 {
		t.Errorf("Pool.ExtendedCapacity = %d, want default 30", cfg.Pool.ExtendedCapacity)
	}
	if cfg.Coordination.HandoffGrace != 5*time.Second {
		t.Errorf("HandoffGrace = %v, want default 5s", cfg.Coordination.HandoffGrace)
	}
	if cfg.History.DBPath != ".symphony/history.db" {
		t.Errorf("History.DBPath = %q, want default", cfg.History.DBPath)
	}
}

func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() should not error on missing file, got: %v", err)
	}
	if cfg.Pool.Capacity != 15 {
		t.Errorf("Pool.Capacity = %d, want default 15", cfg.Pool.Capacity)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("log_level: [not, a, string\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Error("LoadConfig() should fail on malformed YAML")
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := "pool:\n  wait_timeout: whenever\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Error("LoadConfig() should fail on a bad duration string")
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	symphonyDir := filepath.Join(tmpDir, ".symphony")
	if err := os.MkdirAll(symphonyDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "pool:\n  capacity: 4\n"
	if err := os.WriteFile(filepath.Join(symphonyDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromDir(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.Pool.Capacity != 4 {
		t.Errorf("Pool.Capacity = %d, want 4", cfg.Pool.Capacity)
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()

	capacity := 7
	level := "trace"
	cfg.MergeWithFlags(&capacity, &level, nil, nil)

	if cfg.Pool.Capacity != 7 {
		t.Errorf("Pool.Capacity = %d, want 7", cfg.Pool.Capacity)
	}
	if cfg.LogLevel != "trace" {
		t.Errorf("LogLevel = %q, want trace", cfg.LogLevel)
	}
	if cfg.LogDir != ".symphony/logs" {
		t.Errorf("LogDir = %q, should be untouched by nil flag", cfg.LogDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero capacity", func(c *Config) { c.Pool.Capacity = 0 }},
		{"extended below standard", func(c *Config) { c.Pool.ExtendedCapacity = 1 }},
		{"zero wait timeout", func(c *Config) { c.Pool.WaitTimeout = 0 }},
		{"zero poll interval", func(c *Config) { c.Pool.PollInterval = 0 }},
		{"zero region size", func(c *Config) { c.Memory.RegionSize = 0 }},
		{"zero batch", func(c *Config) { c.Coordination.BatchSize = 0 }},
		{"zero tick", func(c *Config) { c.Coordination.Tick = 0 }},
		{"threshold above one", func(c *Config) { c.Coordination.ContextThreshold = 1.5 }},
		{"negative grace", func(c *Config) { c.Coordination.HandoffGrace = -time.Second }},
		{"history without path", func(c *Config) { c.History.DBPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() should fail for %s", tt.name)
			}
		})
	}
}

func TestGetSymphonyHomeEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SYMPHONY_HOME", tmpDir)

	home, err := GetSymphonyHome()
	if err != nil {
		t.Fatalf("GetSymphonyHome() error = %v", err)
	}
	if home != tmpDir {
		t.Errorf("home = %q, want %q", home, tmpDir)
	}
}
