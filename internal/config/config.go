// Package config loads the optional per-project settings file at
// .nobs/config.yaml, layered under the environment variables spec.md §6
// already treats as authoritative (NOBS_ROOT, NOBS_DEBUG). The file exists
// for knobs the environment-variable contract never named: worker pool
// sizing and the memoization database's compaction threshold.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the merged view of .nobs/config.yaml and the environment.
type Config struct {
	Root  string `yaml:"-"`
	Debug bool   `yaml:"-"`

	Workers    WorkersConfig    `yaml:"workers"`
	Compaction CompactionConfig `yaml:"compaction"`
}

type WorkersConfig struct {
	// PoolSize is the configured thread pool size; zero means none is
	// configured. WorkerPoolSize reports it; no code in this module
	// passes it to future.NewThreadPool.
	PoolSize int `yaml:"pool_size"`
}

type CompactionConfig struct {
	// Slack is the configured compaction trigger ratio (size_tail -
	// size_head over size_head); zero means none is configured.
	// CompactionSlack reports it; memodb does not read it and always
	// uses its built-in compactionSlack constant (0.33).
	Slack float64 `yaml:"slack"`
}

// Load reads .nobs/config.yaml under root (if present) and layers
// NOBS_ROOT/NOBS_DEBUG from the real environment over it.
func Load(root string) (*Config, error) {
	return LoadWithEnv(root, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup, for tests.
func LoadWithEnv(root string, getenv func(string) string) (*Config, error) {
	cfg := &Config{Root: root}

	path := filepath.Join(root, ".nobs", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if envRoot := getenv("NOBS_ROOT"); envRoot != "" {
		cfg.Root = envRoot
	}
	if envDebug := getenv("NOBS_DEBUG"); envDebug != "" {
		b, err := strconv.ParseBool(envDebug)
		if err != nil {
			return nil, fmt.Errorf("config: NOBS_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	return cfg, nil
}

// CompactionSlack returns the configured override, or ok=false when the
// caller should fall back to the built-in default.
func (c *Config) CompactionSlack() (slack float64, ok bool) {
	if c == nil || c.Compaction.Slack <= 0 {
		return 0, false
	}
	return c.Compaction.Slack, true
}

// WorkerPoolSize returns the configured pool size, or ok=false when none
// is configured.
func (c *Config) WorkerPoolSize() (n int, ok bool) {
	if c == nil || c.Workers.PoolSize <= 0 {
		return 0, false
	}
	return c.Workers.PoolSize, true
}
