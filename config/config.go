// Package config handles rend.toml interpreter configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a rend.toml configuration.
type Config struct {
	Memory Memory `toml:"memory"`
	Log    Log    `toml:"log"`
	Server Server `toml:"server"`
	Cache  Cache  `toml:"cache"`

	// Dir is the directory containing the rend.toml file (set at load time).
	Dir string `toml:"-"`
}

// Memory configures the pooled allocator and collector.
type Memory struct {
	PoolScale    float64 `toml:"pool-scale"`
	BallastBytes int64   `toml:"ballast-bytes"`
	AlwaysMalloc bool    `toml:"always-malloc"`
}

// Log configures diagnostics.
type Log struct {
	Verbosity int  `toml:"verbosity"`
	WatchFail bool `toml:"watch-fail"`
}

// Server configures the evaluation server.
type Server struct {
	Port int `toml:"port"`
}

// Cache configures the persistent scan cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{Port: 4589},
		Cache:  Cache{Path: ".rend/scan-cache.db"},
	}
}

// Load parses a rend.toml file from the given directory and applies
// environment overrides.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "rend.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyEnv()
	return c, nil
}

// FindAndLoad walks up from startDir to find a rend.toml file, then
// loads and returns the configuration. Returns the defaults (with
// environment overrides) if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "rend.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			c := Default()
			c.applyEnv()
			return c, nil
		}
		dir = parent
	}
}

// applyEnv layers the environment toggles over the file values.
// REND_ALWAYS_MALLOC routes every data allocation to the system
// allocator for leak tooling; REND_WATCH_FAIL logs every error at its
// raise point.
func (c *Config) applyEnv() {
	if os.Getenv("REND_ALWAYS_MALLOC") != "" {
		c.Memory.AlwaysMalloc = true
	}
	if os.Getenv("REND_WATCH_FAIL") != "" {
		c.Log.WatchFail = true
	}
}

// CachePath returns the absolute path of the scan cache database.
func (c *Config) CachePath() string {
	if filepath.IsAbs(c.Cache.Path) {
		return c.Cache.Path
	}
	base := c.Dir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, c.Cache.Path)
}
