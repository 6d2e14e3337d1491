package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type OracleConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
	BackoffMillis  int    `toml:"backoff_millis"`
}

type RunConfig struct {
	Workers int  `toml:"workers"`
	Subset  int  `toml:"subset"`
	Force   bool `toml:"force"`
}

type CacheConfig struct {
	Path string `toml:"path"`
}

type InputConfig struct {
	Path     string `toml:"path"`
	IDField  string `toml:"id_field"`
	LatField string `toml:"lat_field"`
	LonField string `toml:"lon_field"`
}

type OutputConfig struct {
	Path string `toml:"path"`
}

type StatusConfig struct {
	// Addr is the listen address for the progress endpoint, e.g.
	// "127.0.0.1:8090". Empty disables the status server.
	Addr string `toml:"addr"`
}

type Config struct {
	Oracle OracleConfig `toml:"oracle"`
	Run    RunConfig    `toml:"run"`
	Cache  CacheConfig  `toml:"cache"`
	Input  InputConfig  `toml:"input"`
	Output OutputConfig `toml:"output"`
	Status StatusConfig `toml:"status"`
}

// Default returns the configuration used when no file or overrides are
// given, mirroring the defaults of the original pipeline.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			BaseURL:        "http://localhost:5000",
			TimeoutSeconds: 30,
			MaxAttempts:    3,
			BackoffMillis:  500,
		},
		Run:   RunConfig{Workers: 3},
		Cache: CacheConfig{Path: "data/travel_times_cache.sqlite"},
		Input: InputConfig{
			Path:     "data/postcodes.csv",
			IDField:  "codigo_postal",
			LatField: "lat",
			LonField: "lon",
		},
		Output: OutputConfig{Path: "data/travel_times.csv"},
	}
}

// Load reads a TOML config file into the defaults. A missing file is not an
// error; env overrides still apply on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides config values from the environment. The variable names
// are kept compatible with the original pipeline so existing deployment
// scripts keep working.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OSRM_URL"); v != "" {
		c.Oracle.BaseURL = v
	}
	if v := os.Getenv("THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Run.Workers = n
		}
	}
	if v := os.Getenv("SUBSET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Run.Subset = n
		}
	}
	if v := os.Getenv("FORCE"); v != "" {
		c.Run.Force = v == "true" || v == "1"
	}
	if v := os.Getenv("INPUT"); v != "" {
		c.Input.Path = v
	}
	if v := os.Getenv("OUTPUT"); v != "" {
		c.Output.Path = v
	}
	if v := os.Getenv("ID_FIELD"); v != "" {
		c.Input.IDField = v
	}
	if v := os.Getenv("LAT_FIELD"); v != "" {
		c.Input.LatField = v
	}
	if v := os.Getenv("LON_FIELD"); v != "" {
		c.Input.LonField = v
	}
	if v := os.Getenv("CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		c.Status.Addr = v
	}
}

// Timeout is the per-request oracle timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// Backoff is the delay between oracle retry attempts.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Oracle.BackoffMillis) * time.Millisecond
}
