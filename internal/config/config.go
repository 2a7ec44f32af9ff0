// Package config holds all slime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all slime configuration.
type Config struct {
	// Sampling controls the perturbation neighborhood.
	Sampling SamplingConfig `yaml:"sampling"`

	// Selection controls surrogate feature selection.
	Selection SelectionConfig `yaml:"selection"`

	// Stability controls the sign-entropy filter.
	Stability StabilityConfig `yaml:"stability"`

	// Storage configures run persistence.
	Storage StorageConfig `yaml:"storage"`

	// Server configures the HTTP mode.
	Server ServerConfig `yaml:"server"`
}

// SamplingConfig controls the perturbation neighborhood.
type SamplingConfig struct {
	// Samples is the neighborhood size including the instance row.
	Samples int `yaml:"samples"`
	// KernelWidth overrides the default 0.75*sqrt(p) when positive.
	KernelWidth float64 `yaml:"kernel_width"`
	// Distance is "euclidean" or "cosine".
	Distance string `yaml:"distance"`
	// Seed makes runs reproducible when nonzero.
	Seed int64 `yaml:"seed"`
}

// SelectionConfig controls surrogate feature selection.
type SelectionConfig struct {
	// Method is none, forward, highest-weights, lasso-path or auto.
	Method string `yaml:"method"`
	// NumFeatures is the selection budget.
	NumFeatures int `yaml:"num_features"`
	// Alpha is the significance level of the path covariance test.
	Alpha float64 `yaml:"alpha"`
}

// StabilityConfig controls the sign-entropy filter.
type StabilityConfig struct {
	// Enabled toggles the elimination pass.
	Enabled bool `yaml:"enabled"`
	// Rounds is the number of elimination passes.
	Rounds int `yaml:"rounds"`
	// Threshold is the sign-entropy cutoff in bits.
	Threshold float64 `yaml:"threshold"`
	// FitsPerRound caps bootstrap fits per round; 0 means one per
	// neighborhood row.
	FitsPerRound int `yaml:"fits_per_round"`
	// Stratified resamples within label quartile strata.
	Stratified bool `yaml:"stratified"`
}

// StorageConfig configures run persistence.
type StorageConfig struct {
	// DatabasePath is the SQLite file; empty disables persistence.
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig configures the HTTP mode.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `yaml:"addr"`
	// Dataset optionally serves explanations against a background
	// dataset file, hot-reloaded on change.
	Dataset string `yaml:"dataset"`
	// LabelColumn names the prediction column of that dataset.
	LabelColumn string `yaml:"label_column"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			Samples:  5000,
			Distance: "euclidean",
		},
		Selection: SelectionConfig{
			Method:      "lasso-path",
			NumFeatures: 10,
			Alpha:       0.05,
		},
		Stability: StabilityConfig{
			Enabled:   true,
			Rounds:    5,
			Threshold: 0.85,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8146",
		},
	}
}

// Load reads a YAML config, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SLIME_DB"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("SLIME_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SLIME_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Sampling.Seed = seed
		}
	}
	if v := os.Getenv("SLIME_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sampling.Samples = n
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Sampling.Samples < 2 {
		return fmt.Errorf("config: sampling.samples must be at least 2, got %d", c.Sampling.Samples)
	}
	switch c.Sampling.Distance {
	case "euclidean", "cosine":
	default:
		return fmt.Errorf("config: unknown sampling.distance %q", c.Sampling.Distance)
	}
	if c.Selection.NumFeatures < 1 {
		return fmt.Errorf("config: selection.num_features must be positive, got %d", c.Selection.NumFeatures)
	}
	if c.Selection.Alpha <= 0 || c.Selection.Alpha >= 1 {
		return fmt.Errorf("config: selection.alpha must be in (0,1), got %g", c.Selection.Alpha)
	}
	if c.Stability.Rounds < 1 {
		return fmt.Errorf("config: stability.rounds must be positive, got %d", c.Stability.Rounds)
	}
	if c.Stability.Threshold <= 0 {
		return fmt.Errorf("config: stability.threshold must be positive, got %g", c.Stability.Threshold)
	}
	return nil
}
