package compare

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls a comparison.
type Config struct {
	// Tolerance is the allowed relative difference between two values.
	Tolerance float64 `yaml:"tolerance"`
	// AbsTolerance is the allowed absolute difference; values within either
	// tolerance are equal.
	AbsTolerance float64 `yaml:"abs_tolerance"`
	// SkipSuffixes lists name suffixes of arrays whose values depend on the
	// parallel write order of the simulation.
	SkipSuffixes []string `yaml:"skip_suffixes"`
	// Skip lists names to leave out.
	Skip []string `yaml:"skip"`
	// Concurrency bounds the variables compared at once.
	Concurrency int `yaml:"concurrency"`
}

// DefaultConfig returns the configuration Files uses without options.
func DefaultConfig() Config {
	return Config{
		Tolerance:    1e-4,
		SkipSuffixes: []string{"CellID", "rank", "blocks"},
		Concurrency:  4,
	}
}

// LoadConfig reads a YAML configuration. Environment variables in the file
// are expanded; fields it leaves out keep their defaults.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(filename)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", filename, err)
	}
	if cfg.Tolerance < 0 || cfg.AbsTolerance < 0 {
		return cfg, fmt.Errorf("%s: tolerances must not be negative", filename)
	}
	return cfg, nil
}
