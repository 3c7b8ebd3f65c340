// Package config loads pledge configuration files.
//
// A configuration file is a YAML document; every field is optional and
// defaults to the values of Default. Command-line flags take precedence over the file.
//
//	backend: gini
//	metric: dice
//	generation:
//	  strategy: evolutionary
//	  count: 50
//	  budget: 30s
//	prioritization:
//	  strategy: near-optimal
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crillab/pledge/distance"
	"github.com/crillab/pledge/generate"
	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/prioritize"
)

// DefaultPath is the configuration file read when none is specified.
const DefaultPath = "pledge.yaml"

// Config is the configuration of a pledge pipeline.
type Config struct {
	Backend        string         `yaml:"backend"`
	Metric         string         `yaml:"metric"`
	Seed           int64          `yaml:"seed"`
	Store          string         `yaml:"store"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	Oracle         Oracle         `yaml:"oracle"`
	Generation     Generation     `yaml:"generation"`
	Prioritization Prioritization `yaml:"prioritization"`
}

// Oracle configures the satisfiability oracle.
type Oracle struct {
	EnumerationCap int `yaml:"enumeration_cap"`
}

// Generation configures the generation stage.
type Generation struct {
	Strategy string        `yaml:"strategy"`
	Count    int           `yaml:"count"`
	Budget   time.Duration `yaml:"budget"`
	MaxStall int           `yaml:"max_stall"`
	MaxFlips int           `yaml:"max_flips"`
}

// Prioritization configures the prioritization stage.
// An empty strategy disables prioritization in full runs.
type Prioritization struct {
	Strategy string        `yaml:"strategy"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend: oracle.DefaultBackend,
		Metric:  distance.Jaccard.Name,
		Store:   "pledge.db",
		Oracle:  Oracle{EnumerationCap: oracle.DefaultEnumerationCap},
		Generation: Generation{
			Strategy: generate.Unpredictable{}.Name(),
			Count:    10,
			Budget:   60 * time.Second,
			MaxStall: generate.DefaultMaxStall,
			MaxFlips: generate.DefaultMaxFlips,
		},
		Prioritization: Prioritization{
			Strategy: prioritize.Greedy{}.Name(),
		},
	}
}

// Load reads the configuration file at path, on top of the default configuration.
// If path is empty, DefaultPath is read if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every named component exists and that numbers are in range.
func (c *Config) Validate() error {
	if err := oracle.CheckBackend(c.Backend); err != nil {
		return err
	}
	if _, err := distance.Lookup(c.Metric); err != nil {
		return err
	}
	if _, err := generate.Lookup(c.Generation.Strategy); err != nil {
		return err
	}
	if c.Prioritization.Strategy != "" {
		if _, err := prioritize.Lookup(c.Prioritization.Strategy); err != nil {
			return err
		}
	}
	switch {
	case c.Generation.Count < 0:
		return fmt.Errorf("negative product count %d", c.Generation.Count)
	case c.Generation.Budget < 0:
		return fmt.Errorf("negative generation budget %v", c.Generation.Budget)
	case c.Prioritization.Timeout < 0:
		return fmt.Errorf("negative prioritization timeout %v", c.Prioritization.Timeout)
	case c.Oracle.EnumerationCap < 0:
		return fmt.Errorf("negative enumeration cap %d", c.Oracle.EnumerationCap)
	}
	return nil
}

// Write saves c as a YAML document at path.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
