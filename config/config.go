// Package config holds the simulator configuration surface.
//
// Configurations are loaded from JSON or YAML files on top of Default and can
// be overridden by command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"
)

// CurrentVersion is the configuration schema version written by Save.
const CurrentVersion = "1.0.0"

// supportedVersions is the range of schema versions Load accepts.
const supportedVersions = "^1"

// Scheduling policy names.
const (
	PolicyRoundRobin = "rr"
	PolicySJF        = "sjf"
	PolicyLottery    = "lottery"
	PolicyCacheAware = "cache-aware"
)

// Policies lists every recognized scheduling policy name.
var Policies = []string{PolicyRoundRobin, PolicySJF, PolicyLottery, PolicyCacheAware}

// Config holds the simulation parameters.
type Config struct {
	// Version is the schema version of the file the config was loaded from.
	Version string `json:"version" yaml:"version"`

	// NumCores is the number of physical cores. Default: 2.
	NumCores int `json:"num_cores" yaml:"num_cores"`

	// Quantum is the number of cycles a process runs before preemption.
	// Default: 4.
	Quantum int `json:"quantum" yaml:"quantum"`

	// CacheEnabled turns the instruction cache on. Default: true.
	CacheEnabled bool `json:"cache_enabled" yaml:"cache_enabled"`

	// CacheSize is the number of direct-mapped cache slots. Default: 64.
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// Policy selects the scheduling policy (rr, sjf, lottery, cache-aware).
	// Default: rr.
	Policy string `json:"policy" yaml:"policy"`

	// MaxCycles force-stops the run loop. Default: 10000.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// MemorySize is the number of shared memory cells. Default: 4096.
	MemorySize int `json:"memory_size" yaml:"memory_size"`

	// IOAddress is the reserved I/O cell. Default: MemorySize-1.
	IOAddress uint64 `json:"io_address" yaml:"io_address"`

	// IOBlockCycles is how long a process stays blocked on I/O. Default: 5.
	IOBlockCycles int `json:"io_block_cycles" yaml:"io_block_cycles"`

	// MaxProcesses bounds the ready and blocked queues. Default: 64.
	MaxProcesses int `json:"max_processes" yaml:"max_processes"`

	// DataWords is the number of data cells allocated after each program.
	// Default: 32.
	DataWords int `json:"data_words" yaml:"data_words"`

	// LookAhead is the cache-aware policy's instruction window. Default: 3.
	LookAhead int `json:"look_ahead" yaml:"look_ahead"`

	// SimilarityThreshold decides cluster membership. Default: 0.65.
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// MaxClusters caps the number of similarity clusters. Default: 4.
	MaxClusters int `json:"max_clusters" yaml:"max_clusters"`

	// DefaultTickets is the lottery ticket count of a new process. Default: 10.
	DefaultTickets int `json:"default_tickets" yaml:"default_tickets"`

	// Seed seeds the lottery draw. Default: 1.
	Seed uint64 `json:"seed" yaml:"seed"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR. Default: INFO.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version:             CurrentVersion,
		NumCores:            2,
		Quantum:             4,
		CacheEnabled:        true,
		CacheSize:           64,
		Policy:              PolicyRoundRobin,
		MaxCycles:           10000,
		MemorySize:          4096,
		IOAddress:           4095,
		IOBlockCycles:       5,
		MaxProcesses:        64,
		DataWords:           32,
		LookAhead:           3,
		SimilarityThreshold: 0.65,
		MaxClusters:         4,
		DefaultTickets:      10,
		Seed:                1,
		LogLevel:            "INFO",
	}
}

// Load loads a Config from a JSON or YAML file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := checkVersion(config.Version); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the Config to a JSON or YAML file, chosen by extension.
func (c *Config) Save(path string) error {
	out := c.Clone()
	out.Version = CurrentVersion

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(out)
	default:
		data, err = json.MarshalIndent(out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func checkVersion(version string) error {
	if version == "" {
		return nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid config version %q: %w", version, err)
	}

	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config version %s is not supported (want %s)", version, supportedVersions)
	}

	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.NumCores <= 0 {
		return fmt.Errorf("num_cores must be > 0")
	}
	if c.Quantum <= 0 {
		return fmt.Errorf("quantum must be > 0")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be > 0")
	}
	if !isPolicy(c.Policy) {
		return fmt.Errorf("unknown policy %q (want one of %s)", c.Policy, strings.Join(Policies, ", "))
	}
	if c.MaxCycles == 0 {
		return fmt.Errorf("max_cycles must be > 0")
	}
	if c.MemorySize <= 0 {
		return fmt.Errorf("memory_size must be > 0")
	}
	if c.IOAddress >= uint64(c.MemorySize) {
		return fmt.Errorf("io_address %d must be < memory_size %d", c.IOAddress, c.MemorySize)
	}
	if c.IOBlockCycles <= 0 {
		return fmt.Errorf("io_block_cycles must be > 0")
	}
	if c.MaxProcesses <= 0 {
		return fmt.Errorf("max_processes must be > 0")
	}
	if c.DataWords < 0 {
		return fmt.Errorf("data_words must be >= 0")
	}
	if c.LookAhead <= 0 {
		return fmt.Errorf("look_ahead must be > 0")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be within [0, 1]")
	}
	if c.MaxClusters <= 0 {
		return fmt.Errorf("max_clusters must be > 0")
	}
	if c.DefaultTickets <= 0 {
		return fmt.Errorf("default_tickets must be > 0")
	}
	return nil
}

func isPolicy(name string) bool {
	for _, p := range Policies {
		if p == name {
			return true
		}
	}
	return false
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ParseLogLevel maps a level name to a slog level. Unknown names map to
// INFO.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
