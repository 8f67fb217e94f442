package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/polarsmith/internal/eventlog"
	"github.com/roach88/polarsmith/internal/generate"
	"github.com/roach88/polarsmith/internal/validate"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
// Bare integers are read as seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler. A bare integer would also
// decode as a string, so the node tag decides which reading applies.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var secs int64
		if err := node.Decode(&secs); err != nil {
			return fmt.Errorf("invalid duration value at line %d", node.Line)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value at line %d", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Backend names accepted by StorageConfig.Backend.
const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
)

// StorageConfig selects and parameterizes the object-store backend.
type StorageConfig struct {
	Backend    string `yaml:"backend"`     // "dir" | "sqlite"
	Dir        string `yaml:"dir"`         // base directory for the dir backend
	SQLitePath string `yaml:"sqlite_path"` // database file for the sqlite backend
}

// EventsConfig tunes the event log.
type EventsConfig struct {
	BatchSize     int      `yaml:"batch_size"`
	MaxBatchAge   Duration `yaml:"max_batch_age"`
	RetentionDays int      `yaml:"retention_days"`
}

// ValidationConfig tunes the validation service and its CLI backend.
type ValidationConfig struct {
	CacheTTL     Duration `yaml:"cache_ttl"`
	PoolSize     int      `yaml:"pool_size"`
	HistoryLimit int      `yaml:"history_limit"`
	CLIPath      string   `yaml:"cli_path"` // empty selects the in-process CUE validator
	CLITimeout   Duration `yaml:"cli_timeout"`
}

// GenerationConfig tunes the generate-and-validate loop.
type GenerationConfig struct {
	MaxRetries   int    `yaml:"max_retries"`
	AutoValidate *bool  `yaml:"auto_validate"` // pointer so an explicit false survives defaulting
	Model        string `yaml:"model"`
}

// Config is the full engine configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Events     EventsConfig     `yaml:"events"`
	Validation ValidationConfig `yaml:"validation"`
	Generation GenerationConfig `yaml:"generation"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	auto := true
	return Config{
		Storage: StorageConfig{
			Backend:    BackendDir,
			Dir:        "./data",
			SQLitePath: "./polarsmith.db",
		},
		Events: EventsConfig{
			BatchSize:     eventlog.DefaultBatchSize,
			MaxBatchAge:   Duration(eventlog.DefaultMaxBatchAge),
			RetentionDays: eventlog.DefaultRetentionDays,
		},
		Validation: ValidationConfig{
			CacheTTL:     Duration(validate.DefaultCacheTTL),
			PoolSize:     validate.DefaultPoolSize,
			HistoryLimit: validate.DefaultHistoryLimit,
			CLITimeout:   Duration(validate.DefaultCLITimeout),
		},
		Generation: GenerationConfig{
			MaxRetries:   generate.DefaultMaxRetries,
			AutoValidate: &auto,
			Model:        generate.DefaultModelConfig().Model,
		},
	}
}

// Load reads a YAML config file and merges it over the defaults.
// An empty path returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills any field the file zeroed back to its default.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = def.Storage.SQLitePath
	}
	if c.Events.BatchSize == 0 {
		c.Events.BatchSize = def.Events.BatchSize
	}
	if c.Events.MaxBatchAge == 0 {
		c.Events.MaxBatchAge = def.Events.MaxBatchAge
	}
	if c.Events.RetentionDays == 0 {
		c.Events.RetentionDays = def.Events.RetentionDays
	}
	if c.Validation.CacheTTL == 0 {
		c.Validation.CacheTTL = def.Validation.CacheTTL
	}
	if c.Validation.PoolSize == 0 {
		c.Validation.PoolSize = def.Validation.PoolSize
	}
	if c.Validation.HistoryLimit == 0 {
		c.Validation.HistoryLimit = def.Validation.HistoryLimit
	}
	if c.Validation.CLITimeout == 0 {
		c.Validation.CLITimeout = def.Validation.CLITimeout
	}
	if c.Generation.MaxRetries == 0 {
		c.Generation.MaxRetries = def.Generation.MaxRetries
	}
	if c.Generation.AutoValidate == nil {
		c.Generation.AutoValidate = def.Generation.AutoValidate
	}
	if c.Generation.Model == "" {
		c.Generation.Model = def.Generation.Model
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendDir, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %q or %q)", c.Storage.Backend, BackendDir, BackendSQLite)
	}
	if c.Events.BatchSize < 1 {
		return fmt.Errorf("events.batch_size must be >= 1, got %d", c.Events.BatchSize)
	}
	if c.Events.MaxBatchAge < 0 {
		return fmt.Errorf("events.max_batch_age must not be negative, got %s", c.Events.MaxBatchAge)
	}
	if c.Events.RetentionDays < 1 {
		return fmt.Errorf("events.retention_days must be >= 1, got %d", c.Events.RetentionDays)
	}
	if c.Validation.PoolSize < 1 {
		return fmt.Errorf("validation.pool_size must be >= 1, got %d", c.Validation.PoolSize)
	}
	if c.Validation.HistoryLimit < 1 {
		return fmt.Errorf("validation.history_limit must be >= 1, got %d", c.Validation.HistoryLimit)
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries must not be negative, got %d", c.Generation.MaxRetries)
	}
	return nil
}
