// Package config loads the TOML configuration of one instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Config is the full configuration for one instance.
type Config struct {
	Instance  InstanceConfig  `toml:"instance"`
	Storage   StorageConfig   `toml:"storage"`
	Network   NetworkConfig   `toml:"network"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Logging   LoggingConfig   `toml:"logging"`
}

// InstanceConfig identifies the instance and what it runs.
type InstanceConfig struct {
	// Name tags every log line emitted by the instance.
	Name string `toml:"name"`

	// Agent is the nick of the agent running the instance.
	Agent string `toml:"agent"`

	// StateDumpLogging logs a state dump on every scheduler tick.
	StateDumpLogging bool `toml:"state_dump_logging"`

	// DNAPath is the CUE application definition to load at start.
	DNAPath string `toml:"dna_path"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is "memory", "sqlite" or "leveldb".
	Backend string `toml:"backend"`

	// Path is the database file (sqlite) or directory (leveldb).
	Path string `toml:"path"`
}

// NetworkConfig is passed through to the network collaborator untouched.
type NetworkConfig struct {
	// Backend names the transport.
	Backend string `toml:"backend"`

	// Name identifies the network. Instances only see peers on the same name.
	Name string `toml:"name"`
}

// SchedulerConfig controls the maintenance job.
type SchedulerConfig struct {
	// Interval is the time between maintenance ticks.
	Interval Duration `toml:"interval"`

	// MaxPendingAttempts abandons a pending validation after this many
	// failed retries. Zero retries forever.
	MaxPendingAttempts int `toml:"max_pending_attempts"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `toml:"output"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// In-memory network backend name.
const NetworkBackendMemory = "memory"

// UniqueNetworkName returns a fresh network name so that instances started
// without one never see each other.
func UniqueNetworkName() string {
	return "chaincore-" + uuid.NewString()
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Instance: InstanceConfig{
			Name:  "chaincore",
			Agent: "alice",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Network: NetworkConfig{
			Backend: NetworkBackendMemory,
		},
		Scheduler: SchedulerConfig{
			Interval: Duration(time.Second),
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "chaincore",
			ListenAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults, and an empty network name is
// replaced by a unique one.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Network.Name == "" {
		cfg.Network.Name = UniqueNetworkName()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrEmptyInstanceName      = errors.New("instance name cannot be empty")
	ErrEmptyAgent             = errors.New("instance agent cannot be empty")
	ErrInvalidStorageBackend  = errors.New("storage backend must be one of: memory, sqlite, leveldb")
	ErrEmptyStoragePath       = errors.New("storage path cannot be empty for a persistent backend")
	ErrEmptyNetworkBackend    = errors.New("network backend cannot be empty")
	ErrInvalidSchedulerPeriod = errors.New("scheduler interval must be positive")
	ErrInvalidMaxAttempts     = errors.New("scheduler max_pending_attempts must be non-negative")
	ErrEmptyMetricsNamespace  = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be 'text' or 'json'")
	ErrEmptyLogOutput         = errors.New("log output cannot be empty")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Instance.Validate(); err != nil {
		return fmt.Errorf("instance config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("network config: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the instance configuration for errors.
func (c *InstanceConfig) Validate() error {
	if c.Name == "" {
		return ErrEmptyInstanceName
	}
	if c.Agent == "" {
		return ErrEmptyAgent
	}
	return nil
}

// Validate checks the storage configuration for errors.
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "sqlite", "leveldb":
		if c.Path == "" {
			return ErrEmptyStoragePath
		}
		return nil
	default:
		return ErrInvalidStorageBackend
	}
}

// Validate checks the network configuration for errors.
func (c *NetworkConfig) Validate() error {
	if c.Backend == "" {
		return ErrEmptyNetworkBackend
	}
	return nil
}

// Validate checks the scheduler configuration for errors.
func (c *SchedulerConfig) Validate() error {
	if c.Interval.Duration() <= 0 {
		return ErrInvalidSchedulerPeriod
	}
	if c.MaxPendingAttempts < 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled {
		if c.Namespace == "" {
			return ErrEmptyMetricsNamespace
		}
		if c.ListenAddr == "" {
			return ErrEmptyMetricsListenAddr
		}
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	switch c.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	if c.Output == "" {
		return ErrEmptyLogOutput
	}
	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// EnsureDataDirs creates the directory holding persistent storage.
func (c *Config) EnsureDataDirs() error {
	var dir string
	switch c.Storage.Backend {
	case "sqlite":
		dir = filepath.Dir(c.Storage.Path)
	case "leveldb":
		dir = c.Storage.Path
	}
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}
