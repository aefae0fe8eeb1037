package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// SnapshotConfig holds the snapshot defaults used when no flag overrides them.
type SnapshotConfig struct {
	// Path is the snapshot file. Empty means .size-snapshot.json in the
	// working directory.
	Path      string `mapstructure:"path" yaml:"path"`
	Threshold int64  `mapstructure:"threshold" yaml:"threshold"`
	PrintInfo bool   `mapstructure:"print_info" yaml:"print_info"`
}

// MeasureConfig tunes chunk discovery and measurement.
type MeasureConfig struct {
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Extensions    []string      `mapstructure:"extensions" yaml:"extensions"`
	DefaultFormat string        `mapstructure:"default_format" yaml:"default_format"`
}

// CacheConfig configures the measurement cache.
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	MemoryEntries int    `mapstructure:"memory_entries" yaml:"memory_entries"`
}

// HistoryConfig configures the run history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Measure  MeasureConfig  `mapstructure:"measure" yaml:"measure"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// Load reads configuration from the config file and SIZESNAP_* environment
// variables. Config file locations, in order:
//   - $XDG_CONFIG_HOME/sizesnap/config.yaml
//   - $HOME/.config/sizesnap/config.yaml
//
// A missing config file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations. An explicit path that does not exist is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if err := Prepare(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Prepare points v at the config file, binds SIZESNAP_* environment
// variables, installs defaults and reads the file. Flags bound to v after
// Prepare take precedence over everything it sets up.
func Prepare(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "sizesnap"))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "sizesnap"))
	}

	v.SetEnvPrefix("SIZESNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Decode unmarshals v into a Config and expands ~ in its paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	for _, p := range []*string{&cfg.Snapshot.Path, &cfg.Cache.Path, &cfg.History.Path, &cfg.Logging.Path} {
		if *p, err = ExpandPath(*p); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// SetDefaults installs the default value of every config key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("snapshot.path", "")
	v.SetDefault("snapshot.threshold", DefaultThreshold)
	v.SetDefault("snapshot.print_info", true)

	v.SetDefault("measure.workers", runtime.NumCPU())
	v.SetDefault("measure.timeout", DefaultTimeout)
	v.SetDefault("measure.extensions", DefaultExtensions)
	v.SetDefault("measure.default_format", DefaultFormat)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", DefaultCachePath())
	v.SetDefault("cache.memory_entries", DefaultMemoryEntries)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath())
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"measure":   "info",
		"treeshake": "warn",
		"snapshot":  "info",
		"watch":     "info",
	})
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	var problems []string
	if c.Snapshot.Threshold < 0 {
		problems = append(problems, "snapshot.threshold must be non-negative")
	}
	if c.Measure.Workers < 0 {
		problems = append(problems, "measure.workers must be non-negative")
	}
	if c.Measure.Timeout < 0 {
		problems = append(problems, "measure.timeout must be non-negative")
	}
	if c.History.RetentionDays < 0 {
		problems = append(problems, "history.retention_days must be non-negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "sizesnap"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "sizesnap"), nil
}

// ConfigPath returns the path of the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// WriteDefault writes a commented default config file unless one exists.
// It reports whether a file was written.
func WriteDefault() (bool, error) {
	if err := EnsureConfigDir(); err != nil {
		return false, err
	}
	configPath, err := ConfigPath()
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	content := fmt.Sprintf(`# sizesnap configuration

snapshot:
  # Snapshot file (empty means .size-snapshot.json in the working directory)
  path: ""
  # Bytes each size may grow before --match fails
  threshold: %d
  # Print computed sizes when recording
  print_info: true

measure:
  # Chunks measured in parallel
  workers: %d
  # Time limit for measuring one chunk
  timeout: %s
  # File extensions treated as chunks when walking directories
  extensions: [%s]
  # Format assumed when it cannot be inferred from the extension
  default_format: %s

cache:
  enabled: true
  path: %s
  # Records kept in memory in front of the on-disk cache
  memory_entries: %d

history:
  enabled: true
  path: %s
  retention_days: %d

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/sizesnap/sizesnap.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    measure: info
    treeshake: warn
    snapshot: info
    watch: info
`, DefaultThreshold, runtime.NumCPU(), DefaultTimeout, strings.Join(DefaultExtensions, ", "),
		DefaultFormat, DefaultCachePath(), DefaultMemoryEntries, DefaultHistoryPath(), DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/sizesnap.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "sizesnap")
}

// StateDir returns $XDG_STATE_HOME/sizesnap.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "sizesnap")
}

// CacheDir returns $XDG_CACHE_HOME/sizesnap.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "sizesnap")
}

// DefaultCachePath returns the badger directory of the measurement cache.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "records")
}

// DefaultHistoryPath returns the run history directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "sizesnap.log")
}
