// Package config handles configuration loading, validation, and management
// for gestured.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gestured/internal/gesture"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Engine configuration for the routing core.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// Gestures configuration for the recognition policy.
	Gestures GesturesConfig `toml:"gestures" json:"gestures" yaml:"gestures"`

	// Profiles configuration for declarative zone sets.
	Profiles ProfilesConfig `toml:"profiles" json:"profiles" yaml:"profiles"`

	// Archive configuration for the completed-gesture store.
	Archive ArchiveConfig `toml:"archive" json:"archive" yaml:"archive"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`
}

// EngineConfig holds routing-core tuning.
type EngineConfig struct {
	// ThrottleMs is the minimum spacing between admitted samples in
	// milliseconds. 16 admits roughly one sample per 60 Hz frame.
	ThrottleMs int `toml:"throttle_ms" json:"throttle_ms" yaml:"throttle_ms"`

	// QueueSize bounds the intake queue between Submit and the worker.
	QueueSize int `toml:"queue_size" json:"queue_size" yaml:"queue_size"`

	// NotifyBuffer bounds the observer notification queue.
	NotifyBuffer int `toml:"notify_buffer" json:"notify_buffer" yaml:"notify_buffer"`

	// HistoryCap bounds the completed-gesture history.
	HistoryCap int `toml:"history_cap" json:"history_cap" yaml:"history_cap"`

	// StatsWindow is how many recent completions statistics aggregate.
	StatsWindow int `toml:"stats_window" json:"stats_window" yaml:"stats_window"`
}

// GesturesConfig holds the gesture recognition policy.
type GesturesConfig struct {
	// Enabled is the list of enabled gesture kind names. Empty enables
	// every kind.
	Enabled []string `toml:"enabled" json:"enabled" yaml:"enabled"`

	// MinTouches is the minimum simultaneous touch count.
	MinTouches int `toml:"min_touches" json:"min_touches" yaml:"min_touches"`

	// MaxTouches is the maximum simultaneous touch count.
	MaxTouches int `toml:"max_touches" json:"max_touches" yaml:"max_touches"`

	// RecognitionDelayMs is the recognition delay in milliseconds.
	RecognitionDelayMs int `toml:"recognition_delay_ms" json:"recognition_delay_ms" yaml:"recognition_delay_ms"`

	// Simultaneous allows more than one gesture to be active at a time.
	Simultaneous bool `toml:"simultaneous" json:"simultaneous" yaml:"simultaneous"`

	// PressureSupport enables pressure-sensitive recognition.
	PressureSupport bool `toml:"pressure_support" json:"pressure_support" yaml:"pressure_support"`
}

// ProfilesConfig holds zone-profile loading configuration.
type ProfilesConfig struct {
	// Dir is the directory of profile documents.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`

	// Watch enables hot reload of the profile directory.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`

	// DebounceMs is the quiet period before a reload in milliseconds.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// Application is the application id profiles are matched against.
	Application string `toml:"application" json:"application" yaml:"application"`
}

// ArchiveConfig holds the completed-gesture archive configuration.
type ArchiveConfig struct {
	// Enabled determines whether completions are archived.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Buffer is the write queue capacity between the engine observer and
	// the archive writer.
	Buffer int `toml:"buffer" json:"buffer" yaml:"buffer"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output includes "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// IPCConfig holds control-socket configuration.
type IPCConfig struct {
	// Enabled determines whether the IPC server is started.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SocketPath is the path to the Unix socket.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	// MaxConnections is the maximum concurrent connections.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	// TimeoutSec is the per-request timeout in seconds.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := GesturedDir()

	return &Config{
		Version: Version,
		Engine: EngineConfig{
			ThrottleMs:   16,
			QueueSize:    256,
			NotifyBuffer: 128,
			HistoryCap:   500,
			StatsWindow:  100,
		},
		Gestures: GesturesConfig{
			Enabled:            gesture.KindStrings(),
			MinTouches:         1,
			MaxTouches:         5,
			RecognitionDelayMs: 0,
			Simultaneous:       true,
			PressureSupport:    false,
		},
		Profiles: ProfilesConfig{
			Dir:        filepath.Join(dir, "profiles"),
			Watch:      true,
			DebounceMs: 500,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "gestures.db"),
			Buffer:  256,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: filepath.Join(dir, "gestured.log"),
		},
		IPC: IPCConfig{
			Enabled:        true,
			SocketPath:     defaultSocketPath(),
			MaxConnections: 10,
			TimeoutSec:     30,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(GesturedDir(), "config.toml")
}

// Load reads configuration from the specified path. If the file doesn't
// exist, the defaults are returned. TOML, JSON, and YAML are supported,
// selected by file extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		// Try TOML by default
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode config (unknown format): %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Profiles.Dir,
		filepath.Dir(c.Archive.Path),
		filepath.Dir(c.Logging.FilePath),
		filepath.Dir(c.IPC.SocketPath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// GesturedDir returns the base gestured data directory, honoring the
// GESTURED_DATA_DIR environment override.
func GesturedDir() string {
	if envDir := os.Getenv("GESTURED_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with GESTURED_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GESTURED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GESTURED_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("GESTURED_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("GESTURED_PROFILE_DIR"); v != "" {
		c.Profiles.Dir = v
	}
	if v := os.Getenv("GESTURED_ARCHIVE_PATH"); v != "" {
		c.Archive.Path = v
	}
	if v := os.Getenv("GESTURED_THROTTLE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Engine.ThrottleMs = ms
		}
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Gestures.Enabled = append([]string{}, c.Gestures.Enabled...)
	return &clone
}

// GestureConfiguration converts the gestures section into the engine's
// configuration value. Unknown kind names are load errors.
func (c *Config) GestureConfiguration() (gesture.Configuration, error) {
	out := gesture.Configuration{
		MinTouches:       c.Gestures.MinTouches,
		MaxTouches:       c.Gestures.MaxTouches,
		RecognitionDelay: time.Duration(c.Gestures.RecognitionDelayMs) * time.Millisecond,
		Simultaneous:     c.Gestures.Simultaneous,
		PressureSupport:  c.Gestures.PressureSupport,
	}

	if len(c.Gestures.Enabled) == 0 {
		out.Enabled = gesture.Kinds()
		return out, nil
	}
	for _, name := range c.Gestures.Enabled {
		k, err := gesture.ParseKind(name)
		if err != nil {
			return gesture.Configuration{}, fmt.Errorf("config: gestures.enabled: %w", err)
		}
		out.Enabled = append(out.Enabled, k)
	}
	return out, nil
}

// ThrottleInterval returns the engine throttle as a duration.
func (c *Config) ThrottleInterval() time.Duration {
	return time.Duration(c.Engine.ThrottleMs) * time.Millisecond
}
