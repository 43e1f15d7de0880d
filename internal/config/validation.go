// Package config handles configuration loading and validation for gestured.
package config

import (
	"errors"
	"fmt"
	"strings"

	"gestured/internal/gesture"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateEngine(&c.Engine)...)
	errs = append(errs, validateGestures(&c.Gestures)...)
	errs = append(errs, validateProfiles(&c.Profiles)...)
	errs = append(errs, validateArchive(&c.Archive)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateIPC(&c.IPC)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateEngine(e *EngineConfig) ValidationErrors {
	var errs ValidationErrors

	if e.ThrottleMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.throttle_ms",
			Message: "throttle cannot be negative",
		})
	}
	if e.ThrottleMs > 1000 {
		errs = append(errs, ValidationError{
			Field:   "engine.throttle_ms",
			Message: "throttle cannot exceed 1000ms",
		})
	}
	if e.QueueSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "engine.queue_size",
			Message: "queue size must be at least 1",
		})
	}
	if e.NotifyBuffer < 1 {
		errs = append(errs, ValidationError{
			Field:   "engine.notify_buffer",
			Message: "notify buffer must be at least 1",
		})
	}
	if e.HistoryCap < 1 {
		errs = append(errs, ValidationError{
			Field:   "engine.history_cap",
			Message: "history cap must be at least 1",
		})
	}
	if e.StatsWindow < 1 {
		errs = append(errs, ValidationError{
			Field:   "engine.stats_window",
			Message: "stats window must be at least 1",
		})
	}
	if e.StatsWindow > e.HistoryCap {
		errs = append(errs, ValidationError{
			Field:   "engine.stats_window",
			Message: fmt.Sprintf("stats window %d exceeds history cap %d", e.StatsWindow, e.HistoryCap),
		})
	}

	return errs
}

func validateGestures(g *GesturesConfig) ValidationErrors {
	var errs ValidationErrors

	for i, name := range g.Enabled {
		if _, err := gesture.ParseKind(name); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("gestures.enabled[%d]", i),
				Message: fmt.Sprintf("unknown gesture kind: %s", name),
			})
		}
	}

	if g.MinTouches < 1 {
		errs = append(errs, ValidationError{
			Field:   "gestures.min_touches",
			Message: "minimum touches must be at least 1",
		})
	}
	if g.MaxTouches < g.MinTouches {
		errs = append(errs, ValidationError{
			Field:   "gestures.max_touches",
			Message: "maximum touches must be >= minimum touches",
		})
	}
	if g.RecognitionDelayMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "gestures.recognition_delay_ms",
			Message: "recognition delay cannot be negative",
		})
	}

	return errs
}

func validateProfiles(p *ProfilesConfig) ValidationErrors {
	var errs ValidationErrors

	if p.Dir == "" {
		errs = append(errs, ValidationError{
			Field:   "profiles.dir",
			Message: "profile directory is required",
		})
	}
	if p.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "profiles.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}
	if p.DebounceMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "profiles.debounce_ms",
			Message: "debounce cannot exceed 60000ms (1 minute)",
		})
	}

	return errs
}

func validateArchive(a *ArchiveConfig) ValidationErrors {
	var errs ValidationErrors

	if !a.Enabled {
		return errs
	}

	if a.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "archive.path",
			Message: "database path is required when archiving is enabled",
		})
	}
	if a.Buffer < 1 {
		errs = append(errs, ValidationError{
			Field:   "archive.buffer",
			Message: "buffer must be at least 1",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output includes 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	return errs
}

func validateIPC(i *IPCConfig) ValidationErrors {
	var errs ValidationErrors

	if !i.Enabled {
		return errs
	}

	if i.SocketPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ipc.socket_path",
			Message: "socket path is required when IPC is enabled",
		})
	}
	if i.MaxConnections < 1 {
		errs = append(errs, ValidationError{
			Field:   "ipc.max_connections",
			Message: "max connections must be at least 1",
		})
	}
	if i.TimeoutSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "ipc.timeout_sec",
			Message: "timeout must be at least 1 second",
		})
	}

	return errs
}
