// Package config handles configuration loading and validation for gestured.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/gestured/
//   - Linux:   ~/.local/share/gestured/
//   - Windows: %APPDATA%\gestured\
//
// Falls back to ~/.gestured if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(home, "Library", "Application Support", "gestured")
	case "linux":
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, "gestured")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(home, ".local", "share", "gestured")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "gestured")
		}
		return fallbackDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/gestured/
//   - Linux:   ~/.config/gestured/
//   - Windows: %APPDATA%\gestured\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		if cfgHome := os.Getenv("XDG_CONFIG_HOME"); cfgHome != "" {
			return filepath.Join(cfgHome, "gestured")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(home, ".config", "gestured")
	default:
		// macOS and Windows use the same dir for config and data.
		return PlatformDataDir()
	}
}

func fallbackDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gestured"
	}
	return filepath.Join(home, ".gestured")
}

// defaultSocketPath returns the platform-appropriate control socket path.
func defaultSocketPath() string {
	switch runtime.GOOS {
	case "linux":
		// Prefer XDG_RUNTIME_DIR
		if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
			return filepath.Join(xdgRuntime, "gestured.sock")
		}
		return "/tmp/gestured.sock"
	case "darwin":
		return filepath.Join(PlatformDataDir(), "gestured.sock")
	default:
		return "/tmp/gestured.sock"
	}
}
