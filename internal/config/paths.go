package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the config file location: the
// CLIPSYNC_CONFIG variable when set, otherwise
// <user config dir>/clipsync/config.toml.
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, "clipsync", "config.toml")
}

// DefaultDataDir returns the directory for mutable state (diagnostics
// ledger, pidfile). Created on demand by the callers that write there.
func DefaultDataDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, "clipsync")
}

// DiagnosticsPath resolves the diagnostics database location,
// preferring the configured path.
func (c *DiagnosticsConfig) DiagnosticsPath() string {
	if c.Path != "" {
		return c.Path
	}

	return filepath.Join(DefaultDataDir(), "diag.db")
}

// DefaultPidPath returns the watch daemon's pidfile location.
func DefaultPidPath() string {
	return filepath.Join(DefaultDataDir(), "clipsync.pid")
}
