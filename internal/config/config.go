// Package config implements TOML configuration loading, validation,
// environment overrides, and live reload for clipsync. Defaults first,
// then the config file, then CLIPSYNC_* environment variables; loops
// read immutable snapshots through a shared Holder.
package config

// Config is the top-level configuration structure parsed from a TOML
// file.
type Config struct {
	Sync        SyncConfig        `toml:"sync"`
	Remote      RemoteConfig      `toml:"remote"`
	Capture     CaptureConfig     `toml:"capture"`
	Logging     LoggingConfig     `toml:"logging"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
}

// SyncConfig controls the sync core: capture mode, direction gates,
// intervals, and the notification transport preference.
type SyncConfig struct {
	// Mode is "auto" (every clipboard change uploads) or "manual"
	// (changes are staged until an explicit send).
	Mode            string `toml:"mode"`
	UploadEnabled   bool   `toml:"upload_enabled"`
	DownloadEnabled bool   `toml:"download_enabled"`
	PollInterval    string `toml:"poll_interval"`
	OwnerInterval   string `toml:"owner_interval"`
	HistoryLength   int    `toml:"history_length"`
	// Transport is "push" or "poll".
	Transport        string `toml:"transport"`
	ReconnectSeconds int    `toml:"reconnect_seconds"`
	// ItemTTL is the expiry stamped on uploads; "0" disables expiry.
	ItemTTL string `toml:"item_ttl"`
}

// RemoteConfig identifies the remote store and this device.
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	OwnerID string `toml:"owner_id"`
	// DeviceName defaults to the hostname when empty.
	DeviceName string `toml:"device_name"`
}

// CaptureConfig holds the commands used to sample the clipboard, in
// precedence order: image, file list, text. An empty command disables
// that representation.
type CaptureConfig struct {
	ImageCmd []string `toml:"image_cmd"`
	FilesCmd []string `toml:"files_cmd"`
	TextCmd  []string `toml:"text_cmd"`
}

// LoggingConfig controls log output: level, format, destination.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// DiagnosticsConfig controls the local SQLite diagnostics ledger.
type DiagnosticsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Manual reports whether capture mode is manual.
func (c *SyncConfig) Manual() bool {
	return c.Mode == ModeManual
}
