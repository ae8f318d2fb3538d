package config

import "time"

// Recognized enum values.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"

	TransportPush = "push"
	TransportPoll = "poll"
)

// Default values. These are layer zero of the override chain and are
// chosen so clipsync works without a config file once the remote
// section is provided.
const (
	defaultMode             = ModeAuto
	defaultPollInterval     = "2s"
	defaultOwnerInterval    = "30s"
	defaultHistoryLength    = 10
	defaultTransport        = TransportPush
	defaultReconnectSeconds = 30
	defaultItemTTL          = "0"
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
)

// Clamping floors and caps applied during validation.
const (
	minPollInterval  = 1 * time.Second
	minOwnerInterval = 5 * time.Second
	minHistoryLength = 1
	maxHistoryLength = 100
	maxReconnectSecs = 55
)

// DefaultConfig returns a Config populated with all default values.
// Used as the starting point for TOML decoding so unset fields retain
// defaults, and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Mode:             defaultMode,
			UploadEnabled:    true,
			DownloadEnabled:  true,
			PollInterval:     defaultPollInterval,
			OwnerInterval:    defaultOwnerInterval,
			HistoryLength:    defaultHistoryLength,
			Transport:        defaultTransport,
			ReconnectSeconds: defaultReconnectSeconds,
			ItemTTL:          defaultItemTTL,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: true,
		},
	}
}
