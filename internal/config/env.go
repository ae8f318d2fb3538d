package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides maps CLIPSYNC_* environment variables onto config
// fields. Only the operationally useful knobs are exposed this way;
// everything else lives in the config file.
type envOverrides struct {
	BaseURL    string `env:"CLIPSYNC_BASE_URL"`
	Token      string `env:"CLIPSYNC_TOKEN"`
	OwnerID    string `env:"CLIPSYNC_OWNER_ID"`
	DeviceName string `env:"CLIPSYNC_DEVICE"`
	Mode       string `env:"CLIPSYNC_MODE"`
	Transport  string `env:"CLIPSYNC_TRANSPORT"`
	LogLevel   string `env:"CLIPSYNC_LOG_LEVEL"`
}

// EnvConfigPath is read separately by the CLI to locate the config
// file itself.
const EnvConfigPath = "CLIPSYNC_CONFIG"

// applyEnv layers environment variables over the loaded config. An
// unset variable leaves the underlying value alone.
func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}

	if o.BaseURL != "" {
		cfg.Remote.BaseURL = o.BaseURL
	}

	if o.Token != "" {
		cfg.Remote.Token = o.Token
	}

	if o.OwnerID != "" {
		cfg.Remote.OwnerID = o.OwnerID
	}

	if o.DeviceName != "" {
		cfg.Remote.DeviceName = o.DeviceName
	}

	if o.Mode != "" {
		cfg.Sync.Mode = o.Mode
	}

	if o.Transport != "" {
		cfg.Sync.Transport = o.Transport
	}

	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}

	return nil
}
