package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Validate checks the config for errors and clamps tunables to their
// operational floors. Out-of-range intervals are silently raised to
// the minimum rather than rejected; genuinely wrong values (unknown
// enums, malformed durations, bad URLs) fail hard.
func Validate(cfg *Config) error {
	switch cfg.Sync.Mode {
	case ModeAuto, ModeManual:
	default:
		return fmt.Errorf("sync.mode: unknown mode %q (want %q or %q)", cfg.Sync.Mode, ModeAuto, ModeManual)
	}

	switch cfg.Sync.Transport {
	case TransportPush, TransportPoll:
	default:
		return fmt.Errorf("sync.transport: unknown transport %q (want %q or %q)", cfg.Sync.Transport, TransportPush, TransportPoll)
	}

	if err := clampInterval(&cfg.Sync.PollInterval, "sync.poll_interval", minPollInterval); err != nil {
		return err
	}

	if err := clampInterval(&cfg.Sync.OwnerInterval, "sync.owner_interval", minOwnerInterval); err != nil {
		return err
	}

	if _, err := time.ParseDuration(normalizeDuration(cfg.Sync.ItemTTL)); err != nil {
		return fmt.Errorf("sync.item_ttl: %w", err)
	}

	if cfg.Sync.HistoryLength < minHistoryLength {
		cfg.Sync.HistoryLength = minHistoryLength
	}

	if cfg.Sync.HistoryLength > maxHistoryLength {
		cfg.Sync.HistoryLength = maxHistoryLength
	}

	if cfg.Sync.ReconnectSeconds < 1 {
		cfg.Sync.ReconnectSeconds = defaultReconnectSeconds
	}

	if cfg.Sync.ReconnectSeconds > maxReconnectSecs {
		cfg.Sync.ReconnectSeconds = maxReconnectSecs
	}

	if cfg.Remote.BaseURL != "" {
		u, err := url.Parse(cfg.Remote.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("remote.base_url: not a valid URL: %q", cfg.Remote.BaseURL)
		}
	}

	if cfg.Remote.DeviceName == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "clipsync"
		}

		cfg.Remote.DeviceName = host
	}

	return nil
}

// clampInterval parses a duration field in place and raises it to the
// floor when configured too low.
func clampInterval(field *string, name string, floor time.Duration) error {
	d, err := time.ParseDuration(normalizeDuration(*field))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if d < floor {
		*field = floor.String()
	}

	return nil
}

// normalizeDuration lets a bare "0" stand for zero duration, which
// ParseDuration rejects without a unit.
func normalizeDuration(s string) string {
	if s == "0" || s == "" {
		return "0s"
	}

	return s
}

// PollIntervalDuration returns the parsed capture poll interval.
// Valid after Validate.
func (c *SyncConfig) PollIntervalDuration() time.Duration {
	return mustDuration(c.PollInterval, minPollInterval)
}

// OwnerIntervalDuration returns the parsed owner state poll interval.
func (c *SyncConfig) OwnerIntervalDuration() time.Duration {
	return mustDuration(c.OwnerInterval, minOwnerInterval)
}

// ItemTTLDuration returns the parsed upload expiry; zero means no
// expiry.
func (c *SyncConfig) ItemTTLDuration() time.Duration {
	return mustDuration(c.ItemTTL, 0)
}

// ReconnectDuration returns the long-poll timeout preference.
func (c *SyncConfig) ReconnectDuration() time.Duration {
	return time.Duration(c.ReconnectSeconds) * time.Second
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(normalizeDuration(s))
	if err != nil {
		return fallback
	}

	return d
}
