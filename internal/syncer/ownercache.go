package syncer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clipsync-app/clipsync/internal/api"
)

const (
	// minOwnerPollInterval is the floor for the remote state poll.
	minOwnerPollInterval = 5 * time.Second
	// resumeCheckInterval is how often WaitForResume re-reads the cache.
	resumeCheckInterval = 1 * time.Second
)

// OwnerCache holds the last fetched owner state for synchronous,
// non-blocking reads. A single poller writes; any loop may read.
type OwnerCache struct {
	state   atomic.Pointer[api.OwnerState]
	changed broadcaster

	// sleepFunc paces WaitForResume. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewOwnerCache returns a cache with no state; IsPaused reports false
// until the first poll lands.
func NewOwnerCache() *OwnerCache {
	return &OwnerCache{sleepFunc: timeSleep}
}

// IsPaused reports the cached pause flag. Never blocks, never touches
// the network. Unknown state counts as not paused.
func (c *OwnerCache) IsPaused() bool {
	s := c.state.Load()

	return s != nil && s.IsPaused
}

// State returns the cached state snapshot, or nil before the first poll.
func (c *OwnerCache) State() *api.OwnerState {
	return c.state.Load()
}

// Set stores a new state and notifies subscribers when the pause flag
// actually changed.
func (c *OwnerCache) Set(state *api.OwnerState) {
	prev := c.state.Swap(state)

	if prev == nil || prev.IsPaused != state.IsPaused {
		c.changed.notify()
	}
}

// Changed returns a channel that signals pause-flag transitions.
func (c *OwnerCache) Changed() <-chan struct{} {
	return c.changed.Subscribe()
}

// WaitForResume blocks until the cached state is not paused or the
// context is canceled. It polls the cached value only — no network.
func (c *OwnerCache) WaitForResume(ctx context.Context) error {
	for c.IsPaused() {
		if err := c.sleepFunc(ctx, resumeCheckInterval); err != nil {
			return err
		}
	}

	return nil
}

// OwnerStateFetcher fetches the remote owner state. Implemented by
// *api.Client.
type OwnerStateFetcher interface {
	GetOwnerState(ctx context.Context, ownerID string) (*api.OwnerState, error)
}

// OwnerPoller refreshes the OwnerCache on a fixed interval.
type OwnerPoller struct {
	fetcher  OwnerStateFetcher
	cache    *OwnerCache
	settings func() Settings
	logger   *slog.Logger

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewOwnerPoller creates a poller; call Run from the supervisor.
func NewOwnerPoller(fetcher OwnerStateFetcher, cache *OwnerCache, settings func() Settings, logger *slog.Logger) *OwnerPoller {
	return &OwnerPoller{
		fetcher:   fetcher,
		cache:     cache,
		settings:  settings,
		logger:    logger,
		sleepFunc: timeSleep,
	}
}

// Run polls until the context is canceled. Always returns nil; fetch
// failures are transient and logged.
func (p *OwnerPoller) Run(ctx context.Context) error {
	p.logger.Info("owner state poller started")

	for {
		s := p.settings()

		interval := s.OwnerInterval
		if interval < minOwnerPollInterval {
			interval = minOwnerPollInterval
		}

		if err := p.sleepFunc(ctx, interval); err != nil {
			p.logger.Info("owner state poller stopped")

			return nil
		}

		p.poll(ctx, s.OwnerID)
	}
}

// poll fetches the state once and updates the cache on change.
func (p *OwnerPoller) poll(ctx context.Context, ownerID string) {
	if ownerID == "" {
		return
	}

	state, err := p.fetcher.GetOwnerState(ctx, ownerID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		p.logger.Warn("owner state fetch failed",
			slog.String("error", err.Error()),
		)

		return
	}

	prev := p.cache.State()
	if prev != nil && prev.IsPaused == state.IsPaused && prev.UpdatedAt.Equal(state.UpdatedAt) {
		return
	}

	p.cache.Set(state)

	p.logger.Info("owner state updated",
		slog.String("owner", ownerID),
		slog.Bool("paused", state.IsPaused),
	)
}
