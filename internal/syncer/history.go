package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/clipsync-app/clipsync/internal/api"
)

// Lister fetches recent items from the remote store. Implemented by
// *api.Client.
type Lister interface {
	List(ctx context.Context, ownerID string, take int) ([]api.ItemSummary, error)
}

// History caches the last known list of remote items, most recent
// first. The dispatcher inserts optimistically after an upload; the
// listener replaces the whole snapshot via Refresh.
type History struct {
	mu    sync.RWMutex
	items []api.ItemSummary

	// refreshMu is the single-flight guard: TryLock failing means a
	// refresh is already running and the trigger is dropped.
	refreshMu sync.Mutex

	lister   Lister
	settings func() Settings
	logger   *slog.Logger
	changed  broadcaster

	refreshes atomic.Int64
}

// NewHistory creates an empty history cache.
func NewHistory(lister Lister, settings func() Settings, logger *slog.Logger) *History {
	return &History{
		lister:   lister,
		settings: settings,
		logger:   logger,
	}
}

// Snapshot returns a copy of the cached items.
func (h *History) Snapshot() []api.ItemSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]api.ItemSummary, len(h.items))
	copy(out, h.items)

	return out
}

// Update replaces the cached snapshot and notifies subscribers.
func (h *History) Update(items []api.ItemSummary) {
	h.mu.Lock()
	h.items = items
	h.mu.Unlock()

	h.changed.notify()
}

// Merge inserts an item at the front, removing any existing entry with
// the same id and capping the list at maxLen. Used by the dispatcher
// for optimistic insertion after a successful upload.
func (h *History) Merge(item *api.ItemSummary, maxLen int) {
	h.mu.Lock()

	merged := make([]api.ItemSummary, 0, len(h.items)+1)
	merged = append(merged, *item)

	for _, existing := range h.items {
		if existing.ID == item.ID {
			continue
		}

		merged = append(merged, existing)
	}

	if maxLen > 0 && len(merged) > maxLen {
		merged = merged[:maxLen]
	}

	h.items = merged
	h.mu.Unlock()

	h.changed.notify()
}

// Changed returns a channel signaling snapshot replacements.
func (h *History) Changed() <-chan struct{} {
	return h.changed.Subscribe()
}

// Refresh fetches the full list from the remote store and replaces the
// snapshot. Single-flight: when a refresh is already running the call
// returns false immediately and does nothing. A fetch failure is logged
// and swallowed; the stale snapshot stays in place.
func (h *History) Refresh(ctx context.Context) bool {
	if !h.refreshMu.TryLock() {
		return false
	}
	defer h.refreshMu.Unlock()

	s := h.settings()
	if s.OwnerID == "" {
		return false
	}

	items, err := h.lister.List(ctx, s.OwnerID, s.HistoryLength)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("history refresh failed",
				slog.String("error", err.Error()),
			)
		}

		return false
	}

	h.refreshes.Add(1)
	h.Update(items)

	h.logger.Debug("history refreshed", slog.Int("items", len(items)))

	return true
}

// TriggerRefresh starts a refresh in the background unless one is in
// flight. The listener uses this so a slow list call never stalls the
// notification loop.
func (h *History) TriggerRefresh(ctx context.Context) {
	go h.Refresh(ctx)
}

// Refreshes returns the number of completed refreshes.
func (h *History) Refreshes() int64 {
	return h.refreshes.Load()
}
