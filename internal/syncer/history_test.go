package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsync-app/clipsync/internal/api"
)

// stubLister returns canned listings, optionally blocking until
// released so tests can hold a refresh in flight.
type stubLister struct {
	mu    sync.Mutex
	items []api.ItemSummary
	err   error
	calls int

	block chan struct{}
}

func (l *stubLister) List(ctx context.Context, _ string, _ int) ([]api.ItemSummary, error) {
	l.mu.Lock()
	l.calls++
	block := l.block
	items, err := l.items, l.err
	l.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return items, err
}

func (l *stubLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.calls
}

func historySettings() func() Settings {
	return func() Settings {
		return Settings{OwnerID: "owner-1", HistoryLength: 3}
	}
}

func item(id string) api.ItemSummary {
	return api.ItemSummary{ID: id, Kind: "text", CreatedAt: time.Now()}
}

func TestHistorySnapshotIsACopy(t *testing.T) {
	t.Parallel()

	h := NewHistory(&stubLister{}, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Update([]api.ItemSummary{item("a"), item("b")})

	snap := h.Snapshot()
	snap[0].ID = "mutated"

	assert.Equal(t, "a", h.Snapshot()[0].ID)
}

func TestHistoryMergeFrontInsert(t *testing.T) {
	t.Parallel()

	h := NewHistory(&stubLister{}, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Update([]api.ItemSummary{item("b"), item("c")})

	newest := item("a")
	h.Merge(&newest, 10)

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, "b", snap[1].ID)
}

func TestHistoryMergeDeduplicatesByID(t *testing.T) {
	t.Parallel()

	h := NewHistory(&stubLister{}, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Update([]api.ItemSummary{item("a"), item("b")})

	updated := item("b")
	h.Merge(&updated, 10)

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, "a", snap[1].ID)
}

func TestHistoryMergeCapsLength(t *testing.T) {
	t.Parallel()

	h := NewHistory(&stubLister{}, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Update([]api.ItemSummary{item("b"), item("c"), item("d")})

	newest := item("a")
	h.Merge(&newest, 3)

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, "c", snap[2].ID, "oldest entry must fall off the end")
}

func TestHistoryUpdateNotifiesSubscribers(t *testing.T) {
	t.Parallel()

	h := NewHistory(&stubLister{}, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ch := h.Changed()

	h.Update([]api.ItemSummary{item("a")})

	select {
	case <-ch:
	default:
		t.Fatal("expected change signal after Update")
	}
}

func TestHistoryRefreshReplacesSnapshot(t *testing.T) {
	t.Parallel()

	lister := &stubLister{items: []api.ItemSummary{item("x"), item("y")}}
	h := NewHistory(lister, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.True(t, h.Refresh(context.Background()))

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "x", snap[0].ID)
	assert.Equal(t, int64(1), h.Refreshes())
}

func TestHistoryRefreshSingleFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	lister := &stubLister{items: []api.ItemSummary{item("x")}, block: release}
	h := NewHistory(lister, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan bool, 1)

	go func() {
		done <- h.Refresh(context.Background())
	}()

	// Wait for the first refresh to reach the lister, then verify a
	// concurrent trigger is dropped instead of queued.
	require.Eventually(t, func() bool {
		return lister.callCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, h.Refresh(context.Background()), "overlapping refresh must be dropped")

	close(release)

	assert.True(t, <-done)
	assert.Equal(t, 1, lister.callCount())
	assert.Equal(t, int64(1), h.Refreshes())
}

func TestHistoryRefreshWithoutOwner(t *testing.T) {
	t.Parallel()

	lister := &stubLister{}
	h := NewHistory(lister, func() Settings { return Settings{} }, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.False(t, h.Refresh(context.Background()))
	assert.Equal(t, 0, lister.callCount())
}

func TestHistoryRefreshKeepsStaleSnapshotOnError(t *testing.T) {
	t.Parallel()

	lister := &stubLister{err: errors.New("500 internal server error")}
	h := NewHistory(lister, historySettings(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Update([]api.ItemSummary{item("stale")})

	assert.False(t, h.Refresh(context.Background()))

	snap := h.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "stale", snap[0].ID)
	assert.Equal(t, int64(0), h.Refreshes())
}
