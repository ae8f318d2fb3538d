package diag

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore_RecordAndSummarize(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	s.Record(Event{Kind: KindCapture, ContentType: "text/plain", Bytes: 12, CreatedAt: now.Add(-2 * time.Minute)})
	s.Record(Event{Kind: KindCapture, ContentType: "image/png", Bytes: 900, CreatedAt: now})
	s.Record(Event{Kind: KindUpload, ItemID: "item-1", Bytes: 12, Elapsed: 150 * time.Millisecond, CreatedAt: now})
	s.Record(Event{Kind: KindFailure, Error: "connection refused", CreatedAt: now})

	sum, err := s.Summarize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.Captures)
	assert.Equal(t, int64(1), sum.Uploads)
	assert.Equal(t, int64(1), sum.Failures)
	assert.Equal(t, now, sum.LastCapture.UTC())
}

func TestStore_EmptySummary(t *testing.T) {
	t.Parallel()

	s := testStore(t)

	sum, err := s.Summarize(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sum.Captures)
	assert.True(t, sum.LastUpload.IsZero())
}
