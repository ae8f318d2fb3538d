package capture

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
)

// stubSource returns a fixed sequence of snapshots, repeating the last.
type stubSource struct {
	snaps []*Snapshot
	err   error
	idx   int
}

func (s *stubSource) Snapshot(_ context.Context) (*Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}

	if s.idx < len(s.snaps)-1 {
		snap := s.snaps[s.idx]
		s.idx++

		return snap, nil
	}

	return s.snaps[len(s.snaps)-1], nil
}

// recordingQueue collects enqueued requests.
type recordingQueue struct {
	mu   sync.Mutex
	reqs []*Request
}

func (q *recordingQueue) Enqueue(req *Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reqs = append(q.reqs, req)
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.reqs)
}

func testWatcher(src Source, queue Enqueuer, slot *StagingSlot, gates Gates) *Watcher {
	return NewWatcher(WatcherConfig{
		Source:     src,
		Slot:       slot,
		Queue:      queue,
		DeviceName: "test-device",
		GatesFunc:  func() Gates { return gates },
		PausedFunc: func() bool { return false },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func autoGates() Gates {
	return Gates{OwnerID: "owner-1", UploadEnabled: true, Interval: time.Second}
}

func TestWatcher_DedupIdenticalContent(t *testing.T) {
	t.Parallel()

	src := &stubSource{snaps: []*Snapshot{{Text: []byte("same")}}}
	queue := &recordingQueue{}
	w := testWatcher(src, queue, NewStagingSlot(), autoGates())

	w.tick(context.Background(), autoGates())
	w.tick(context.Background(), autoGates())

	assert.Equal(t, 1, queue.len(), "identical content must enqueue once")
}

func TestWatcher_NewContentEnqueues(t *testing.T) {
	t.Parallel()

	src := &stubSource{snaps: []*Snapshot{
		{Text: []byte("first")},
		{Text: []byte("second")},
	}}
	queue := &recordingQueue{}
	w := testWatcher(src, queue, NewStagingSlot(), autoGates())

	w.tick(context.Background(), autoGates())
	w.tick(context.Background(), autoGates())

	require.Equal(t, 2, queue.len())
	assert.Equal(t, "owner-1", queue.reqs[0].OwnerID)
	assert.Equal(t, "test-device", queue.reqs[0].DeviceName)
}

func TestWatcher_GatesSkipSampling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		gates Gates
	}{
		{"no owner", Gates{UploadEnabled: true}},
		{"uploads disabled", Gates{OwnerID: "owner-1"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src := &stubSource{err: errors.New("must not sample")}
			queue := &recordingQueue{}
			w := testWatcher(src, queue, NewStagingSlot(), tc.gates)

			w.tick(context.Background(), tc.gates)

			assert.Zero(t, queue.len())
		})
	}
}

func TestWatcher_PausedOwnerSkipsSampling(t *testing.T) {
	t.Parallel()

	src := &stubSource{err: errors.New("must not sample")}
	queue := &recordingQueue{}
	w := testWatcher(src, queue, NewStagingSlot(), autoGates())
	w.cfg.PausedFunc = func() bool { return true }

	w.tick(context.Background(), autoGates())

	assert.Zero(t, queue.len())
}

func TestWatcher_ManualModeStages(t *testing.T) {
	t.Parallel()

	gates := autoGates()
	gates.Manual = true

	src := &stubSource{snaps: []*Snapshot{{Text: []byte("staged")}}}
	queue := &recordingQueue{}
	slot := NewStagingSlot()
	w := testWatcher(src, queue, slot, gates)

	w.tick(context.Background(), gates)

	assert.Zero(t, queue.len())
	assert.True(t, slot.Peek())
}

func TestWatcher_ModeSwitchFlushesStaged(t *testing.T) {
	t.Parallel()

	slot := NewStagingSlot()
	staged := &Request{OwnerID: "owner-1", FileName: "leftover.txt"}
	slot.Store(staged)

	src := &stubSource{snaps: []*Snapshot{{}}}
	queue := &recordingQueue{}
	w := testWatcher(src, queue, slot, autoGates())

	w.tick(context.Background(), autoGates())

	require.Equal(t, 1, queue.len(), "exactly one enqueue of the staged request")
	assert.Same(t, staged, queue.reqs[0])
	assert.False(t, slot.Peek(), "slot empties after flush")
}

func TestWatcher_PrecedenceImageOverText(t *testing.T) {
	t.Parallel()

	src := &stubSource{snaps: []*Snapshot{{
		Image: []byte{0x89, 0x50, 0x4e, 0x47},
		Text:  []byte("also present"),
	}}}
	queue := &recordingQueue{}
	w := testWatcher(src, queue, NewStagingSlot(), autoGates())

	w.tick(context.Background(), autoGates())

	require.Equal(t, 1, queue.len())
	assert.Equal(t, "clipboard.png", queue.reqs[0].FileName)
}

func TestWatcher_SampleErrorSkipsTick(t *testing.T) {
	t.Parallel()

	src := &stubSource{err: errors.New("source unavailable")}
	queue := &recordingQueue{}
	w := testWatcher(src, queue, NewStagingSlot(), autoGates())

	w.tick(context.Background(), autoGates())

	assert.Zero(t, queue.len())
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	src := &stubSource{snaps: []*Snapshot{{}}}
	w := testWatcher(src, &recordingQueue{}, NewStagingSlot(), autoGates())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not exit on cancel")
	}
}
