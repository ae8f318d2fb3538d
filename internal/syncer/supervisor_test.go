package syncer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsync-app/clipsync/internal/api"
	"github.com/clipsync-app/clipsync/internal/capture"
)

// stubRemote implements the full RemoteClient surface.
type stubRemote struct {
	stubUploader
	stubLister
	stubFetcher
	stubNotifier
}

// stubCaptureSource never reports content.
type stubCaptureSource struct{}

func (stubCaptureSource) Snapshot(context.Context) (*capture.Snapshot, error) {
	return &capture.Snapshot{}, nil
}

func testSupervisor(settings func() Settings) *Supervisor {
	remote := &stubRemote{}
	remote.stubFetcher.states = []*api.OwnerState{{OwnerID: "owner-1"}}
	remote.stubNotifier.negotiateErr = api.ErrPushUnsupported

	return NewSupervisor(SupervisorConfig{
		Source:     stubCaptureSource{},
		Remote:     remote,
		Settings:   settings,
		DeviceName: "dev-a",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSupervisorFlushStaged(t *testing.T) {
	t.Parallel()

	settings := newSettingsStub(defaultTestSettings())
	s := testSupervisor(settings.get)

	assert.False(t, s.FlushStaged(), "empty slot flushes nothing")

	s.slot.Store(textRequest("staged"))

	require.True(t, s.FlushStaged())
	assert.Equal(t, 1, s.QueueLen())
	assert.False(t, s.FlushStaged(), "slot is empty after a flush")
}

func TestSupervisorRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	settings := newSettingsStub(defaultTestSettings())
	s := testSupervisor(settings.get)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// Let the loops start before shutting down.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop on cancel")
	}

	assert.Equal(t, StateIdle, s.ListenerState())
}
