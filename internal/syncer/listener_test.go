package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsync-app/clipsync/internal/api"
)

// stubNotifier scripts the remote notification surface.
type stubNotifier struct {
	mu sync.Mutex

	conn         *api.PushConnection
	negotiateErr error
	negotiations int

	pollBatches [][]api.NotificationEvent
	pollErr     error
	polls       int

	// onPoll runs after each poll, outside the lock.
	onPoll func(count int)
}

func (n *stubNotifier) NegotiatePushConnection(_ context.Context, _ string) (*api.PushConnection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.negotiations++

	if n.negotiateErr != nil {
		return nil, n.negotiateErr
	}

	return n.conn, nil
}

func (n *stubNotifier) PollNotifications(_ context.Context, _ string, _ time.Duration) ([]api.NotificationEvent, error) {
	n.mu.Lock()

	n.polls++
	count := n.polls

	var batch []api.NotificationEvent
	if len(n.pollBatches) > 0 {
		batch = n.pollBatches[0]
		n.pollBatches = n.pollBatches[1:]
	}

	err := n.pollErr
	onPoll := n.onPoll
	n.mu.Unlock()

	if onPoll != nil {
		onPoll(count)
	}

	if err != nil {
		return nil, err
	}

	return batch, nil
}

func (n *stubNotifier) negotiateCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.negotiations
}

// scriptedStream replays canned push frames, then reports a read error.
type scriptedStream struct {
	frames    [][]byte
	onDrained func()
	closed    atomic.Bool
}

func (s *scriptedStream) ReadMessage(ctx context.Context) ([]byte, error) {
	if len(s.frames) > 0 {
		frame := s.frames[0]
		s.frames = s.frames[1:]

		return frame, nil
	}

	if s.onDrained != nil {
		s.onDrained()
	}

	<-ctx.Done()

	return nil, ctx.Err()
}

func (s *scriptedStream) Close() error {
	s.closed.Store(true)

	return nil
}

// testListener wires a listener with a counting refresh hook and a
// no-op sleep.
func testListener(remote NotificationSource, settings func() Settings, policy FallbackPolicy) (*Listener, *EchoTracker, *atomic.Int64) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	echo := NewEchoTracker()

	l := NewListener(ListenerConfig{
		Remote:   remote,
		Echo:     echo,
		History:  NewHistory(&stubLister{}, settings, logger),
		Settings: settings,
		Policy:   policy,
		Logger:   logger,
	})

	var refreshes atomic.Int64
	l.refreshFn = func(context.Context) { refreshes.Add(1) }
	l.sleepFunc = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	return l, echo, &refreshes
}

func eventFrame(owner, item string) []byte {
	return fmt.Appendf(nil,
		`{"OwnerId":%q,"ItemId":%q,"CreatedUtc":"2025-06-01T12:00:00Z"}`, owner, item)
}

func TestListenerHandleEventOwnerFilter(t *testing.T) {
	t.Parallel()

	settings := newSettingsStub(defaultTestSettings())
	l, _, refreshes := testListener(&stubNotifier{}, settings.get, nil)

	l.handleEvent(context.Background(), api.NotificationEvent{
		OwnerID: "someone-else",
		ItemID:  "item-1",
	}, "owner-1")

	assert.Equal(t, int64(0), refreshes.Load())
}

func TestListenerHandleEventSuppressesSelfEcho(t *testing.T) {
	t.Parallel()

	settings := newSettingsStub(defaultTestSettings())
	l, echo, refreshes := testListener(&stubNotifier{}, settings.get, nil)

	echo.Record("owner-1", "item-mine", time.Now())

	l.handleEvent(context.Background(), api.NotificationEvent{
		OwnerID: "owner-1",
		ItemID:  "item-mine",
	}, "owner-1")

	assert.Equal(t, int64(0), refreshes.Load(), "own upload must not trigger a refresh")

	// The entry is consumed: a redelivery of the same id now refreshes.
	l.handleEvent(context.Background(), api.NotificationEvent{
		OwnerID: "owner-1",
		ItemID:  "item-mine",
	}, "owner-1")

	assert.Equal(t, int64(1), refreshes.Load())
}

func TestListenerHandleFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		frame         []byte
		wantRefreshes int64
	}{
		{name: "valid remote event", frame: eventFrame("owner-1", "item-9"), wantRefreshes: 1},
		{name: "malformed json", frame: []byte(`{"OwnerId":`), wantRefreshes: 0},
		{name: "missing item id", frame: []byte(`{"OwnerId":"owner-1"}`), wantRefreshes: 0},
		{name: "foreign owner", frame: eventFrame("owner-2", "item-9"), wantRefreshes: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			settings := newSettingsStub(defaultTestSettings())
			l, _, refreshes := testListener(&stubNotifier{}, settings.get, nil)

			l.handleFrame(context.Background(), tt.frame, "owner-1")

			assert.Equal(t, tt.wantRefreshes, refreshes.Load())
		})
	}
}

func TestListenerFallbackPromptRateLimited(t *testing.T) {
	t.Parallel()

	remote := &stubNotifier{negotiateErr: errors.New("502 bad gateway")}
	settings := newSettingsStub(defaultTestSettings())

	var prompts atomic.Int64

	l, _, _ := testListener(remote, settings.get, func(context.Context, string) bool {
		prompts.Add(1)

		return false
	})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	s := settings.get()

	// Three consecutive failures exhaust the push transport and raise
	// exactly one prompt.
	require.NoError(t, l.runPush(ctx, s))
	require.NoError(t, l.runPush(ctx, s))
	require.ErrorIs(t, l.runPush(ctx, s), errTransportExhausted)

	l.handleExhausted(ctx)
	assert.Equal(t, int64(1), prompts.Load())

	// The next failure within the rate-limit window must not prompt
	// again.
	now = now.Add(time.Minute)
	require.ErrorIs(t, l.runPush(ctx, s), errTransportExhausted)
	l.handleExhausted(ctx)
	assert.Equal(t, int64(1), prompts.Load())

	// After the window the prompt fires again.
	now = now.Add(promptInterval)
	require.ErrorIs(t, l.runPush(ctx, s), errTransportExhausted)
	l.handleExhausted(ctx)
	assert.Equal(t, int64(2), prompts.Load())
}

func TestListenerUnsupportedPushExhaustsImmediately(t *testing.T) {
	t.Parallel()

	remote := &stubNotifier{negotiateErr: api.ErrPushUnsupported}
	settings := newSettingsStub(defaultTestSettings())
	l, _, _ := testListener(remote, settings.get, nil)

	err := l.runPush(context.Background(), settings.get())
	assert.ErrorIs(t, err, errTransportExhausted)
	assert.Equal(t, 1, remote.negotiateCount())
}

func TestListenerFallbackAcceptedRunsBoundedPoll(t *testing.T) {
	t.Parallel()

	remote := &stubNotifier{negotiateErr: errors.New("timeout")}
	settings := newSettingsStub(defaultTestSettings())

	l, _, _ := testListener(remote, settings.get, func(context.Context, string) bool {
		return true
	})

	// Each clock read advances two minutes, so the five minute fallback
	// window expires after a few poll iterations.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		now = now.Add(2 * time.Minute)

		return now
	}

	l.pushFailures = maxPushFailures

	l.handleExhausted(context.Background())

	assert.Equal(t, 0, l.pushFailures, "accepted fallback resets the failure count")
	assert.Greater(t, remote.polls, 0, "fallback must actually poll")
}

func TestListenerPollPathRoutesEvents(t *testing.T) {
	t.Parallel()

	settings := newSettingsStub(defaultTestSettings())
	settings.update(func(s *Settings) { s.Transport = TransportPoll })

	remote := &stubNotifier{
		pollBatches: [][]api.NotificationEvent{{
			{OwnerID: "owner-1", ItemID: "item-mine"},
			{OwnerID: "owner-2", ItemID: "item-foreign"},
			{OwnerID: "owner-1", ItemID: "item-remote"},
		}},
	}
	remote.onPoll = func(count int) {
		if count == 1 {
			// Flip the preference back to push so the poll loop exits
			// on its next gate check.
			settings.update(func(s *Settings) { s.Transport = TransportPush })
		}
	}

	l, echo, refreshes := testListener(remote, settings.get, nil)
	echo.Record("owner-1", "item-mine", time.Now())

	l.runPoll(context.Background(), settings.get(), 0)

	assert.Equal(t, int64(1), refreshes.Load(), "only the remote event refreshes")
	assert.False(t, echo.TryConsume("owner-1", "item-mine"), "echo entry consumed by suppression")
}

func TestListenerPollToleratesTransientErrors(t *testing.T) {
	t.Parallel()

	settings := newSettingsStub(defaultTestSettings())
	settings.update(func(s *Settings) { s.Transport = TransportPoll })

	remote := &stubNotifier{pollErr: errors.New("504 gateway timeout")}

	ctx, cancel := context.WithCancel(context.Background())

	l, _, _ := testListener(remote, settings.get, nil)

	sleeps := 0
	l.sleepFunc = func(ctx context.Context, _ time.Duration) error {
		sleeps++
		if sleeps > 2 {
			cancel()
		}

		return ctx.Err()
	}

	l.runPoll(ctx, settings.get(), 0)

	assert.Equal(t, 3, remote.polls)
}

func TestListenerRunIdleWithoutOwner(t *testing.T) {
	t.Parallel()

	settings := newSettingsStub(Settings{DownloadEnabled: true})

	ctx, cancel := context.WithCancel(context.Background())

	l, _, _ := testListener(&stubNotifier{}, settings.get, nil)

	sleeps := 0
	l.sleepFunc = func(ctx context.Context, _ time.Duration) error {
		sleeps++
		if sleeps > 1 {
			cancel()
		}

		return ctx.Err()
	}

	require.NoError(t, l.Run(ctx))

	assert.Equal(t, StateIdle, l.State())
	assert.Equal(t, 0, l.cfg.Remote.(*stubNotifier).negotiateCount())
}

func TestListenerRunPushDeliversFrames(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	stream := &scriptedStream{
		frames: [][]byte{
			eventFrame("owner-1", "item-mine"),
			eventFrame("owner-1", "item-remote"),
		},
		onDrained: cancel,
	}

	remote := &stubNotifier{conn: &api.PushConnection{
		URL:       "wss://push.example/sub",
		ExpiresAt: time.Now().Add(time.Hour),
	}}

	settings := newSettingsStub(defaultTestSettings())
	l, echo, refreshes := testListener(remote, settings.get, nil)

	echo.Record("owner-1", "item-mine", time.Now())

	l.dial = func(_ context.Context, conn *api.PushConnection) (pushStream, error) {
		assert.Equal(t, "wss://push.example/sub", conn.URL)

		return stream, nil
	}

	require.NoError(t, l.Run(ctx))

	assert.Equal(t, int64(1), refreshes.Load(), "echo frame suppressed, remote frame refreshes")
	assert.True(t, stream.closed.Load())
	assert.Equal(t, 0, l.pushFailures)
}

func TestClampPollTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configured time.Duration
		want       time.Duration
	}{
		{name: "unset", configured: 0, want: defaultPollTimeout},
		{name: "negative", configured: -time.Second, want: defaultPollTimeout},
		{name: "below floor", configured: 100 * time.Millisecond, want: time.Second},
		{name: "in range", configured: 20 * time.Second, want: 20 * time.Second},
		{name: "above ceiling", configured: 2 * time.Minute, want: maxPollTimeout},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, clampPollTimeout(tt.configured))
		})
	}
}

func TestRenewalDelay(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      time.Duration
	}{
		{name: "no expiry", expiresAt: time.Time{}, want: defaultRenewalDelay},
		{name: "normal", expiresAt: now.Add(time.Hour), want: time.Hour - renewalBuffer},
		{name: "imminent", expiresAt: now.Add(30 * time.Second), want: minRenewalDelay},
		{name: "already expired", expiresAt: now.Add(-time.Minute), want: minRenewalDelay},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, renewalDelay(tt.expiresAt, now))
		})
	}
}
