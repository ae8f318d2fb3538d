package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/clipsync-app/clipsync/internal/api"
)

// ListenerState names the listener's position in the dual-transport
// state machine.
type ListenerState int32

const (
	// StateIdle means the gates (owner set, downloads enabled) are closed.
	StateIdle ListenerState = iota
	// StatePushConnecting covers negotiate and dial.
	StatePushConnecting
	// StatePushActive means a push subscription is live.
	StatePushActive
	// StatePollActive means the long-poll loop is running.
	StatePollActive
	// StateFallbackCooldown is the wait after a declined fallback prompt
	// before push is attempted again.
	StateFallbackCooldown
)

// String returns the state name for logs and the status command.
func (s ListenerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePushConnecting:
		return "push-connecting"
	case StatePushActive:
		return "push-active"
	case StatePollActive:
		return "poll-active"
	case StateFallbackCooldown:
		return "fallback-cooldown"
	default:
		return "unknown"
	}
}

// Listener tuning constants.
const (
	// idleRecheckInterval paces gate re-checks while idle.
	idleRecheckInterval = 2 * time.Second
	// transientRetryDelay follows a transient push or poll failure.
	transientRetryDelay = 5 * time.Second
	// maxPushFailures is the consecutive failure count that exhausts
	// the push transport and raises the fallback signal.
	maxPushFailures = 3
	// promptInterval rate-limits fallback prompts after a decline.
	promptInterval = 5 * time.Minute
	// fallbackWindow bounds the temporary poll run after an accepted
	// fallback, before push is re-attempted.
	fallbackWindow = 5 * time.Minute
	// pushRetryCooldown is the wait after a declined prompt.
	pushRetryCooldown = 30 * time.Second
	// renewalBuffer is subtracted from the connection expiry when
	// scheduling renewal.
	renewalBuffer = 60 * time.Second
	// minRenewalDelay is the floor for time between renewals.
	minRenewalDelay = 15 * time.Second
	// defaultRenewalDelay applies when the negotiated connection has no
	// usable expiry.
	defaultRenewalDelay = 50 * time.Minute
	// maxPollTimeout keeps the long-poll wait below the assumed
	// server-side request timeout of 60s.
	maxPollTimeout = 55 * time.Second
	// defaultPollTimeout applies when no reconnect interval is configured.
	defaultPollTimeout = 30 * time.Second
)

// errTransportExhausted signals that push has failed repeatedly and the
// fallback decision is due.
var errTransportExhausted = errors.New("syncer: push transport exhausted")

// NotificationSource is the remote side of the listener. Implemented
// by *api.Client.
type NotificationSource interface {
	NegotiatePushConnection(ctx context.Context, ownerID string) (*api.PushConnection, error)
	PollNotifications(ctx context.Context, ownerID string, timeout time.Duration) ([]api.NotificationEvent, error)
}

// FallbackPolicy decides whether to temporarily fall back to polling
// when push is exhausted. The caller owns the decision (a UI prompt, a
// config flag); the core only offers the signal. The listener remains
// fully functional with a policy that always declines.
type FallbackPolicy func(ctx context.Context, reason string) bool

// ListenerConfig holds the collaborators for a Listener.
type ListenerConfig struct {
	Remote   NotificationSource
	Echo     *EchoTracker
	History  *History
	Settings func() Settings
	Policy   FallbackPolicy
	Logger   *slog.Logger
}

// Listener learns about remote-originated changes through a push
// subscription or long-polling and triggers single-flight history
// refreshes, suppressing echoes of this device's own uploads.
type Listener struct {
	cfg    ListenerConfig
	logger *slog.Logger

	state atomic.Int32

	// Injectable collaborators for tests.
	sleepFunc func(ctx context.Context, d time.Duration) error
	dial      pushDialer
	refreshFn func(ctx context.Context)
	now       func() time.Time

	pushFailures       int
	lastPrompt         time.Time
	lastPromptDeclined bool
}

// NewListener creates a Listener; call Run from the supervisor.
func NewListener(cfg ListenerConfig) *Listener {
	l := &Listener{
		cfg:       cfg,
		logger:    cfg.Logger,
		sleepFunc: timeSleep,
		dial:      dialPush,
		now:       time.Now,
	}
	l.refreshFn = cfg.History.TriggerRefresh

	return l
}

// State returns the current listener state.
func (l *Listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

func (l *Listener) setState(s ListenerState) {
	prev := ListenerState(l.state.Swap(int32(s)))
	if prev != s {
		l.logger.Debug("listener state change",
			slog.String("from", prev.String()),
			slog.String("to", s.String()),
		)
	}
}

// Run executes the listener until the context is canceled. Always
// returns nil; every failure mode degrades rather than aborts.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("notification listener started")

	defer func() {
		l.setState(StateIdle)
		l.logger.Info("notification listener stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		s := l.cfg.Settings()

		if s.OwnerID == "" || !s.DownloadEnabled {
			l.setState(StateIdle)

			if err := l.sleepFunc(ctx, idleRecheckInterval); err != nil {
				return nil
			}

			continue
		}

		if s.Transport == TransportPoll {
			l.runPoll(ctx, s, 0)

			continue
		}

		err := l.runPush(ctx, s)
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, errTransportExhausted) {
			l.handleExhausted(ctx)
		}
	}
}

// handleExhausted raises the fallback signal and acts on the decision:
// an accepted fallback runs the poll path for a bounded window before
// push is re-attempted; a decline cools down and retries push.
func (l *Listener) handleExhausted(ctx context.Context) {
	if l.askFallback(ctx) {
		l.logger.Info("falling back to polling",
			slog.Duration("window", fallbackWindow),
		)
		l.runPoll(ctx, l.cfg.Settings(), fallbackWindow)
		l.pushFailures = 0

		return
	}

	l.setState(StateFallbackCooldown)

	if err := l.sleepFunc(ctx, pushRetryCooldown); err != nil {
		return
	}
}

// askFallback invokes the fallback policy, rate-limited after a
// decline. Without a policy the answer is always no.
func (l *Listener) askFallback(ctx context.Context) bool {
	now := l.now()

	if l.lastPromptDeclined && now.Sub(l.lastPrompt) < promptInterval {
		return false
	}

	accepted := false
	if l.cfg.Policy != nil {
		accepted = l.cfg.Policy(ctx, "push transport unavailable")
	}

	l.lastPrompt = now
	l.lastPromptDeclined = !accepted

	l.logger.Info("fallback decision",
		slog.Bool("accepted", accepted),
	)

	return accepted
}

// runPush performs one push attempt: negotiate, dial, then read frames
// until the renewal deadline. Returns errTransportExhausted after
// maxPushFailures consecutive failures, nil otherwise.
func (l *Listener) runPush(ctx context.Context, s Settings) error {
	l.setState(StatePushConnecting)

	conn, err := l.cfg.Remote.NegotiatePushConnection(ctx, s.OwnerID)
	if err != nil {
		return l.pushFailed(ctx, "negotiate", err)
	}

	stream, err := l.dial(ctx, conn)
	if err != nil {
		return l.pushFailed(ctx, "dial", err)
	}
	defer stream.Close()

	l.pushFailures = 0
	l.setState(StatePushActive)

	renewIn := renewalDelay(conn.ExpiresAt, l.now())
	l.logger.Info("push subscription active",
		slog.Duration("renew_in", renewIn),
	)

	// The read loop is bounded by the renewal deadline: hitting it is
	// the normal close-and-reconnect cycle, not a failure.
	streamCtx, cancel := context.WithTimeout(ctx, renewIn)
	defer cancel()

	for {
		data, readErr := stream.ReadMessage(streamCtx)
		if readErr != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case streamCtx.Err() != nil:
				l.logger.Debug("renewing push subscription")

				return nil
			default:
				l.logger.Warn("push connection lost",
					slog.String("error", readErr.Error()),
				)

				return nil
			}
		}

		l.handleFrame(ctx, data, s.OwnerID)

		// A settings change (owner, gates, transport preference) ends
		// the subscription so the outer loop can re-route.
		cur := l.cfg.Settings()
		if cur.OwnerID != s.OwnerID || !cur.DownloadEnabled || cur.Transport != s.Transport {
			l.logger.Info("settings changed, closing push subscription")

			return nil
		}
	}
}

// pushFailed counts one negotiate/dial failure. ErrPushUnsupported
// exhausts the transport immediately; transient failures retry after a
// short delay until the count runs out.
func (l *Listener) pushFailed(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return nil
	}

	if errors.Is(err, api.ErrPushUnsupported) {
		l.logger.Info("push not supported by remote store")
		l.pushFailures = maxPushFailures
	} else {
		l.pushFailures++
		l.logger.Warn("push "+stage+" failed",
			slog.Int("consecutive_failures", l.pushFailures),
			slog.String("error", err.Error()),
		)
	}

	if l.pushFailures >= maxPushFailures {
		return errTransportExhausted
	}

	if sleepErr := l.sleepFunc(ctx, transientRetryDelay); sleepErr != nil {
		return nil
	}

	return nil
}

// handleFrame parses one push frame and routes the event. Malformed
// frames are dropped at debug level.
func (l *Listener) handleFrame(ctx context.Context, data []byte, owner string) {
	if !gjson.ValidBytes(data) {
		l.logger.Debug("discarding malformed push frame",
			slog.Int("bytes", len(data)),
		)

		return
	}

	parsed := gjson.ParseBytes(data)

	ev := api.NotificationEvent{
		OwnerID: parsed.Get("OwnerId").String(),
		ItemID:  parsed.Get("ItemId").String(),
	}
	if created, err := time.Parse(time.RFC3339, parsed.Get("CreatedUtc").String()); err == nil {
		ev.CreatedAt = created
	}

	if ev.OwnerID == "" || ev.ItemID == "" {
		l.logger.Debug("discarding push frame with missing fields")

		return
	}

	l.handleEvent(ctx, ev, owner)
}

// handleEvent applies owner filtering and echo suppression, then
// triggers a single-flight history refresh.
func (l *Listener) handleEvent(ctx context.Context, ev api.NotificationEvent, owner string) {
	if ev.OwnerID != owner {
		return
	}

	if l.cfg.Echo.TryConsume(owner, ev.ItemID) {
		l.logger.Debug("suppressing self-echo",
			slog.String("item_id", ev.ItemID),
		)

		return
	}

	l.logger.Debug("remote change notification",
		slog.String("item_id", ev.ItemID),
	)
	l.refreshFn(ctx)
}

// runPoll long-polls for notifications. window == 0 runs for as long
// as the settings favor polling; window > 0 bounds a temporary
// fallback run. Exits cleanly on owner change, downloads disabled,
// transport preference change, window expiry, or cancellation.
func (l *Listener) runPoll(ctx context.Context, s Settings, window time.Duration) {
	l.setState(StatePollActive)
	l.logger.Info("poll transport active",
		slog.Bool("bounded", window > 0),
	)

	var deadline time.Time
	if window > 0 {
		deadline = l.now().Add(window)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		cur := l.cfg.Settings()

		if cur.OwnerID != s.OwnerID || !cur.DownloadEnabled {
			return
		}

		if window == 0 && cur.Transport != TransportPoll {
			return
		}

		if window > 0 && l.now().After(deadline) {
			l.logger.Info("fallback window ended, re-attempting push")

			return
		}

		events, err := l.cfg.Remote.PollNotifications(ctx, cur.OwnerID, clampPollTimeout(cur.ReconnectAfter))
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			l.logger.Warn("notification poll failed",
				slog.String("error", err.Error()),
			)

			if sleepErr := l.sleepFunc(ctx, transientRetryDelay); sleepErr != nil {
				return
			}

			continue
		}

		for _, ev := range events {
			l.handleEvent(ctx, ev, cur.OwnerID)
		}
	}
}

// clampPollTimeout bounds the long-poll wait: at least a second, at
// most maxPollTimeout, defaulting when unconfigured.
func clampPollTimeout(configured time.Duration) time.Duration {
	switch {
	case configured <= 0:
		return defaultPollTimeout
	case configured < time.Second:
		return time.Second
	case configured > maxPollTimeout:
		return maxPollTimeout
	default:
		return configured
	}
}

// renewalDelay computes how long a push subscription may live before
// renewal, honoring the safety buffer and the minimum delay.
func renewalDelay(expiresAt, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return defaultRenewalDelay
	}

	delay := expiresAt.Sub(now) - renewalBuffer
	if delay < minRenewalDelay {
		delay = minRenewalDelay
	}

	return delay
}
