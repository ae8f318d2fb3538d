// Package syncer contains the synchronization core: the upload queue
// and dispatcher, echo tracking, owner state cache, the dual-transport
// notification listener, and the history cache. A supervisor owns all
// loops and joins them on shutdown.
package syncer

import (
	"context"
	"time"
)

// Transport selects how the listener learns about remote changes.
type Transport int

const (
	// TransportPush subscribes to a negotiated push connection.
	TransportPush Transport = iota
	// TransportPoll long-polls the remote store.
	TransportPoll
)

// String returns the lowercase transport name used in config and logs.
func (t Transport) String() string {
	if t == TransportPoll {
		return "poll"
	}

	return "push"
}

// Settings is the immutable per-iteration snapshot of the sync-related
// configuration. Every loop fetches a fresh snapshot at each decision
// point instead of reading shared mutable config.
type Settings struct {
	OwnerID         string
	DeviceName      string
	UploadEnabled   bool
	DownloadEnabled bool
	Manual          bool
	Transport       Transport
	HistoryLength   int
	PollInterval    time.Duration
	OwnerInterval   time.Duration
	ReconnectAfter  time.Duration
	ItemTTL         time.Duration
}

// timeSleep waits for the given duration or until the context is
// canceled. Shared default sleepFunc for every loop in this package;
// each loop injects it via its sleepFunc field for testability.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
