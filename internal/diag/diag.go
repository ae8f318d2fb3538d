// Package diag records capture, upload, and failure diagnostics.
// Individual transient errors never reach the user; the ledger keeps
// aggregate counts and timestamps for the status command.
package diag

import "time"

// Event kinds stored in the ledger.
const (
	KindCapture = "capture"
	KindUpload  = "upload"
	KindFailure = "failure"
)

// Event is one recorded diagnostic occurrence.
type Event struct {
	Kind        string
	ItemID      string
	ContentType string
	Bytes       int64
	Elapsed     time.Duration
	Error       string
	CreatedAt   time.Time
}

// Summary aggregates the ledger for display.
type Summary struct {
	Captures    int64
	Uploads     int64
	Failures    int64
	LastCapture time.Time
	LastUpload  time.Time
	LastFailure time.Time
}

// Sink accepts diagnostic events. Recording is best-effort: a sink
// must never fail the calling loop.
type Sink interface {
	Record(ev Event)
}

// Noop is a Sink that discards everything. Used when diagnostics are
// disabled.
type Noop struct{}

// Record implements Sink.
func (Noop) Record(Event) {}
