// Package capture samples the local content source, detects changes by
// signature, and hands upload requests to the sync queue.
package capture

import (
	"context"
	"time"

	"github.com/clipsync-app/clipsync/internal/payload"
)

// FileRef identifies one file in a captured file set. Size and ModTime
// feed the change signature so the watcher never reads file content on
// a tick.
type FileRef struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Snapshot is one sample of the local content source. At most one of
// the fields is expected to be meaningful; when several are present the
// watcher picks by precedence Image > Files > Text.
type Snapshot struct {
	Image []byte
	Files []FileRef
	Text  []byte
}

// Empty reports whether the snapshot holds no supported content.
func (s *Snapshot) Empty() bool {
	return len(s.Image) == 0 && len(s.Files) == 0 && len(s.Text) == 0
}

// Source provides snapshots of the local content. Implementations wrap
// whatever OS facility holds the content; the core only sees this
// interface.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Request is a detected change ready for upload. It is either enqueued
// immediately (auto mode) or parked in the staging slot (manual mode).
type Request struct {
	OwnerID    string
	DeviceName string
	FileName   string
	Descriptor *payload.Descriptor
	DetectedAt time.Time
}

// Enqueuer accepts upload requests. Implemented by the sync queue.
type Enqueuer interface {
	Enqueue(req *Request)
}
