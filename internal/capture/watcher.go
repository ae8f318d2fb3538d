package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/clipsync-app/clipsync/internal/payload"
)

// minPollInterval is the floor for the watcher tick interval.
const minPollInterval = 1 * time.Second

// Gates is the per-tick settings snapshot the watcher consults before
// sampling. Loops never read mutable shared config directly; the
// supervisor wires GatesFunc to the config holder.
type Gates struct {
	OwnerID       string
	UploadEnabled bool
	Manual        bool
	Interval      time.Duration
	ItemTTL       time.Duration
}

// WatcherConfig holds the collaborators for a Watcher.
type WatcherConfig struct {
	Source     Source
	Slot       *StagingSlot
	Queue      Enqueuer
	DeviceName string

	// GatesFunc returns the current settings snapshot.
	GatesFunc func() Gates
	// PausedFunc reports the cached remote pause flag. Must not block.
	PausedFunc func() bool

	Logger *slog.Logger
}

// Watcher periodically samples the content source, detects changes by
// signature, and routes new captures to the staging slot or the queue.
type Watcher struct {
	cfg    WatcherConfig
	logger *slog.Logger

	lastSig string

	// sleepFunc waits between ticks. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error

	// onCapture, when set, is invoked after each routed capture.
	// The diagnostics sink hangs off this hook.
	onCapture func(req *Request)
}

// NewWatcher creates a Watcher. It does not start any goroutine; call
// Run from the supervisor.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:       cfg,
		logger:    cfg.Logger,
		sleepFunc: timeSleep,
	}
}

// SetCaptureHook registers a callback invoked after each routed
// capture. Must be called before Run.
func (w *Watcher) SetCaptureHook(fn func(req *Request)) {
	w.onCapture = fn
}

// Run executes the watch loop until the context is canceled. Always
// returns nil: cancellation is a clean exit, and per-tick failures are
// logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("content watcher started")

	for {
		gates := w.cfg.GatesFunc()

		interval := gates.Interval
		if interval < minPollInterval {
			interval = minPollInterval
		}

		if err := w.sleepFunc(ctx, interval); err != nil {
			w.logger.Info("content watcher stopped")

			return nil
		}

		w.tick(ctx, w.cfg.GatesFunc())
	}
}

// tick performs one sample cycle.
func (w *Watcher) tick(ctx context.Context, gates Gates) {
	// Gating: unset owner, disabled uploads, or a paused owner all mean
	// idle waiting without sampling.
	if gates.OwnerID == "" || !gates.UploadEnabled || w.cfg.PausedFunc() {
		return
	}

	// Leftover from a manual-to-auto switch: flush it ahead of the new
	// sample so it keeps its place in line.
	if !gates.Manual {
		if staged := w.cfg.Slot.TryTake(); staged != nil {
			w.logger.Info("flushing staged request after mode switch",
				slog.String("file", staged.FileName),
			)
			w.cfg.Queue.Enqueue(staged)
		}
	}

	snap, err := w.cfg.Source.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		w.logger.Debug("content sample failed, skipping tick",
			slog.String("error", err.Error()),
		)

		return
	}

	if snap.Empty() {
		return
	}

	sig := signatureOf(snap)
	if sig == w.lastSig {
		return
	}

	req := w.buildRequest(snap, gates)
	w.lastSig = sig

	if gates.Manual {
		if replaced := w.cfg.Slot.Store(req); replaced {
			w.logger.Debug("staged request replaced", slog.String("file", req.FileName))
		} else {
			w.logger.Info("capture staged for manual send", slog.String("file", req.FileName))
		}
	} else {
		w.cfg.Queue.Enqueue(req)
		w.logger.Debug("capture enqueued", slog.String("file", req.FileName))
	}

	if w.onCapture != nil {
		w.onCapture(req)
	}
}

// buildRequest turns the snapshot into an upload request, checking
// kinds in precedence order and building a descriptor for the first
// match only.
func (w *Watcher) buildRequest(snap *Snapshot, gates Gates) *Request {
	var (
		desc     *payload.Descriptor
		fileName string
	)

	switch {
	case len(snap.Image) > 0:
		desc = &payload.Descriptor{
			Kind:  payload.KindImage,
			Parts: []payload.Part{payload.BytesPart("clipboard.png", "image/png", snap.Image)},
		}
		fileName = "clipboard.png"

	case len(snap.Files) > 0:
		desc = &payload.Descriptor{Kind: payload.KindFileSet, Parts: fileParts(snap.Files)}

		if len(snap.Files) == 1 {
			fileName = filepath.Base(snap.Files[0].Path)
		} else {
			fileName = "files.zip"
		}

	default:
		desc = &payload.Descriptor{
			Kind:  payload.KindText,
			Parts: []payload.Part{payload.BytesPart("clipboard.txt", "text/plain; charset=utf-8", snap.Text)},
		}
		fileName = "clipboard.txt"
	}

	if gates.ItemTTL > 0 {
		desc.ExpiresAt = time.Now().Add(gates.ItemTTL)
	}

	return &Request{
		OwnerID:    gates.OwnerID,
		DeviceName: w.cfg.DeviceName,
		FileName:   fileName,
		Descriptor: desc,
		DetectedAt: time.Now(),
	}
}

// fileParts builds lazy parts for a file set. Duplicate base names get
// an index prefix so archive entries stay unique.
func fileParts(files []FileRef) []payload.Part {
	seen := make(map[string]int, len(files))
	parts := make([]payload.Part, 0, len(files))

	for _, f := range files {
		name := filepath.Base(f.Path)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d_%s", n, name)
		}

		seen[filepath.Base(f.Path)]++

		path := f.Path
		parts = append(parts, payload.Part{
			Name:        name,
			ContentType: "application/octet-stream",
			Length:      f.Size,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	}

	return parts
}

// timeSleep waits for the given duration or until the context is
// canceled. Default sleepFunc for Watcher; tests inject their own.
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
