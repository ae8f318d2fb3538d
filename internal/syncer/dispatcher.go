package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/clipsync-app/clipsync/internal/api"
	"github.com/clipsync-app/clipsync/internal/capture"
	"github.com/clipsync-app/clipsync/internal/diag"
	"github.com/clipsync-app/clipsync/internal/payload"
)

// gateCheckInterval is how often the dispatcher re-reads the upload
// gate while waiting for uploads to be enabled.
const gateCheckInterval = 2 * time.Second

// Uploader sends a serialized payload to the remote store. Implemented
// by *api.Client.
type Uploader interface {
	Upload(ctx context.Context, req *api.UploadRequest) (*api.ItemSummary, error)
}

// DispatcherConfig holds the collaborators for a Dispatcher.
type DispatcherConfig struct {
	Queue    *Queue
	Uploader Uploader
	Echo     *EchoTracker
	History  *History
	Owner    *OwnerCache
	Sink     diag.Sink
	Settings func() Settings
	Logger   *slog.Logger
}

// Dispatcher drains the upload queue one request at a time, in exact
// enqueue order. It gates on the global upload switch and the owner
// pause flag, then serializes and uploads. A failed upload is logged
// and dropped — the request is not requeued.
type Dispatcher struct {
	cfg    DispatcherConfig
	logger *slog.Logger

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a Dispatcher; call Run from the supervisor.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		logger:    cfg.Logger,
		sleepFunc: timeSleep,
	}
}

// Run dispatches until the context is canceled. Always returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("upload dispatcher started")

	for {
		req, err := d.cfg.Queue.Dequeue(ctx)
		if err != nil {
			d.logger.Info("upload dispatcher stopped")

			return nil
		}

		d.dispatch(ctx, req)
	}
}

// dispatch processes one dequeued request end to end.
func (d *Dispatcher) dispatch(ctx context.Context, req *capture.Request) {
	if err := d.waitUploadsEnabled(ctx); err != nil {
		return
	}

	if err := d.cfg.Owner.WaitForResume(ctx); err != nil {
		return
	}

	p, err := payload.Serialize(req.Descriptor)
	if err != nil {
		d.logger.Warn("payload serialization failed, dropping request",
			slog.String("file", req.FileName),
			slog.String("error", err.Error()),
		)
		d.cfg.Sink.Record(diag.Event{Kind: diag.KindFailure, Error: err.Error()})

		return
	}

	start := time.Now()

	item, err := d.cfg.Uploader.Upload(ctx, &api.UploadRequest{
		OwnerID:   req.OwnerID,
		FileName:  req.FileName,
		Kind:      req.Descriptor.Kind,
		Payload:   p,
		ExpiresAt: req.Descriptor.ExpiresAt,
	})

	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return
		}

		// No retry and no requeue: the next capture supersedes this one
		// anyway. Flagged as a product decision in DESIGN.md.
		d.logger.Warn("upload failed, dropping request",
			slog.String("file", req.FileName),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		d.cfg.Sink.Record(diag.Event{Kind: diag.KindFailure, Error: err.Error()})

		return
	}

	// Remember our own upload so the notification listener can ignore
	// the echo, then surface the item optimistically.
	d.cfg.Echo.Record(req.OwnerID, item.ID, item.CreatedAt)
	d.cfg.History.Merge(item, d.cfg.Settings().HistoryLength)

	d.cfg.Sink.Record(diag.Event{
		Kind:        diag.KindUpload,
		ItemID:      item.ID,
		ContentType: item.ContentType,
		Bytes:       p.Length,
		Elapsed:     elapsed,
	})

	d.logger.Info("upload complete",
		slog.String("item_id", item.ID),
		slog.String("kind", req.Descriptor.Kind.String()),
		slog.Int64("bytes", p.Length),
		slog.Duration("elapsed", elapsed),
	)
}

// waitUploadsEnabled blocks until the upload gate opens, polling the
// settings snapshot. The transition into and out of the waiting state
// is logged exactly once.
func (d *Dispatcher) waitUploadsEnabled(ctx context.Context) error {
	if d.cfg.Settings().UploadEnabled {
		return nil
	}

	d.logger.Info("uploads disabled, dispatcher waiting")

	for !d.cfg.Settings().UploadEnabled {
		if err := d.sleepFunc(ctx, gateCheckInterval); err != nil {
			return err
		}
	}

	d.logger.Info("uploads re-enabled, dispatcher resuming")

	return nil
}
