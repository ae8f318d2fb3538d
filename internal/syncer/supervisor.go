package syncer

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/clipsync-app/clipsync/internal/capture"
	"github.com/clipsync-app/clipsync/internal/diag"
)

// RemoteClient is the full remote collaborator surface the supervisor
// wires into its loops. *api.Client implements it.
type RemoteClient interface {
	Uploader
	Lister
	OwnerStateFetcher
	NotificationSource
}

// SupervisorConfig holds everything needed to assemble the sync core.
type SupervisorConfig struct {
	Source     capture.Source
	Remote     RemoteClient
	Settings   func() Settings
	Policy     FallbackPolicy
	Sink       diag.Sink
	DeviceName string
	Logger     *slog.Logger

	// Reload, when set, runs alongside the loops (the config reload
	// watcher). It must exit when its context is canceled.
	Reload func(ctx context.Context) error
}

// Supervisor owns the four long-running loops (watcher, dispatcher,
// owner poller, listener) and the shared state they cooperate through.
// All loops share one cancellation scope and are joined on shutdown.
type Supervisor struct {
	queue   *Queue
	slot    *capture.StagingSlot
	echo    *EchoTracker
	owner   *OwnerCache
	history *History

	watcher    *capture.Watcher
	dispatcher *Dispatcher
	poller     *OwnerPoller
	listener   *Listener

	reload func(ctx context.Context) error
	logger *slog.Logger
}

// NewSupervisor wires the sync core together. Nothing runs until Run
// is called.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Sink == nil {
		cfg.Sink = diag.Noop{}
	}

	queue := NewQueue()
	slot := capture.NewStagingSlot()
	echo := NewEchoTracker()
	owner := NewOwnerCache()
	history := NewHistory(cfg.Remote, cfg.Settings, cfg.Logger)

	watcher := capture.NewWatcher(capture.WatcherConfig{
		Source:     cfg.Source,
		Slot:       slot,
		Queue:      queue,
		DeviceName: cfg.DeviceName,
		GatesFunc: func() capture.Gates {
			s := cfg.Settings()

			return capture.Gates{
				OwnerID:       s.OwnerID,
				UploadEnabled: s.UploadEnabled,
				Manual:        s.Manual,
				Interval:      s.PollInterval,
				ItemTTL:       s.ItemTTL,
			}
		},
		PausedFunc: owner.IsPaused,
		Logger:     cfg.Logger,
	})

	sink := cfg.Sink
	watcher.SetCaptureHook(func(req *capture.Request) {
		var bytes int64
		for i := range req.Descriptor.Parts {
			bytes += req.Descriptor.Parts[i].Length
		}

		sink.Record(diag.Event{
			Kind:        diag.KindCapture,
			ContentType: req.Descriptor.PreferredContentType,
			Bytes:       bytes,
			CreatedAt:   req.DetectedAt,
		})
	})

	dispatcher := NewDispatcher(DispatcherConfig{
		Queue:    queue,
		Uploader: cfg.Remote,
		Echo:     echo,
		History:  history,
		Owner:    owner,
		Sink:     cfg.Sink,
		Settings: cfg.Settings,
		Logger:   cfg.Logger,
	})

	poller := NewOwnerPoller(cfg.Remote, owner, cfg.Settings, cfg.Logger)

	listener := NewListener(ListenerConfig{
		Remote:   cfg.Remote,
		Echo:     echo,
		History:  history,
		Settings: cfg.Settings,
		Policy:   cfg.Policy,
		Logger:   cfg.Logger,
	})

	return &Supervisor{
		queue:      queue,
		slot:       slot,
		echo:       echo,
		owner:      owner,
		history:    history,
		watcher:    watcher,
		dispatcher: dispatcher,
		poller:     poller,
		listener:   listener,
		reload:     cfg.Reload,
		logger:     cfg.Logger,
	}
}

// Run starts every loop and blocks until the context is canceled and
// all loops have exited. Loops only return nil, so Run's error mirrors
// the group contract rather than any real failure path.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("sync core starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.watcher.Run(ctx) })
	g.Go(func() error { return s.dispatcher.Run(ctx) })
	g.Go(func() error { return s.poller.Run(ctx) })
	g.Go(func() error { return s.listener.Run(ctx) })

	if s.reload != nil {
		g.Go(func() error { return s.reload(ctx) })
	}

	err := g.Wait()

	s.logger.Info("sync core stopped")

	return err
}

// FlushStaged moves a pending manually-staged request into the queue.
// Returns false when the slot was empty. This is the "send now"
// trigger in manual mode.
func (s *Supervisor) FlushStaged() bool {
	req := s.slot.TryTake()
	if req == nil {
		return false
	}

	s.queue.Enqueue(req)
	s.logger.Info("staged request flushed for upload",
		slog.String("file", req.FileName),
	)

	return true
}

// History exposes the history cache for read access.
func (s *Supervisor) History() *History {
	return s.history
}

// ListenerState reports the notification listener's current state.
func (s *Supervisor) ListenerState() ListenerState {
	return s.listener.State()
}

// QueueLen reports the number of requests awaiting dispatch.
func (s *Supervisor) QueueLen() int {
	return s.queue.Len()
}
