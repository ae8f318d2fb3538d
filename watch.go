package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/clipsync-app/clipsync/internal/capture"
	"github.com/clipsync-app/clipsync/internal/config"
	"github.com/clipsync-app/clipsync/internal/diag"
	"github.com/clipsync-app/clipsync/internal/syncer"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the clipboard sync daemon",
		Long: `Watch the local clipboard and synchronize it with the remote store
until interrupted.

A PID file prevents concurrent daemons. While running:
  SIGHUP  reloads the config file
  SIGUSR1 uploads the staged clip (manual mode)
  SIGINT/SIGTERM shut down gracefully; a second signal force-exits`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	cleanup, err := writePIDFile(config.DefaultPidPath())
	if err != nil {
		return err
	}
	defer cleanup()

	// No client-level timeout: long-poll requests carry their own
	// per-call deadlines.
	client, err := remoteClient(&http.Client{}, logger)
	if err != nil {
		return err
	}

	holder := config.NewHolder(loadedCfg, configPath())

	sink, closeSink, err := buildSink(holder.Config(), logger)
	if err != nil {
		return err
	}
	defer closeSink()

	sup := syncer.NewSupervisor(syncer.SupervisorConfig{
		Source:     captureSource(holder),
		Remote:     client,
		Settings:   settingsFrom(holder),
		Policy:     fallbackPolicy(logger),
		Sink:       sink,
		DeviceName: holder.Config().Remote.DeviceName,
		Logger:     logger,
		Reload: func(ctx context.Context) error {
			return config.Watch(ctx, holder, logger)
		},
	})

	ctx := shutdownContext(cmd.Context(), logger)

	// SIGUSR1 flushes the manual staging slot.
	flush := make(chan os.Signal, 1)
	signal.Notify(flush, syscall.SIGUSR1)
	defer signal.Stop(flush)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-flush:
				if !sup.FlushStaged() {
					logger.Info("flush requested but nothing is staged")
				}
			}
		}
	}()

	logger.Info("clipsync watch starting",
		slog.String("owner", holder.Config().Remote.OwnerID),
		slog.String("device", holder.Config().Remote.DeviceName),
		slog.String("mode", holder.Config().Sync.Mode),
	)

	return sup.Run(ctx)
}

// settingsFrom adapts the config holder into the per-iteration settings
// snapshot the sync loops consume.
func settingsFrom(holder *config.Holder) func() syncer.Settings {
	return func() syncer.Settings {
		cfg := holder.Config()

		transport := syncer.TransportPush
		if cfg.Sync.Transport == config.TransportPoll {
			transport = syncer.TransportPoll
		}

		return syncer.Settings{
			OwnerID:         cfg.Remote.OwnerID,
			DeviceName:      cfg.Remote.DeviceName,
			UploadEnabled:   cfg.Sync.UploadEnabled,
			DownloadEnabled: cfg.Sync.DownloadEnabled,
			Manual:          cfg.Sync.Manual(),
			Transport:       transport,
			HistoryLength:   cfg.Sync.HistoryLength,
			PollInterval:    cfg.Sync.PollIntervalDuration(),
			OwnerInterval:   cfg.Sync.OwnerIntervalDuration(),
			ReconnectAfter:  cfg.Sync.ReconnectDuration(),
			ItemTTL:         cfg.Sync.ItemTTLDuration(),
		}
	}
}

// captureSource builds the clipboard sampler from the configured
// commands. Command changes require a daemon restart.
func captureSource(holder *config.Holder) capture.Source {
	cfg := holder.Config()

	return &capture.CommandSource{
		ImageCmd: cfg.Capture.ImageCmd,
		FilesCmd: cfg.Capture.FilesCmd,
		TextCmd:  cfg.Capture.TextCmd,
	}
}

// buildSink opens the diagnostics ledger, or a no-op sink when
// diagnostics are disabled.
func buildSink(cfg *config.Config, logger *slog.Logger) (diag.Sink, func(), error) {
	if !cfg.Diagnostics.Enabled {
		return diag.Noop{}, func() {}, nil
	}

	store, err := diag.NewStore(cfg.Diagnostics.DiagnosticsPath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening diagnostics ledger: %w", err)
	}

	return store, func() { store.Close() }, nil
}

// fallbackPolicy decides whether to poll temporarily when push is
// unavailable. Interactive terminals are asked; an unattended daemon
// accepts, preferring degraded delivery over none.
func fallbackPolicy(logger *slog.Logger) syncer.FallbackPolicy {
	interactive := isatty.IsTerminal(os.Stdin.Fd())

	return func(ctx context.Context, reason string) bool {
		if !interactive {
			logger.Info("push unavailable, falling back to polling",
				slog.String("reason", reason),
			)

			return true
		}

		fmt.Fprintf(os.Stderr, "Push notifications unavailable (%s). Fall back to polling temporarily? [Y/n] ", reason)

		answer := make(chan string, 1)

		go func() {
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			answer <- strings.TrimSpace(line)
		}()

		select {
		case <-ctx.Done():
			return false
		case a := <-answer:
			return a == "" || strings.EqualFold(a, "y") || strings.EqualFold(a, "yes")
		}
	}
}
