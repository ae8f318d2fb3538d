package config

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of filesystem events an editor
// save produces into one reload.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the holder's config when the file changes on disk or
// SIGHUP arrives, until the context is canceled. A reload that fails
// to parse or validate keeps the previous config in place.
func Watch(ctx context.Context, h *Holder, logger *slog.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config file watch unavailable, SIGHUP reload only",
			slog.String("error", err.Error()),
		)

		return watchSignalsOnly(ctx, h, hup, logger)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace the file by
	// rename, which drops a direct watch.
	dir := filepath.Dir(h.Path())
	if err := watcher.Add(dir); err != nil {
		logger.Warn("config directory watch failed, SIGHUP reload only",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)

		return watchSignalsOnly(ctx, h, hup, logger)
	}

	logger.Debug("config watch started", slog.String("path", h.Path()))

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-hup:
			logger.Info("SIGHUP received, reloading config")
			reload(h, logger)

		case ev, ok := <-watcher.Events:
			if !ok {
				return watchSignalsOnly(ctx, h, hup, logger)
			}

			if filepath.Clean(ev.Name) != filepath.Clean(h.Path()) {
				continue
			}

			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}

			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			logger.Info("config file changed, reloading")
			reload(h, logger)

		case err, ok := <-watcher.Errors:
			if !ok {
				return watchSignalsOnly(ctx, h, hup, logger)
			}

			logger.Warn("config watch error", slog.String("error", err.Error()))
		}
	}
}

// watchSignalsOnly is the degraded loop when filesystem watching is
// unavailable.
func watchSignalsOnly(ctx context.Context, h *Holder, hup <-chan os.Signal, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			logger.Info("SIGHUP received, reloading config")
			reload(h, logger)
		}
	}
}

// reload re-reads the config file into the holder. Failures keep the
// running config.
func reload(h *Holder, logger *slog.Logger) {
	cfg, err := LoadOrDefault(h.Path())
	if err != nil {
		logger.Warn("config reload failed, keeping previous config",
			slog.String("error", err.Error()),
		)

		return
	}

	h.Update(cfg)
	logger.Info("config reloaded", slog.String("path", h.Path()))
}
