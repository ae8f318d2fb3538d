package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/clipsync-app/clipsync/internal/api"
	"github.com/clipsync-app/clipsync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// loadedCfg holds the configuration loaded by PersistentPreRunE. It is
// available to all subcommands after the root pre-run phase completes.
var loadedCfg *config.Config

// httpClientTimeout caps one-shot CLI requests. The watch daemon builds
// its own client because long-poll calls outlive this timeout.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with
// all subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clipsync",
		Short:   "Cross-device clipboard sync",
		Long:    "Synchronize clipboard content between devices through a shared remote store.",
		Version: version,
		// Silence cobra's default error/usage printing; exitOnError
		// handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadGlobalConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newPauseCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// configPath resolves the config file location: flag, then environment,
// then the platform default.
func configPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}

	return config.DefaultConfigPath()
}

// loadGlobalConfig loads the effective configuration for subcommands.
func loadGlobalConfig() error {
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	loadedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger configured by the loaded config
// and CLI flags. The config sets the baseline; --verbose and --quiet
// override it because CLI flags always win. Format "auto" picks text on
// a terminal and JSON otherwise.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if loadedCfg != nil {
		switch loadedCfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	out := os.Stderr

	format := "auto"
	if loadedCfg != nil && loadedCfg.Logging.Format != "" {
		format = loadedCfg.Logging.Format
	}

	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts))
	case "text":
		return slog.New(slog.NewTextHandler(out, opts))
	default:
		if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
			return slog.New(slog.NewTextHandler(out, opts))
		}

		return slog.New(slog.NewJSONHandler(out, opts))
	}
}

// remoteClient builds an api.Client from the loaded config, or fails
// when the remote section is incomplete.
func remoteClient(httpClient *http.Client, logger *slog.Logger) (*api.Client, error) {
	if loadedCfg == nil || loadedCfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is not configured (see %s)", configPath())
	}

	if loadedCfg.Remote.OwnerID == "" {
		return nil, fmt.Errorf("remote.owner_id is not configured (see %s)", configPath())
	}

	return api.NewClient(
		loadedCfg.Remote.BaseURL,
		loadedCfg.Remote.Token,
		loadedCfg.Remote.DeviceName,
		httpClient,
		logger,
	), nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
