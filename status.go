package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipsync-app/clipsync/internal/diag"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and diagnostics",
		Long: `Display the owner's remote pause state, the local configuration in
effect, and aggregate diagnostics from the local ledger.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusReport is the JSON shape of the status output.
type statusReport struct {
	OwnerID     string        `json:"owner_id"`
	DeviceName  string        `json:"device_name"`
	Mode        string        `json:"mode"`
	Transport   string        `json:"transport"`
	Paused      *bool         `json:"paused,omitempty"`
	Uploads     bool          `json:"upload_enabled"`
	Downloads   bool          `json:"download_enabled"`
	Diagnostics *diag.Summary `json:"diagnostics,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	report := statusReport{
		OwnerID:    loadedCfg.Remote.OwnerID,
		DeviceName: loadedCfg.Remote.DeviceName,
		Mode:       loadedCfg.Sync.Mode,
		Transport:  loadedCfg.Sync.Transport,
		Uploads:    loadedCfg.Sync.UploadEnabled,
		Downloads:  loadedCfg.Sync.DownloadEnabled,
	}

	// The remote state is best-effort: status still prints local facts
	// when the store is unreachable.
	if client, err := remoteClient(defaultHTTPClient(), logger); err == nil {
		if state, err := client.GetOwnerState(cmd.Context(), loadedCfg.Remote.OwnerID); err == nil {
			report.Paused = &state.IsPaused
		} else {
			statusf(flagQuiet, "Note: remote store unreachable: %v\n", err)
		}
	}

	if loadedCfg.Diagnostics.Enabled {
		if summary, err := loadDiagSummary(cmd.Context(), logger); err == nil {
			report.Diagnostics = summary
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	printStatus(report)

	return nil
}

func loadDiagSummary(ctx context.Context, logger *slog.Logger) (*diag.Summary, error) {
	store, err := diag.NewStore(loadedCfg.Diagnostics.DiagnosticsPath(), logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Summarize(ctx)
}

func printStatus(r statusReport) {
	fmt.Printf("Owner:      %s\n", orUnset(r.OwnerID))
	fmt.Printf("Device:     %s\n", orUnset(r.DeviceName))
	fmt.Printf("Mode:       %s\n", r.Mode)
	fmt.Printf("Transport:  %s\n", r.Transport)
	fmt.Printf("Uploads:    %s\n", enabledWord(r.Uploads))
	fmt.Printf("Downloads:  %s\n", enabledWord(r.Downloads))

	if r.Paused != nil {
		state := "active"
		if *r.Paused {
			state = "paused"
		}

		fmt.Printf("Sync state: %s\n", state)
	}

	if d := r.Diagnostics; d != nil {
		fmt.Printf("\nDiagnostics:\n")
		fmt.Printf("  Captures: %d%s\n", d.Captures, lastSeen(d.LastCapture))
		fmt.Printf("  Uploads:  %d%s\n", d.Uploads, lastSeen(d.LastUpload))
		fmt.Printf("  Failures: %d%s\n", d.Failures, lastSeen(d.LastFailure))
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}

	return s
}

func enabledWord(b bool) string {
	if b {
		return "enabled"
	}

	return "disabled"
}

func lastSeen(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return fmt.Sprintf(" (last %s)", formatTime(t))
}
