package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent shared clipboard items",
		Long: `List the most recent items in the shared clipboard, newest first.

Examples:
  clipsync history
  clipsync history -n 25 --json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntP("count", "n", 0, "number of items to list (default from config)")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	client, err := remoteClient(defaultHTTPClient(), logger)
	if err != nil {
		return err
	}

	count, _ := cmd.Flags().GetInt("count")
	if count <= 0 {
		count = loadedCfg.Sync.HistoryLength
	}

	items, err := client.List(cmd.Context(), loadedCfg.Remote.OwnerID, count)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(items)
	}

	if len(items) == 0 {
		statusf(flagQuiet, "No items\n")

		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		name := it.FileName
		if name == "" {
			name = "-"
		}

		device := it.Device
		if device == "" {
			device = "-"
		}

		rows = append(rows, []string{
			formatTime(it.CreatedAt),
			it.Kind,
			formatSize(it.Length),
			device,
			name,
		})
	}

	printTable(os.Stdout, []string{"CREATED", "KIND", "SIZE", "DEVICE", "NAME"}, rows)

	return nil
}
