package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume clipboard syncing for this owner",
		Long: `Clear the remote pause flag so every device of this owner resumes
syncing within one owner poll interval.`,
		Args: cobra.NoArgs,
		RunE: runResume,
	}
}

func runResume(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	client, err := remoteClient(defaultHTTPClient(), logger)
	if err != nil {
		return err
	}

	if _, err := client.SetOwnerState(cmd.Context(), loadedCfg.Remote.OwnerID, false); err != nil {
		return fmt.Errorf("resuming: %w", err)
	}

	statusf(flagQuiet, "Syncing resumed\n")

	return nil
}
