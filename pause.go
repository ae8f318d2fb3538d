package main

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause [duration]",
		Short: "Pause clipboard syncing for this owner",
		Long: `Pause clipboard syncing across every device of this owner.

The pause flag lives in the remote store, so all devices stop within
one owner poll interval. An optional duration argument (e.g. "30m",
"2h", "1d") keeps the command running and resumes automatically when
the interval elapses; without one the owner stays paused until
"clipsync resume".

Examples:
  clipsync pause
  clipsync pause 2h`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPause,
	}
}

func runPause(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	client, err := remoteClient(defaultHTTPClient(), logger)
	if err != nil {
		return err
	}

	owner := loadedCfg.Remote.OwnerID

	if _, err := client.SetOwnerState(cmd.Context(), owner, true); err != nil {
		return fmt.Errorf("pausing: %w", err)
	}

	if len(args) == 0 {
		statusf(flagQuiet, "Syncing paused. Run \"clipsync resume\" to resume.\n")

		return nil
	}

	duration, err := parseDuration(args[0])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[0], err)
	}

	statusf(flagQuiet, "Syncing paused for %s (Ctrl-C leaves it paused)\n", duration)

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	case <-timer.C:
	}

	if _, err := client.SetOwnerState(cmd.Context(), owner, false); err != nil {
		return fmt.Errorf("resuming after timed pause: %w", err)
	}

	statusf(flagQuiet, "Syncing resumed\n")

	return nil
}

// hoursPerDay is used to convert day durations to hours.
const hoursPerDay = 24

// durationPattern matches durations like "30m", "2h", "1d", "1h30m".
var durationPattern = regexp.MustCompile(`^(\d+d)?(\d+h)?(\d+m)?(\d+s)?$`)

// parseDuration parses a human-friendly duration string. Supports Go
// duration syntax (e.g. "2h30m") plus a "d" suffix for days.
func parseDuration(s string) (time.Duration, error) {
	// Try standard Go duration first.
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}

		return d, nil
	}

	// Try our extended format with "d" for days.
	if !durationPattern.MatchString(s) || s == "" {
		return 0, fmt.Errorf("expected format like 30m, 2h, 1d, or 1h30m")
	}

	var total time.Duration

	re := regexp.MustCompile(`(\d+)([dhms])`)
	for _, match := range re.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			return 0, fmt.Errorf("invalid number %q: %w", match[1], err)
		}

		switch match[2] {
		case "d":
			total += time.Duration(n) * hoursPerDay * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		case "s":
			total += time.Duration(n) * time.Second
		}
	}

	if total <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}

	return total, nil
}
