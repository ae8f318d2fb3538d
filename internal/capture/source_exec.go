package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// sampleTimeout bounds a single sampling command run.
const sampleTimeout = 10 * time.Second

// CommandSource samples content by running user-configured commands
// (e.g. wl-paste, xclip, pbpaste). Each command prints the content on
// stdout; empty output or a non-zero exit means "nothing of this kind
// present". The OS clipboard itself stays outside the core.
type CommandSource struct {
	// ImageCmd prints raw image bytes (expected PNG).
	ImageCmd []string
	// FilesCmd prints newline-separated absolute file paths.
	FilesCmd []string
	// TextCmd prints plain text.
	TextCmd []string
}

// Snapshot runs the configured commands in precedence order and stops
// at the first kind that yields content.
func (c *CommandSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	if img, err := runSample(ctx, c.ImageCmd); err != nil {
		return nil, err
	} else if len(img) > 0 {
		return &Snapshot{Image: img}, nil
	}

	if raw, err := runSample(ctx, c.FilesCmd); err != nil {
		return nil, err
	} else if len(raw) > 0 {
		if files := statFiles(string(raw)); len(files) > 0 {
			return &Snapshot{Files: files}, nil
		}
	}

	text, err := runSample(ctx, c.TextCmd)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Text: text}, nil
}

// runSample executes one sampling command. An unset command or a
// non-zero exit yields no content; only launch problems are errors.
func runSample(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, sampleTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit: the tool reports "no such content".
			return nil, nil
		}

		return nil, fmt.Errorf("capture: running %s: %w", argv[0], err)
	}

	return out.Bytes(), nil
}

// statFiles resolves newline-separated paths into FileRefs, dropping
// entries that no longer exist.
func statFiles(raw string) []FileRef {
	var files []FileRef

	for _, line := range strings.Split(raw, "\n") {
		path := strings.TrimSpace(line)
		if path == "" {
			continue
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		files = append(files, FileRef{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return files
}
