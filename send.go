package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipsync-app/clipsync/internal/api"
	"github.com/clipsync-app/clipsync/internal/payload"
)

// maxStdinBytes caps a text send from stdin.
const maxStdinBytes = 16 << 20

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [file...]",
		Short: "Upload content to the shared clipboard",
		Long: `Upload files, or text read from stdin, to the shared clipboard.

With file arguments the files are sent as a set (multiple files are
archived). Without arguments stdin is read and sent as text.

Examples:
  clipsync send report.pdf
  clipsync send *.jpg
  echo "meeting at 3" | clipsync send`,
		RunE: runSend,
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	client, err := remoteClient(defaultHTTPClient(), logger)
	if err != nil {
		return err
	}

	desc, fileName, err := buildSendDescriptor(args)
	if err != nil {
		return err
	}

	if ttl := loadedCfg.Sync.ItemTTLDuration(); ttl > 0 {
		desc.ExpiresAt = time.Now().Add(ttl)
	}

	p, err := payload.Serialize(desc)
	if err != nil {
		return fmt.Errorf("preparing upload: %w", err)
	}

	item, err := client.Upload(cmd.Context(), &api.UploadRequest{
		OwnerID:   loadedCfg.Remote.OwnerID,
		FileName:  fileName,
		Kind:      desc.Kind,
		Payload:   p,
		ExpiresAt: desc.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}

	statusf(flagQuiet, "Sent %s (%s, %s)\n", fileName, item.Kind, formatSize(item.Length))

	return nil
}

// buildSendDescriptor assembles the payload descriptor for a one-shot
// send: file arguments become a file set, otherwise stdin is text.
func buildSendDescriptor(args []string) (*payload.Descriptor, string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinBytes))
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}

		if len(data) == 0 {
			return nil, "", fmt.Errorf("nothing to send: no files given and stdin is empty")
		}

		desc := &payload.Descriptor{
			Kind:                 payload.KindText,
			Parts:                []payload.Part{payload.BytesPart("clipboard.txt", "text/plain; charset=utf-8", data)},
			PreferredContentType: "text/plain; charset=utf-8",
		}

		return desc, "clipboard.txt", nil
	}

	parts := make([]payload.Part, 0, len(args))
	seen := make(map[string]int)

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, "", fmt.Errorf("cannot send %s: %w", arg, err)
		}

		if info.IsDir() {
			return nil, "", fmt.Errorf("cannot send %s: directories are not supported", arg)
		}

		name := filepath.Base(arg)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d_%s", n, name)
		}
		seen[filepath.Base(arg)]++

		path := arg

		parts = append(parts, payload.Part{
			Name:        name,
			ContentType: "application/octet-stream",
			Length:      info.Size(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	}

	fileName := "files.zip"
	if len(parts) == 1 {
		fileName = parts[0].Name
	}

	desc := &payload.Descriptor{
		Kind:  payload.KindFileSet,
		Parts: parts,
	}

	return desc, fileName, nil
}
