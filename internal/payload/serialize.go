package payload

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"golang.org/x/text/unicode/norm"
)

// archiveContentType is used when a multi-part descriptor carries no
// preferred content type.
const archiveContentType = "application/zip"

// Payload is the serialized form of a descriptor: a single byte stream
// plus its content type. It is ephemeral and consumed exactly once by
// the upload call.
type Payload struct {
	ContentType string
	Length      int64
	Body        io.Reader
}

// Serialize turns a descriptor into a Payload.
//
// A descriptor with exactly one part that is not a file set is passed
// through verbatim with the part's content type. Everything else is
// packed into a zip archive with one entry per part, named by the
// NFC-normalized part name, compressed at the fastest level. A file set
// is always archived, even with a single file, so the receiver can rely
// on the container format.
func Serialize(d *Descriptor) (*Payload, error) {
	if len(d.Parts) == 0 {
		return nil, fmt.Errorf("payload: descriptor has no parts")
	}

	if len(d.Parts) == 1 && d.Kind != KindFileSet {
		return serializeSingle(&d.Parts[0])
	}

	return serializeArchive(d)
}

// serializeSingle copies the sole part's bytes verbatim.
func serializeSingle(p *Part) (*Payload, error) {
	rc, err := p.Open()
	if err != nil {
		return nil, fmt.Errorf("payload: opening part %q: %w", p.Name, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("payload: reading part %q: %w", p.Name, err)
	}

	return &Payload{
		ContentType: p.ContentType,
		Length:      int64(buf.Len()),
		Body:        &buf,
	}, nil
}

// serializeArchive packs every part into a zip archive.
func serializeArchive(d *Descriptor) (*Payload, error) {
	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})

	for i := range d.Parts {
		p := &d.Parts[i]

		if err := writeEntry(zw, p); err != nil {
			zw.Close()

			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("payload: finalizing archive: %w", err)
	}

	contentType := d.PreferredContentType
	if contentType == "" {
		contentType = archiveContentType
	}

	return &Payload{
		ContentType: contentType,
		Length:      int64(buf.Len()),
		Body:        &buf,
	}, nil
}

// writeEntry streams one part into the archive.
func writeEntry(zw *zip.Writer, p *Part) error {
	rc, err := p.Open()
	if err != nil {
		return fmt.Errorf("payload: opening part %q: %w", p.Name, err)
	}
	defer rc.Close()

	w, err := zw.Create(norm.NFC.String(p.Name))
	if err != nil {
		return fmt.Errorf("payload: creating archive entry %q: %w", p.Name, err)
	}

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("payload: writing archive entry %q: %w", p.Name, err)
	}

	return nil
}
