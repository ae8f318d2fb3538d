package capture

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// Signatures are kind-tagged so identical bytes under different kinds
// never collide: "img:<hex>", "files:<hex>", "text:<hex>".

// imageSignature fingerprints raw image bytes.
func imageSignature(data []byte) string {
	return "img:" + hashHex(data)
}

// textSignature fingerprints text content bytes.
func textSignature(data []byte) string {
	return "text:" + hashHex(data)
}

// fileSetSignature fingerprints a file set from each file's path, size,
// and last-write time rather than its content. This trades accuracy for
// never reading file bodies on a watcher tick.
func fileSetSignature(files []FileRef) string {
	h, _ := blake2b.New256(nil)

	for _, f := range files {
		h.Write([]byte(norm.NFC.String(f.Path)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(f.Size, 10)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(f.ModTime.UnixNano(), 10)))
		h.Write([]byte{0})
	}

	return "files:" + hex.EncodeToString(h.Sum(nil))
}

func hashHex(data []byte) string {
	sum := blake2b.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// signatureOf computes the signature for whichever kind the snapshot
// resolves to, honoring Image > Files > Text precedence. Returns an
// empty string for an empty snapshot.
func signatureOf(s *Snapshot) string {
	switch {
	case len(s.Image) > 0:
		return imageSignature(s.Image)
	case len(s.Files) > 0:
		return fileSetSignature(s.Files)
	case len(s.Text) > 0:
		return textSignature(s.Text)
	default:
		return ""
	}
}
