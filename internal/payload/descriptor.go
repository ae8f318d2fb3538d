// Package payload defines content descriptors and turns them into a
// single transportable byte stream for upload.
package payload

import (
	"bytes"
	"io"
	"time"
)

// Kind identifies the category of captured content.
type Kind int

const (
	// KindText is plain text content.
	KindText Kind = iota
	// KindFileSet is one or more files captured as a set.
	KindFileSet
	// KindImage is a single raster image.
	KindImage
)

// String returns the lowercase name used in signatures and logs.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFileSet:
		return "files"
	case KindImage:
		return "img"
	default:
		return "unknown"
	}
}

// Part is one named piece of a descriptor. Open is invoked lazily at
// serialization time; the bytes are never materialized before that.
type Part struct {
	Name        string
	ContentType string
	Length      int64
	Open        func() (io.ReadCloser, error)
}

// Descriptor describes content to be uploaded: one or more parts plus
// transport hints. A descriptor is built fresh for each detected change
// and discarded after serialization.
type Descriptor struct {
	Kind                 Kind
	Parts                []Part
	PreferredContentType string
	ExpiresAt            time.Time
}

// BytesPart builds a Part backed by an in-memory byte slice.
func BytesPart(name, contentType string, data []byte) Part {
	return Part{
		Name:        name,
		ContentType: contentType,
		Length:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
