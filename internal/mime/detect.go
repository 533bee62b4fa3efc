// Package mime sniffs media types of attachment content.
package mime

import (
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

// ErrEmpty is returned for content with nothing to sniff.
var ErrEmpty = errors.New("empty content")

// Detector sniffs media types from content signatures.
type Detector struct{}

// NewDetector returns a content sniffing Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns the media type of data, parameters included
// ("text/plain; charset=utf-8").
func (d *Detector) Detect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	return mimetype.Detect(data).String(), nil
}

// Extension returns the usual file extension for mediaType, with the
// leading dot, or "" when the type is unknown.
func Extension(mediaType string) string {
	m := mimetype.Lookup(mediaType)
	if m == nil {
		return ""
	}
	return m.Extension()
}
