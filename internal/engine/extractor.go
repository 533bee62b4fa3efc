package engine

import (
	"errors"

	"github.com/coffersTech/rplog/internal/model"
)

// DefaultMediaType is used when content cannot be sniffed.
const DefaultMediaType = "application/octet-stream"

var errNoSource = errors.New("no byte source")

// ExtractError reports a binary payload that could not be read.
type ExtractError struct {
	Err error
}

func (e *ExtractError) Error() string { return "read attachment: " + e.Err.Error() }

func (e *ExtractError) Unwrap() error { return e.Err }

// Extract reads src fully and wraps it into an attachment with a fresh
// name. An empty declared media type is sniffed from the content.
func (c *Classifier) Extract(src model.ByteSource) (model.Attachment, error) {
	if src == nil {
		return model.Attachment{}, &ExtractError{Err: errNoSource}
	}
	content, err := src.Read()
	if err != nil {
		return model.Attachment{}, &ExtractError{Err: err}
	}

	mediaType := src.MediaType()
	if mediaType == "" {
		mediaType = c.detect(content)
	}

	return model.Attachment{
		Name:        c.newName(),
		ContentType: mediaType,
		Content:     content,
	}, nil
}

func (c *Classifier) detect(content []byte) string {
	if c.detector == nil {
		return DefaultMediaType
	}
	mt, err := c.detector.Detect(content)
	if err != nil || mt == "" {
		if err != nil {
			c.log.Debug("media type detection failed", "error", err)
		}
		return DefaultMediaType
	}
	return mt
}
