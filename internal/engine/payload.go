package engine

import "github.com/coffersTech/rplog/internal/model"

// Payload is the classified shape of an event. The set of implementations
// is closed: RichPayload, FilePayload and TextPayload.
type Payload interface {
	payload()
}

// RichPayload carries text and an optional binary payload, either passed
// directly by the caller or parsed out of the formatted message.
type RichPayload struct {
	Message model.RichMessage
}

// FilePayload reports a file as the attachment.
type FilePayload struct {
	Ref model.FileReference
}

// TextPayload is plain text without an attachment.
type TextPayload struct {
	Text string
}

func (RichPayload) payload() {}
func (FilePayload) payload() {}
func (TextPayload) payload() {}
