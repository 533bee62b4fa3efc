package rplog

import (
	"context"
	"io/fs"
	"log/slog"

	"github.com/coffersTech/rplog/internal/emitter"
	"github.com/coffersTech/rplog/internal/engine"
	"github.com/coffersTech/rplog/internal/layout"
	"github.com/coffersTech/rplog/internal/model"
	"github.com/coffersTech/rplog/internal/parser"
)

type (
	// Event is the frozen snapshot a record is classified from.
	Event = model.Event
	// RichMessage bundles text with an optional binary payload.
	RichMessage = model.RichMessage
	// FileReference reports the content of a file.
	FileReference = model.FileReference
	// ByteSource supplies attachment content lazily.
	ByteSource = model.ByteSource
	// Attachment is the binary part of a submission record.
	Attachment = model.Attachment
	// SubmissionRecord is a finished, owner-stamped record.
	SubmissionRecord = model.SubmissionRecord

	// ResolveFunc completes a prepared record with its owner id.
	ResolveFunc = engine.ResolveFunc
	// Layout renders records without parameters.
	Layout = engine.Layout
	// Detector sniffs attachment media types.
	Detector = engine.Detector
	// FormatParser recognizes rich messages encoded in text.
	FormatParser = engine.FormatParser

	// Emitter is the default Dispatcher, tracking running items.
	Emitter = emitter.Emitter
	// EmitterOptions configures an Emitter.
	EmitterOptions = emitter.Options
	// Item is an owner whose id may still be in flight.
	Item = emitter.Item
	// StartFunc starts an item remotely and returns its id.
	StartFunc = emitter.StartFunc
	// Sink receives finished records in batches.
	Sink = emitter.Sink
	// MemorySink keeps finished records in memory.
	MemorySink = emitter.Memory
)

// Policies for records emitted while no item is running.
const (
	PolicyDrop  = emitter.PolicyDrop
	PolicyQueue = emitter.PolicyQueue
)

// NewEmitter starts an emitter.
func NewEmitter(opts EmitterOptions) *Emitter {
	return emitter.New(opts)
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return emitter.NewMemory()
}

// WithItem binds item as the owner of records logged with ctx.
func WithItem(ctx context.Context, item *Item) context.Context {
	return emitter.WithItem(ctx, item)
}

// NewPatternLayout compiles a log4j-style pattern ("%d %-5p %c - %m%n").
func NewPatternLayout(pattern string) Layout {
	return layout.NewPattern(pattern)
}

// NewMessageParser returns the RP_MESSAGE parser, resolving RESOURCE
// payloads against resources.
func NewMessageParser(resources fs.FS) FormatParser {
	return parser.New(resources)
}

// Param marks v as the message parameter of a record.
func Param(v any) slog.Attr {
	return slog.Any(ParamKey, v)
}

// Rich reports text with data as attachment.
func Rich(text string, data ByteSource) slog.Attr {
	return Param(RichMessage{Text: text, Data: data})
}

// AttachBytes reports text with content as attachment. An empty
// mediaType is sniffed.
func AttachBytes(text string, content []byte, mediaType string) slog.Attr {
	return Rich(text, model.Bytes(content, mediaType))
}

// AttachFile reports the file at path.
func AttachFile(path string) slog.Attr {
	return Param(FileReference{Path: path})
}
