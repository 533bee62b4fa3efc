package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/coffersTech/rplog/internal/logging"
	"github.com/coffersTech/rplog/internal/model"
)

// FileReportedMessage is the message text of records reporting a file.
const FileReportedMessage = "File reported"

// ModulePath is the import path prefix of this module's own loggers.
const ModulePath = "github.com/coffersTech/rplog"

// ErrNoLayout is returned when a classifier is built without a layout.
var ErrNoLayout = errors.New("no layout provided")

// Layout renders an event to bytes. It is the fallback source of text.
type Layout interface {
	Format(e model.Event) []byte
}

// Detector sniffs the media type of binary content.
type Detector interface {
	Detect(data []byte) (string, error)
}

// FormatParser recognizes rich messages encoded in formatted text.
type FormatParser interface {
	Supports(text string) bool
	Parse(text string) (model.RichMessage, error)
}

// ResolveFunc completes a prepared record once the owner id is known.
// It is pure and safe to call from any goroutine.
type ResolveFunc func(ownerID string) model.SubmissionRecord

// Options configures a Classifier. Only Layout is required.
type Options struct {
	Layout     Layout
	Parser     FormatParser
	Detector   Detector
	IsInternal func(loggerName string) bool
	NewName    func() string
	Logger     *slog.Logger
}

// Classifier turns event snapshots into submission records.
// It holds no mutable state and may be shared between goroutines.
type Classifier struct {
	layout     Layout
	parser     FormatParser
	detector   Detector
	isInternal func(string) bool
	newName    func() string
	log        *slog.Logger
}

// NewClassifier validates opts and fills in defaults.
func NewClassifier(opts Options) (*Classifier, error) {
	if opts.Layout == nil {
		return nil, ErrNoLayout
	}
	c := &Classifier{
		layout:     opts.Layout,
		parser:     opts.Parser,
		detector:   opts.Detector,
		isInternal: opts.IsInternal,
		newName:    opts.NewName,
		log:        opts.Logger,
	}
	if c.isInternal == nil {
		c.isInternal = InternalPrefixes(logging.Namespace, ModulePath)
	}
	if c.newName == nil {
		c.newName = func() string { return uuid.New().String() }
	}
	if c.log == nil {
		c.log = logging.Internal("engine")
	}
	return c, nil
}

// InternalPrefixes returns a predicate matching logger names equal to one
// of prefixes or nested below it ("rplog", "rplog.emitter", "rplog/x").
func InternalPrefixes(prefixes ...string) func(string) bool {
	return func(name string) bool {
		for _, p := range prefixes {
			if p == "" || !strings.HasPrefix(name, p) {
				continue
			}
			if len(name) == len(p) {
				return true
			}
			switch name[len(p)] {
			case '.', '/':
				return true
			}
		}
		return false
	}
}

// Classify selects the payload shape of e. It returns false when the
// event must not be reported at all.
func (c *Classifier) Classify(e model.Event) (Payload, bool) {
	if c.isInternal(e.Logger) {
		return nil, false
	}
	if e.Message == nil {
		return nil, false
	}

	if param, ok := e.FirstParam(); ok {
		switch v := param.(type) {
		case model.RichMessage:
			return RichPayload{Message: v}, true
		case *model.RichMessage:
			if v != nil {
				return RichPayload{Message: *v}, true
			}
			return TextPayload{}, true
		case model.FileReference:
			return FilePayload{Ref: v}, true
		case *model.FileReference:
			if v != nil {
				return FilePayload{Ref: *v}, true
			}
			return TextPayload{}, true
		case nil:
			return TextPayload{}, true
		default:
			return TextPayload{Text: fmt.Sprint(v)}, true
		}
	}

	if c.parser != nil && c.parser.Supports(e.Message.Formatted) {
		rm, err := c.parser.Parse(e.Message.Formatted)
		if err == nil {
			return RichPayload{Message: rm}, true
		}
		c.log.Debug("formatted message not parsed, using layout", "error", err)
	}

	return TextPayload{Text: decodeUTF8(c.layout.Format(e))}, true
}

// Realize resolves the message text and attachment of p. A failed
// attachment read degrades the result to text only.
func (c *Classifier) Realize(p Payload) (string, *model.Attachment) {
	var (
		message string
		src     model.ByteSource
	)
	switch p := p.(type) {
	case RichPayload:
		message, src = p.Message.Text, p.Message.Data
	case FilePayload:
		message, src = FileReportedMessage, model.File(p.Ref.Path, "")
	case TextPayload:
		message = p.Text
	}
	if src == nil {
		return message, nil
	}

	att, err := c.Extract(src)
	if err != nil {
		c.log.Debug("attachment dropped", "error", err)
		return message, nil
	}
	return message, &att
}

// Prepare classifies, extracts and builds the record for e on the calling
// goroutine and returns the function completing it with an owner id.
// Every call returns an independent record.
func (c *Classifier) Prepare(e model.Event) (ResolveFunc, bool) {
	p, ok := c.Classify(e)
	if !ok {
		return nil, false
	}
	message, att := c.Realize(p)
	rec := Build(message, att, e)
	return func(ownerID string) model.SubmissionRecord {
		r := rec
		r.OwnerID = ownerID
		if rec.Attachment != nil {
			att := *rec.Attachment
			att.Content = append([]byte(nil), rec.Attachment.Content...)
			r.Attachment = &att
		}
		return r
	}, true
}

func decodeUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
