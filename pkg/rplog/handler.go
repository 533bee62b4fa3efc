package rplog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coffersTech/rplog/internal/engine"
	"github.com/coffersTech/rplog/internal/logging"
	"github.com/coffersTech/rplog/internal/mime"
	"github.com/coffersTech/rplog/internal/model"
	"github.com/coffersTech/rplog/internal/parser"
)

const (
	// ParamKey marks an attribute as a message parameter.
	ParamKey = "rp.param"
	// LoggerKey overrides the logger name of a single record.
	LoggerKey = "logger"
)

var (
	// ErrNoName is returned by NewHandler without Options.Name.
	ErrNoName = errors.New("no name provided")
	// ErrNoLayout is returned by NewHandler without Options.Layout.
	ErrNoLayout = engine.ErrNoLayout
	// ErrNoDispatcher is returned by NewHandler without Options.Dispatcher.
	ErrNoDispatcher = errors.New("no dispatcher provided")
)

// Dispatcher receives prepared records and completes them once the owner
// is known. *Emitter implements it.
type Dispatcher interface {
	Emit(ctx context.Context, fn ResolveFunc) error
}

// Options configures a Handler.
type Options struct {
	// Name identifies the handler in diagnostics. Required.
	Name string

	// Layout renders records that carry no parameter. Required.
	Layout Layout

	// Dispatcher receives prepared records. Required.
	Dispatcher Dispatcher

	// Parser recognizes encoded rich messages; defaults to RP_MESSAGE.
	Parser FormatParser

	// Detector sniffs attachment media types; defaults to content sniffing.
	Detector Detector

	// IsInternal reports logger names that must never be reported.
	IsInternal func(loggerName string) bool

	// Level is the minimum level handled; defaults to DEBUG.
	Level slog.Leveler

	// Logger is the default logger name of records.
	Logger string

	// ErrorLog receives diagnostics; defaults to slog.Default().
	ErrorLog *slog.Logger
}

type boundAttr struct {
	prefix string
	attr   slog.Attr
}

// Handler is a slog.Handler reporting records through a Dispatcher.
type Handler struct {
	name       string
	classifier *engine.Classifier
	dispatcher Dispatcher
	level      slog.Leveler
	logger     string
	log        *slog.Logger

	attrs  []boundAttr
	prefix string
}

// NewHandler validates opts and builds a handler. Misconfiguration is
// logged and no handler is returned.
func NewHandler(opts Options) (*Handler, error) {
	log := logging.With(opts.ErrorLog, "handler")

	if opts.Name == "" {
		log.Error("no name provided for handler")
		return nil, ErrNoName
	}
	if opts.Layout == nil {
		log.Error("no layout provided for handler", "handler", opts.Name)
		return nil, ErrNoLayout
	}
	if opts.Dispatcher == nil {
		log.Error("no dispatcher provided for handler", "handler", opts.Name)
		return nil, ErrNoDispatcher
	}

	if opts.Parser == nil {
		opts.Parser = parser.New(nil)
	}
	if opts.Detector == nil {
		opts.Detector = mime.NewDetector()
	}
	if opts.Level == nil {
		opts.Level = slog.LevelDebug
	}

	c, err := engine.NewClassifier(engine.Options{
		Layout:     opts.Layout,
		Parser:     opts.Parser,
		Detector:   opts.Detector,
		IsInternal: opts.IsInternal,
		Logger:     logging.With(opts.ErrorLog, "engine"),
	})
	if err != nil {
		log.Error("handler setup failed", "handler", opts.Name, "error", err)
		return nil, err
	}

	return &Handler{
		name:       opts.Name,
		classifier: c,
		dispatcher: opts.Dispatcher,
		level:      opts.Level,
		logger:     opts.Logger,
		log:        log.With("handler", opts.Name),
	}, nil
}

// Name returns the configured handler name.
func (h *Handler) Name() string {
	return h.name
}

// Named returns a handler reporting records under logger name.
func (h *Handler) Named(name string) *Handler {
	h2 := *h
	h2.logger = name
	return &h2
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle prepares r and passes it to the dispatcher. It never fails: a
// record that cannot be reported is dropped and noted in diagnostics.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	e := h.snapshot(r)
	fn, ok := h.classifier.Prepare(e)
	if !ok {
		return nil
	}
	if err := h.dispatcher.Emit(ctx, fn); err != nil {
		h.log.Debug("record not dispatched", "error", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]boundAttr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, boundAttr{prefix: h.prefix, attr: a})
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

// snapshot freezes r into an event. Attribute values are resolved here so
// the prepared record never refers back to the live record.
func (h *Handler) snapshot(r slog.Record) model.Event {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	s := &snapshotter{logger: h.logger}
	for _, b := range h.attrs {
		s.add(b.prefix, b.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		s.add(h.prefix, a)
		return true
	})

	msg := &model.Message{Formatted: r.Message}
	if len(s.params) > 0 {
		msg.Params = s.params
	}
	return model.Event{
		Logger:     s.logger,
		TimeMillis: ts.UnixMilli(),
		Level:      model.EncodeLevel(r.Level),
		Message:    msg,
		Attrs:      s.attrs,
	}
}

type snapshotter struct {
	logger string
	params []any
	attrs  []model.Attr
}

func (s *snapshotter) add(prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	switch {
	case a.Key == ParamKey:
		s.params = append(s.params, a.Value.Any())
		return
	case a.Key == LoggerKey && prefix == "" && a.Value.Kind() == slog.KindString:
		s.logger = a.Value.String()
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			s.add(inner, ga)
		}
		return
	}
	s.attrs = append(s.attrs, model.Attr{Key: prefix + a.Key, Value: a.Value.String()})
}

var _ slog.Handler = (*Handler)(nil)
