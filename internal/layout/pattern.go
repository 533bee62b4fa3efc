// Package layout renders log events to text using log4j-style patterns.
package layout

import (
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/rplog/internal/model"
)

// DefaultPattern renders "<time> <LEVEL> <logger> - <message>" lines.
const DefaultPattern = "%d %-5p %c - %m%n"

const defaultTimeLayout = "2006-01-02T15:04:05.000Z07:00"

type verb int

const (
	verbLiteral verb = iota
	verbDate
	verbLevel
	verbLogger
	verbMessage
	verbAttrs
	verbNewline
)

var verbs = map[string]verb{
	"d":       verbDate,
	"date":    verbDate,
	"p":       verbLevel,
	"level":   verbLevel,
	"c":       verbLogger,
	"logger":  verbLogger,
	"m":       verbMessage,
	"msg":     verbMessage,
	"message": verbMessage,
	"X":       verbAttrs,
	"n":       verbNewline,
}

type segment struct {
	verb    verb
	literal string
	arg     string
	width   int
	left    bool
}

// PatternLayout renders events by a compiled pattern.
// It is immutable and safe for concurrent use.
type PatternLayout struct {
	pattern  string
	segments []segment
}

// NewPattern compiles pattern. Unknown conversions are kept literally.
func NewPattern(pattern string) *PatternLayout {
	return &PatternLayout{pattern: pattern, segments: compile(pattern)}
}

// Default returns a layout using DefaultPattern.
func Default() *PatternLayout {
	return NewPattern(DefaultPattern)
}

// Pattern returns the source pattern.
func (l *PatternLayout) Pattern() string {
	return l.pattern
}

// Format renders e.
func (l *PatternLayout) Format(e model.Event) []byte {
	var b strings.Builder
	for _, s := range l.segments {
		var text string
		switch s.verb {
		case verbLiteral:
			b.WriteString(s.literal)
			continue
		case verbNewline:
			b.WriteByte('\n')
			continue
		case verbDate:
			layout := s.arg
			if layout == "" {
				layout = defaultTimeLayout
			}
			text = time.UnixMilli(e.TimeMillis).UTC().Format(layout)
		case verbLevel:
			text = e.Level
		case verbLogger:
			text = e.Logger
		case verbMessage:
			if e.Message != nil {
				text = e.Message.Formatted
			}
		case verbAttrs:
			text = formatAttrs(e.Attrs)
		}
		writePadded(&b, text, s.width, s.left)
	}
	return []byte(b.String())
}

func formatAttrs(attrs []model.Attr) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Key+"="+a.Value)
	}
	return strings.Join(parts, " ")
}

func writePadded(b *strings.Builder, text string, width int, left bool) {
	pad := width - len([]rune(text))
	if pad <= 0 {
		b.WriteString(text)
		return
	}
	if left {
		b.WriteString(text)
		b.WriteString(strings.Repeat(" ", pad))
		return
	}
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(text)
}

func compile(pattern string) []segment {
	var (
		segments []segment
		lit      strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segments = append(segments, segment{verb: verbLiteral, literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		if pattern[i] != '%' {
			lit.WriteByte(pattern[i])
			i++
			continue
		}
		if i+1 < len(pattern) && pattern[i+1] == '%' {
			lit.WriteByte('%')
			i += 2
			continue
		}

		start := i
		i++
		s := segment{}
		if i < len(pattern) && pattern[i] == '-' {
			s.left = true
			i++
		}
		digits := i
		for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
			i++
		}
		if i > digits {
			s.width, _ = strconv.Atoi(pattern[digits:i])
		}
		name := i
		for i < len(pattern) && isLetter(pattern[i]) {
			i++
		}
		v, ok := verbs[pattern[name:i]]
		if !ok {
			lit.WriteString(pattern[start:i])
			continue
		}
		s.verb = v
		if i < len(pattern) && pattern[i] == '{' {
			if end := strings.IndexByte(pattern[i:], '}'); end > 0 {
				s.arg = pattern[i+1 : i+end]
				i += end + 1
			}
		}
		flush()
		segments = append(segments, s)
	}
	flush()
	return segments
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
