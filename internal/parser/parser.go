// Package parser recognizes rich messages encoded in plain log text.
//
// The encoding is hash-mark separated:
//
//	RP_MESSAGE#<TYPE>#<DATA>#<TEXT>
//
// where TYPE is one of FILE (DATA is a file path), BASE64 (DATA is
// base64 content, optionally followed by ":<media type>") or RESOURCE
// (DATA names a file in the parser's resource filesystem). TEXT is the
// message text and may itself contain '#'.
package parser

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"strings"

	"github.com/coffersTech/rplog/internal/model"
)

// Prefix starts every encoded message.
const Prefix = "RP_MESSAGE"

const separator = "#"

// Type is the kind of DATA an encoded message carries.
type Type string

const (
	TypeFile     Type = "FILE"
	TypeBase64   Type = "BASE64"
	TypeResource Type = "RESOURCE"
)

// HashMarkParser parses hash-mark separated messages.
type HashMarkParser struct {
	resources fs.FS
}

// New returns a parser resolving RESOURCE messages against resources.
// A nil resources filesystem makes RESOURCE payloads unreadable.
func New(resources fs.FS) *HashMarkParser {
	return &HashMarkParser{resources: resources}
}

// Supports reports whether text is an encoded message.
func (p *HashMarkParser) Supports(text string) bool {
	_, _, _, ok := split(text)
	return ok
}

// Parse decodes text into a rich message. Payload problems (bad base64,
// missing file) surface when the payload is read, not here.
func (p *HashMarkParser) Parse(text string) (model.RichMessage, error) {
	typ, data, msg, ok := split(text)
	if !ok {
		return model.RichMessage{}, fmt.Errorf("not a %s message", Prefix)
	}

	switch typ {
	case TypeFile:
		return model.RichMessage{Text: msg, Data: model.File(data, "")}, nil
	case TypeResource:
		return model.RichMessage{Text: msg, Data: model.FromFS(p.resources, data, "")}, nil
	case TypeBase64:
		encoded, mediaType, _ := strings.Cut(data, ":")
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return model.RichMessage{Text: msg, Data: model.Failing(fmt.Errorf("decode base64: %w", err))}, nil
		}
		return model.RichMessage{Text: msg, Data: model.Bytes(content, mediaType)}, nil
	}
	return model.RichMessage{}, fmt.Errorf("unknown message type %q", typ)
}

// Format encodes a message the way Parse reads it.
func Format(typ Type, data, text string) string {
	return strings.Join([]string{Prefix, string(typ), data, text}, separator)
}

// FormatBytes encodes content as a BASE64 message.
func FormatBytes(content []byte, mediaType, text string) string {
	data := base64.StdEncoding.EncodeToString(content)
	if mediaType != "" {
		data += ":" + mediaType
	}
	return Format(TypeBase64, data, text)
}

func split(text string) (Type, string, string, bool) {
	if !strings.HasPrefix(text, Prefix+separator) {
		return "", "", "", false
	}
	parts := strings.SplitN(text, separator, 4)
	if len(parts) != 4 {
		return "", "", "", false
	}
	typ := Type(strings.ToUpper(parts[1]))
	switch typ {
	case TypeFile, TypeBase64, TypeResource:
		return typ, parts[2], parts[3], true
	}
	return "", "", "", false
}
