// Package ingest decodes captured log events from JSON lines.
//
// One event per line:
//
//	{"logger":"app","time":1000,"level":"ERROR","message":"boom",
//	 "param":42,"file":"/tmp/a.png",
//	 "rich":{"text":"t","base64":"aGk=","type":"text/plain"},
//	 "attrs":{"k":"v"}}
//
// Only one of "rich", "file" and "param" is used as the first message
// parameter, in that order. An event with neither "message" nor a
// parameter has no message object.
package ingest

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/valyala/fastjson"

	"github.com/coffersTech/rplog/internal/model"
)

const maxLineBytes = 16 << 20

// Decoder turns JSON lines into event snapshots. It is safe for
// concurrent use.
type Decoder struct {
	parser fastjson.ParserPool
	now    func() time.Time
}

// NewDecoder creates a decoder stamping events without "time" with now.
func NewDecoder(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{now: now}
}

// Decode parses one JSON object.
func (d *Decoder) Decode(line []byte) (model.Event, error) {
	p := d.parser.Get()
	defer d.parser.Put(p)

	v, err := p.ParseBytes(line)
	if err != nil {
		return model.Event{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return model.Event{}, fmt.Errorf("event must be an object, got %s", v.Type())
	}

	ts, err := d.timestamp(v.Get("time"))
	if err != nil {
		return model.Event{}, err
	}
	e := model.Event{
		Logger:     string(v.GetStringBytes("logger")),
		TimeMillis: ts,
		Level:      model.NormalizeLevel(string(v.GetStringBytes("level"))),
		Attrs:      decodeAttrs(v.GetObject("attrs")),
	}

	param, hasParam, err := decodeParam(v)
	if err != nil {
		return model.Event{}, err
	}
	msg := v.Get("message")
	if msg == nil && !hasParam {
		return e, nil
	}

	e.Message = &model.Message{Formatted: text(msg)}
	if hasParam {
		e.Message.Params = []any{param}
	}
	return e, nil
}

// timestamp reads epoch milliseconds. A missing or null time is stamped
// with now; 0 is the epoch.
func (d *Decoder) timestamp(v *fastjson.Value) (int64, error) {
	if v == nil || v.Type() == fastjson.TypeNull {
		return d.now().UnixMilli(), nil
	}
	ts, err := v.Int64()
	if err != nil {
		return 0, fmt.Errorf("time must be integer milliseconds: %w", err)
	}
	return ts, nil
}

func decodeParam(v *fastjson.Value) (any, bool, error) {
	if rich := v.Get("rich"); rich != nil {
		rm := model.RichMessage{Text: string(rich.GetStringBytes("text"))}
		if b64 := rich.Get("base64"); b64 != nil {
			content, err := base64.StdEncoding.DecodeString(string(b64.GetStringBytes()))
			if err != nil {
				rm.Data = model.Failing(fmt.Errorf("decode base64: %w", err))
			} else {
				rm.Data = model.Bytes(content, string(rich.GetStringBytes("type")))
			}
		}
		return rm, true, nil
	}
	if file := v.Get("file"); file != nil {
		if file.Type() != fastjson.TypeString {
			return nil, false, fmt.Errorf("file must be a string, got %s", file.Type())
		}
		return model.FileReference{Path: string(file.GetStringBytes())}, true, nil
	}
	if param := v.Get("param"); param != nil {
		switch param.Type() {
		case fastjson.TypeNull:
			return nil, true, nil
		case fastjson.TypeString:
			return string(param.GetStringBytes()), true, nil
		default:
			return param.String(), true, nil
		}
	}
	return nil, false, nil
}

func decodeAttrs(o *fastjson.Object) []model.Attr {
	if o == nil {
		return nil
	}
	var attrs []model.Attr
	o.Visit(func(key []byte, v *fastjson.Value) {
		attrs = append(attrs, model.Attr{Key: string(key), Value: text(v)})
	})
	return attrs
}

func text(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNull:
		return ""
	default:
		return v.String()
	}
}

// Scan decodes every non-empty line of r and calls fn with its 1-based
// line number. Decoding errors stop the scan.
func (d *Decoder) Scan(r io.Reader, fn func(line int, e model.Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Bytes()
		if len(trimSpace(line)) == 0 {
			continue
		}
		e, err := d.Decode(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if err := fn(n, e); err != nil {
			return err
		}
	}
	return sc.Err()
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\r') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
