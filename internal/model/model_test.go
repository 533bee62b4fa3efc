package model

import (
	"errors"
	"io/fs"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, EncodeLevel(LevelTraceSlog))
	assert.Equal(t, LevelDebug, EncodeLevel(slog.LevelDebug))
	assert.Equal(t, LevelInfo, EncodeLevel(slog.LevelInfo))
	assert.Equal(t, LevelInfo, EncodeLevel(slog.LevelInfo+2))
	assert.Equal(t, LevelWarn, EncodeLevel(slog.LevelWarn))
	assert.Equal(t, LevelError, EncodeLevel(slog.LevelError))
	assert.Equal(t, LevelFatal, EncodeLevel(LevelFatalSlog))
}

func TestNormalizeLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, NormalizeLevel("warning"))
	assert.Equal(t, LevelError, NormalizeLevel("error"))
	assert.Equal(t, LevelInfo, NormalizeLevel("verbose"))
	assert.Equal(t, LevelTrace, NormalizeLevel("TRACE"))
}

func TestFirstParam(t *testing.T) {
	_, ok := Event{}.FirstParam()
	assert.False(t, ok)

	_, ok = Event{Message: &Message{}}.FirstParam()
	assert.False(t, ok)

	p, ok := Event{Message: &Message{Params: []any{nil, 2}}}.FirstParam()
	assert.True(t, ok)
	assert.Nil(t, p)
}

func TestBytesSourceReturnsCopy(t *testing.T) {
	buf := []byte("abc")
	src := Bytes(buf, "text/plain")

	got, err := src.Read()
	require.NoError(t, err)
	got[0] = 'x'

	again, _ := src.Read()
	assert.Equal(t, []byte("abc"), again)
	assert.Equal(t, "text/plain", src.MediaType())
}

func TestFromFS(t *testing.T) {
	fsys := fstest.MapFS{"logo.svg": &fstest.MapFile{Data: []byte("<svg/>")}}

	got, err := FromFS(fsys, "logo.svg", "image/svg+xml").Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("<svg/>"), got)

	_, err = FromFS(fsys, "missing", "").Read()
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = FromFS(nil, "logo.svg", "").Read()
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFailing(t *testing.T) {
	cause := errors.New("closed")
	_, err := Failing(cause).Read()
	assert.ErrorIs(t, err, cause)

	_, err = Failing(nil).Read()
	assert.Error(t, err)
}
