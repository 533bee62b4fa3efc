package model

import (
	"errors"
	"io/fs"
	"os"
)

// ByteSource supplies binary content lazily together with its declared
// media type. An empty media type means "unknown, sniff it".
type ByteSource interface {
	Read() ([]byte, error)
	MediaType() string
}

// RichMessage bundles human-readable text with an optional binary payload.
type RichMessage struct {
	Text string
	Data ByteSource
}

// FileReference stands in for the content of a file read on demand.
type FileReference struct {
	Path string
}

type bytesSource struct {
	data      []byte
	mediaType string
}

// Bytes returns a ByteSource over an in-memory buffer.
func Bytes(data []byte, mediaType string) ByteSource {
	return bytesSource{data: data, mediaType: mediaType}
}

func (s bytesSource) Read() ([]byte, error) {
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s bytesSource) MediaType() string { return s.mediaType }

type fileSource struct {
	path      string
	mediaType string
}

// File returns a ByteSource reading path when asked.
func File(path, mediaType string) ByteSource {
	return fileSource{path: path, mediaType: mediaType}
}

func (s fileSource) Read() ([]byte, error) { return os.ReadFile(s.path) }

func (s fileSource) MediaType() string { return s.mediaType }

type fsSource struct {
	fsys      fs.FS
	name      string
	mediaType string
}

// FromFS returns a ByteSource reading name from fsys when asked.
func FromFS(fsys fs.FS, name, mediaType string) ByteSource {
	return fsSource{fsys: fsys, name: name, mediaType: mediaType}
}

func (s fsSource) Read() ([]byte, error) {
	if s.fsys == nil {
		return nil, &fs.PathError{Op: "open", Path: s.name, Err: fs.ErrNotExist}
	}
	return fs.ReadFile(s.fsys, s.name)
}

func (s fsSource) MediaType() string { return s.mediaType }

type failingSource struct {
	err error
}

// Failing returns a ByteSource whose Read always fails with err.
func Failing(err error) ByteSource {
	if err == nil {
		err = errors.New("byte source unavailable")
	}
	return failingSource{err: err}
}

func (s failingSource) Read() ([]byte, error) { return nil, s.err }

func (s failingSource) MediaType() string { return "" }
