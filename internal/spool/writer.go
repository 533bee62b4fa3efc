package spool

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coffersTech/rplog/internal/model"
)

// MagicHeader starts every segment file.
var MagicHeader = []byte("RPSPOOL1")

// Extension is the file extension of segment files.
const Extension = ".rps"

// DefaultMaxSegmentBytes is the rotation threshold when none is set.
const DefaultMaxSegmentBytes = 64 << 20

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("spool closed")

// Options configures a Writer.
type Options struct {
	// MaxSegmentBytes rotates to a new segment once exceeded.
	MaxSegmentBytes int64

	// Key seals frames when set; it must be KeySize bytes.
	Key []byte

	// Sync fsyncs after every frame.
	Sync bool
}

// Writer appends record batches to segment files in a directory.
// It is safe for concurrent use and implements the emitter's Sink.
type Writer struct {
	dir   string
	opts  Options
	codec *codec

	mu     sync.Mutex
	file   *os.File
	path   string
	size   int64
	seq    int
	closed bool
}

// OpenWriter creates dir if needed and prepares a writer. The first
// segment is created on the first write.
func OpenWriter(dir string, opts Options) (*Writer, error) {
	if opts.MaxSegmentBytes <= 0 {
		opts.MaxSegmentBytes = DefaultMaxSegmentBytes
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	c, err := newCodec(opts.Key)
	if err != nil {
		return nil, err
	}
	return &Writer{dir: dir, opts: opts, codec: c}, nil
}

// Write appends records as a single frame.
func (w *Writer) Write(_ context.Context, records []model.SubmissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	flags, payload, err := w.codec.encode(records)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.file == nil || w.size >= w.opts.MaxSegmentBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	// Format: [Len uint32][Flags uint8][Payload]
	header := make([]byte, 5)
	binary.LittleEndian.PutUint32(header, uint32(len(payload)))
	header[4] = flags

	if _, err := w.file.Write(header); err != nil {
		return err
	}
	if _, err := w.file.Write(payload); err != nil {
		return err
	}
	w.size += int64(len(header) + len(payload))

	if w.opts.Sync {
		return w.file.Sync()
	}
	return nil
}

// Path returns the current segment path, empty before the first write.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Sync flushes the current segment to disk.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close syncs and closes the current segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.codec.close()
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) rotate() error {
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return err
		}
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	w.seq++
	name := segmentName(time.Now().UnixMilli(), w.seq)
	path := filepath.Join(w.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	if _, err := f.Write(MagicHeader); err != nil {
		f.Close()
		return err
	}
	w.file, w.path, w.size = f, path, int64(len(MagicHeader))
	return nil
}

// segmentName formats spool_{startMillis}_{seq}.rps.
func segmentName(startMillis int64, seq int) string {
	return fmt.Sprintf("spool_%d_%d%s", startMillis, seq, Extension)
}
