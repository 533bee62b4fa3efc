package spool

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coffersTech/rplog/internal/model"
)

var (
	// ErrInvalidHeader is returned for files that are not spool segments.
	ErrInvalidHeader = errors.New("invalid spool segment header")
	// ErrSealed is returned when a sealed frame is read without a key.
	ErrSealed = errors.New("sealed frame requires a key")
)

// maxFrameBytes rejects corrupt length prefixes before allocating.
const maxFrameBytes = 1 << 30

// Reader iterates the records of one segment file.
type Reader struct {
	file  *os.File
	codec *codec

	batch  []model.SubmissionRecord
	cursor int
	curr   model.SubmissionRecord
	err    error
}

// OpenReader opens a segment; key may be nil for unsealed segments.
func OpenReader(path string, key []byte) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, MagicHeader) {
		f.Close()
		return nil, ErrInvalidHeader
	}
	c, err := newCodec(key)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{file: f, codec: c}, nil
}

// Next advances to the next record.
func (r *Reader) Next() bool {
	for r.cursor >= len(r.batch) {
		if r.err != nil {
			return false
		}
		if !r.readFrame() {
			return false
		}
	}
	r.curr = r.batch[r.cursor]
	r.cursor++
	return true
}

// Record returns the current record.
func (r *Reader) Record() model.SubmissionRecord {
	return r.curr
}

// Err returns the first error other than a clean end of file.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the file.
func (r *Reader) Close() error {
	r.codec.close()
	return r.file.Close()
}

func (r *Reader) readFrame() bool {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r.file, header); err != nil {
		if err != io.EOF {
			r.err = fmt.Errorf("spool read error (header): %w", err)
		}
		return false
	}
	length := binary.LittleEndian.Uint32(header)
	if length > maxFrameBytes {
		r.err = fmt.Errorf("spool read error: frame of %d bytes", length)
		return false
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r.file, payload); err != nil {
		r.err = fmt.Errorf("spool read error (payload): %w", err)
		return false
	}
	records, err := r.codec.decode(header[4], payload)
	if err != nil {
		r.err = err
		return false
	}
	r.batch, r.cursor = records, 0
	return true
}

// ReadAll returns every record of a segment.
func ReadAll(path string, key []byte) ([]model.SubmissionRecord, error) {
	r, err := OpenReader(path, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var records []model.SubmissionRecord
	for r.Next() {
		records = append(records, r.Record())
	}
	return records, r.Err()
}

// Segments lists the segment files of dir, oldest first.
func Segments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type seg struct {
		path  string
		start int64
		seq   int
	}
	var segs []seg
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		start, seq, err := parseSegmentName(entry.Name())
		if err != nil {
			continue
		}
		segs = append(segs, seg{filepath.Join(dir, entry.Name()), start, seq})
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].start != segs[j].start {
			return segs[i].start < segs[j].start
		}
		return segs[i].seq < segs[j].seq
	})
	paths := make([]string, len(segs))
	for i, s := range segs {
		paths[i] = s.path
	}
	return paths, nil
}
