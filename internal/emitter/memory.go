package emitter

import (
	"context"
	"sync"

	"github.com/coffersTech/rplog/internal/model"
)

// Memory is a Sink keeping records in memory.
type Memory struct {
	mu      sync.Mutex
	records []model.SubmissionRecord
	err     error
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Write appends records, or fails with the error set by FailWith.
func (m *Memory) Write(_ context.Context, records []model.SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

// FailWith makes subsequent writes fail with err; nil restores writes.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Records returns a copy of everything written so far.
func (m *Memory) Records() []model.SubmissionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SubmissionRecord, len(m.records))
	copy(out, m.records)
	return out
}
