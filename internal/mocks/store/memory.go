// Package store contains an in-memory job store for unit tests.
// It applies the same guards as the Redis store and keeps a write log for assertions.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/target/mmk-summarizer/internal/core"
	"github.com/target/mmk-summarizer/internal/domain/model"
	apperrors "github.com/target/mmk-summarizer/internal/errors"
)

var _ core.JobStore = (*MemoryJobStore)(nil)

// Write is one accepted write.
type Write struct {
	ID     string
	Fields model.Fields
}

// MemoryJobStore is a concurrency-safe core.JobStore backed by a map.
type MemoryJobStore struct {
	// WriteErr, when set, is consulted before every WriteFields call.
	// A non-nil result is returned and the write is dropped.
	WriteErr func(id string, fields model.Fields) error
	// ReadErr, when set, is consulted before every ReadRecord call.
	ReadErr func(id string) error
	// CreateErr, when non-nil, is returned by Create and nothing is stored.
	CreateErr error
	// HealthErr is returned by Health.
	HealthErr error

	mu      sync.Mutex
	records map[string]model.Fields
	writes  []Write
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{records: make(map[string]model.Fields)}
}

func (m *MemoryJobStore) Create(_ context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return apperrors.ValidationField(model.FieldID, "job id is required")
	}
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[job.ID]; ok {
		return apperrors.Conflictf("job %s already exists", job.ID)
	}
	f := job.Fields()
	m.records[job.ID] = f
	m.writes = append(m.writes, Write{ID: job.ID, Fields: clone(f)})
	return nil
}

func (m *MemoryJobStore) WriteFields(_ context.Context, id string, fields model.Fields) error {
	if m.WriteErr != nil {
		if err := m.WriteErr(id, fields); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[id]
	if !ok {
		return apperrors.NotFoundf("job %s not found", id)
	}
	if model.JobStatus(cur[model.FieldStatus]).Terminal() {
		return apperrors.Conflictf("job %s already finalized", id)
	}
	if p, ok := fields[model.FieldProgress]; ok {
		next, err := model.ParseProgress(p)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid progress")
		}
		prev, _ := model.ParseProgress(cur[model.FieldProgress])
		if next < prev {
			return apperrors.Conflictf("job %s: progress must not decrease", id)
		}
	}

	for k, v := range fields {
		cur[k] = v
	}
	m.writes = append(m.writes, Write{ID: id, Fields: clone(fields)})
	return nil
}

func (m *MemoryJobStore) ReadRecord(_ context.Context, id string) (*model.Job, error) {
	if m.ReadErr != nil {
		if err := m.ReadErr(id); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	f, ok := m.records[id]
	if ok {
		f = clone(f)
	}
	m.mu.Unlock()

	if !ok {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	job, err := model.JobFromFields(id, f)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode job record")
	}
	return job, nil
}

func (m *MemoryJobStore) Scan(ctx context.Context, fn func(*model.Job) bool) error {
	for _, id := range m.IDs() {
		job, err := m.ReadRecord(ctx, id)
		if err != nil {
			return err
		}
		if !fn(job) {
			return nil
		}
	}
	return nil
}

func (m *MemoryJobStore) Health(context.Context) error { return m.HealthErr }

// Put stores raw fields for id, bypassing every guard.
func (m *MemoryJobStore) Put(id string, fields model.Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = clone(fields)
}

// IDs returns the stored ids in sorted order.
func (m *MemoryJobStore) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Writes returns the accepted writes for id, creation included, in order.
func (m *MemoryJobStore) Writes(id string) []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Write
	for _, w := range m.writes {
		if w.ID == id {
			out = append(out, Write{ID: w.ID, Fields: clone(w.Fields)})
		}
	}
	return out
}

// ProgressHistory returns every progress value written for id, in order.
func (m *MemoryJobStore) ProgressHistory(id string) []model.Progress {
	var out []model.Progress
	for _, w := range m.Writes(id) {
		if v, ok := w.Fields[model.FieldProgress]; ok {
			p, err := model.ParseProgress(v)
			if err != nil {
				panic(fmt.Sprintf("stored progress %q: %v", v, err))
			}
			out = append(out, p)
		}
	}
	return out
}

func clone(f model.Fields) model.Fields {
	out := make(model.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
