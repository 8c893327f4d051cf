package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Enroleai/Uni-Automation/api/schemas"
)

// MemoryStore keeps submissions and records in process memory. It is used when
// no database is configured; nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	submissions map[string]schemas.Submission
	order       []string
	records     map[int64]schemas.Record
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		submissions: make(map[string]schemas.Submission),
		records:     make(map[int64]schemas.Record),
	}
}

// stored copies a submission without its credential, mirroring what the
// database keeps.
func stored(sub *schemas.Submission) schemas.Submission {
	c := *sub
	c.AccountPassword = ""
	if sub.SubmissionDate != nil {
		at := *sub.SubmissionDate
		c.SubmissionDate = &at
	}
	return c
}

func (m *MemoryStore) CreateSubmission(_ context.Context, sub *schemas.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.submissions[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	m.submissions[sub.ID] = stored(sub)
	m.order = append(m.order, sub.ID)
	return nil
}

func (m *MemoryStore) UpdateSubmission(_ context.Context, sub *schemas.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.submissions[sub.ID]; !exists {
		return fmt.Errorf("submission %s: %w", sub.ID, ErrNotFound)
	}
	m.submissions[sub.ID] = stored(sub)
	return nil
}

func (m *MemoryStore) GetSubmission(_ context.Context, id string) (*schemas.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	c := stored(&sub)
	return &c, nil
}

func (m *MemoryStore) ListSubmissions(_ context.Context, recordID *int64) ([]schemas.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schemas.Submission
	for _, id := range m.order {
		sub := m.submissions[id]
		if recordID != nil && sub.RecordID != *recordID {
			continue
		}
		out = append(out, stored(&sub))
	}
	return out, nil
}

func (m *MemoryStore) SaveRecords(_ context.Context, records []schemas.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) GetRecord(_ context.Context, id int64) (*schemas.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	return &r, nil
}

func (m *MemoryStore) ListRecords(_ context.Context) ([]schemas.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schemas.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Close() {}
