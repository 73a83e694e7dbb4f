package retrieval

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Compile-time check that MemoryStore implements VectorStore.
var _ VectorStore = (*MemoryStore)(nil)

// MemoryStore keeps records in process memory. It backs the similarity
// index of a single analysis run.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Insert adds or replaces records.
func (m *MemoryStore) Insert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(records)
	return nil
}

func (m *MemoryStore) insertLocked(records []Record) {
	for _, r := range records {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		r.Embedding = append([]float32(nil), r.Embedding...)
		r.Metadata = maps.Clone(r.Metadata)
		if i, ok := m.byID[r.ID]; ok {
			m.records[i] = r
			continue
		}
		m.byID[r.ID] = len(m.records)
		m.records = append(m.records, r)
	}
}

// ReplaceSource drops every record of source and inserts records.
func (m *MemoryStore) ReplaceSource(_ context.Context, source string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if r.Source != source {
			kept = append(kept, r)
		}
	}
	m.records = kept
	m.byID = make(map[string]int, len(kept))
	for i, r := range kept {
		m.byID[r.ID] = i
	}
	m.insertLocked(records)
	return nil
}

// Search scans all records.
func (m *MemoryStore) Search(_ context.Context, vector []float32, k int) ([]ScoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qn := norm(vector)
	if qn == 0 {
		return nil, nil
	}
	top := newTopK(k)
	for _, r := range m.records {
		top.offer(r.ID, cosine(vector, r.Embedding, qn))
	}
	var out []ScoredRecord
	for _, s := range top.sorted() {
		rec := m.records[m.byID[s.ID]]
		rec.Metadata = maps.Clone(rec.Metadata)
		out = append(out, ScoredRecord{Record: rec, Score: s.Score})
	}
	return out, nil
}

// Delete removes the record with id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	last := len(m.records) - 1
	m.records[i] = m.records[last]
	m.byID[m.records[i].ID] = i
	m.records = m.records[:last]
	delete(m.byID, id)
	return nil
}

// Count returns the number of records.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
