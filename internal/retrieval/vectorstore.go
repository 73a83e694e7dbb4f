package retrieval

import (
	"context"
	"time"
)

// VectorStore stores embedded records and answers nearest-neighbor queries.
// MemoryStore serves a single analysis run; SQLiteStore persists the
// chatbot knowledge base.
type VectorStore interface {
	// Insert adds records. An existing id is replaced.
	Insert(ctx context.Context, records []Record) error

	// Search returns up to topK records by descending cosine similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	// ReplaceSource atomically swaps every record of source for records.
	ReplaceSource(ctx context.Context, source string, records []Record) error

	// Delete removes the record with id.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Record is one embedded piece of text.
type Record struct {
	ID        string
	Source    string
	Text      string
	Embedding []float32
	Metadata  map[string]string
	CreatedAt time.Time
}

// ScoredRecord is a Record with its similarity to the query.
type ScoredRecord struct {
	Record
	Score float32
}
