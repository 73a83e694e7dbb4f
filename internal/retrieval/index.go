package retrieval

import (
	"context"
	"fmt"
	"maps"
)

// Match is one nearest-neighbor hit.
type Match struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float32
}

// Index is a text similarity index: it embeds text on the way in and on
// query, and delegates storage to a VectorStore.
type Index struct {
	embedder *Embedder
	store    VectorStore
	source   string
}

// NewIndex creates an Index. source labels every record added through it
// unless the record's metadata carries its own "source".
func NewIndex(embedder *Embedder, store VectorStore, source string) *Index {
	return &Index{embedder: embedder, store: store, source: source}
}

// Add embeds text and stores it under id.
func (x *Index) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return x.store.Insert(ctx, []Record{{
		ID:        id,
		Source:    x.sourceOf(metadata),
		Text:      text,
		Embedding: vec,
		Metadata:  maps.Clone(metadata),
	}})
}

// ReplaceSource embeds chunks and then swaps them in for everything
// stored under metadata's source. The stored chunks are untouched when
// embedding or writing fails.
func (x *Index) ReplaceSource(ctx context.Context, ids, texts []string, metadata map[string]string) error {
	if len(ids) != len(texts) {
		return fmt.Errorf("ids and texts differ in length: %d != %d", len(ids), len(texts))
	}
	vecs, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	return x.store.ReplaceSource(ctx, x.sourceOf(metadata), x.records(ids, texts, vecs, metadata))
}

func (x *Index) records(ids, texts []string, vecs [][]float32, metadata map[string]string) []Record {
	source := x.sourceOf(metadata)
	records := make([]Record, len(texts))
	for i := range texts {
		records[i] = Record{ID: ids[i], Source: source, Text: texts[i], Embedding: vecs[i], Metadata: maps.Clone(metadata)}
	}
	return records
}

func (x *Index) sourceOf(metadata map[string]string) string {
	if s := metadata["source"]; s != "" {
		return s
	}
	return x.source
}

// QueryNearest returns up to k entries most similar to text, best first.
// An empty index answers with no matches and never calls the embedder.
func (x *Index) QueryNearest(ctx context.Context, text string, k int) ([]Match, error) {
	if x.Len(ctx) == 0 {
		return nil, nil
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	scored, err := x.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	out := make([]Match, len(scored))
	for i, s := range scored {
		out[i] = Match{ID: s.ID, Text: s.Text, Metadata: s.Metadata, Score: s.Score}
	}
	return out, nil
}

// Len returns the number of entries, or 0 if the store cannot be read.
func (x *Index) Len(ctx context.Context) int {
	n, err := x.store.Count(ctx)
	if err != nil {
		return 0
	}
	return n
}
