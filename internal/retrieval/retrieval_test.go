package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/kalambet/flowerdesk/internal/storage"
)

// mockBackend embeds text as a bag of characters folded into dim buckets,
// so texts sharing characters score higher.
type mockBackend struct {
	embedFn func(ctx context.Context, model, text string) ([]float32, error)
	calls   atomic.Int32
}

func (m *mockBackend) Embed(ctx context.Context, model, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, model, text)
	}
	return bagOfRunes(text), nil
}

func bagOfRunes(text string) []float32 {
	v := make([]float32, 64)
	for _, r := range text {
		v[int(r)%64]++
	}
	return v
}

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewSQLiteStore(st.DB())
}

func stores(t *testing.T) map[string]VectorStore {
	return map[string]VectorStore{
		"memory": NewMemoryStore(),
		"sqlite": openTestDB(t),
	}
}

func TestStoresInsertAndSearch(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			recs := []Record{
				{ID: "a", Source: "s", Text: "玫瑰", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"task": "天气"}},
				{ID: "b", Source: "s", Text: "百合", Embedding: []float32{0, 1, 0}},
				{ID: "c", Source: "s", Text: "兰花", Embedding: []float32{0.9, 0.1, 0}},
			}
			if err := s.Insert(ctx, recs); err != nil {
				t.Fatalf("Insert: %v", err)
			}

			got, err := s.Search(ctx, []float32{1, 0, 0}, 2)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len = %d, want 2", len(got))
			}
			if got[0].ID != "a" || got[1].ID != "c" {
				t.Errorf("order = %s,%s want a,c", got[0].ID, got[1].ID)
			}
			if got[0].Score < 0.99 {
				t.Errorf("score = %f, want ~1", got[0].Score)
			}
			if got[0].Metadata["task"] != "天气" {
				t.Errorf("metadata = %v", got[0].Metadata)
			}

			n, _ := s.Count(ctx)
			if n != 3 {
				t.Errorf("Count = %d, want 3", n)
			}
			if err := s.Delete(ctx, "b"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "b"); err == nil {
				t.Error("second Delete should fail")
			}
			n, _ = s.Count(ctx)
			if n != 2 {
				t.Errorf("Count after delete = %d, want 2", n)
			}
		})
	}
}

func TestStoresReplaceExistingID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s.Insert(ctx, []Record{{ID: "x", Text: "旧", Embedding: []float32{1, 0}}})
			s.Insert(ctx, []Record{{ID: "x", Text: "新", Embedding: []float32{1, 0}}})
			got, err := s.Search(ctx, []float32{1, 0}, 5)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != 1 || got[0].Text != "新" {
				t.Errorf("got %+v, want single replaced record", got)
			}
		})
	}
}

func TestStoresZeroQuery(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s.Insert(context.Background(), []Record{{ID: "x", Embedding: []float32{1}}})
			got, err := s.Search(context.Background(), []float32{0}, 3)
			if err != nil || got != nil {
				t.Errorf("got %v, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestSQLiteStoreReplaceSourceWithNothing(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	s.Insert(ctx, []Record{
		{ID: "1", Source: "a.txt", Embedding: []float32{1}},
		{ID: "2", Source: "a.txt", Embedding: []float32{1}},
		{ID: "3", Source: "b.txt", Embedding: []float32{1}},
	})
	if err := s.ReplaceSource(ctx, "a.txt", nil); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestDecodeRejectsCorruptBlob(t *testing.T) {
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for 3-byte blob")
	}
	v, err := decodeFloat32sInto(nil, encodeFloat32s([]float32{1.5, -2}))
	if err != nil || v[0] != 1.5 || v[1] != -2 {
		t.Errorf("round trip = %v, %v", v, err)
	}
}

func TestEmbedBatchKeepsOrder(t *testing.T) {
	m := &mockBackend{embedFn: func(_ context.Context, _, text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	}}
	e := NewEmbedder(m, "m")

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vecs[%d] = %v, want %d", i, v, len(texts[i]))
		}
	}
	if vecs, err := e.EmbedBatch(context.Background(), nil); vecs != nil || err != nil {
		t.Errorf("empty batch = %v, %v", vecs, err)
	}
}

func TestEmbedBatchPropagatesError(t *testing.T) {
	m := &mockBackend{embedFn: func(_ context.Context, _, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("connection refused")
		}
		return []float32{1}, nil
	}}
	if _, err := NewEmbedder(m, "m").EmbedBatch(context.Background(), []string{"ok", "bad"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestIndexAddAndQuery(t *testing.T) {
	m := &mockBackend{}
	idx := NewIndex(NewEmbedder(m, "m"), NewMemoryStore(), "run")
	ctx := context.Background()

	got, err := idx.QueryNearest(ctx, "玫瑰", 5)
	if err != nil || got != nil {
		t.Fatalf("empty index = %v, %v", got, err)
	}
	if m.calls.Load() != 0 {
		t.Errorf("empty index called embedder %d times", m.calls.Load())
	}

	idx.Add(ctx, "task-1", "玫瑰天气分析", map[string]string{"task": "天气与节假日影响分析"})
	idx.Add(ctx, "task-2", "百合社交趋势", map[string]string{"task": "社交媒体趋势分析"})

	got, err = idx.QueryNearest(ctx, "玫瑰 天气", 5)
	if err != nil {
		t.Fatalf("QueryNearest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Metadata["task"] != "天气与节假日影响分析" {
		t.Errorf("best match = %+v", got[0])
	}
	if idx.Len(ctx) != 2 {
		t.Errorf("Len = %d, want 2", idx.Len(ctx))
	}
}

func TestIndexAddEmbedFailure(t *testing.T) {
	m := &mockBackend{embedFn: func(context.Context, string, string) ([]float32, error) {
		return nil, fmt.Errorf("backend down")
	}}
	idx := NewIndex(NewEmbedder(m, "m"), NewMemoryStore(), "run")
	if err := idx.Add(context.Background(), "1", "x", nil); err == nil {
		t.Fatal("expected embed error")
	}
	if idx.Len(context.Background()) != 0 {
		t.Error("failed Add must not store anything")
	}
}

func TestIndexReplaceSource(t *testing.T) {
	idx := NewIndex(NewEmbedder(&mockBackend{}, "m"), openTestDB(t), "doc.txt")
	ctx := context.Background()
	if err := idx.ReplaceSource(ctx, []string{"1"}, []string{"a", "b"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := idx.ReplaceSource(ctx, []string{"1", "2"}, []string{"送花时间", "退款流程"}, map[string]string{"title": "faq"}); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	got, err := idx.QueryNearest(ctx, "退款", 1)
	if err != nil {
		t.Fatalf("QueryNearest: %v", err)
	}
	if len(got) != 1 || got[0].Text != "退款流程" || got[0].Metadata["title"] != "faq" {
		t.Errorf("got %+v", got)
	}
}

func TestChunk(t *testing.T) {
	text := strings.Repeat("鲜花配送服务说明。", 60)
	chunks := Chunk(text, 200)
	if len(chunks) < 2 {
		t.Fatalf("len = %d, want several chunks", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		n := utf8.RuneCountInString(c)
		if n > 200 {
			t.Errorf("chunk has %d runes, want <= 200", n)
		}
		if !strings.HasSuffix(c, "。") {
			t.Errorf("chunk does not end at sentence boundary: %q", c[len(c)-6:])
		}
		total += n
	}
	if total != utf8.RuneCountInString(text) {
		t.Errorf("chunks cover %d runes, want %d", total, utf8.RuneCountInString(text))
	}

	if got := Chunk("   ", 10); len(got) != 0 {
		t.Errorf("blank text chunks = %v", got)
	}
	if got := Chunk("短文本", 0); len(got) != 1 || got[0] != "短文本" {
		t.Errorf("default size chunks = %v", got)
	}
}

func TestIndexMetadataSourceReplacesDocument(t *testing.T) {
	store := openTestDB(t)
	idx := NewIndex(NewEmbedder(&mockBackend{}, "m"), store, "docs")
	ctx := context.Background()

	if err := idx.ReplaceSource(ctx, []string{"a1", "a2"}, []string{"玫瑰养护", "百合养护"}, map[string]string{"source": "care.md"}); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if err := idx.Add(ctx, "b1", "配送时间", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := store.ReplaceSource(ctx, "care.md", nil); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if got := idx.Len(ctx); got != 1 {
		t.Errorf("Len = %d, want 1 record left under the index source", got)
	}
	if err := store.ReplaceSource(ctx, "docs", nil); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if got := idx.Len(ctx); got != 0 {
		t.Errorf("Len = %d after clearing the index source, want 0", got)
	}
}

func TestStoresReplaceSource(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s.Insert(ctx, []Record{
				{ID: "a1", Source: "a.txt", Embedding: []float32{1, 0}},
				{ID: "a2", Source: "a.txt", Embedding: []float32{1, 0}},
				{ID: "b1", Source: "b.txt", Embedding: []float32{0, 1}},
			})
			err := s.ReplaceSource(ctx, "a.txt", []Record{{ID: "a9", Source: "a.txt", Text: "新版", Embedding: []float32{1, 0}}})
			if err != nil {
				t.Fatalf("ReplaceSource: %v", err)
			}
			if n, _ := s.Count(ctx); n != 2 {
				t.Errorf("Count = %d, want 2", n)
			}
			got, _ := s.Search(ctx, []float32{1, 0}, 1)
			if len(got) != 1 || got[0].ID != "a9" {
				t.Errorf("Search = %+v, want a9 first", got)
			}
		})
	}
}

func TestIndexReplaceSourceKeepsChunksOnEmbedFailure(t *testing.T) {
	var fail atomic.Bool
	m := &mockBackend{embedFn: func(_ context.Context, _, text string) ([]float32, error) {
		if fail.Load() {
			return nil, errors.New("rate limited")
		}
		return bagOfRunes(text), nil
	}}
	store := openTestDB(t)
	idx := NewIndex(NewEmbedder(m, "m"), store, "docs")
	ctx := context.Background()
	meta := map[string]string{"source": "faq.txt"}

	if err := idx.ReplaceSource(ctx, []string{"f1", "f2"}, []string{"营业时间", "配送范围"}, meta); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	fail.Store(true)
	if err := idx.ReplaceSource(ctx, []string{"f1"}, []string{"新的营业时间"}, meta); err == nil {
		t.Fatal("expected embed error")
	}
	if got := idx.Len(ctx); got != 2 {
		t.Errorf("Len after failed replace = %d, want 2", got)
	}

	fail.Store(false)
	if err := idx.ReplaceSource(ctx, []string{"f1"}, []string{"新的营业时间"}, meta); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if got := idx.Len(ctx); got != 1 {
		t.Errorf("Len after replace = %d, want 1", got)
	}
}
