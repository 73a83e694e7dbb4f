package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore keeps vectors in the doc_chunks table and searches them by
// brute-force cosine similarity.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a database whose doc_chunks table already exists
// (created by storage migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert adds or replaces records in one transaction.
func (s *SQLiteStore) Insert(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTx(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceSource swaps every record of source for records in one
// transaction. On error the previous records are kept.
func (s *SQLiteStore) ReplaceSource(ctx context.Context, source string, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM doc_chunks WHERE source = ?", source); err != nil {
		return fmt.Errorf("deleting source %s: %w", source, err)
	}
	if err := insertTx(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTx(ctx context.Context, tx *sql.Tx, records []Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO doc_chunks (id, source, text_chunk, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", r.ID, err)
		}
		if r.Metadata == nil {
			meta = []byte("{}")
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Source, r.Text, encodeFloat32s(r.Embedding), string(meta), createdAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}
	return nil
}

// Search scans id and embedding columns first, then loads full rows for
// the winners only.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]ScoredRecord, error) {
	qn := norm(vector)
	if qn == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM doc_chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	top := newTopK(k)
	var buf []float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		top.offer(id, cosine(vector, buf, qn))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	// The pool holds a single connection; release it before the next query.
	rows.Close()

	winners := top.sorted()
	if len(winners) == 0 {
		return nil, nil
	}
	scores := make(map[string]float32, len(winners))
	ids := make([]string, len(winners))
	for i, w := range winners {
		ids[i] = w.ID
		scores[w.ID] = w.Score
	}

	records, err := s.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredRecord, len(records))
	for i, r := range records {
		out[i] = ScoredRecord{Record: r, Score: scores[r.ID]}
	}
	sortByScore(out)
	return out, nil
}

// GetByIDs loads records by id in no particular order.
func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, text_chunk, embedding, metadata, created_at
		FROM doc_chunks WHERE id IN (?`+strings.Repeat(",?", len(ids)-1)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying by ids: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var blob []byte
		var meta, createdAt string
		if err := rows.Scan(&r.ID, &r.Source, &r.Text, &blob, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if r.Embedding, err = decodeFloat32sInto(nil, blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes one record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM doc_chunks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s not found", id)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM doc_chunks").Scan(&n)
	return n, err
}
