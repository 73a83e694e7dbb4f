package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Default page sizes for Recent and Search.
const (
	DefaultRecentLimit = 5
	DefaultSearchLimit = 3
)

var validate = validator.New()

// checkRecord reports every field of r that breaks a cap as one ErrConstraint.
func checkRecord(r InventoryRecord) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating record: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "max" {
			fields = append(fields, fmt.Sprintf("%s exceeds %s characters", strings.ToLower(fe.Field()), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrConstraint, strings.Join(fields, "; "))
}

// mapConstraint converts SQLite CHECK/NOT NULL failures into ErrConstraint.
func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

const insertRecordSQL = `
	INSERT INTO inventory_records (timestamp, product, factors, strategy, logistics)
	VALUES (?, ?, ?, ?, ?)`

// Insert stores r and returns its assigned id. Over-length fields are
// rejected with ErrConstraint, never truncated.
func (s *Store) Insert(ctx context.Context, r InventoryRecord) (int64, error) {
	if err := checkRecord(r); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, insertRecordSQL, r.Timestamp, r.Product, r.Factors, r.Strategy, r.Logistics)
	if err != nil {
		return 0, fmt.Errorf("inserting record: %w", mapConstraint(err))
	}
	return res.LastInsertId()
}

// InsertMany stores all records in one transaction. Nothing is written if
// any record is rejected.
func (s *Store) InsertMany(ctx context.Context, records []InventoryRecord) error {
	for i, r := range records {
		if err := checkRecord(r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.Product, r.Factors, r.Strategy, r.Logistics); err != nil {
			return fmt.Errorf("inserting record %d: %w", i, mapConstraint(err))
		}
	}
	return tx.Commit()
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id int64) (InventoryRecord, error) {
	var r InventoryRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, product, factors, strategy, logistics
		FROM inventory_records WHERE id = ?`, id,
	).Scan(&r.ID, &r.Timestamp, &r.Product, &r.Factors, &r.Strategy, &r.Logistics)
	if errors.Is(err, sql.ErrNoRows) {
		return InventoryRecord{}, ErrNotFound
	}
	if err != nil {
		return InventoryRecord{}, fmt.Errorf("loading record %d: %w", id, err)
	}
	return r, nil
}

// Recent returns up to limit records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]InventoryRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, product, factors, strategy, logistics
		FROM inventory_records
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent records: %w", err)
	}
	return scanRecords(rows)
}

// Search returns up to limit records whose product contains substr,
// most recent first. substr is matched literally.
func (s *Store) Search(ctx context.Context, substr string, limit int) ([]InventoryRecord, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	pattern := "%" + escapeLike(substr) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, product, factors, strategy, logistics
		FROM inventory_records
		WHERE product LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}
	return scanRecords(rows)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inventory_records").Scan(&n)
	return n, err
}

func scanRecords(rows *sql.Rows) ([]InventoryRecord, error) {
	defer rows.Close()
	var out []InventoryRecord
	for rows.Next() {
		var r InventoryRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Product, &r.Factors, &r.Strategy, &r.Logistics); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
