package storage

import (
	"errors"
	"time"
	"unicode/utf8"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConstraint is returned when a record violates a storage constraint,
// such as a field exceeding its length cap.
var ErrConstraint = errors.New("storage constraint violated")

// Field length caps for inventory records, in characters.
const (
	MaxTimestampLen = 50
	MaxProductLen   = 100
	MaxFactorsLen   = 1000
	MaxStrategyLen  = 500
	MaxLogisticsLen = 500
)

// TimestampLayout is the ISO-8601 layout used for InventoryRecord.Timestamp.
// Fixed width keeps lexicographic order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// InventoryRecord is one completed inventory analysis.
// Factors holds a JSON document; Strategy and Logistics hold free text.
type InventoryRecord struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp" validate:"required,max=50"`
	Product   string `json:"product" validate:"required,max=100"`
	Factors   string `json:"factors" validate:"max=1000"`
	Strategy  string `json:"strategy" validate:"max=500"`
	Logistics string `json:"logistics" validate:"max=500"`
}

// Timestamp formats t for use as an InventoryRecord timestamp.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Fit returns a copy of r with every text field truncated to its cap.
// Insert never truncates, so callers use Fit on untrusted content first.
func (r InventoryRecord) Fit() InventoryRecord {
	r.Timestamp = truncateRunes(r.Timestamp, MaxTimestampLen)
	r.Product = truncateRunes(r.Product, MaxProductLen)
	r.Factors = truncateRunes(r.Factors, MaxFactorsLen)
	r.Strategy = truncateRunes(r.Strategy, MaxStrategyLen)
	r.Logistics = truncateRunes(r.Logistics, MaxLogisticsLen)
	return r
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
