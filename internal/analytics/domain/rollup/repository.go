package rollup

import (
	"context"
	"time"

	"ridership-pipeline/internal/analytics/domain/period"
)

// Query narrows a record listing. Zero-value fields match everything.
type Query struct {
	EntityID    string
	Variant     period.Variant
	Granularity Granularity
	From        time.Time // inclusive period start bound
	To          time.Time // exclusive period start bound
}

// RecordRepository persists aggregate records keyed by entity + variant +
// time type + time key.
type RecordRepository interface {
	SaveAll(ctx context.Context, records []Record) error
	List(ctx context.Context, query Query) ([]Record, error)
}

// Matches reports whether a record satisfies the query.
func (q Query) Matches(record Record) bool {
	if q.EntityID != "" && record.EntityID != q.EntityID {
		return false
	}
	if q.Variant != "" && record.Variant != q.Variant {
		return false
	}
	if q.Granularity != "" && record.Granularity != q.Granularity {
		return false
	}
	if !q.From.IsZero() && record.PeriodStart.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !record.PeriodStart.Before(q.To) {
		return false
	}
	return true
}
