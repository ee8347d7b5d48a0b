package memory

import (
	"context"
	"sort"
	"sync"

	"ridership-pipeline/internal/analytics/domain/period"
	"ridership-pipeline/internal/analytics/domain/rollup"
)

// AggregateRepository is an in-memory rollup.RecordRepository.
type AggregateRepository struct {
	mu   sync.RWMutex
	data map[rollup.AggregateID]rollup.Record
}

// NewAggregateRepository constructs a repository.
func NewAggregateRepository() *AggregateRepository {
	return &AggregateRepository{data: make(map[rollup.AggregateID]rollup.Record)}
}

// SaveAll upserts records keyed by their deterministic id.
func (r *AggregateRepository) SaveAll(ctx context.Context, records []rollup.Record) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		id, err := record.ID()
		if err != nil {
			return err
		}
		r.data[id] = record
	}
	return nil
}

// List returns records matching the query ordered by entity, variant,
// granularity and period start.
func (r *AggregateRepository) List(ctx context.Context, query rollup.Query) ([]rollup.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []rollup.Record
	for _, record := range r.data {
		if query.Matches(record) {
			records = append(records, record)
		}
	}

	granularityRank := make(map[rollup.Granularity]int, 3)
	for i, g := range rollup.Granularities() {
		granularityRank[g] = i
	}
	variantRank := make(map[period.Variant]int, 5)
	for i, v := range period.Variants() {
		variantRank[v] = i
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Variant != b.Variant {
			return variantRank[a.Variant] < variantRank[b.Variant]
		}
		if a.Granularity != b.Granularity {
			return granularityRank[a.Granularity] < granularityRank[b.Granularity]
		}
		return a.PeriodStart.Before(b.PeriodStart)
	})
	return records, nil
}
