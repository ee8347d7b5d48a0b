// Package memory provides in-memory repositories for demo wiring and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridership-pipeline/internal/analytics/domain/derive"
)

// DerivedCounterRepository is an in-memory derive.CounterRecordRepository.
type DerivedCounterRepository struct {
	mu   sync.RWMutex
	data map[string]derive.CounterRecord
}

// NewDerivedCounterRepository constructs a repository.
func NewDerivedCounterRepository() *DerivedCounterRepository {
	return &DerivedCounterRepository{data: make(map[string]derive.CounterRecord)}
}

// SaveAll upserts records keyed by observation id.
func (r *DerivedCounterRepository) SaveAll(ctx context.Context, records []derive.CounterRecord) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		r.data[record.ObservationID] = record
	}
	return nil
}

// ListAll returns the full history ordered by device and time.
func (r *DerivedCounterRepository) ListAll(ctx context.Context) ([]derive.CounterRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]derive.CounterRecord, 0, len(r.data))
	for _, record := range r.data {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DeviceID != records[j].DeviceID {
			return records[i].DeviceID < records[j].DeviceID
		}
		return records[i].ObservedAt.Before(records[j].ObservedAt)
	})
	return records, nil
}

// MaxObservedAt returns the derivation watermark.
func (r *DerivedCounterRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max time.Time
	found := false
	for _, record := range r.data {
		if record.ObservedAt.After(max) {
			max = record.ObservedAt
			found = true
		}
	}
	return max, found, nil
}

// DerivedStatusRepository is an in-memory derive.StatusRecordRepository.
type DerivedStatusRepository struct {
	mu   sync.RWMutex
	data map[string]derive.StatusRecord
}

// NewDerivedStatusRepository constructs a repository.
func NewDerivedStatusRepository() *DerivedStatusRepository {
	return &DerivedStatusRepository{data: make(map[string]derive.StatusRecord)}
}

// SaveAll upserts records keyed by observation id.
func (r *DerivedStatusRepository) SaveAll(ctx context.Context, records []derive.StatusRecord) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		r.data[record.ObservationID] = record
	}
	return nil
}

// ListAll returns the full history ordered by device and time.
func (r *DerivedStatusRepository) ListAll(ctx context.Context) ([]derive.StatusRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]derive.StatusRecord, 0, len(r.data))
	for _, record := range r.data {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DeviceID != records[j].DeviceID {
			return records[i].DeviceID < records[j].DeviceID
		}
		return records[i].ObservedAt.Before(records[j].ObservedAt)
	})
	return records, nil
}

// MaxObservedAt returns the derivation watermark.
func (r *DerivedStatusRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max time.Time
	found := false
	for _, record := range r.data {
		if record.ObservedAt.After(max) {
			max = record.ObservedAt
			found = true
		}
	}
	return max, found, nil
}
