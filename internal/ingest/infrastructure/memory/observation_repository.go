package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ingest "ridership-pipeline/internal/ingest/domain"
)

// CounterObservationRepository is an in-memory store for demo/testing.
type CounterObservationRepository struct {
	mu   sync.RWMutex
	data map[string]ingest.CounterObservation
}

// NewCounterObservationRepository constructs a repository.
func NewCounterObservationRepository() *CounterObservationRepository {
	return &CounterObservationRepository{data: make(map[string]ingest.CounterObservation)}
}

// InsertIfAbsent stores observations not already present.
func (r *CounterObservationRepository) InsertIfAbsent(ctx context.Context, observations []ingest.CounterObservation) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, obs := range observations {
		if _, ok := r.data[obs.ID]; ok {
			continue
		}
		r.data[obs.ID] = obs
		inserted++
	}
	return inserted, nil
}

// MaxObservedAt returns the ingestion watermark.
func (r *CounterObservationRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max time.Time
	for _, obs := range r.data {
		if obs.ObservedAt.After(max) {
			max = obs.ObservedAt
		}
	}
	return max, !max.IsZero(), nil
}

// ListForDerivation returns rows after the boundary plus one seed row per device.
func (r *CounterObservationRepository) ListForDerivation(ctx context.Context, after time.Time) ([]ingest.CounterObservation, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	seeds := make(map[string]ingest.CounterObservation)
	var result []ingest.CounterObservation
	for _, obs := range r.data {
		if obs.ObservedAt.After(after) {
			result = append(result, obs)
			continue
		}
		if seed, ok := seeds[obs.DeviceID]; !ok || obs.ObservedAt.After(seed.ObservedAt) {
			seeds[obs.DeviceID] = obs
		}
	}
	for _, seed := range seeds {
		result = append(result, seed)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DeviceID != result[j].DeviceID {
			return result[i].DeviceID < result[j].DeviceID
		}
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}

// StatusObservationRepository is an in-memory store for demo/testing.
type StatusObservationRepository struct {
	mu   sync.RWMutex
	data map[string]ingest.StatusObservation
}

// NewStatusObservationRepository constructs a repository.
func NewStatusObservationRepository() *StatusObservationRepository {
	return &StatusObservationRepository{data: make(map[string]ingest.StatusObservation)}
}

// InsertIfAbsent stores observations not already present.
func (r *StatusObservationRepository) InsertIfAbsent(ctx context.Context, observations []ingest.StatusObservation) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, obs := range observations {
		if _, ok := r.data[obs.ID]; ok {
			continue
		}
		r.data[obs.ID] = obs
		inserted++
	}
	return inserted, nil
}

// MaxObservedAt returns the ingestion watermark.
func (r *StatusObservationRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max time.Time
	for _, obs := range r.data {
		if obs.ObservedAt.After(max) {
			max = obs.ObservedAt
		}
	}
	return max, !max.IsZero(), nil
}

// ListForDerivation returns rows after the boundary plus one seed row per device.
func (r *StatusObservationRepository) ListForDerivation(ctx context.Context, after time.Time) ([]ingest.StatusObservation, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	seeds := make(map[string]ingest.StatusObservation)
	var result []ingest.StatusObservation
	for _, obs := range r.data {
		if obs.ObservedAt.After(after) {
			result = append(result, obs)
			continue
		}
		if seed, ok := seeds[obs.DeviceID]; !ok || obs.ObservedAt.After(seed.ObservedAt) {
			seeds[obs.DeviceID] = obs
		}
	}
	for _, seed := range seeds {
		result = append(result, seed)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DeviceID != result[j].DeviceID {
			return result[i].DeviceID < result[j].DeviceID
		}
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}
