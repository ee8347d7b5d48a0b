package derive

import (
	"context"
	"errors"
	"sort"
	"sync"

	ingest "ridership-pipeline/internal/ingest/domain"
)

// Scanner fans per-device scans out over a bounded worker pool. Each device's
// scan is sequential; devices are independent of one another.
type Scanner struct {
	workers          int
	maxGapHours      float64
	anomalyThreshold int64
}

// NewScanner constructs a scanner. Defaults: 4 workers, 24h max gap,
// anomaly threshold 10000.
func NewScanner(workers int, maxGapHours float64, anomalyThreshold int64) (*Scanner, error) {
	if workers <= 0 {
		workers = 4
	}
	if maxGapHours <= 0 {
		maxGapHours = 24
	}
	if anomalyThreshold <= 0 {
		anomalyThreshold = 10000
	}
	return &Scanner{
		workers:          workers,
		maxGapHours:      maxGapHours,
		anomalyThreshold: anomalyThreshold,
	}, nil
}

// DeriveCounters derives net interval values for all devices in the input.
// Results are ordered by device then time regardless of worker scheduling.
func (s *Scanner) DeriveCounters(ctx context.Context, observations []ingest.CounterObservation) ([]CounterRecord, error) {
	if s == nil {
		return nil, errors.New("derive: nil scanner")
	}

	byDevice := make(map[string][]ingest.CounterObservation)
	for _, obs := range observations {
		byDevice[obs.DeviceID] = append(byDevice[obs.DeviceID], obs)
	}

	rules := counterRules{maxGapHours: s.maxGapHours, anomalyThreshold: s.anomalyThreshold}
	results, err := runDeviceScans(ctx, s.workers, byDevice, func(obs []ingest.CounterObservation) []CounterRecord {
		return scanCounterDevice(obs, rules)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DeviceID != results[j].DeviceID {
			return results[i].DeviceID < results[j].DeviceID
		}
		return results[i].ObservedAt.Before(results[j].ObservedAt)
	})
	return results, nil
}

// DeriveStatuses derives stale flags for all devices in the input.
func (s *Scanner) DeriveStatuses(ctx context.Context, observations []ingest.StatusObservation) ([]StatusRecord, error) {
	if s == nil {
		return nil, errors.New("derive: nil scanner")
	}

	byDevice := make(map[string][]ingest.StatusObservation)
	for _, obs := range observations {
		byDevice[obs.DeviceID] = append(byDevice[obs.DeviceID], obs)
	}

	results, err := runDeviceScans(ctx, s.workers, byDevice, scanStatusDevice)
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DeviceID != results[j].DeviceID {
			return results[i].DeviceID < results[j].DeviceID
		}
		return results[i].ObservedAt.Before(results[j].ObservedAt)
	})
	return results, nil
}

// runDeviceScans executes scan over each device group on the worker pool and
// concatenates the per-device results.
func runDeviceScans[O any, R any](ctx context.Context, workers int, byDevice map[string][]O, scan func([]O) []R) ([]R, error) {
	if len(byDevice) == 0 {
		return nil, nil
	}
	if workers > len(byDevice) {
		workers = len(byDevice)
	}

	groups := make(chan []O, len(byDevice))
	for _, observations := range byDevice {
		groups <- observations
	}
	close(groups)

	var (
		mu      sync.Mutex
		results []R
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groups {
				if ctx.Err() != nil {
					return
				}
				records := scan(group)
				mu.Lock()
				results = append(results, records...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
