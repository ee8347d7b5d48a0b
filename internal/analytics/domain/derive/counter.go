// Package derive turns ordered per-device observation streams into net
// interval values (counter mode) and stale flags (status mode).
package derive

import (
	"context"
	"sort"
	"time"

	ingest "ridership-pipeline/internal/ingest/domain"
)

// CounterRecord is the derived row for one fare-gate reading. NetEntries and
// NetExits are nil when no valid predecessor exists or the interval was
// rejected as anomalous: nil means unknown, never zero activity.
type CounterRecord struct {
	ObservationID string
	DeviceID      string
	RemoteUnit    string
	ObservedAt    time.Time
	GapHours      float64
	NetEntries    *int64
	NetExits      *int64
}

// CounterRecordRepository persists derived fare-gate records.
type CounterRecordRepository interface {
	SaveAll(ctx context.Context, records []CounterRecord) error
	ListAll(ctx context.Context) ([]CounterRecord, error)
	MaxObservedAt(ctx context.Context) (time.Time, bool, error)
}

// counterRules carries the acceptance thresholds for one scan.
type counterRules struct {
	maxGapHours      float64
	anomalyThreshold int64
}

// scanCounterDevice walks one device's observations in chronological order.
// The observations slice must belong to a single device.
func scanCounterDevice(observations []ingest.CounterObservation, rules counterRules) []CounterRecord {
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].ObservedAt.Before(observations[j].ObservedAt)
	})

	records := make([]CounterRecord, 0, len(observations))
	for i, obs := range observations {
		record := CounterRecord{
			ObservationID: obs.ID,
			DeviceID:      obs.DeviceID,
			RemoteUnit:    obs.RemoteUnit,
			ObservedAt:    obs.ObservedAt,
		}

		if i > 0 {
			prev := observations[i-1]
			record.GapHours = obs.ObservedAt.Sub(prev.ObservedAt).Hours()

			netEntries := absDiff(obs.Entries, prev.Entries)
			netExits := absDiff(obs.Exits, prev.Exits)
			if record.GapHours <= rules.maxGapHours {
				// register resets and device swaps show up as huge jumps;
				// each direction is judged on its own
				if netEntries < rules.anomalyThreshold {
					record.NetEntries = &netEntries
				}
				if netExits < rules.anomalyThreshold {
					record.NetExits = &netExits
				}
			}
		}

		records = append(records, record)
	}
	return records
}

func absDiff(current, previous int64) int64 {
	diff := current - previous
	if diff < 0 {
		return -diff
	}
	return diff
}
