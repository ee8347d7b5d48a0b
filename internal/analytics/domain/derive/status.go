package derive

import (
	"context"
	"sort"
	"time"

	ingest "ridership-pipeline/internal/ingest/domain"
)

// StatusRecord is the derived row for one dock-station snapshot. Stale marks
// captures whose reported time did not advance since the previous capture:
// the feed delivered no new information for the device.
type StatusRecord struct {
	ObservationID  string
	DeviceID       string
	ObservedAt     time.Time
	ReportedAt     time.Time
	GapHours       float64
	BikesAvailable int
	DocksAvailable int
	Stale          bool
}

// StatusRecordRepository persists derived dock-station records.
type StatusRecordRepository interface {
	SaveAll(ctx context.Context, records []StatusRecord) error
	ListAll(ctx context.Context) ([]StatusRecord, error)
	MaxObservedAt(ctx context.Context) (time.Time, bool, error)
}

// scanStatusDevice walks one device's snapshots in chronological order.
func scanStatusDevice(observations []ingest.StatusObservation) []StatusRecord {
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].ObservedAt.Before(observations[j].ObservedAt)
	})

	records := make([]StatusRecord, 0, len(observations))
	for i, obs := range observations {
		record := StatusRecord{
			ObservationID:  obs.ID,
			DeviceID:       obs.DeviceID,
			ObservedAt:     obs.ObservedAt,
			ReportedAt:     obs.ReportedAt,
			BikesAvailable: obs.BikesAvailable,
			DocksAvailable: obs.DocksAvailable,
		}

		if i > 0 {
			prev := observations[i-1]
			record.GapHours = obs.ObservedAt.Sub(prev.ObservedAt).Hours()
			record.Stale = !obs.ReportedAt.After(prev.ReportedAt)
		}

		records = append(records, record)
	}
	return records
}

// StaleFraction computes the per-device share of stale records.
func StaleFraction(records []StatusRecord) map[string]float64 {
	total := make(map[string]int)
	stale := make(map[string]int)
	for _, record := range records {
		total[record.DeviceID]++
		if record.Stale {
			stale[record.DeviceID]++
		}
	}

	fractions := make(map[string]float64, len(total))
	for device, count := range total {
		fractions[device] = float64(stale[device]) / float64(count)
	}
	return fractions
}

// TrustedDevices returns the devices whose stale fraction is strictly below
// the threshold. A device exactly at the threshold is excluded.
func TrustedDevices(records []StatusRecord, maxStaleFraction float64) map[string]bool {
	trusted := make(map[string]bool)
	for device, fraction := range StaleFraction(records) {
		if fraction < maxStaleFraction {
			trusted[device] = true
		}
	}
	return trusted
}
