package ingest

import (
	"context"
	"time"
)

// Kind distinguishes the two observation families handled by the pipeline.
type Kind string

const (
	// KindCounter marks cumulative fare-gate register readings.
	KindCounter Kind = "COUNTER"
	// KindStatus marks point-in-time dock-station snapshots.
	KindStatus Kind = "STATUS"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	switch k {
	case KindCounter, KindStatus:
		return true
	default:
		return false
	}
}

// idTimeLayout is the timestamp component of a composite observation id.
const idTimeLayout = "20060102150405"

// ObservationID builds the composite identity deviceID + observedAt.
// A device reports at most once per timestamp, so the pair is collision-free.
func ObservationID(deviceID string, observedAt time.Time) string {
	return deviceID + observedAt.Format(idTimeLayout)
}

// CounterObservation is one cumulative fare-gate register reading.
// Entries and Exits are monotone counters maintained by the device itself;
// net values per interval are derived downstream.
type CounterObservation struct {
	ID          string
	DeviceID    string
	ControlArea string
	RemoteUnit  string
	Channel     string
	Station     string
	LineNames   string
	Division    string
	Description string
	ObservedAt  time.Time
	Entries     int64
	Exits       int64
	SourceBatch string
}

// StatusObservation is one dock-station snapshot. ObservedAt is the capture
// time of the feed poll; ReportedAt is the station's own last-report time,
// which lags the capture when no new information has arrived.
type StatusObservation struct {
	ID              string
	DeviceID        string
	ObservedAt      time.Time
	ReportedAt      time.Time
	BikesAvailable  int
	DocksAvailable  int
	BikesDisabled   int
	DocksDisabled   int
	EBikesAvailable int
	IsInstalled     bool
	IsRenting       bool
	IsReturning     bool
	SourceBatch     string
}

// CounterObservationRepository persists fare-gate readings.
type CounterObservationRepository interface {
	// InsertIfAbsent stores observations keyed by composite id, skipping
	// rows already present. Returns the number of newly inserted rows.
	InsertIfAbsent(ctx context.Context, observations []CounterObservation) (int, error)
	// MaxObservedAt returns the ingestion watermark, false when the store is empty.
	MaxObservedAt(ctx context.Context) (time.Time, bool, error)
	// ListForDerivation returns observations strictly after the boundary plus,
	// per device, the single latest observation at or before it (the scan seed).
	// A zero boundary returns everything. Rows are ordered by device then time.
	ListForDerivation(ctx context.Context, after time.Time) ([]CounterObservation, error)
}

// StatusObservationRepository persists dock-station snapshots.
type StatusObservationRepository interface {
	InsertIfAbsent(ctx context.Context, observations []StatusObservation) (int, error)
	MaxObservedAt(ctx context.Context) (time.Time, bool, error)
	ListForDerivation(ctx context.Context, after time.Time) ([]StatusObservation, error)
}
