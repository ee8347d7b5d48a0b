// Package rollup folds derived ridership samples into daily, monthly and
// yearly aggregates per entity and period variant.
package rollup

import (
	"fmt"
	"time"

	"ridership-pipeline/internal/analytics/domain/period"
)

// Granularity is the time resolution of a ridership aggregate.
type Granularity string

const (
	GranularityDay   Granularity = "DAY"
	GranularityMonth Granularity = "MONTH"
	GranularityYear  Granularity = "YEAR"
)

// IsValid checks if the granularity is one of the supported values.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityDay, GranularityMonth, GranularityYear:
		return true
	default:
		return false
	}
}

// Granularities returns the supported granularities in canonical order.
func Granularities() []Granularity {
	return []Granularity{GranularityDay, GranularityMonth, GranularityYear}
}

// TimeType is the business naming for granularity.
// It is used as part of the unique key: entityId + variant + timeType + timeKey.
type TimeType = Granularity

// TimeKey is the persisted representation of a period boundary.
type TimeKey string

// NewTimeKey builds a TimeKey for the given time type and period start.
func NewTimeKey(timeType TimeType, periodStart time.Time) (TimeKey, error) {
	if !timeType.IsValid() {
		return "", ErrInvalidGranularity
	}
	if periodStart.IsZero() {
		return "", ErrInvalidPeriodStart
	}

	layout, err := timeKeyLayout(timeType)
	if err != nil {
		return "", err
	}
	return TimeKey(periodStart.Format(layout)), nil
}

// String returns the raw string for storage.
func (k TimeKey) String() string { return string(k) }

func timeKeyLayout(timeType TimeType) (string, error) {
	switch timeType {
	case GranularityDay:
		return "20060102", nil
	case GranularityMonth:
		return "200601", nil
	case GranularityYear:
		return "2006", nil
	default:
		return "", ErrInvalidGranularity
	}
}

// AggregateID is the identity of a ridership aggregate.
type AggregateID string

// BuildAggregateID creates a deterministic id for entity + variant +
// granularity + period start.
func BuildAggregateID(entityID string, variant period.Variant, granularity Granularity, periodStart time.Time) (AggregateID, error) {
	if entityID == "" {
		return "", ErrEmptyEntityID
	}
	if !variant.IsValid() {
		return "", ErrInvalidVariant
	}
	key, err := NewTimeKey(TimeType(granularity), periodStart)
	if err != nil {
		return "", err
	}
	return AggregateID(fmt.Sprintf("%s:%s:%s:%s", entityID, variant, granularity, key)), nil
}

// Fact is the immutable statistical result of one aggregate period.
// MeanDaily values equal the sums at day granularity and the per-contributing-day
// averages above it.
type Fact struct {
	EntriesSum       float64
	ExitsSum         float64
	MeanDailyEntries float64
	MeanDailyExits   float64
	ObservationCount int
	ContributingDays int
}

// Validate ensures basic domain invariants for a fact.
func (f Fact) Validate() error {
	if f.EntriesSum < 0 || f.ExitsSum < 0 {
		return ErrNegativeFactValue
	}
	if f.ObservationCount < 0 || f.ContributingDays < 0 {
		return ErrNegativeFactValue
	}
	return nil
}

// Record is one persisted aggregate row.
// Invariants:
// 1) Only DAY/MONTH/YEAR granularity is allowed.
// 2) The same input always produces the same record set, byte for byte.
// Note: The persistence unique key is entityId + variant + timeType + timeKey.
type Record struct {
	EntityID    string
	Variant     period.Variant
	Granularity Granularity
	PeriodStart time.Time
	Fact        Fact
}

// ID returns the deterministic identity of the record.
func (r Record) ID() (AggregateID, error) {
	return BuildAggregateID(r.EntityID, r.Variant, r.Granularity, r.PeriodStart)
}

// TimeKey returns the storage-friendly time key for the record period.
func (r Record) TimeKey() (TimeKey, error) {
	return NewTimeKey(TimeType(r.Granularity), r.PeriodStart)
}

// Sample is one derived measurement feeding the rollup. Counter samples
// carry net entries and exits; dock-station samples carry availability
// counts in the same two slots.
type Sample struct {
	EntityID   string
	ObservedAt time.Time
	Entries    float64
	Exits      float64
}
