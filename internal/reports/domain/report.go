// Package reports describes the monthly ridership report derived from
// persisted aggregates.
package reports

import "time"

// EntityRow summarizes one entity for the report month, pairing the
// full-day totals with the morning peak share.
type EntityRow struct {
	EntityID           string
	EntriesSum         float64
	ExitsSum           float64
	MeanDailyEntries   float64
	MeanDailyExits     float64
	ContributingDays   int
	MorningPeakEntries float64
	MorningPeakExits   float64
}

// DailyRow is one entity-day line in the report detail.
type DailyRow struct {
	EntityID string
	Day      time.Time
	Entries  float64
	Exits    float64
}

// MonthlyReport is a rendered-ready view of one month of aggregates.
type MonthlyReport struct {
	Month       time.Time
	GeneratedAt time.Time
	Rows        []EntityRow
	Daily       []DailyRow
}
