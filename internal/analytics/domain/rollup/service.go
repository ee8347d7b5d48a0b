package rollup

import (
	"sort"
	"time"

	"ridership-pipeline/internal/analytics/domain/period"
)

// Service rolls derived samples up into DAY, MONTH and YEAR aggregates.
// The rollup is a pure function of its input: re-running it over the same
// samples yields an identical, deterministically ordered record set.
type Service struct {
	classifier   *period.Classifier
	minMonthDays int
}

// NewService constructs a Service. minMonthDays is the number of contributing
// days a month needs before its aggregate is emitted; a non-positive value
// defaults to 10. Years carry no such floor.
func NewService(classifier *period.Classifier, minMonthDays int) (*Service, error) {
	if classifier == nil {
		return nil, ErrNilClassifier
	}
	if minMonthDays <= 0 {
		minMonthDays = 10
	}
	return &Service{
		classifier:   classifier,
		minMonthDays: minMonthDays,
	}, nil
}

type dayCell struct {
	entries float64
	exits   float64
	count   int
}

type dayKey struct {
	entityID string
	day      time.Time
}

// Rollup computes the full aggregate set for the given samples across every
// period variant.
func (s *Service) Rollup(samples []Sample) ([]Record, error) {
	var records []Record
	for _, variant := range period.Variants() {
		days := make(map[dayKey]*dayCell)
		for _, sample := range samples {
			if sample.EntityID == "" {
				return nil, ErrEmptyEntityID
			}
			if !s.classifier.Matches(variant, sample.ObservedAt) {
				continue
			}
			key := dayKey{entityID: sample.EntityID, day: s.classifier.OperationalDate(sample.ObservedAt)}
			cell := days[key]
			if cell == nil {
				cell = &dayCell{}
				days[key] = cell
			}
			cell.entries += sample.Entries
			cell.exits += sample.Exits
			cell.count++
		}

		records = append(records, s.buildDaily(variant, days)...)
		records = append(records, s.buildSpans(variant, days)...)
	}

	sortRecords(records)
	return records, nil
}

func (s *Service) buildDaily(variant period.Variant, days map[dayKey]*dayCell) []Record {
	records := make([]Record, 0, len(days))
	for key, cell := range days {
		records = append(records, Record{
			EntityID:    key.entityID,
			Variant:     variant,
			Granularity: GranularityDay,
			PeriodStart: key.day,
			Fact: Fact{
				EntriesSum:       cell.entries,
				ExitsSum:         cell.exits,
				MeanDailyEntries: cell.entries,
				MeanDailyExits:   cell.exits,
				ObservationCount: cell.count,
				ContributingDays: 1,
			},
		})
	}
	return records
}

type spanKey struct {
	entityID string
	start    time.Time
}

// buildSpans folds the daily cells into month and year aggregates. A month
// with fewer than minMonthDays contributing days is dropped as too sparse to
// represent a typical day.
func (s *Service) buildSpans(variant period.Variant, days map[dayKey]*dayCell) []Record {
	months := make(map[spanKey]*dayCell)
	monthDays := make(map[spanKey]int)
	years := make(map[spanKey]*dayCell)
	yearDays := make(map[spanKey]int)

	for key, cell := range days {
		monthStart := time.Date(key.day.Year(), key.day.Month(), 1, 0, 0, 0, 0, key.day.Location())
		yearStart := time.Date(key.day.Year(), 1, 1, 0, 0, 0, 0, key.day.Location())

		accumulate(months, monthDays, spanKey{entityID: key.entityID, start: monthStart}, cell)
		accumulate(years, yearDays, spanKey{entityID: key.entityID, start: yearStart}, cell)
	}

	var records []Record
	for key, cell := range months {
		if monthDays[key] < s.minMonthDays {
			continue
		}
		records = append(records, spanRecord(key, variant, GranularityMonth, cell, monthDays[key]))
	}
	for key, cell := range years {
		records = append(records, spanRecord(key, variant, GranularityYear, cell, yearDays[key]))
	}
	return records
}

func accumulate(cells map[spanKey]*dayCell, dayCounts map[spanKey]int, key spanKey, day *dayCell) {
	cell := cells[key]
	if cell == nil {
		cell = &dayCell{}
		cells[key] = cell
	}
	cell.entries += day.entries
	cell.exits += day.exits
	cell.count += day.count
	dayCounts[key]++
}

func spanRecord(key spanKey, variant period.Variant, granularity Granularity, cell *dayCell, contributingDays int) Record {
	return Record{
		EntityID:    key.entityID,
		Variant:     variant,
		Granularity: granularity,
		PeriodStart: key.start,
		Fact: Fact{
			EntriesSum:       cell.entries,
			ExitsSum:         cell.exits,
			MeanDailyEntries: cell.entries / float64(contributingDays),
			MeanDailyExits:   cell.exits / float64(contributingDays),
			ObservationCount: cell.count,
			ContributingDays: contributingDays,
		},
	}
}

func sortRecords(records []Record) {
	rank := make(map[Granularity]int, 3)
	for i, g := range Granularities() {
		rank[g] = i
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
			return rank[a.Granularity] < rank[b.Granularity]
		}
		return a.PeriodStart.Before(b.PeriodStart)
	})
}
