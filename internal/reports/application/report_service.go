package application

import (
	"context"
	"errors"
	"sort"
	"time"

	"ridership-pipeline/internal/analytics/domain/period"
	"ridership-pipeline/internal/analytics/domain/rollup"
	reports "ridership-pipeline/internal/reports/domain"
)

var (
	// ErrNilRepository indicates the service was built without an aggregate store.
	ErrNilRepository = errors.New("reports: nil aggregate repository")
	// ErrInvalidMonth indicates the requested month could not be parsed.
	ErrInvalidMonth = errors.New("reports: invalid month")
)

// Clock supplies the report generation timestamp.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ReportService assembles monthly reports from stored aggregates.
type ReportService struct {
	aggregates rollup.RecordRepository
	clock      Clock
}

// NewReportService constructs a report service.
func NewReportService(aggregates rollup.RecordRepository, clock Clock) (*ReportService, error) {
	if aggregates == nil {
		return nil, ErrNilRepository
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &ReportService{aggregates: aggregates, clock: clock}, nil
}

// ParseMonth parses a YYYY-MM month string.
func ParseMonth(raw string) (time.Time, error) {
	month, err := time.Parse("2006-01", raw)
	if err != nil {
		return time.Time{}, ErrInvalidMonth
	}
	return month, nil
}

// BuildMonthly lists the month's aggregates and folds them into a report.
// An empty entityID covers every entity with records in the month.
func (s *ReportService) BuildMonthly(ctx context.Context, month time.Time, entityID string) (*reports.MonthlyReport, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	monthAll, err := s.aggregates.List(ctx, rollup.Query{
		EntityID:    entityID,
		Variant:     period.VariantAll,
		Granularity: rollup.GranularityMonth,
		From:        from,
		To:          to,
	})
	if err != nil {
		return nil, err
	}
	monthMorning, err := s.aggregates.List(ctx, rollup.Query{
		EntityID:    entityID,
		Variant:     period.VariantMorningPeak,
		Granularity: rollup.GranularityMonth,
		From:        from,
		To:          to,
	})
	if err != nil {
		return nil, err
	}
	daily, err := s.aggregates.List(ctx, rollup.Query{
		EntityID:    entityID,
		Variant:     period.VariantAll,
		Granularity: rollup.GranularityDay,
		From:        from,
		To:          to,
	})
	if err != nil {
		return nil, err
	}

	morningByEntity := make(map[string]rollup.Fact, len(monthMorning))
	for _, record := range monthMorning {
		morningByEntity[record.EntityID] = record.Fact
	}

	report := &reports.MonthlyReport{Month: from, GeneratedAt: s.clock.Now()}
	for _, record := range monthAll {
		row := reports.EntityRow{
			EntityID:         record.EntityID,
			EntriesSum:       record.Fact.EntriesSum,
			ExitsSum:         record.Fact.ExitsSum,
			MeanDailyEntries: record.Fact.MeanDailyEntries,
			MeanDailyExits:   record.Fact.MeanDailyExits,
			ContributingDays: record.Fact.ContributingDays,
		}
		if peak, ok := morningByEntity[record.EntityID]; ok {
			row.MorningPeakEntries = peak.EntriesSum
			row.MorningPeakExits = peak.ExitsSum
		}
		report.Rows = append(report.Rows, row)
	}
	for _, record := range daily {
		report.Daily = append(report.Daily, reports.DailyRow{
			EntityID: record.EntityID,
			Day:      record.PeriodStart,
			Entries:  record.Fact.EntriesSum,
			Exits:    record.Fact.ExitsSum,
		})
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].EntityID < report.Rows[j].EntityID
	})
	sort.Slice(report.Daily, func(i, j int) bool {
		if report.Daily[i].EntityID != report.Daily[j].EntityID {
			return report.Daily[i].EntityID < report.Daily[j].EntityID
		}
		return report.Daily[i].Day.Before(report.Daily[j].Day)
	})
	return report, nil
}
