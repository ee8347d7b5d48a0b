package application

import (
	"context"
	"testing"
	"time"

	"ridership-pipeline/internal/analytics/domain/period"
	"ridership-pipeline/internal/analytics/domain/rollup"
	"ridership-pipeline/internal/analytics/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func seedRepo(t *testing.T) *memory.AggregateRepository {
	t.Helper()
	repo := memory.NewAggregateRepository()
	march := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	records := []rollup.Record{
		{
			EntityID: "complex-610", Variant: period.VariantAll,
			Granularity: rollup.GranularityMonth, PeriodStart: march,
			Fact: rollup.Fact{EntriesSum: 3000, ExitsSum: 2800, MeanDailyEntries: 150, MeanDailyExits: 140, ObservationCount: 400, ContributingDays: 20},
		},
		{
			EntityID: "complex-610", Variant: period.VariantMorningPeak,
			Granularity: rollup.GranularityMonth, PeriodStart: march,
			Fact: rollup.Fact{EntriesSum: 900, ExitsSum: 300, MeanDailyEntries: 45, MeanDailyExits: 15, ObservationCount: 120, ContributingDays: 20},
		},
		{
			EntityID: "complex-610", Variant: period.VariantAll,
			Granularity: rollup.GranularityDay, PeriodStart: march.AddDate(0, 0, 1),
			Fact: rollup.Fact{EntriesSum: 160, ExitsSum: 100, MeanDailyEntries: 160, MeanDailyExits: 100, ObservationCount: 12, ContributingDays: 1},
		},
		{
			EntityID: "station-72", Variant: period.VariantAll,
			Granularity: rollup.GranularityMonth, PeriodStart: march,
			Fact: rollup.Fact{EntriesSum: 500, ExitsSum: 480, MeanDailyEntries: 25, MeanDailyExits: 24, ObservationCount: 60, ContributingDays: 20},
		},
		// Outside the requested month, must not leak into the report.
		{
			EntityID: "complex-610", Variant: period.VariantAll,
			Granularity: rollup.GranularityMonth, PeriodStart: march.AddDate(0, 1, 0),
			Fact: rollup.Fact{EntriesSum: 9999, ExitsSum: 9999, MeanDailyEntries: 1, MeanDailyExits: 1, ObservationCount: 1, ContributingDays: 10},
		},
	}
	if err := repo.SaveAll(context.Background(), records); err != nil {
		t.Fatalf("seed aggregates: %v", err)
	}
	return repo
}

func TestBuildMonthlyJoinsMorningPeak(t *testing.T) {
	repo := seedRepo(t)
	now := time.Date(2023, time.April, 2, 10, 0, 0, 0, time.UTC)
	service, err := NewReportService(repo, fixedClock{now: now})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	month, err := ParseMonth("2023-03")
	if err != nil {
		t.Fatalf("parse month: %v", err)
	}
	report, err := service.BuildMonthly(context.Background(), month, "")
	if err != nil {
		t.Fatalf("build monthly: %v", err)
	}

	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("generated at = %v", report.GeneratedAt)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(report.Rows))
	}
	first := report.Rows[0]
	if first.EntityID != "complex-610" {
		t.Fatalf("first entity = %q", first.EntityID)
	}
	if first.EntriesSum != 3000 || first.MorningPeakEntries != 900 || first.MorningPeakExits != 300 {
		t.Fatalf("complex-610 row = %+v", first)
	}
	second := report.Rows[1]
	if second.EntityID != "station-72" || second.MorningPeakEntries != 0 {
		t.Fatalf("station-72 row = %+v", second)
	}
	if len(report.Daily) != 1 || report.Daily[0].Entries != 160 {
		t.Fatalf("daily rows = %+v", report.Daily)
	}
}

func TestBuildMonthlyFiltersEntity(t *testing.T) {
	repo := seedRepo(t)
	service, err := NewReportService(repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	month, _ := ParseMonth("2023-03")
	report, err := service.BuildMonthly(context.Background(), month, "station-72")
	if err != nil {
		t.Fatalf("build monthly: %v", err)
	}
	if len(report.Rows) != 1 || report.Rows[0].EntityID != "station-72" {
		t.Fatalf("rows = %+v", report.Rows)
	}
	if len(report.Daily) != 0 {
		t.Fatalf("daily rows = %+v", report.Daily)
	}
}

func TestParseMonthRejectsGarbage(t *testing.T) {
	if _, err := ParseMonth("march 2023"); err == nil {
		t.Fatal("expected error for invalid month")
	}
}
