package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridership-pipeline/internal/analytics/domain/derive"
	"ridership-pipeline/internal/analytics/domain/period"
	"ridership-pipeline/internal/analytics/domain/rollup"
)

func TestAggregateSaveAll_UpsertsByCompositeKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAggregateRepository(db)
	periodStart := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []rollup.Record{
		{
			EntityID:    "complex-610",
			Variant:     period.VariantAll,
			Granularity: rollup.GranularityMonth,
			PeriodStart: periodStart,
			Fact: rollup.Fact{
				EntriesSum:       1000,
				ExitsSum:         900,
				MeanDailyEntries: 100,
				MeanDailyExits:   90,
				ObservationCount: 240,
				ContributingDays: 10,
			},
		},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare(`INSERT INTO ridership_aggregates`)
	prepared.ExpectExec().
		WithArgs("complex-610", "all", "MONTH", "202303", periodStart,
			1000.0, 900.0, 100.0, 90.0, 240, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveAll(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateList_FiltersAndScans(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAggregateRepository(db)
	periodStart := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

	columns := []string{
		"entity_id", "variant", "time_type", "period_start", "entries_sum",
		"exits_sum", "mean_daily_entries", "mean_daily_exits",
		"observation_count", "contributing_days",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("complex-610", "morning_peak", "DAY", periodStart, 80.0, 60.0, 80.0, 60.0, 2, 1)

	mock.ExpectQuery(`ORDER BY entity_id, variant, time_type, period_start`).
		WithArgs("complex-610", "morning_peak", "DAY").
		WillReturnRows(rows)

	result, err := repo.List(context.Background(), rollup.Query{
		EntityID:    "complex-610",
		Variant:     period.VariantMorningPeak,
		Granularity: rollup.GranularityDay,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, period.VariantMorningPeak, result[0].Variant)
	assert.Equal(t, 80.0, result[0].Fact.EntriesSum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateList_RejectsUnknownVariant(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAggregateRepository(db)
	_, err = repo.List(context.Background(), rollup.Query{Variant: "rush"})
	assert.ErrorIs(t, err, rollup.ErrInvalidVariant)
}

func TestDerivedCounterSaveAll_NullableNets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDerivedCounterRepository(db)
	observedAt := time.Date(2023, 3, 4, 8, 0, 0, 0, time.UTC)
	net := int64(50)
	records := []derive.CounterRecord{
		{ObservationID: "a1", DeviceID: "dev-a", RemoteUnit: "R051", ObservedAt: observedAt},
		{ObservationID: "a2", DeviceID: "dev-a", RemoteUnit: "R051", ObservedAt: observedAt.Add(time.Hour), GapHours: 1, NetEntries: &net, NetExits: &net},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare(`INSERT INTO derived_counter_records`)
	prepared.ExpectExec().
		WithArgs("a1", "dev-a", "R051", observedAt, 0.0, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prepared.ExpectExec().
		WithArgs("a2", "dev-a", "R051", observedAt.Add(time.Hour), 1.0, int64(50), int64(50)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveAll(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDerivedStatusMaxObservedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDerivedStatusRepository(db)
	watermark := time.Date(2023, 3, 4, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MAX\(observed_at\) FROM derived_status_records`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(watermark))

	max, ok, err := repo.MaxObservedAt(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, watermark.Equal(max))
	assert.NoError(t, mock.ExpectationsWereMet())
}
