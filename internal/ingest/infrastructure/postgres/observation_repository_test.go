package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingest "ridership-pipeline/internal/ingest/domain"
)

func TestCounterInsertIfAbsent_SkipsDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCounterObservationRepository(db)
	observedAt := time.Date(2023, 3, 4, 8, 0, 0, 0, time.UTC)
	observations := []ingest.CounterObservation{
		{ID: "a1", DeviceID: "dev-a", ObservedAt: observedAt, Entries: 100, Exits: 50},
		{ID: "a2", DeviceID: "dev-a", ObservedAt: observedAt.Add(4 * time.Hour), Entries: 150, Exits: 70},
	}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare(`INSERT INTO counter_observations`)
	prepared.ExpectExec().
		WithArgs("a1", "dev-a", "", "", "", "", "", "", "", observedAt, int64(100), int64(50), "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// second row already present: ON CONFLICT DO NOTHING affects zero rows
	prepared.ExpectExec().
		WithArgs("a2", "dev-a", "", "", "", "", "", "", "", observedAt.Add(4*time.Hour), int64(150), int64(70), "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := repo.InsertIfAbsent(context.Background(), observations)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterMaxObservedAt_EmptyStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCounterObservationRepository(db)
	mock.ExpectQuery(`SELECT MAX\(observed_at\) FROM counter_observations`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	_, ok, err := repo.MaxObservedAt(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// seedArmPattern only matches when the DISTINCT ON seed arm carries its own
// ORDER BY inside the parenthesized arm. With the sort outside the arm,
// Postgres picks an arbitrary pre-watermark row per device.
const seedArmPattern = `\(SELECT DISTINCT ON \(device_id\) \*\s+` +
	`FROM %s\s+WHERE observed_at <= \$1\s+` +
	`ORDER BY device_id, observed_at DESC\)`

func TestCounterListForDerivation_SeedArmSortsLatestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCounterObservationRepository(db)
	after := time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "device_id", "control_area", "remote_unit", "channel", "station",
		"line_names", "division", "description", "observed_at", "entries",
		"exits", "source_batch",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("c1", "dev-a", "A002", "R051", "02-00-00", "", "", "", "", after.Add(-time.Hour), int64(5000), int64(40), "b0").
		AddRow("c2", "dev-a", "A002", "R051", "02-00-00", "", "", "", "", after.Add(time.Hour), int64(5060), int64(70), "b1")

	mock.ExpectQuery(fmt.Sprintf(seedArmPattern, "counter_observations")).
		WithArgs(after).
		WillReturnRows(rows)

	result, err := repo.ListForDerivation(context.Background(), after)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "c1", result[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusListForDerivation_OrdersByDeviceThenTime(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewStatusObservationRepository(db)
	after := time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "device_id", "observed_at", "reported_at", "bikes_available",
		"docks_available", "bikes_disabled", "docks_disabled", "ebikes_available",
		"is_installed", "is_renting", "is_returning", "source_batch",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("s1", "dock-1", after.Add(-time.Hour), after.Add(-time.Hour), 4, 10, 0, 0, 1, true, true, true, "b0").
		AddRow("s2", "dock-1", after.Add(time.Hour), after.Add(time.Hour), 5, 9, 0, 0, 1, true, true, true, "b1")

	mock.ExpectQuery(fmt.Sprintf(seedArmPattern, "status_observations")).
		WithArgs(after).
		WillReturnRows(rows)

	result, err := repo.ListForDerivation(context.Background(), after)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "s1", result[0].ID)
	assert.Equal(t, 5, result[1].BikesAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
