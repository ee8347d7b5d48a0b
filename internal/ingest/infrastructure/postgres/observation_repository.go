package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ingest "ridership-pipeline/internal/ingest/domain"
)

const (
	defaultCounterTable = "counter_observations"
	defaultStatusTable  = "status_observations"
)

// CounterObservationRepository is a Postgres store for fare-gate readings.
type CounterObservationRepository struct {
	db    *sql.DB
	table string
}

// NewCounterObservationRepository constructs a repository with the default table name.
func NewCounterObservationRepository(db *sql.DB, opts ...CounterRepositoryOption) *CounterObservationRepository {
	repo := &CounterObservationRepository{db: db, table: defaultCounterTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CounterRepositoryOption configures the repository.
type CounterRepositoryOption func(*CounterObservationRepository)

// WithCounterTable overrides the default table name.
func WithCounterTable(table string) CounterRepositoryOption {
	return func(repo *CounterObservationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertIfAbsent inserts observations keyed by composite id; existing rows are
// left untouched so re-ingesting a batch is a no-op.
func (r *CounterObservationRepository) InsertIfAbsent(ctx context.Context, observations []ingest.CounterObservation) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("counter observation repo: nil db")
	}
	if len(observations) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	device_id,
	control_area,
	remote_unit,
	channel,
	station,
	line_names,
	division,
	description,
	observed_at,
	entries,
	exits,
	source_batch
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (id) DO NOTHING`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, obs := range observations {
		result, err := stmt.ExecContext(
			ctx,
			obs.ID,
			obs.DeviceID,
			obs.ControlArea,
			obs.RemoteUnit,
			obs.Channel,
			obs.Station,
			obs.LineNames,
			obs.Division,
			obs.Description,
			obs.ObservedAt,
			obs.Entries,
			obs.Exits,
			obs.SourceBatch,
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if affected, err := result.RowsAffected(); err == nil {
			inserted += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// MaxObservedAt returns the ingestion watermark.
func (r *CounterObservationRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	if r == nil || r.db == nil {
		return time.Time{}, false, errors.New("counter observation repo: nil db")
	}

	query := fmt.Sprintf("SELECT MAX(observed_at) FROM %s", r.table)
	var max sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return time.Time{}, false, err
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return max.Time, true, nil
}

// ListForDerivation returns observations after the boundary plus, per device,
// the latest observation at or before it.
func (r *CounterObservationRepository) ListForDerivation(ctx context.Context, after time.Time) ([]ingest.CounterObservation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("counter observation repo: nil db")
	}

	// the seed arm needs its own ORDER BY: DISTINCT ON with only the outer
	// sort returns an arbitrary pre-watermark row per device
	query := fmt.Sprintf(`
SELECT id, device_id, control_area, remote_unit, channel, station, line_names,
	division, description, observed_at, entries, exits, source_batch
FROM (
	(SELECT * FROM %[1]s WHERE observed_at > $1)
	UNION ALL
	(SELECT DISTINCT ON (device_id) *
	FROM %[1]s
	WHERE observed_at <= $1
	ORDER BY device_id, observed_at DESC)
) scan_input
ORDER BY device_id, observed_at`, r.table)

	rows, err := r.db.QueryContext(ctx, query, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ingest.CounterObservation
	for rows.Next() {
		var obs ingest.CounterObservation
		if err := rows.Scan(
			&obs.ID,
			&obs.DeviceID,
			&obs.ControlArea,
			&obs.RemoteUnit,
			&obs.Channel,
			&obs.Station,
			&obs.LineNames,
			&obs.Division,
			&obs.Description,
			&obs.ObservedAt,
			&obs.Entries,
			&obs.Exits,
			&obs.SourceBatch,
		); err != nil {
			return nil, err
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// StatusObservationRepository is a Postgres store for dock-station snapshots.
type StatusObservationRepository struct {
	db    *sql.DB
	table string
}

// NewStatusObservationRepository constructs a repository with the default table name.
func NewStatusObservationRepository(db *sql.DB, opts ...StatusRepositoryOption) *StatusObservationRepository {
	repo := &StatusObservationRepository{db: db, table: defaultStatusTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StatusRepositoryOption configures the repository.
type StatusRepositoryOption func(*StatusObservationRepository)

// WithStatusTable overrides the default table name.
func WithStatusTable(table string) StatusRepositoryOption {
	return func(repo *StatusObservationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertIfAbsent inserts snapshots keyed by composite id, skipping duplicates.
func (r *StatusObservationRepository) InsertIfAbsent(ctx context.Context, observations []ingest.StatusObservation) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("status observation repo: nil db")
	}
	if len(observations) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	device_id,
	observed_at,
	reported_at,
	bikes_available,
	docks_available,
	bikes_disabled,
	docks_disabled,
	ebikes_available,
	is_installed,
	is_renting,
	is_returning,
	source_batch
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (id) DO NOTHING`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, obs := range observations {
		result, err := stmt.ExecContext(
			ctx,
			obs.ID,
			obs.DeviceID,
			obs.ObservedAt,
			obs.ReportedAt,
			obs.BikesAvailable,
			obs.DocksAvailable,
			obs.BikesDisabled,
			obs.DocksDisabled,
			obs.EBikesAvailable,
			obs.IsInstalled,
			obs.IsRenting,
			obs.IsReturning,
			obs.SourceBatch,
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if affected, err := result.RowsAffected(); err == nil {
			inserted += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// MaxObservedAt returns the ingestion watermark.
func (r *StatusObservationRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	if r == nil || r.db == nil {
		return time.Time{}, false, errors.New("status observation repo: nil db")
	}

	query := fmt.Sprintf("SELECT MAX(observed_at) FROM %s", r.table)
	var max sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return time.Time{}, false, err
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return max.Time, true, nil
}

// ListForDerivation returns snapshots after the boundary plus one seed per device.
func (r *StatusObservationRepository) ListForDerivation(ctx context.Context, after time.Time) ([]ingest.StatusObservation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("status observation repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, device_id, observed_at, reported_at, bikes_available, docks_available,
	bikes_disabled, docks_disabled, ebikes_available, is_installed, is_renting,
	is_returning, source_batch
FROM (
	(SELECT * FROM %[1]s WHERE observed_at > $1)
	UNION ALL
	(SELECT DISTINCT ON (device_id) *
	FROM %[1]s
	WHERE observed_at <= $1
	ORDER BY device_id, observed_at DESC)
) scan_input
ORDER BY device_id, observed_at`, r.table)

	rows, err := r.db.QueryContext(ctx, query, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ingest.StatusObservation
	for rows.Next() {
		var obs ingest.StatusObservation
		if err := rows.Scan(
			&obs.ID,
			&obs.DeviceID,
			&obs.ObservedAt,
			&obs.ReportedAt,
			&obs.BikesAvailable,
			&obs.DocksAvailable,
			&obs.BikesDisabled,
			&obs.DocksDisabled,
			&obs.EBikesAvailable,
			&obs.IsInstalled,
			&obs.IsRenting,
			&obs.IsReturning,
			&obs.SourceBatch,
		); err != nil {
			return nil, err
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
