package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ridership-pipeline/internal/analytics/domain/derive"
)

const (
	defaultDerivedCounterTable = "derived_counter_records"
	defaultDerivedStatusTable  = "derived_status_records"
)

// DerivedCounterRepository is a Postgres implementation of
// derive.CounterRecordRepository.
type DerivedCounterRepository struct {
	db    *sql.DB
	table string
}

// DerivedCounterOption configures the repository.
type DerivedCounterOption func(*DerivedCounterRepository)

// WithDerivedCounterTable overrides the default table name.
func WithDerivedCounterTable(table string) DerivedCounterOption {
	return func(repo *DerivedCounterRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewDerivedCounterRepository creates a repository using the default table name.
func NewDerivedCounterRepository(db *sql.DB, opts ...DerivedCounterOption) *DerivedCounterRepository {
	repo := &DerivedCounterRepository{db: db, table: defaultDerivedCounterTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SaveAll upserts all records in one transaction keyed by observation id.
func (r *DerivedCounterRepository) SaveAll(ctx context.Context, records []derive.CounterRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
INSERT INTO %s (
	observation_id,
	device_id,
	remote_unit,
	observed_at,
	gap_hours,
	net_entries,
	net_exits
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (observation_id)
DO UPDATE SET
	gap_hours = EXCLUDED.gap_hours,
	net_entries = EXCLUDED.net_entries,
	net_exits = EXCLUDED.net_exits`, r.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(
			ctx,
			record.ObservationID,
			record.DeviceID,
			record.RemoteUnit,
			record.ObservedAt,
			record.GapHours,
			nullInt64(record.NetEntries),
			nullInt64(record.NetExits),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListAll returns the full derived history ordered by device and time.
func (r *DerivedCounterRepository) ListAll(ctx context.Context) ([]derive.CounterRecord, error) {
	query := fmt.Sprintf(`
SELECT
	observation_id,
	device_id,
	remote_unit,
	observed_at,
	gap_hours,
	net_entries,
	net_exits
FROM %s
ORDER BY device_id, observed_at`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []derive.CounterRecord
	for rows.Next() {
		var (
			record     derive.CounterRecord
			netEntries sql.NullInt64
			netExits   sql.NullInt64
		)
		if err := rows.Scan(
			&record.ObservationID,
			&record.DeviceID,
			&record.RemoteUnit,
			&record.ObservedAt,
			&record.GapHours,
			&netEntries,
			&netExits,
		); err != nil {
			return nil, err
		}
		if netEntries.Valid {
			value := netEntries.Int64
			record.NetEntries = &value
		}
		if netExits.Valid {
			value := netExits.Int64
			record.NetExits = &value
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// MaxObservedAt returns the derivation watermark.
func (r *DerivedCounterRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	return maxObservedAt(ctx, r.db, r.table)
}

// DerivedStatusRepository is a Postgres implementation of
// derive.StatusRecordRepository.
type DerivedStatusRepository struct {
	db    *sql.DB
	table string
}

// DerivedStatusOption configures the repository.
type DerivedStatusOption func(*DerivedStatusRepository)

// WithDerivedStatusTable overrides the default table name.
func WithDerivedStatusTable(table string) DerivedStatusOption {
	return func(repo *DerivedStatusRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewDerivedStatusRepository creates a repository using the default table name.
func NewDerivedStatusRepository(db *sql.DB, opts ...DerivedStatusOption) *DerivedStatusRepository {
	repo := &DerivedStatusRepository{db: db, table: defaultDerivedStatusTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SaveAll upserts all records in one transaction keyed by observation id.
func (r *DerivedStatusRepository) SaveAll(ctx context.Context, records []derive.StatusRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
INSERT INTO %s (
	observation_id,
	device_id,
	observed_at,
	reported_at,
	gap_hours,
	bikes_available,
	docks_available,
	stale
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (observation_id)
DO UPDATE SET
	gap_hours = EXCLUDED.gap_hours,
	stale = EXCLUDED.stale`, r.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(
			ctx,
			record.ObservationID,
			record.DeviceID,
			record.ObservedAt,
			record.ReportedAt,
			record.GapHours,
			record.BikesAvailable,
			record.DocksAvailable,
			record.Stale,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListAll returns the full derived history ordered by device and time.
func (r *DerivedStatusRepository) ListAll(ctx context.Context) ([]derive.StatusRecord, error) {
	query := fmt.Sprintf(`
SELECT
	observation_id,
	device_id,
	observed_at,
	reported_at,
	gap_hours,
	bikes_available,
	docks_available,
	stale
FROM %s
ORDER BY device_id, observed_at`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []derive.StatusRecord
	for rows.Next() {
		var record derive.StatusRecord
		if err := rows.Scan(
			&record.ObservationID,
			&record.DeviceID,
			&record.ObservedAt,
			&record.ReportedAt,
			&record.GapHours,
			&record.BikesAvailable,
			&record.DocksAvailable,
			&record.Stale,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// MaxObservedAt returns the derivation watermark.
func (r *DerivedStatusRepository) MaxObservedAt(ctx context.Context) (time.Time, bool, error) {
	return maxObservedAt(ctx, r.db, r.table)
}

func maxObservedAt(ctx context.Context, db *sql.DB, table string) (time.Time, bool, error) {
	query := fmt.Sprintf("SELECT MAX(observed_at) FROM %s", table)

	var max sql.NullTime
	if err := db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return time.Time{}, false, err
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return max.Time, true, nil
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
