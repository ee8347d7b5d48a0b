// Package sqlite provides a single-file archive of normalized observations
// for deployments that run without a Postgres store. Writes use insert-or-ignore
// semantics so re-archiving an overlapping batch is a no-op.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	ingest "ridership-pipeline/internal/ingest/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS counter_observations (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	control_area TEXT NOT NULL,
	remote_unit TEXT NOT NULL,
	channel TEXT NOT NULL,
	station TEXT NOT NULL,
	line_names TEXT NOT NULL,
	division TEXT NOT NULL,
	description TEXT NOT NULL,
	observed_at TIMESTAMP NOT NULL,
	entries BIGINT NOT NULL,
	exits BIGINT NOT NULL,
	source_batch TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_counter_device_time ON counter_observations (device_id, observed_at);

CREATE TABLE IF NOT EXISTS status_observations (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	observed_at TIMESTAMP NOT NULL,
	reported_at TIMESTAMP NOT NULL,
	bikes_available INTEGER NOT NULL,
	docks_available INTEGER NOT NULL,
	bikes_disabled INTEGER NOT NULL,
	docks_disabled INTEGER NOT NULL,
	ebikes_available INTEGER NOT NULL,
	is_installed BOOLEAN NOT NULL CHECK (is_installed IN (0, 1)),
	is_renting BOOLEAN NOT NULL CHECK (is_renting IN (0, 1)),
	is_returning BOOLEAN NOT NULL CHECK (is_returning IN (0, 1)),
	source_batch TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_status_device_time ON status_observations (device_id, observed_at);
`

// Archive is an append-only observation archive backed by a SQLite file.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path and applies the schema.
func Open(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("sqlite archive: empty path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// ArchiveCounters stores fare-gate readings, ignoring rows already archived.
func (a *Archive) ArchiveCounters(ctx context.Context, observations []ingest.CounterObservation) (int, error) {
	if a == nil || a.db == nil {
		return 0, errors.New("sqlite archive: not open")
	}
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO counter_observations (
	id, device_id, control_area, remote_unit, channel, station, line_names,
	division, description, observed_at, entries, exits, source_batch
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
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

// ArchiveStatuses stores dock-station snapshots, ignoring rows already archived.
func (a *Archive) ArchiveStatuses(ctx context.Context, observations []ingest.StatusObservation) (int, error) {
	if a == nil || a.db == nil {
		return 0, errors.New("sqlite archive: not open")
	}
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO status_observations (
	id, device_id, observed_at, reported_at, bikes_available, docks_available,
	bikes_disabled, docks_disabled, ebikes_available, is_installed, is_renting,
	is_returning, source_batch
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
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
