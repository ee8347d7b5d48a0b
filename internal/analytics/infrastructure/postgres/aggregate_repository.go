// Package postgres persists derived records and aggregates in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ridership-pipeline/internal/analytics/domain/period"
	"ridership-pipeline/internal/analytics/domain/rollup"
)

const defaultAggregateTable = "ridership_aggregates"

// AggregateRepository is a Postgres implementation of rollup.RecordRepository.
// Rows are keyed by entity_id + variant + time_type + time_key so recomputed
// aggregates overwrite their previous values.
type AggregateRepository struct {
	db    *sql.DB
	table string
}

// AggregateRepositoryOption configures the repository.
type AggregateRepositoryOption func(*AggregateRepository)

// WithAggregateTable overrides the default table name.
func WithAggregateTable(table string) AggregateRepositoryOption {
	return func(repo *AggregateRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewAggregateRepository creates a repository using the default table name.
func NewAggregateRepository(db *sql.DB, opts ...AggregateRepositoryOption) *AggregateRepository {
	repo := &AggregateRepository{
		db:    db,
		table: defaultAggregateTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SaveAll upserts all records in one transaction.
func (r *AggregateRepository) SaveAll(ctx context.Context, records []rollup.Record) error {
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
	entity_id,
	variant,
	time_type,
	time_key,
	period_start,
	entries_sum,
	exits_sum,
	mean_daily_entries,
	mean_daily_exits,
	observation_count,
	contributing_days
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (entity_id, variant, time_type, time_key)
DO UPDATE SET
	period_start = EXCLUDED.period_start,
	entries_sum = EXCLUDED.entries_sum,
	exits_sum = EXCLUDED.exits_sum,
	mean_daily_entries = EXCLUDED.mean_daily_entries,
	mean_daily_exits = EXCLUDED.mean_daily_exits,
	observation_count = EXCLUDED.observation_count,
	contributing_days = EXCLUDED.contributing_days,
	updated_at = NOW()`, r.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		timeKey, err := record.TimeKey()
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(
			ctx,
			record.EntityID,
			string(record.Variant),
			string(record.Granularity),
			timeKey.String(),
			record.PeriodStart,
			record.Fact.EntriesSum,
			record.Fact.ExitsSum,
			record.Fact.MeanDailyEntries,
			record.Fact.MeanDailyExits,
			record.Fact.ObservationCount,
			record.Fact.ContributingDays,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// List returns records matching the query ordered by entity, variant,
// granularity and period start.
func (r *AggregateRepository) List(ctx context.Context, query rollup.Query) ([]rollup.Record, error) {
	conditions := make([]string, 0, 5)
	args := make([]any, 0, 5)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.EntityID != "" {
		conditions = append(conditions, "entity_id = "+arg(query.EntityID))
	}
	if query.Variant != "" {
		if !query.Variant.IsValid() {
			return nil, rollup.ErrInvalidVariant
		}
		conditions = append(conditions, "variant = "+arg(string(query.Variant)))
	}
	if query.Granularity != "" {
		if !query.Granularity.IsValid() {
			return nil, rollup.ErrInvalidGranularity
		}
		conditions = append(conditions, "time_type = "+arg(string(query.Granularity)))
	}
	if !query.From.IsZero() {
		conditions = append(conditions, "period_start >= "+arg(query.From))
	}
	if !query.To.IsZero() {
		conditions = append(conditions, "period_start < "+arg(query.To))
	}

	where := ""
	if len(conditions) > 0 {
		where = "\nWHERE " + strings.Join(conditions, "\n\tAND ")
	}

	stmt := fmt.Sprintf(`
SELECT
	entity_id,
	variant,
	time_type,
	period_start,
	entries_sum,
	exits_sum,
	mean_daily_entries,
	mean_daily_exits,
	observation_count,
	contributing_days
FROM %s%s
ORDER BY entity_id, variant, time_type, period_start`, r.table, where)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []rollup.Record
	for rows.Next() {
		record, err := scanAggregateRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanAggregateRecord(scanner interface{ Scan(dest ...any) error }) (rollup.Record, error) {
	var (
		entityID    string
		variant     string
		timeType    string
		periodStart time.Time
		fact        rollup.Fact
	)

	if err := scanner.Scan(
		&entityID,
		&variant,
		&timeType,
		&periodStart,
		&fact.EntriesSum,
		&fact.ExitsSum,
		&fact.MeanDailyEntries,
		&fact.MeanDailyExits,
		&fact.ObservationCount,
		&fact.ContributingDays,
	); err != nil {
		return rollup.Record{}, err
	}

	granularity := rollup.Granularity(timeType)
	if !granularity.IsValid() {
		return rollup.Record{}, rollup.ErrInvalidGranularity
	}
	periodVariant := period.Variant(variant)
	if !periodVariant.IsValid() {
		return rollup.Record{}, rollup.ErrInvalidVariant
	}

	return rollup.Record{
		EntityID:    entityID,
		Variant:     periodVariant,
		Granularity: granularity,
		PeriodStart: periodStart,
		Fact:        fact,
	}, nil
}
