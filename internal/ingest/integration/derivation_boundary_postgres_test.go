package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"ridership-pipeline/internal/analytics/domain/derive"
	ingest "ridership-pipeline/internal/ingest/domain"
	ingestrepo "ridership-pipeline/internal/ingest/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const boundaryTestTable = "counter_observations_it_boundary"

// The derivation listing must seed each device with its latest observation at
// or before the watermark, not an arbitrary pre-watermark row, so the first
// new interval pairs against the right predecessor.
func TestCounterListForDerivation_BoundarySeedIsLatest_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+boundaryTestTable)
	_, err = db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE %s (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	control_area TEXT NOT NULL DEFAULT '',
	remote_unit TEXT NOT NULL DEFAULT '',
	channel TEXT NOT NULL DEFAULT '',
	station TEXT NOT NULL DEFAULT '',
	line_names TEXT NOT NULL DEFAULT '',
	division TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	observed_at TIMESTAMPTZ NOT NULL,
	entries BIGINT NOT NULL,
	exits BIGINT NOT NULL,
	source_batch TEXT NOT NULL DEFAULT ''
)`, boundaryTestTable))
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	defer func() {
		_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+boundaryTestTable)
	}()

	repo := ingestrepo.NewCounterObservationRepository(db, ingestrepo.WithCounterTable(boundaryTestTable))

	watermark := time.Date(2023, 3, 4, 12, 0, 0, 0, time.UTC)
	early := watermark.Add(-48 * time.Hour)
	obs := func(at time.Time, entries, exits int64, batch string) ingest.CounterObservation {
		return ingest.CounterObservation{
			ID:          ingest.ObservationID("dev-a", at),
			DeviceID:    "dev-a",
			RemoteUnit:  "R051",
			ObservedAt:  at,
			Entries:     entries,
			Exits:       exits,
			SourceBatch: batch,
		}
	}
	// two pre-watermark rows far apart; the early one must never be the seed
	if _, err := repo.InsertIfAbsent(ctx, []ingest.CounterObservation{
		obs(early, 100, 40, "b0"),
		obs(watermark, 5000, 400, "b0"),
	}); err != nil {
		t.Fatalf("insert pre-watermark rows: %v", err)
	}
	if _, err := repo.InsertIfAbsent(ctx, []ingest.CounterObservation{
		obs(watermark.Add(time.Hour), 5060, 430, "b1"),
	}); err != nil {
		t.Fatalf("insert post-watermark row: %v", err)
	}

	listed, err := repo.ListForDerivation(ctx, watermark)
	if err != nil {
		t.Fatalf("list for derivation: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d rows, want 2 (seed + new)", len(listed))
	}
	if !listed[0].ObservedAt.Equal(watermark) {
		t.Fatalf("seed observed_at = %v, want the latest pre-watermark row %v", listed[0].ObservedAt, watermark)
	}

	scanner, err := derive.NewScanner(1, 24, 10000)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}
	records, err := scanner.DeriveCounters(ctx, listed)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("derived %d records, want 2", len(records))
	}
	last := records[1]
	if last.NetEntries == nil || *last.NetEntries != 60 {
		t.Fatalf("net entries = %v, want 60 against the watermark seed", last.NetEntries)
	}
	if last.NetExits == nil || *last.NetExits != 30 {
		t.Fatalf("net exits = %v, want 30 against the watermark seed", last.NetExits)
	}
}
