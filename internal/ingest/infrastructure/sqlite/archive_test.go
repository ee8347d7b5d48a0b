package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	ingest "ridership-pipeline/internal/ingest/domain"
)

func TestArchiveCounters_Idempotent(t *testing.T) {
	archive, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer archive.Close()

	observedAt := time.Date(2023, 3, 4, 8, 0, 0, 0, time.UTC)
	batch := []ingest.CounterObservation{
		{
			ID:          ingest.ObservationID("A002R05102-00-00", observedAt),
			DeviceID:    "A002R05102-00-00",
			ControlArea: "A002",
			RemoteUnit:  "R051",
			Channel:     "02-00-00",
			Station:     "59 ST",
			LineNames:   "NQR456W",
			Division:    "BMT",
			Description: "REGULAR",
			ObservedAt:  observedAt,
			Entries:     7578551,
			Exits:       2568408,
			SourceBatch: "turnstile_230304.txt",
		},
		{
			ID:          ingest.ObservationID("A002R05102-00-00", observedAt.Add(4*time.Hour)),
			DeviceID:    "A002R05102-00-00",
			ControlArea: "A002",
			RemoteUnit:  "R051",
			Channel:     "02-00-00",
			Station:     "59 ST",
			LineNames:   "NQR456W",
			Division:    "BMT",
			Description: "REGULAR",
			ObservedAt:  observedAt.Add(4 * time.Hour),
			Entries:     7578601,
			Exits:       2568450,
			SourceBatch: "turnstile_230304.txt",
		},
	}

	inserted, err := archive.ArchiveCounters(context.Background(), batch)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("first pass inserted %d, want 2", inserted)
	}

	inserted, err = archive.ArchiveCounters(context.Background(), batch)
	if err != nil {
		t.Fatalf("re-archive: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("second pass inserted %d, want 0", inserted)
	}
}

func TestArchiveStatuses_Idempotent(t *testing.T) {
	archive, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer archive.Close()

	capturedAt := time.Date(2023, 3, 4, 8, 15, 0, 0, time.UTC)
	batch := []ingest.StatusObservation{
		{
			ID:             ingest.ObservationID("dock-72", capturedAt),
			DeviceID:       "dock-72",
			ObservedAt:     capturedAt,
			ReportedAt:     capturedAt.Add(-3 * time.Minute),
			BikesAvailable: 12,
			DocksAvailable: 23,
			IsInstalled:    true,
			IsRenting:      true,
			IsReturning:    true,
			SourceBatch:    "2023-03-04_08:15:00.json.gz",
		},
	}

	for pass, want := range []int{1, 0} {
		inserted, err := archive.ArchiveStatuses(context.Background(), batch)
		if err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		if inserted != want {
			t.Fatalf("pass %d inserted %d, want %d", pass, inserted, want)
		}
	}
}
