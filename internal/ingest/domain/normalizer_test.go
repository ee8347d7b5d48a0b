package ingest

import (
	"errors"
	"testing"
	"time"
)

func validCounterRow() RawCounterRow {
	return RawCounterRow{
		ControlArea: "A002",
		RemoteUnit:  "R051",
		Channel:     "02-00-00",
		Station:     "59 ST",
		LineNames:   "NQR456W",
		Division:    "BMT",
		Date:        "03/04/2023",
		Time:        "08:00:00",
		Description: "REGULAR",
		Entries:     "7578551",
		Exits:       "2568408",
	}
}

func TestNormalizeCounterRow(t *testing.T) {
	obs, err := NormalizeCounterRow(validCounterRow(), "turnstile_230304.txt")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if obs.DeviceID != "A002R05102-00-00" {
		t.Fatalf("unexpected device id %q", obs.DeviceID)
	}
	if obs.ID != "A002R05102-00-0020230304080000" {
		t.Fatalf("unexpected id %q", obs.ID)
	}
	want := time.Date(2023, 3, 4, 8, 0, 0, 0, time.Local)
	if !obs.ObservedAt.Equal(want) {
		t.Fatalf("observed at %v, want %v", obs.ObservedAt, want)
	}
	if obs.Entries != 7578551 || obs.Exits != 2568408 {
		t.Fatalf("unexpected registers %d/%d", obs.Entries, obs.Exits)
	}
	if obs.SourceBatch != "turnstile_230304.txt" {
		t.Fatalf("unexpected source batch %q", obs.SourceBatch)
	}
}

func TestNormalizeCounterRow_OptionalFieldsGetNullMarker(t *testing.T) {
	row := validCounterRow()
	row.Station = ""
	row.Division = "  "

	obs, err := NormalizeCounterRow(row, "batch")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if obs.Station != UnknownField || obs.Division != UnknownField {
		t.Fatalf("expected null markers, got %q / %q", obs.Station, obs.Division)
	}
}

func TestNormalizeCounterRow_Malformed(t *testing.T) {
	cases := map[string]func(*RawCounterRow){
		"missing control area": func(r *RawCounterRow) { r.ControlArea = "" },
		"missing remote unit":  func(r *RawCounterRow) { r.RemoteUnit = " " },
		"missing channel":      func(r *RawCounterRow) { r.Channel = "" },
		"bad timestamp":        func(r *RawCounterRow) { r.Time = "8 o'clock" },
		"missing entries":      func(r *RawCounterRow) { r.Entries = "" },
		"non-numeric exits":    func(r *RawCounterRow) { r.Exits = "many" },
	}

	for name, mutate := range cases {
		row := validCounterRow()
		mutate(&row)
		_, err := NormalizeCounterRow(row, "batch")
		if !errors.Is(err, ErrMalformedRecord) {
			t.Fatalf("%s: expected malformed record, got %v", name, err)
		}
	}
}

func TestNormalizeStatusRow(t *testing.T) {
	bikes, docks := 12, 23
	row := RawStatusRow{
		StationID:      "station-72",
		CapturedAt:     "2023-03-04 08:15:00",
		LastReported:   time.Date(2023, 3, 4, 8, 12, 30, 0, time.Local).Unix(),
		BikesAvailable: &bikes,
		DocksAvailable: &docks,
	}

	obs, err := NormalizeStatusRow(row, "2023-03-04_08:15:00.json.gz")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if obs.DeviceID != "station-72" {
		t.Fatalf("unexpected device id %q", obs.DeviceID)
	}
	if obs.BikesAvailable != 12 || obs.DocksAvailable != 23 {
		t.Fatalf("unexpected counts %d/%d", obs.BikesAvailable, obs.DocksAvailable)
	}
	if obs.ReportedAt.After(obs.ObservedAt) {
		t.Fatalf("reported %v after captured %v", obs.ReportedAt, obs.ObservedAt)
	}
	// Optional flags default to operational rather than dropping the row.
	if !obs.IsInstalled || !obs.IsRenting || !obs.IsReturning {
		t.Fatal("expected optional flags to default true")
	}
}

func TestNormalizeStatusRow_Malformed(t *testing.T) {
	bikes := 1
	cases := map[string]RawStatusRow{
		"missing station":  {CapturedAt: "2023-03-04 08:15:00", LastReported: 1, BikesAvailable: &bikes, DocksAvailable: &bikes},
		"bad capture time": {StationID: "s", CapturedAt: "soon", LastReported: 1, BikesAvailable: &bikes, DocksAvailable: &bikes},
		"no last reported": {StationID: "s", CapturedAt: "2023-03-04 08:15:00", BikesAvailable: &bikes, DocksAvailable: &bikes},
		"missing counts":   {StationID: "s", CapturedAt: "2023-03-04 08:15:00", LastReported: 1, BikesAvailable: &bikes},
	}

	for name, row := range cases {
		if _, err := NormalizeStatusRow(row, "batch"); !errors.Is(err, ErrMalformedRecord) {
			t.Fatalf("%s: expected malformed record, got %v", name, err)
		}
	}
}
