package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnknownField is the null marker substituted for missing optional fields.
// A row is never dropped for a missing optional field, only annotated.
const UnknownField = "UNKNOWN"

// counterTimeLayout matches the upstream feed's separate date and time columns.
const counterTimeLayout = "01/02/2006 15:04:05"

// ErrMalformedRecord is the sentinel matched by errors.Is for any
// MalformedRecordError.
var ErrMalformedRecord = errors.New("ingest: malformed record")

// MalformedRecordError reports a raw row missing a required field. The row is
// skipped and counted; it never aborts the rest of the batch.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("ingest: malformed record: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedRecord) hold for this type.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func malformed(field, reason string) error {
	return &MalformedRecordError{Field: field, Reason: reason}
}

// RawCounterRow is a loosely-typed fare-gate row as handed over by the
// ingestion collaborator. Numeric fields arrive as text.
type RawCounterRow struct {
	ControlArea string `json:"controlArea"`
	RemoteUnit  string `json:"remoteUnit"`
	Channel     string `json:"channel"`
	Station     string `json:"station"`
	LineNames   string `json:"lineNames"`
	Division    string `json:"division"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Entries     string `json:"entries"`
	Exits       string `json:"exits"`
}

// RawStatusRow is a loosely-typed dock-station snapshot row. LastReported is
// a unix timestamp in seconds, as emitted by the feed.
type RawStatusRow struct {
	StationID       string `json:"stationId"`
	CapturedAt      string `json:"capturedAt"`
	LastReported    int64  `json:"lastReported"`
	BikesAvailable  *int   `json:"bikesAvailable"`
	DocksAvailable  *int   `json:"docksAvailable"`
	BikesDisabled   *int   `json:"bikesDisabled"`
	DocksDisabled   *int   `json:"docksDisabled"`
	EBikesAvailable *int   `json:"ebikesAvailable"`
	IsInstalled     *bool  `json:"isInstalled"`
	IsRenting       *bool  `json:"isRenting"`
	IsReturning     *bool  `json:"isReturning"`
}

// NormalizeCounterRow turns a raw fare-gate row into a canonical observation.
// Identity components, a parseable timestamp, and both register values are
// required; other fields fall back to the null marker.
func NormalizeCounterRow(row RawCounterRow, sourceBatch string) (CounterObservation, error) {
	controlArea := strings.TrimSpace(row.ControlArea)
	remoteUnit := strings.TrimSpace(row.RemoteUnit)
	channel := strings.TrimSpace(row.Channel)
	if controlArea == "" || remoteUnit == "" || channel == "" {
		return CounterObservation{}, malformed("device", "missing identity component")
	}

	observedAt, err := time.ParseInLocation(counterTimeLayout, strings.TrimSpace(row.Date)+" "+strings.TrimSpace(row.Time), time.Local)
	if err != nil {
		return CounterObservation{}, malformed("observed_at", "unparseable timestamp")
	}

	entries, err := strconv.ParseInt(strings.TrimSpace(row.Entries), 10, 64)
	if err != nil {
		return CounterObservation{}, malformed("entries", "missing or non-numeric")
	}
	exits, err := strconv.ParseInt(strings.TrimSpace(row.Exits), 10, 64)
	if err != nil {
		return CounterObservation{}, malformed("exits", "missing or non-numeric")
	}

	deviceID := controlArea + remoteUnit + channel
	return CounterObservation{
		ID:          ObservationID(deviceID, observedAt),
		DeviceID:    deviceID,
		ControlArea: controlArea,
		RemoteUnit:  remoteUnit,
		Channel:     channel,
		Station:     orUnknown(row.Station),
		LineNames:   orUnknown(row.LineNames),
		Division:    orUnknown(row.Division),
		Description: orUnknown(row.Description),
		ObservedAt:  observedAt,
		Entries:     entries,
		Exits:       exits,
		SourceBatch: sourceBatch,
	}, nil
}

// NormalizeStatusRow turns a raw dock-station snapshot into a canonical
// observation. Station id, capture time, last-reported time, and the two
// primary availability counts are required.
func NormalizeStatusRow(row RawStatusRow, sourceBatch string) (StatusObservation, error) {
	stationID := strings.TrimSpace(row.StationID)
	if stationID == "" {
		return StatusObservation{}, malformed("station_id", "missing identity")
	}

	capturedAt, err := time.ParseInLocation(time.DateTime, strings.TrimSpace(row.CapturedAt), time.Local)
	if err != nil {
		return StatusObservation{}, malformed("captured_at", "unparseable timestamp")
	}
	if row.LastReported <= 0 {
		return StatusObservation{}, malformed("last_reported", "missing or invalid")
	}
	if row.BikesAvailable == nil || row.DocksAvailable == nil {
		return StatusObservation{}, malformed("availability", "missing primary counts")
	}

	return StatusObservation{
		ID:              ObservationID(stationID, capturedAt),
		DeviceID:        stationID,
		ObservedAt:      capturedAt,
		ReportedAt:      time.Unix(row.LastReported, 0).In(capturedAt.Location()),
		BikesAvailable:  *row.BikesAvailable,
		DocksAvailable:  *row.DocksAvailable,
		BikesDisabled:   intOrZero(row.BikesDisabled),
		DocksDisabled:   intOrZero(row.DocksDisabled),
		EBikesAvailable: intOrZero(row.EBikesAvailable),
		IsInstalled:     boolOrTrue(row.IsInstalled),
		IsRenting:       boolOrTrue(row.IsRenting),
		IsReturning:     boolOrTrue(row.IsReturning),
		SourceBatch:     sourceBatch,
	}, nil
}

func orUnknown(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return UnknownField
	}
	return value
}

func intOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func boolOrTrue(value *bool) bool {
	if value == nil {
		return true
	}
	return *value
}
