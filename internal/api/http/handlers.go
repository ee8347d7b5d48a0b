// Package apihttp serves the read-side query endpoints.
package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ridership-pipeline/internal/observability/metrics"
)

const timeLayout = time.RFC3339

// AggregatesHandler serves ridership aggregate queries.
type AggregatesHandler struct {
	db *sql.DB
}

// NewAggregatesHandler constructs an AggregatesHandler.
func NewAggregatesHandler(db *sql.DB) *AggregatesHandler {
	return &AggregatesHandler{db: db}
}

// ServeHTTP handles GET /api/v1/aggregates.
func (h *AggregatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	params, err := parseAggregateQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := queryAggregates(r.Context(), h.db, params)
	if err != nil {
		http.Error(w, "query aggregates error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportAggregatesCSVHandler serves aggregate CSV exports.
type ExportAggregatesCSVHandler struct {
	db *sql.DB
}

// NewExportAggregatesCSVHandler constructs an ExportAggregatesCSVHandler.
func NewExportAggregatesCSVHandler(db *sql.DB) *ExportAggregatesCSVHandler {
	return &ExportAggregatesCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/aggregates.csv.
func (h *ExportAggregatesCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("csv", result, time.Since(start))
	}()

	params, err := parseAggregateQuery(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := queryAggregates(r.Context(), h.db, params)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "query aggregates error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"entity_id",
		"variant",
		"time_type",
		"time_key",
		"period_start",
		"entries_sum",
		"exits_sum",
		"mean_daily_entries",
		"mean_daily_exits",
		"observation_count",
		"contributing_days",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.EntityID,
			row.Variant,
			row.TimeType,
			row.TimeKey,
			row.PeriodStart.Format(timeLayout),
			formatFloat(row.EntriesSum),
			formatFloat(row.ExitsSum),
			formatFloat(row.MeanDailyEntries),
			formatFloat(row.MeanDailyExits),
			formatInt(row.ObservationCount),
			formatInt(row.ContributingDays),
		})
	}
	writer.Flush()
}

type aggregateRow struct {
	EntityID         string    `json:"entity_id"`
	Variant          string    `json:"variant"`
	TimeType         string    `json:"time_type"`
	TimeKey          string    `json:"time_key"`
	PeriodStart      time.Time `json:"period_start"`
	EntriesSum       float64   `json:"entries_sum"`
	ExitsSum         float64   `json:"exits_sum"`
	MeanDailyEntries float64   `json:"mean_daily_entries"`
	MeanDailyExits   float64   `json:"mean_daily_exits"`
	ObservationCount int       `json:"observation_count"`
	ContributingDays int       `json:"contributing_days"`
}

type aggregateQuery struct {
	entityID string
	variant  string
	timeType string
	from     time.Time
	to       time.Time
}

func parseAggregateQuery(r *http.Request) (aggregateQuery, error) {
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		return aggregateQuery{}, errors.New("entity_id is required")
	}

	variant := r.URL.Query().Get("variant")
	if variant == "" {
		variant = "all"
	}
	switch variant {
	case "all", "morning_peak", "evening_peak", "peak", "offpeak":
	default:
		return aggregateQuery{}, errors.New("unknown variant")
	}

	timeType, err := resolveTimeType(r.URL.Query().Get("granularity"))
	if err != nil {
		return aggregateQuery{}, err
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return aggregateQuery{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return aggregateQuery{}, err
	}
	if !to.After(from) {
		return aggregateQuery{}, errors.New("to must be after from")
	}

	return aggregateQuery{
		entityID: entityID,
		variant:  variant,
		timeType: timeType,
		from:     from,
		to:       to,
	}, nil
}

func queryAggregates(ctx context.Context, db *sql.DB, params aggregateQuery) ([]aggregateRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
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
FROM ridership_aggregates
WHERE entity_id = $1
	AND variant = $2
	AND time_type = $3
	AND period_start >= $4
	AND period_start < $5
ORDER BY period_start ASC`, params.entityID, params.variant, params.timeType, params.from.UTC(), params.to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []aggregateRow
	for rows.Next() {
		var row aggregateRow
		if err := rows.Scan(
			&row.EntityID,
			&row.Variant,
			&row.TimeType,
			&row.TimeKey,
			&row.PeriodStart,
			&row.EntriesSum,
			&row.ExitsSum,
			&row.MeanDailyEntries,
			&row.MeanDailyExits,
			&row.ObservationCount,
			&row.ContributingDays,
		); err != nil {
			return nil, err
		}
		row.PeriodStart = row.PeriodStart.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func resolveTimeType(granularity string) (string, error) {
	switch granularity {
	case "day":
		return "DAY", nil
	case "month":
		return "MONTH", nil
	case "year":
		return "YEAR", nil
	default:
		return "", errors.New("granularity must be day, month or year")
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatInt(value int) string {
	return strconv.Itoa(value)
}
