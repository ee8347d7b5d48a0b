package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "counter_observations_stored",
			Help: "Fare-gate observations in the store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM counter_observations")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "status_observations_stored",
			Help: "Dock-station observations in the store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM status_observations")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "aggregates_stored",
			Help: "Aggregate rows in the store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM ridership_aggregates")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
