package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"ridership-pipeline/internal/analytics/application"
	"ridership-pipeline/internal/analytics/application/eventbus"
	"ridership-pipeline/internal/analytics/application/events"
	"ridership-pipeline/internal/analytics/domain/derive"
	"ridership-pipeline/internal/analytics/domain/period"
	"ridership-pipeline/internal/analytics/domain/rollup"
	analyticsrepo "ridership-pipeline/internal/analytics/infrastructure/postgres"
	analyticsinterfaces "ridership-pipeline/internal/analytics/interfaces"
	apihttp "ridership-pipeline/internal/api/http"
	"ridership-pipeline/internal/audit"
	"ridership-pipeline/internal/auth"
	"ridership-pipeline/internal/config"
	"ridership-pipeline/internal/eventing"
	eventingrepo "ridership-pipeline/internal/eventing/infrastructure/postgres"
	ingestrepo "ridership-pipeline/internal/ingest/infrastructure/postgres"
	"ridership-pipeline/internal/ingest/infrastructure/sqlite"
	ingesthttp "ridership-pipeline/internal/ingest/interfaces/http"
	masterdatarepo "ridership-pipeline/internal/masterdata/infrastructure/postgres"
	"ridership-pipeline/internal/observability/metrics"
	reportapp "ridership-pipeline/internal/reports/application"
	reportinterfaces "ridership-pipeline/internal/reports/interfaces"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)
	processedStore := eventingrepo.NewProcessedStore(db)

	counterRepo := ingestrepo.NewCounterObservationRepository(db)
	statusRepo := ingestrepo.NewStatusObservationRepository(db)
	derivedCounterRepo := analyticsrepo.NewDerivedCounterRepository(db)
	derivedStatusRepo := analyticsrepo.NewDerivedStatusRepository(db)
	aggregateRepo := analyticsrepo.NewAggregateRepository(db)
	mappingRepo := masterdatarepo.NewMappingRepository(db)

	var archive application.Archiver
	if cfg.ArchivePath != "" {
		sqliteArchive, err := sqlite.Open(cfg.ArchivePath)
		if err != nil {
			logger.Printf("archive disabled, open %s: %v", cfg.ArchivePath, err)
		} else {
			defer sqliteArchive.Close()
			archive = sqliteArchive
		}
	}

	scanner, err := derive.NewScanner(cfg.Derivation.Workers, cfg.Derivation.MaxGapHours, cfg.Derivation.AnomalyThreshold)
	if err != nil {
		logger.Fatalf("scanner error: %v", err)
	}
	classifier := period.NewClassifier(cfg.Aggregation.DayOffsetHours, cfg.Aggregation.MorningHours, cfg.Aggregation.EveningHours)
	rollupService, err := rollup.NewService(classifier, cfg.Aggregation.MinMonthDays)
	if err != nil {
		logger.Fatalf("rollup service error: %v", err)
	}

	bus := eventbus.NewInMemoryBus()
	application.WirePipelineEventBus(bus, auditRepo, processedStore)
	eventing.Subscribe(bus, eventbus.EventTypeOf[events.RunCompleted](), "pipeline.log", func(ctx context.Context, event any) error {
		evt, ok := event.(events.RunCompleted)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("run completed: kind=%s derived=%d aggregates=%d duration=%s",
			evt.Kind, evt.DerivedRecords, evt.Aggregates, evt.OccurredAt.Sub(evt.StartedAt))
		return nil
	}, processedStore)

	pipeline, err := application.NewPipelineService(
		counterRepo,
		statusRepo,
		derivedCounterRepo,
		derivedStatusRepo,
		aggregateRepo,
		scanner,
		rollupService,
		mappingRepo,
		archive,
		bus,
		application.SystemClock{},
		logger,
		application.PipelineConfig{
			MaxGapHours:      cfg.Derivation.MaxGapHours,
			MaxStaleFraction: cfg.Derivation.MaxStaleFraction,
		},
	)
	if err != nil {
		logger.Fatalf("pipeline service error: %v", err)
	}

	ingestHandler, err := ingesthttp.NewIngestHandler(pipeline, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	runHandler, err := analyticsinterfaces.NewRunHandler(pipeline, logger)
	if err != nil {
		logger.Fatalf("run handler error: %v", err)
	}
	reportService, err := reportapp.NewReportService(aggregateRepo, nil)
	if err != nil {
		logger.Fatalf("report service error: %v", err)
	}
	reportHandler, err := reportinterfaces.NewReportHandler(reportService, logger)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/ingest/observations", ingestHandler)
	mux.Handle("/analytics/run", runHandler)
	mux.Handle("/api/v1/aggregates", apihttp.NewAggregatesHandler(db))
	mux.Handle("/api/v1/exports/aggregates.csv", apihttp.NewExportAggregatesCSVHandler(db))
	mux.Handle("/api/v1/reports/", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
