// Package application orchestrates the ridership pipeline: batch ingestion of
// raw observations, incremental derivation, and full aggregate recomputation.
package application

import (
	"context"
	"errors"
	"log"
	"time"

	"ridership-pipeline/internal/analytics/application/eventbus"
	"ridership-pipeline/internal/analytics/application/events"
	"ridership-pipeline/internal/analytics/domain/derive"
	"ridership-pipeline/internal/analytics/domain/rollup"
	"ridership-pipeline/internal/eventing"
	ingest "ridership-pipeline/internal/ingest/domain"
	masterdata "ridership-pipeline/internal/masterdata/domain"
	"ridership-pipeline/internal/observability/metrics"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Archiver mirrors accepted observations into cold storage. Archival is best
// effort and must not fail the ingest.
type Archiver interface {
	ArchiveCounters(ctx context.Context, observations []ingest.CounterObservation) (int, error)
	ArchiveStatuses(ctx context.Context, observations []ingest.StatusObservation) (int, error)
}

// IngestResult summarizes one batch ingestion.
type IngestResult struct {
	Received   int `json:"received"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Malformed  int `json:"malformed"`
}

// RunResult summarizes one derivation + rollup pass.
type RunResult struct {
	Kind           string `json:"kind"`
	DerivedRecords int    `json:"derived_records"`
	Aggregates     int    `json:"aggregates"`
}

// PipelineConfig carries the derivation and rollup thresholds.
type PipelineConfig struct {
	MaxGapHours      float64
	MaxStaleFraction float64
}

// ErrNilDependency is returned when a required collaborator is missing.
var ErrNilDependency = errors.New("pipeline: nil dependency")

// PipelineService coordinates the full path from raw rows to aggregates.
// Ingestion is gated by the observation-store watermark, derivation resumes
// from the derived-store watermark, and the rollup always recomputes from the
// complete derived history so re-runs produce identical aggregates.
type PipelineService struct {
	counters ingest.CounterObservationRepository
	statuses ingest.StatusObservationRepository

	derivedCounters derive.CounterRecordRepository
	derivedStatuses derive.StatusRecordRepository
	aggregates      rollup.RecordRepository

	scanner  *derive.Scanner
	rollup   *rollup.Service
	mappings masterdata.MappingSource
	archive  Archiver
	bus      eventbus.EventBus
	clock    Clock
	logger   *log.Logger

	maxGapHours      float64
	maxStaleFraction float64
}

// NewPipelineService builds a PipelineService. archive, bus and logger may be
// nil; the remaining collaborators are required.
func NewPipelineService(
	counters ingest.CounterObservationRepository,
	statuses ingest.StatusObservationRepository,
	derivedCounters derive.CounterRecordRepository,
	derivedStatuses derive.StatusRecordRepository,
	aggregates rollup.RecordRepository,
	scanner *derive.Scanner,
	rollupService *rollup.Service,
	mappings masterdata.MappingSource,
	archive Archiver,
	bus eventbus.EventBus,
	clock Clock,
	logger *log.Logger,
	cfg PipelineConfig,
) (*PipelineService, error) {
	if counters == nil || statuses == nil || derivedCounters == nil || derivedStatuses == nil ||
		aggregates == nil || scanner == nil || rollupService == nil || mappings == nil {
		return nil, ErrNilDependency
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.MaxGapHours <= 0 {
		cfg.MaxGapHours = 24
	}
	if cfg.MaxStaleFraction <= 0 {
		cfg.MaxStaleFraction = 0.70
	}

	return &PipelineService{
		counters:         counters,
		statuses:         statuses,
		derivedCounters:  derivedCounters,
		derivedStatuses:  derivedStatuses,
		aggregates:       aggregates,
		scanner:          scanner,
		rollup:           rollupService,
		mappings:         mappings,
		archive:          archive,
		bus:              bus,
		clock:            clock,
		logger:           logger,
		maxGapHours:      cfg.MaxGapHours,
		maxStaleFraction: cfg.MaxStaleFraction,
	}, nil
}

// IngestCounterBatch normalizes and stores one batch of raw fare-gate rows.
// Rows at or behind the store watermark are skipped, malformed rows are
// counted and dropped, and duplicate composite ids are ignored.
func (s *PipelineService) IngestCounterBatch(ctx context.Context, rows []ingest.RawCounterRow, sourceBatch string) (IngestResult, error) {
	started := s.clock.Now()
	result := IngestResult{Received: len(rows)}

	watermark, haveWatermark, err := s.counters.MaxObservedAt(ctx)
	if err != nil {
		metrics.ObserveIngest(string(ingest.KindCounter), metrics.ResultError, time.Since(started))
		return result, err
	}

	accepted := make([]ingest.CounterObservation, 0, len(rows))
	for _, row := range rows {
		obs, err := ingest.NormalizeCounterRow(row, sourceBatch)
		if err != nil {
			result.Malformed++
			continue
		}
		if haveWatermark && !obs.ObservedAt.After(watermark) {
			result.Skipped++
			continue
		}
		accepted = append(accepted, obs)
	}

	inserted, err := s.counters.InsertIfAbsent(ctx, accepted)
	if err != nil {
		metrics.ObserveIngest(string(ingest.KindCounter), metrics.ResultError, time.Since(started))
		return result, err
	}
	result.Inserted = inserted
	result.Duplicates = len(accepted) - inserted

	s.archiveCounters(ctx, accepted)
	s.recordIngest(ctx, string(ingest.KindCounter), sourceBatch, result, started)
	return result, nil
}

// IngestStatusBatch normalizes and stores one batch of raw dock-station rows.
func (s *PipelineService) IngestStatusBatch(ctx context.Context, rows []ingest.RawStatusRow, sourceBatch string) (IngestResult, error) {
	started := s.clock.Now()
	result := IngestResult{Received: len(rows)}

	watermark, haveWatermark, err := s.statuses.MaxObservedAt(ctx)
	if err != nil {
		metrics.ObserveIngest(string(ingest.KindStatus), metrics.ResultError, time.Since(started))
		return result, err
	}

	accepted := make([]ingest.StatusObservation, 0, len(rows))
	for _, row := range rows {
		obs, err := ingest.NormalizeStatusRow(row, sourceBatch)
		if err != nil {
			result.Malformed++
			continue
		}
		if haveWatermark && !obs.ObservedAt.After(watermark) {
			result.Skipped++
			continue
		}
		accepted = append(accepted, obs)
	}

	inserted, err := s.statuses.InsertIfAbsent(ctx, accepted)
	if err != nil {
		metrics.ObserveIngest(string(ingest.KindStatus), metrics.ResultError, time.Since(started))
		return result, err
	}
	result.Inserted = inserted
	result.Duplicates = len(accepted) - inserted

	s.archiveStatuses(ctx, accepted)
	s.recordIngest(ctx, string(ingest.KindStatus), sourceBatch, result, started)
	return result, nil
}

// RunCounters derives net interval values for new fare-gate observations and
// recomputes the counter aggregates from the full derived history.
func (s *PipelineService) RunCounters(ctx context.Context) (RunResult, error) {
	started := s.clock.Now()
	result := RunResult{Kind: string(ingest.KindCounter)}

	watermark, _, err := s.derivedCounters.MaxObservedAt(ctx)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	// the listing includes each device's latest row at or before the
	// watermark so the first new interval has a predecessor
	observations, err := s.counters.ListForDerivation(ctx, watermark)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	derived, err := s.scanner.DeriveCounters(ctx, observations)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	fresh := make([]derive.CounterRecord, 0, len(derived))
	for _, record := range derived {
		if record.ObservedAt.After(watermark) {
			fresh = append(fresh, record)
		}
	}
	if err := s.derivedCounters.SaveAll(ctx, fresh); err != nil {
		return result, s.failRun(result.Kind, started, err)
	}
	result.DerivedRecords = len(fresh)
	s.countRejections(fresh)

	history, err := s.derivedCounters.ListAll(ctx)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	resolver, err := masterdata.LoadResolver(ctx, s.mappings)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	samples := make([]rollup.Sample, 0, len(history))
	for _, record := range history {
		if record.NetEntries == nil && record.NetExits == nil {
			continue
		}
		sample := rollup.Sample{
			EntityID:   resolver.Resolve(record.RemoteUnit),
			ObservedAt: record.ObservedAt,
		}
		if record.NetEntries != nil {
			sample.Entries = float64(*record.NetEntries)
		}
		if record.NetExits != nil {
			sample.Exits = float64(*record.NetExits)
		}
		samples = append(samples, sample)
	}

	aggregates, err := s.rollup.Rollup(samples)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}
	if err := s.aggregates.SaveAll(ctx, aggregates); err != nil {
		return result, s.failRun(result.Kind, started, err)
	}
	result.Aggregates = len(aggregates)
	countAggregates(aggregates)

	s.recordRun(ctx, result, started)
	return result, nil
}

// RunStatuses derives stale flags for new dock-station observations and
// recomputes the availability aggregates from trusted devices only.
func (s *PipelineService) RunStatuses(ctx context.Context) (RunResult, error) {
	started := s.clock.Now()
	result := RunResult{Kind: string(ingest.KindStatus)}

	watermark, _, err := s.derivedStatuses.MaxObservedAt(ctx)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	observations, err := s.statuses.ListForDerivation(ctx, watermark)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	derived, err := s.scanner.DeriveStatuses(ctx, observations)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	fresh := make([]derive.StatusRecord, 0, len(derived))
	stale := 0
	for _, record := range derived {
		if record.ObservedAt.After(watermark) {
			fresh = append(fresh, record)
			if record.Stale {
				stale++
			}
		}
	}
	if err := s.derivedStatuses.SaveAll(ctx, fresh); err != nil {
		return result, s.failRun(result.Kind, started, err)
	}
	result.DerivedRecords = len(fresh)
	metrics.AddStaleSnapshots(stale)

	history, err := s.derivedStatuses.ListAll(ctx)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}

	// trust is judged over the whole history so a device cannot regain
	// trust by having its bad stretch age past the watermark
	trusted := derive.TrustedDevices(history, s.maxStaleFraction)

	samples := make([]rollup.Sample, 0, len(history))
	for _, record := range history {
		if record.Stale || !trusted[record.DeviceID] {
			continue
		}
		samples = append(samples, rollup.Sample{
			EntityID:   record.DeviceID,
			ObservedAt: record.ObservedAt,
			Entries:    float64(record.BikesAvailable),
			Exits:      float64(record.DocksAvailable),
		})
	}

	aggregates, err := s.rollup.Rollup(samples)
	if err != nil {
		return result, s.failRun(result.Kind, started, err)
	}
	if err := s.aggregates.SaveAll(ctx, aggregates); err != nil {
		return result, s.failRun(result.Kind, started, err)
	}
	result.Aggregates = len(aggregates)
	countAggregates(aggregates)

	s.recordRun(ctx, result, started)
	return result, nil
}

func countAggregates(records []rollup.Record) {
	byGranularity := make(map[rollup.Granularity]int, 3)
	for _, record := range records {
		byGranularity[record.Granularity]++
	}
	for granularity, count := range byGranularity {
		metrics.AddAggregatesWritten(string(granularity), count)
	}
}

func (s *PipelineService) archiveCounters(ctx context.Context, observations []ingest.CounterObservation) {
	if s.archive == nil || len(observations) == 0 {
		return
	}
	if _, err := s.archive.ArchiveCounters(ctx, observations); err != nil && s.logger != nil {
		s.logger.Printf("pipeline: counter archive failed: %v", err)
	}
}

func (s *PipelineService) archiveStatuses(ctx context.Context, observations []ingest.StatusObservation) {
	if s.archive == nil || len(observations) == 0 {
		return
	}
	if _, err := s.archive.ArchiveStatuses(ctx, observations); err != nil && s.logger != nil {
		s.logger.Printf("pipeline: status archive failed: %v", err)
	}
}

func (s *PipelineService) countRejections(records []derive.CounterRecord) {
	gaps, anomalies := 0, 0
	for _, record := range records {
		if record.GapHours == 0 {
			continue
		}
		if record.GapHours > s.maxGapHours {
			gaps++
			continue
		}
		if record.NetEntries == nil {
			anomalies++
		}
		if record.NetExits == nil {
			anomalies++
		}
	}
	metrics.AddRejectedIntervals("gap", gaps)
	metrics.AddRejectedIntervals("anomaly", anomalies)
}

func (s *PipelineService) recordIngest(ctx context.Context, kind, sourceBatch string, result IngestResult, started time.Time) {
	metrics.ObserveIngest(kind, metrics.ResultSuccess, time.Since(started))
	metrics.AddIngestRows(kind, metrics.DispositionInserted, result.Inserted)
	metrics.AddIngestRows(kind, metrics.DispositionDuplicate, result.Duplicates)
	metrics.AddIngestRows(kind, metrics.DispositionSkipped, result.Skipped)
	metrics.AddIngestRows(kind, metrics.DispositionMalformed, result.Malformed)

	if s.logger != nil {
		s.logger.Printf("pipeline: ingested %s batch %s: received=%d inserted=%d duplicates=%d skipped=%d malformed=%d",
			kind, sourceBatch, result.Received, result.Inserted, result.Duplicates, result.Skipped, result.Malformed)
	}

	if s.bus == nil {
		return
	}
	event := events.ObservationsIngested{
		Kind:        kind,
		SourceBatch: sourceBatch,
		Received:    result.Received,
		Inserted:    result.Inserted,
		Duplicates:  result.Duplicates,
		Skipped:     result.Skipped,
		Malformed:   result.Malformed,
		OccurredAt:  s.clock.Now(),
	}
	if err := s.publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Printf("pipeline: publish ingest event: %v", err)
	}
}

func (s *PipelineService) recordRun(ctx context.Context, result RunResult, started time.Time) {
	metrics.ObserveRun(result.Kind, metrics.ResultSuccess, time.Since(started))

	if s.logger != nil {
		s.logger.Printf("pipeline: run %s: derived=%d aggregates=%d", result.Kind, result.DerivedRecords, result.Aggregates)
	}

	if s.bus == nil {
		return
	}
	event := events.RunCompleted{
		Kind:           result.Kind,
		DerivedRecords: result.DerivedRecords,
		Aggregates:     result.Aggregates,
		StartedAt:      started,
		OccurredAt:     s.clock.Now(),
	}
	if err := s.publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Printf("pipeline: publish run event: %v", err)
	}
}

// publish stamps the event with an envelope so idempotent subscribers can
// deduplicate, then hands it to the bus.
func (s *PipelineService) publish(ctx context.Context, event any) error {
	env, err := eventing.BuildEnvelope(event, eventing.MetaFromContext(ctx))
	if err != nil {
		return err
	}
	return s.bus.Publish(eventing.WithEnvelope(ctx, env), event)
}

func (s *PipelineService) failRun(kind string, started time.Time, err error) error {
	metrics.ObserveRun(kind, metrics.ResultError, time.Since(started))
	return err
}
