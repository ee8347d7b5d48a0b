package application

import (
	"context"
	"encoding/json"

	"ridership-pipeline/internal/analytics/application/eventbus"
	"ridership-pipeline/internal/analytics/application/events"
	"ridership-pipeline/internal/audit"
	"ridership-pipeline/internal/eventing"
)

// WirePipelineEventBus registers the audit trail on the event bus. Ingestion
// and run milestones become audit entries; the processed store keeps replayed
// events from being recorded twice.
func WirePipelineEventBus(bus eventbus.EventBus, auditor audit.Logger, processed eventing.ProcessedStore) {
	if bus == nil || auditor == nil {
		return
	}

	eventing.Subscribe(bus, eventbus.EventTypeOf[events.ObservationsIngested](), "pipeline.audit.ingest", func(ctx context.Context, event any) error {
		evt, ok := event.(events.ObservationsIngested)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		metadata, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return auditor.Log(ctx, audit.Entry{
			Actor:        "pipeline",
			Action:       "observations.ingested",
			ResourceType: "batch",
			ResourceID:   evt.SourceBatch,
			Metadata:     metadata,
			CreatedAt:    evt.OccurredAt,
		})
	}, processed)

	eventing.Subscribe(bus, eventbus.EventTypeOf[events.RunCompleted](), "pipeline.audit.run", func(ctx context.Context, event any) error {
		evt, ok := event.(events.RunCompleted)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		metadata, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return auditor.Log(ctx, audit.Entry{
			Actor:        "pipeline",
			Action:       "run.completed",
			ResourceType: "run",
			ResourceID:   evt.Kind,
			Metadata:     metadata,
			CreatedAt:    evt.OccurredAt,
		})
	}, processed)
}
