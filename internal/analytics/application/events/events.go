// Package events defines the application events published by the pipeline.
package events

import "time"

// ObservationsIngested is raised after a raw batch has been normalized and
// persisted. Skipped counts rows at or behind the watermark, Duplicates counts
// rows whose observation id already existed.
type ObservationsIngested struct {
	Kind        string
	SourceBatch string
	Received    int
	Inserted    int
	Duplicates  int
	Skipped     int
	Malformed   int
	OccurredAt  time.Time
}

// RunCompleted is emitted when a derivation and rollup pass has been persisted.
type RunCompleted struct {
	Kind           string
	DerivedRecords int
	Aggregates     int
	StartedAt      time.Time
	OccurredAt     time.Time
}
