// Package http exposes batch observation ingestion.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"ridership-pipeline/internal/analytics/application"
	ingest "ridership-pipeline/internal/ingest/domain"
)

// IngestHandler accepts raw observation batches from feed collectors.
type IngestHandler struct {
	pipeline *application.PipelineService
	logger   *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(pipeline *application.PipelineService, logger *log.Logger) (*IngestHandler, error) {
	if pipeline == nil {
		return nil, errors.New("ingest handler: nil pipeline")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{pipeline: pipeline, logger: logger}, nil
}

type ingestRequest struct {
	Kind        string                 `json:"kind"`
	SourceBatch string                 `json:"sourceBatch"`
	CounterRows []ingest.RawCounterRow `json:"counterRows"`
	StatusRows  []ingest.RawStatusRow  `json:"statusRows"`
}

// ServeHTTP ingests one raw batch. The batch carries either fare-gate rows or
// dock-station rows, never both.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	kind := ingest.Kind(req.Kind)
	if !kind.IsValid() {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}
	if req.SourceBatch == "" {
		http.Error(w, "missing sourceBatch", http.StatusBadRequest)
		return
	}

	var result application.IngestResult
	switch kind {
	case ingest.KindCounter:
		if len(req.CounterRows) == 0 {
			http.Error(w, "no rows", http.StatusBadRequest)
			return
		}
		result, err = h.pipeline.IngestCounterBatch(r.Context(), req.CounterRows, req.SourceBatch)
	case ingest.KindStatus:
		if len(req.StatusRows) == 0 {
			http.Error(w, "no rows", http.StatusBadRequest)
			return
		}
		result, err = h.pipeline.IngestStatusBatch(r.Context(), req.StatusRows, req.SourceBatch)
	}
	if err != nil {
		h.logger.Printf("ingest: %s batch %s failed: %v", kind, req.SourceBatch, err)
		http.Error(w, "ingest error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
