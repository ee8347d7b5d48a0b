// Package interfaces exposes the pipeline's HTTP surface for the analytics
// context.
package interfaces

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"ridership-pipeline/internal/analytics/application"
	ingest "ridership-pipeline/internal/ingest/domain"
)

// RunHandler triggers derivation + rollup passes over the stored observations.
type RunHandler struct {
	pipeline *application.PipelineService
	logger   *log.Logger
}

// NewRunHandler constructs the handler.
func NewRunHandler(pipeline *application.PipelineService, logger *log.Logger) (*RunHandler, error) {
	if pipeline == nil {
		return nil, errors.New("run handler: nil pipeline")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RunHandler{pipeline: pipeline, logger: logger}, nil
}

type runRequest struct {
	Kind string `json:"kind"`
}

// ServeHTTP runs the requested pipeline kinds. An empty kind runs both.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			h.logger.Printf("run: read body error: %v", err)
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				h.logger.Printf("run: decode error: %v", err)
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}
	}

	var kinds []ingest.Kind
	switch req.Kind {
	case "":
		kinds = []ingest.Kind{ingest.KindCounter, ingest.KindStatus}
	case string(ingest.KindCounter):
		kinds = []ingest.Kind{ingest.KindCounter}
	case string(ingest.KindStatus):
		kinds = []ingest.Kind{ingest.KindStatus}
	default:
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}

	results := make([]application.RunResult, 0, len(kinds))
	for _, kind := range kinds {
		var (
			result application.RunResult
			err    error
		)
		if kind == ingest.KindCounter {
			result, err = h.pipeline.RunCounters(r.Context())
		} else {
			result, err = h.pipeline.RunStatuses(r.Context())
		}
		if err != nil {
			h.logger.Printf("run: %s failed: %v", kind, err)
			http.Error(w, "run error", http.StatusInternalServerError)
			return
		}
		results = append(results, result)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"results": results,
	})
}
