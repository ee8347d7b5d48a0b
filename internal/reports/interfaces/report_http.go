package interfaces

import (
	"errors"
	"log"
	"net/http"
	"time"

	"ridership-pipeline/internal/observability/metrics"
	reportapp "ridership-pipeline/internal/reports/application"
)

// ReportHandler serves monthly report downloads under /api/v1/reports.
type ReportHandler struct {
	service *reportapp.ReportService
	logger  *log.Logger
}

// NewReportHandler constructs a handler.
func NewReportHandler(service *reportapp.ReportService, logger *log.Logger) (*ReportHandler, error) {
	if service == nil {
		return nil, errors.New("report handler: nil service")
	}
	return &ReportHandler{service: service, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/reports/monthly.pdf and monthly.xlsx.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/reports/monthly.pdf":
		h.handleMonthly(w, r, "pdf")
	case "/api/v1/reports/monthly.xlsx":
		h.handleMonthly(w, r, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ReportHandler) handleMonthly(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	month, err := reportapp.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	entityID := r.URL.Query().Get("entity_id")

	report, err := h.service.BuildMonthly(r.Context(), month, entityID)
	if err != nil {
		result = metrics.ResultError
		h.logf("build monthly report: %v", err)
		http.Error(w, "report build error", http.StatusInternalServerError)
		return
	}

	var data []byte
	switch format {
	case "pdf":
		data, err = BuildMonthlyReportPDF(report)
		w.Header().Set("Content-Type", "application/pdf")
	case "xlsx":
		data, err = BuildMonthlyReportXLSX(report)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	if err != nil {
		result = metrics.ResultError
		h.logf("render monthly report %s: %v", format, err)
		http.Error(w, "report render error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ReportHandler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
