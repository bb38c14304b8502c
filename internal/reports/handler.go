package reports

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/lifecycle"
	"github.com/bissquit/incident-pulse/internal/pkg/ctxlog"
	"github.com/bissquit/incident-pulse/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the reports module.
type Handler struct {
	aggregator *Aggregator
	breakdown  *BreakdownEngine
	timeseries *TimeseriesEngine
	exporter   *Exporter
	renderer   *TextRenderer
}

// NewHandler creates a new reports handler.
func NewHandler(aggregator *Aggregator, breakdown *BreakdownEngine, timeseries *TimeseriesEngine, exporter *Exporter, renderer *TextRenderer) *Handler {
	return &Handler{
		aggregator: aggregator,
		breakdown:  breakdown,
		timeseries: timeseries,
		exporter:   exporter,
		renderer:   renderer,
	}
}

// RegisterRoutes registers all HTTP routes for the reports module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/kpis", h.GetKPIs)
	r.Get("/breakdown", h.GetBreakdown)
	r.Get("/timeseries", h.GetTimeseries)
	r.Get("/export.csv", h.ExportCSV)
	r.Get("/incidents/{id}/document", h.ExportIncidentDocument)
}

var reportErrorMappings = []httputil.ErrorMapping{
	{Error: ErrUnknownGroupBy, Status: http.StatusBadRequest},
	{Error: ErrUnknownInterval, Status: http.StatusBadRequest},
	{Error: ErrInvalidRange, Status: http.StatusBadRequest},
	{Error: ErrInvalidSeverity, Status: http.StatusBadRequest},
	{Error: lifecycle.ErrIncidentNotFound, Status: http.StatusNotFound},
}

// parseFilter reads the shared report filter from query parameters.
func parseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("%w: from must be RFC 3339", ErrInvalidRange)
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("%w: to must be RFC 3339", ErrInvalidRange)
		}
		filter.To = &t
	}
	if teamID := q.Get("team_id"); teamID != "" {
		filter.TeamID = &teamID
	}
	if serviceID := q.Get("service_id"); serviceID != "" {
		filter.ServiceID = &serviceID
	}
	if raw := q.Get("severity"); raw != "" {
		severity := domain.Severity(raw)
		if !severity.IsValid() {
			return filter, fmt.Errorf("%w: %s", ErrInvalidSeverity, raw)
		}
		filter.Severity = &severity
	}

	return filter, nil
}

// GetKPIs handles GET /kpis request.
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	kpis, err := h.aggregator.GetKPIs(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, kpis)
}

// GetBreakdown handles GET /breakdown request.
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	groupBy := GroupBy(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		httputil.Error(w, http.StatusBadRequest, "group_by is required")
		return
	}

	buckets, err := h.breakdown.GetBreakdown(r.Context(), filter, groupBy)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"group_by": groupBy,
		"buckets":  buckets,
	})
}

// GetTimeseries handles GET /timeseries request.
func (h *Handler) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	interval := Interval(r.URL.Query().Get("interval"))
	if interval == "" {
		interval = IntervalDay
	}

	points, err := h.timeseries.GetTimeseries(r.Context(), filter, interval)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"interval": interval,
		"points":   points,
	})
}

// ExportCSV handles GET /export.csv request. The CSV is buffered before the
// first byte goes out so failures still map to a proper error status instead
// of a truncated download.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.WriteCSV(r.Context(), filter, &buf); err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName(time.Now())))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to write csv export", "error", err)
	}
}

// ExportIncidentDocument handles GET /incidents/{id}/document request.
func (h *Handler) ExportIncidentDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := h.exporter.ExportIncidentDocument(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, reportErrorMappings)
		return
	}

	w.Header().Set("Content-Type", h.renderer.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to write document export", "error", err)
	}
}
