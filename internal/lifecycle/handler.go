package lifecycle

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Pagination constants.
const (
	DefaultIncidentsLimit = 50
	MaxIncidentsLimit     = 200
)

// Handler handles HTTP requests for the lifecycle module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new lifecycle handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the lifecycle module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.CreateIncident)
	r.Get("/", h.ListIncidents)
	r.Get("/{id}", h.GetIncident)
	r.Patch("/{id}", h.UpdateIncident)
	r.Patch("/{id}/status", h.ChangeStatus)
	r.Delete("/{id}", h.DeleteIncident)
	r.Post("/{id}/comments", h.AddComment)
	r.Get("/{id}/comments", h.ListComments)
	r.Get("/{id}/timeline", h.GetTimeline)
}

var incidentErrorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidTransition, Status: http.StatusConflict},
	{Error: ErrForbidden, Status: http.StatusForbidden},
	{Error: ErrInvalidSeverity, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
}

// CreateIncidentRequest represents the request body for creating an incident.
// Status is not accepted: every incident starts as NEW.
type CreateIncidentRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=255"`
	Description string   `json:"description" validate:"max=10000"`
	Severity    string   `json:"severity" validate:"omitempty,oneof=sev1 sev2 sev3 sev4"`
	TeamID      *string  `json:"team_id"`
	ServiceID   *string  `json:"service_id"`
	AssigneeID  *string  `json:"assignee_id"`
	CategoryIDs []string `json:"category_ids"`
	TagIDs      []string `json:"tag_ids"`
}

// ToInput converts the request to a service input.
func (r *CreateIncidentRequest) ToInput() CreateIncidentInput {
	return CreateIncidentInput{
		Title:       r.Title,
		Description: r.Description,
		Severity:    domain.Severity(r.Severity),
		TeamID:      r.TeamID,
		ServiceID:   r.ServiceID,
		AssigneeID:  r.AssigneeID,
		CategoryIDs: r.CategoryIDs,
		TagIDs:      r.TagIDs,
	}
}

// ChangeStatusRequest represents the request body for a status transition.
type ChangeStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=new triaged in_progress on_hold resolved closed reopened"`
	Message string `json:"message" validate:"max=10000"`
}

// UpdateIncidentRequest represents the request body for a field update.
type UpdateIncidentRequest struct {
	Severity   *string `json:"severity" validate:"omitempty,oneof=sev1 sev2 sev3 sev4"`
	AssigneeID *string `json:"assignee_id"`
}

// AddCommentRequest represents the request body for adding a comment.
type AddCommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=10000"`
}

// CreateIncident handles POST / request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	reporterID := httputil.GetUserID(r.Context())
	incident, err := h.service.CreateIncident(r.Context(), req.ToInput(), reporterID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// GetIncident handles GET /{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// ListIncidents handles GET / request.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	filters := IncidentFilters{Limit: DefaultIncidentsLimit}
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status := domain.Status(raw)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filters.Status = &status
	}
	if raw := q.Get("severity"); raw != "" {
		severity := domain.Severity(raw)
		if !severity.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid severity filter")
			return
		}
		filters.Severity = &severity
	}
	if teamID := q.Get("team_id"); teamID != "" {
		filters.TeamID = &teamID
	}
	if serviceID := q.Get("service_id"); serviceID != "" {
		filters.ServiceID = &serviceID
	}

	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > MaxIncidentsLimit {
			parsed = MaxIncidentsLimit
		}
		filters.Limit = parsed
	}
	if o := q.Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filters.Offset = parsed
	}

	incidents, err := h.service.ListIncidents(r.Context(), filters)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"limit":     filters.Limit,
		"offset":    filters.Offset,
	})
}

// ChangeStatus handles PATCH /{id}/status request.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	actorID := httputil.GetUserID(r.Context())
	incident, err := h.service.ChangeStatus(r.Context(), chi.URLParam(r, "id"), domain.Status(req.Status), req.Message, actorID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// UpdateIncident handles PATCH /{id} request.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	var req UpdateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	updates := FieldUpdates{AssigneeID: req.AssigneeID}
	if req.Severity != nil {
		severity := domain.Severity(*req.Severity)
		updates.Severity = &severity
	}

	actorID := httputil.GetUserID(r.Context())
	incident, err := h.service.UpdateFields(r.Context(), chi.URLParam(r, "id"), updates, actorID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// AddComment handles POST /{id}/comments request.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	actorID := httputil.GetUserID(r.Context())
	comment, err := h.service.AddComment(r.Context(), chi.URLParam(r, "id"), req.Body, actorID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, comment)
}

// ListComments handles GET /{id}/comments request.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

// GetTimeline handles GET /{id}/timeline request.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.GetTimeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{"events": events})
}

// DeleteIncident handles DELETE /{id} request. Only the reporter may delete;
// the removal cascades to timeline events, comments and subscriptions.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	actorID := httputil.GetUserID(r.Context())
	if err := h.service.DeleteIncident(r.Context(), chi.URLParam(r, "id"), actorID); err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
