// Package lifecycle implements the incident state machine: creation, status
// transitions, field updates, comments and deletion, each paired with an
// immutable timeline entry written in the same transaction.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/pkg/ctxlog"
	"github.com/bissquit/incident-pulse/internal/timeline"
	"github.com/jackc/pgx/v5"
)

// Notifier is invoked after a critical incident is created.
/// Implementations must be safe to fail: errors are logged and swallowed.
type Notifier interface {
	IncidentCreated(ctx context.Context, incident *domain.Incident) error
}

// Service implements incident lifecycle business logic.
type Service struct {
	repo     Repository
	recorder timeline.Recorder
	notifier Notifier // nil when notifications are disabled
}

// NewService creates a new lifecycle service.
func NewService(repo Repository, recorder timeline.Recorder, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		notifier: notifier,
	}
}

// CreateIncidentInput holds data for creating an incident.
// Status is not accepted: every incident starts as NEW.
type CreateIncidentInput struct {
	Title       string
	Description string
	Severity    domain.Severity
	TeamID      *string
	ServiceID   *string
	AssigneeID  *string
	CategoryIDs []string
	TagIDs      []string
}

// FieldUpdates holds the mutable incident fields.
type FieldUpdates struct {
	Severity   *domain.Severity
	AssigneeID *string
}

// CreateIncident creates an incident in status NEW, appends the opening
// STATUS_CHANGE timeline event and subscribes the reporter. Severity
// defaults to SEV3 when unset. For SEV1/SEV2 the notifier fires after
// commit; a failed notification never fails the create.
func (s *Service) CreateIncident(ctx context.Context, input CreateIncidentInput, reporterID string) (*domain.Incident, error) {
	severity := input.Severity
	if severity == "" {
		severity = domain.DefaultSeverity
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeverity, severity)
	}

	incident := &domain.Incident{
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.StatusNew,
		Severity:    severity,
		TeamID:      input.TeamID,
		ServiceID:   input.ServiceID,
		ReporterID:  reporterID,
		AssigneeID:  input.AssigneeID,
		CategoryIDs: input.CategoryIDs,
		TagIDs:      input.TagIDs,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.repo.CreateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	newStatus := domain.StatusNew
	event := &domain.TimelineEvent{
		IncidentID: incident.ID,
		Type:       domain.TimelineStatusChange,
		FromStatus: nil,
		ToStatus:   &newStatus,
		AuthorID:   reporterID,
	}
	if err := s.recorder.AppendTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("append timeline event: %w", err)
	}

	if err := s.repo.CreateSubscriptionTx(ctx, tx, incident.ID, reporterID); err != nil {
		return nil, fmt.Errorf("subscribe reporter: %w", err)
	}
	if incident.AssigneeID != nil {
		if err := s.repo.CreateSubscriptionTx(ctx, tx, incident.ID, *incident.AssigneeID); err != nil {
			return nil, fmt.Errorf("subscribe assignee: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	IncidentsCreated.WithLabelValues(string(incident.Severity)).Inc()

	if s.notifier != nil && incident.Severity.IsCritical() {
		if err := s.notifier.IncidentCreated(ctx, incident); err != nil {
			ctxlog.FromContext(ctx).Error("incident notification failed",
				"incident_id", incident.ID,
				"severity", incident.Severity,
				"error", err,
			)
		}
	}

	return incident, nil
}

// ChangeStatus applies a status transition. It fails with
// ErrIncidentNotFound when the incident does not exist and
// ErrInvalidTransition when the target is not in the allowed-next set of
// the current status (including a transition to the same status).
func (s *Service) ChangeStatus(ctx context.Context, id string, newStatus domain.Status, message, actorID string) (*domain.Incident, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, newStatus)
	}

	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	if !incident.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, incident.Status, newStatus)
	}

	fromStatus := incident.Status
	incident.Status = newStatus
	applyMilestone(incident, newStatus, time.Now().UTC())

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.repo.UpdateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	event := &domain.TimelineEvent{
		IncidentID: incident.ID,
		Type:       domain.TimelineStatusChange,
		FromStatus: &fromStatus,
		ToStatus:   &newStatus,
		Message:    message,
		AuthorID:   actorID,
	}
	if err := s.recorder.AppendTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("append timeline event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	StatusTransitions.WithLabelValues(string(fromStatus), string(newStatus)).Inc()

	return incident, nil
}

// applyMilestone sets the derived timestamp for a freshly reached status.
// Each milestone is set at most once, so reopening and re-resolving keeps
// the original timestamps.
func applyMilestone(incident *domain.Incident, status domain.Status, now time.Time) {
	switch status {
	case domain.StatusTriaged:
		if incident.TriagedAt == nil {
			incident.TriagedAt = &now
		}
	case domain.StatusInProgress:
		if incident.InProgressAt == nil {
			incident.InProgressAt = &now
		}
	case domain.StatusResolved:
		if incident.ResolvedAt == nil {
			incident.ResolvedAt = &now
		}
	case domain.StatusClosed:
		if incident.ClosedAt == nil {
			incident.ClosedAt = &now
		}
	}
}

// UpdateFields applies severity and assignee changes. Every changed field
// appends its own timeline entry: FIELD_UPDATE for severity, ASSIGNMENT for
// the assignee. Setting an assignee also subscribes them to the incident.
func (s *Service) UpdateFields(ctx context.Context, id string, updates FieldUpdates, actorID string) (*domain.Incident, error) {
	if updates.Severity != nil && !updates.Severity.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeverity, *updates.Severity)
	}

	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	severityChanged := updates.Severity != nil && *updates.Severity != incident.Severity
	assigneeChanged := updates.AssigneeID != nil &&
		(incident.AssigneeID == nil || *incident.AssigneeID != *updates.AssigneeID)

	if !severityChanged && !assigneeChanged {
		return incident, nil
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if severityChanged {
		oldSeverity := incident.Severity
		incident.Severity = *updates.Severity

		event := &domain.TimelineEvent{
			IncidentID: incident.ID,
			Type:       domain.TimelineFieldUpdate,
			Message:    fmt.Sprintf("severity changed from %s to %s", oldSeverity, incident.Severity),
			AuthorID:   actorID,
		}
		if err := s.recorder.AppendTx(ctx, tx, event); err != nil {
			return nil, fmt.Errorf("append severity event: %w", err)
		}
	}

	if assigneeChanged {
		oldAssignee := "nobody"
		if incident.AssigneeID != nil {
			oldAssignee = *incident.AssigneeID
		}
		incident.AssigneeID = updates.AssigneeID

		event := &domain.TimelineEvent{
			IncidentID: incident.ID,
			Type:       domain.TimelineAssignment,
			Message:    fmt.Sprintf("assignee changed from %s to %s", oldAssignee, *updates.AssigneeID),
			AuthorID:   actorID,
		}
		if err := s.recorder.AppendTx(ctx, tx, event); err != nil {
			return nil, fmt.Errorf("append assignment event: %w", err)
		}

		if err := s.repo.CreateSubscriptionTx(ctx, tx, incident.ID, *updates.AssigneeID); err != nil {
			return nil, fmt.Errorf("subscribe assignee: %w", err)
		}
	}

	if err := s.repo.UpdateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return incident, nil
}

// AddComment stores a comment and appends a COMMENT timeline event carrying
// the same body, in one transaction.
func (s *Service) AddComment(ctx context.Context, id, body, actorID string) (*domain.Comment, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		IncidentID: incident.ID,
		AuthorID:   actorID,
		Body:       body,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.repo.CreateCommentTx(ctx, tx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	event := &domain.TimelineEvent{
		IncidentID: incident.ID,
		Type:       domain.TimelineComment,
		Message:    body,
		AuthorID:   actorID,
	}
	if err := s.recorder.AppendTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("append comment event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return comment, nil
}

// DeleteIncident removes an incident and cascades to its timeline events,
// comments and subscriptions. Only the reporter may delete.
func (s *Service) DeleteIncident(ctx context.Context, id, actorID string) error {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return err
	}

	if incident.ReporterID != actorID {
		return ErrForbidden
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.recorder.DeleteByIncidentTx(ctx, tx, id); err != nil {
		return fmt.Errorf("delete timeline: %w", err)
	}
	if err := s.repo.DeleteCommentsTx(ctx, tx, id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if err := s.repo.DeleteSubscriptionsTx(ctx, tx, id); err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}
	if err := s.repo.DeleteIncidentTx(ctx, tx, id); err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetIncident retrieves an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, id)
}

// ListIncidents retrieves incidents with optional filters.
func (s *Service) ListIncidents(ctx context.Context, filters IncidentFilters) ([]*domain.Incident, error) {
	return s.repo.ListIncidents(ctx, filters)
}

// ListComments returns the incident's comments in insertion order.
func (s *Service) ListComments(ctx context.Context, id string) ([]*domain.Comment, error) {
	if _, err := s.repo.GetIncident(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, id)
}

// GetTimeline returns the incident's audit trail in insertion order.
func (s *Service) GetTimeline(ctx context.Context, id string) ([]*domain.TimelineEvent, error) {
	if _, err := s.repo.GetIncident(ctx, id); err != nil {
		return nil, err
	}
	return s.recorder.ListByIncident(ctx, id)
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
