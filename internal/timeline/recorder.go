// Package timeline provides the append-only audit trail for incidents.
package timeline

import (
	"context"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Recorder appends and reads the immutable timeline of an incident.
//
// The interface is intentionally narrow: events can be appended and listed,
// never updated. The only removal is the bulk cascade used when the owning
// incident itself is deleted; there is no per-event delete.
type Recorder interface {
	// AppendTx writes one event within the caller's transaction so the
	// audit entry commits or rolls back together with the incident write.
	AppendTx(ctx context.Context, tx pgx.Tx, event *domain.TimelineEvent) error

	// ListByIncident returns all events for an incident ordered by
	// created_at ascending (insertion order).
	ListByIncident(ctx context.Context, incidentID string) ([]*domain.TimelineEvent, error)

	// DeleteByIncidentTx removes the whole trail as part of an incident
	// cascade delete. Single bulk operation, not per-event edits.
	DeleteByIncidentTx(ctx context.Context, tx pgx.Tx, incidentID string) error
}
