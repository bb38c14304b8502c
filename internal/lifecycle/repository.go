package lifecycle

import (
	"context"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for incident storage.
type Repository interface {
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filters IncidentFilters) ([]*domain.Incident, error)

	ListComments(ctx context.Context, incidentID string) ([]*domain.Comment, error)

	// Transaction support. Incident mutations and their timeline appends
	// must share one transaction so a crash never leaves a status change
	// without its audit entry.
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	UpdateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	CreateCommentTx(ctx context.Context, tx pgx.Tx, comment *domain.Comment) error
	CreateSubscriptionTx(ctx context.Context, tx pgx.Tx, incidentID, userID string) error
	DeleteSubscriptionsTx(ctx context.Context, tx pgx.Tx, incidentID string) error
	DeleteCommentsTx(ctx context.Context, tx pgx.Tx, incidentID string) error
	DeleteIncidentTx(ctx context.Context, tx pgx.Tx, id string) error
}

// IncidentFilters holds filter options for listing incidents.
type IncidentFilters struct {
	Status   *domain.Status
	Severity *domain.Severity
	TeamID   *string
	ServiceID *string
	Limit    int
	Offset   int
}
