package reports

import (
	"context"

	"github.com/bissquit/incident-pulse/internal/domain"
)

// Repository provides read access to the incident population for reporting.
// Aggregations run in the engines, not in the store, so the only data access
// is a filtered listing plus display-name lookups.
type Repository interface {
	ListIncidents(ctx context.Context, filter Filter) ([]*domain.Incident, error)

	// GetIncident backs the single-incident document export.
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)

	// Name lookups for breakdown labels and export columns.
	// Unknown ids are simply absent from the returned map.
	TeamNames(ctx context.Context, ids []string) (map[string]string, error)
	ServiceNames(ctx context.Context, ids []string) (map[string]string, error)
	UserNames(ctx context.Context, ids []string) (map[string]string, error)
	CategoryNames(ctx context.Context, ids []string) (map[string]string, error)
	TagNames(ctx context.Context, ids []string) (map[string]string, error)
}
