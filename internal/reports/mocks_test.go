package reports

import (
	"context"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/lifecycle"
)

// mockRepository serves a fixed incident set, applying the report filter the
// same way the SQL implementation does.
type mockRepository struct {
	incidents []*domain.Incident

	teams      map[string]string
	services   map[string]string
	users      map[string]string
	categories map[string]string
	tags       map[string]string

	listErr error
}

func (m *mockRepository) ListIncidents(_ context.Context, filter Filter) ([]*domain.Incident, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	out := make([]*domain.Incident, 0, len(m.incidents))
	for _, incident := range m.incidents {
		if filter.From != nil && incident.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !incident.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.TeamID != nil && (incident.TeamID == nil || *incident.TeamID != *filter.TeamID) {
			continue
		}
		if filter.ServiceID != nil && (incident.ServiceID == nil || *incident.ServiceID != *filter.ServiceID) {
			continue
		}
		if filter.Severity != nil && incident.Severity != *filter.Severity {
			continue
		}
		out = append(out, incident)
	}
	return out, nil
}

func (m *mockRepository) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	for _, incident := range m.incidents {
		if incident.ID == id {
			return incident, nil
		}
	}
	return nil, lifecycle.ErrIncidentNotFound
}

func (m *mockRepository) TeamNames(_ context.Context, ids []string) (map[string]string, error) {
	return pick(m.teams, ids), nil
}

func (m *mockRepository) ServiceNames(_ context.Context, ids []string) (map[string]string, error) {
	return pick(m.services, ids), nil
}

func (m *mockRepository) UserNames(_ context.Context, ids []string) (map[string]string, error) {
	return pick(m.users, ids), nil
}

func (m *mockRepository) CategoryNames(_ context.Context, ids []string) (map[string]string, error) {
	return pick(m.categories, ids), nil
}

func (m *mockRepository) TagNames(_ context.Context, ids []string) (map[string]string, error) {
	return pick(m.tags, ids), nil
}

func pick(names map[string]string, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			out[id] = name
		}
	}
	return out
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// resolvedIncident builds an incident created at base and resolved after d.
func resolvedIncident(id string, severity domain.Severity, base time.Time, d time.Duration) *domain.Incident {
	return &domain.Incident{
		ID:         id,
		Title:      "incident " + id,
		Status:     domain.StatusResolved,
		Severity:   severity,
		ReporterID: "user-1",
		CreatedAt:  base,
		ResolvedAt: timePtr(base.Add(d)),
	}
}
