// Package postgres provides the PostgreSQL implementation of the reports repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/lifecycle"
	"github.com/bissquit/incident-pulse/internal/reports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements reports.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `
	id, title, description, status, severity,
	team_id, service_id, reporter_id, assignee_id,
	created_at, updated_at, triaged_at, in_progress_at, resolved_at, closed_at
`

func scanIncident(row pgx.Row, incident *domain.Incident) error {
	return row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Status,
		&incident.Severity,
		&incident.TeamID,
		&incident.ServiceID,
		&incident.ReporterID,
		&incident.AssigneeID,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.TriagedAt,
		&incident.InProgressAt,
		&incident.ResolvedAt,
		&incident.ClosedAt,
	)
}

// ListIncidents retrieves the filtered report population, oldest first.
// The createdAt range is half-open: from inclusive, to exclusive.
func (r *Repository) ListIncidents(ctx context.Context, filter reports.Filter) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filter.From)
		argNum++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argNum)
		args = append(args, *filter.To)
		argNum++
	}
	if filter.TeamID != nil {
		query += fmt.Sprintf(" AND team_id = $%d", argNum)
		args = append(args, *filter.TeamID)
		argNum++
	}
	if filter.ServiceID != nil {
		query += fmt.Sprintf(" AND service_id = $%d", argNum)
		args = append(args, *filter.ServiceID)
		argNum++
	}
	if filter.Severity != nil {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, *filter.Severity)
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		if err := scanIncident(rows, &incident); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, &incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	for _, incident := range incidents {
		if err := r.loadRelations(ctx, incident); err != nil {
			return nil, err
		}
	}
	return incidents, nil
}

// GetIncident retrieves one incident with its category and tag sets.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	var incident domain.Incident
	if err := scanIncident(r.db.QueryRow(ctx, query, id), &incident); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lifecycle.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}

	if err := r.loadRelations(ctx, &incident); err != nil {
		return nil, err
	}
	return &incident, nil
}

// TeamNames resolves team display names.
func (r *Repository) TeamNames(ctx context.Context, ids []string) (map[string]string, error) {
	return r.names(ctx, "teams", ids)
}

// ServiceNames resolves service display names.
func (r *Repository) ServiceNames(ctx context.Context, ids []string) (map[string]string, error) {
	return r.names(ctx, "services", ids)
}

// UserNames resolves user display names.
func (r *Repository) UserNames(ctx context.Context, ids []string) (map[string]string, error) {
	return r.names(ctx, "users", ids)
}

// CategoryNames resolves category display names.
func (r *Repository) CategoryNames(ctx context.Context, ids []string) (map[string]string, error) {
	return r.names(ctx, "categories", ids)
}

// TagNames resolves tag display names.
func (r *Repository) TagNames(ctx context.Context, ids []string) (map[string]string, error) {
	return r.names(ctx, "tags", ids)
}

// names looks up id -> name for one of the catalog tables. Unknown ids are
// absent from the result. The table name is always one of the fixed catalog
// tables above, never caller input.
func (r *Repository) names(ctx context.Context, table string, ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`SELECT id, name FROM %s WHERE id = ANY($1)`, table)
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup %s names: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan %s name: %w", table, err)
		}
		result[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s names: %w", table, err)
	}
	return result, nil
}

func (r *Repository) loadRelations(ctx context.Context, incident *domain.Incident) error {
	categoryIDs, err := r.listRelation(ctx,
		`SELECT category_id FROM incident_categories WHERE incident_id = $1 ORDER BY category_id`,
		incident.ID,
	)
	if err != nil {
		return fmt.Errorf("get incident categories: %w", err)
	}
	incident.CategoryIDs = categoryIDs

	tagIDs, err := r.listRelation(ctx,
		`SELECT tag_id FROM incident_tags WHERE incident_id = $1 ORDER BY tag_id`,
		incident.ID,
	)
	if err != nil {
		return fmt.Errorf("get incident tags: %w", err)
	}
	incident.TagIDs = tagIDs
	return nil
}

func (r *Repository) listRelation(ctx context.Context, query, incidentID string) ([]string, error) {
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
