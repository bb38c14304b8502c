// Package postgres provides the PostgreSQL implementation of the lifecycle repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/lifecycle"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements lifecycle.Repository using PostgreSQL.
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

// GetIncident retrieves an incident by ID with its category and tag sets.
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

// ListIncidents retrieves incidents with optional filters, newest first.
func (r *Repository) ListIncidents(ctx context.Context, filters lifecycle.IncidentFilters) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, *filters.Status)
		argNum++
	}
	if filters.Severity != nil {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, *filters.Severity)
		argNum++
	}
	if filters.TeamID != nil {
		query += fmt.Sprintf(" AND team_id = $%d", argNum)
		args = append(args, *filters.TeamID)
		argNum++
	}
	if filters.ServiceID != nil {
		query += fmt.Sprintf(" AND service_id = $%d", argNum)
		args = append(args, *filters.ServiceID)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

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

// ListComments returns an incident's comments ordered by created_at ascending.
func (r *Repository) ListComments(ctx context.Context, incidentID string) ([]*domain.Comment, error) {
	query := `
		SELECT id, incident_id, author_id, body, created_at
		FROM comments
		WHERE incident_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0)
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.IncidentID,
			&comment.AuthorID,
			&comment.Body,
			&comment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, &comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// BeginTx starts a transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateIncidentTx inserts the incident and its category/tag associations.
func (r *Repository) CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (
			title, description, status, severity,
			team_id, service_id, reporter_id, assignee_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.Severity,
		incident.TeamID,
		incident.ServiceID,
		incident.ReporterID,
		incident.AssigneeID,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}

	for _, categoryID := range incident.CategoryIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO incident_categories (incident_id, category_id) VALUES ($1, $2)`,
			incident.ID, categoryID,
		); err != nil {
			return fmt.Errorf("associate category %s: %w", categoryID, err)
		}
	}
	for _, tagID := range incident.TagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO incident_tags (incident_id, tag_id) VALUES ($1, $2)`,
			incident.ID, tagID,
		); err != nil {
			return fmt.Errorf("associate tag %s: %w", tagID, err)
		}
	}
	return nil
}

// UpdateIncidentTx persists mutable fields and derived timestamps.
func (r *Repository) UpdateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error {
	query := `
		UPDATE incidents SET
			status = $2,
			severity = $3,
			assignee_id = $4,
			triaged_at = $5,
			in_progress_at = $6,
			resolved_at = $7,
			closed_at = $8,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query,
		incident.ID,
		incident.Status,
		incident.Severity,
		incident.AssigneeID,
		incident.TriagedAt,
		incident.InProgressAt,
		incident.ResolvedAt,
		incident.ClosedAt,
	).Scan(&incident.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lifecycle.ErrIncidentNotFound
		}
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

// CreateCommentTx inserts a comment.
func (r *Repository) CreateCommentTx(ctx context.Context, tx pgx.Tx, comment *domain.Comment) error {
	query := `
		INSERT INTO comments (incident_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query,
		comment.IncidentID,
		comment.AuthorID,
		comment.Body,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// CreateSubscriptionTx inserts a (incident, user) subscription if absent.
func (r *Repository) CreateSubscriptionTx(ctx context.Context, tx pgx.Tx, incidentID, userID string) error {
	query := `
		INSERT INTO notification_subscriptions (incident_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (incident_id, user_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, query, incidentID, userID); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// DeleteSubscriptionsTx removes all subscriptions for an incident.
func (r *Repository) DeleteSubscriptionsTx(ctx context.Context, tx pgx.Tx, incidentID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM notification_subscriptions WHERE incident_id = $1`, incidentID); err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}
	return nil
}

// DeleteCommentsTx removes all comments for an incident.
func (r *Repository) DeleteCommentsTx(ctx context.Context, tx pgx.Tx, incidentID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE incident_id = $1`, incidentID); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	return nil
}

// DeleteIncidentTx removes the incident row and its category/tag links.
func (r *Repository) DeleteIncidentTx(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM incident_categories WHERE incident_id = $1`, id); err != nil {
		return fmt.Errorf("delete incident categories: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM incident_tags WHERE incident_id = $1`, id); err != nil {
		return fmt.Errorf("delete incident tags: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrIncidentNotFound
	}
	return nil
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
