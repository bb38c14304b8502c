// Package postgres provides the PostgreSQL implementation of the timeline recorder.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder implements timeline.Recorder using PostgreSQL.
type Recorder struct {
	db *pgxpool.Pool
}

// NewRecorder creates a new PostgreSQL timeline recorder.
func NewRecorder(db *pgxpool.Pool) *Recorder {
	return &Recorder{db: db}
}

// AppendTx appends a timeline event within the given transaction.
func (r *Recorder) AppendTx(ctx context.Context, tx pgx.Tx, event *domain.TimelineEvent) error {
	query := `
		INSERT INTO timeline_events (incident_id, type, from_status, to_status, message, author_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query,
		event.IncidentID,
		event.Type,
		event.FromStatus,
		event.ToStatus,
		event.Message,
		event.AuthorID,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}
	return nil
}

// ListByIncident returns the incident's timeline ordered by created_at ascending.
func (r *Recorder) ListByIncident(ctx context.Context, incidentID string) ([]*domain.TimelineEvent, error) {
	query := `
		SELECT id, incident_id, type, from_status, to_status, message, author_id, created_at
		FROM timeline_events
		WHERE incident_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.TimelineEvent, 0)
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(
			&event.ID,
			&event.IncidentID,
			&event.Type,
			&event.FromStatus,
			&event.ToStatus,
			&event.Message,
			&event.AuthorID,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return events, nil
}

// DeleteByIncidentTx bulk-removes the trail during an incident cascade delete.
func (r *Recorder) DeleteByIncidentTx(ctx context.Context, tx pgx.Tx, incidentID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM timeline_events WHERE incident_id = $1`, incidentID); err != nil {
		return fmt.Errorf("delete timeline events: %w", err)
	}
	return nil
}
