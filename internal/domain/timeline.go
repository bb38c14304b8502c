package domain

import "time"

// TimelineEventType represents the kind of a timeline event.
type TimelineEventType string

// Timeline event types.
const (
	TimelineStatusChange TimelineEventType = "status_change"
	TimelineComment      TimelineEventType = "comment"
	TimelineFieldUpdate  TimelineEventType = "field_update"
	TimelineAssignment   TimelineEventType = "assignment"
)

// IsValid checks if the event type is one of the defined types.
func (t TimelineEventType) IsValid() bool {
	switch t {
	case TimelineStatusChange, TimelineComment, TimelineFieldUpdate, TimelineAssignment:
		return true
	default:
		return false
	}
}

// TimelineEvent is an immutable audit record of a single change or note on
// an incident. Events are append-only: the storage layer exposes no update
// or per-event delete operations, only a bulk cascade when the owning
// incident is deleted.
type TimelineEvent struct {
	ID         string            `json:"id"`
	IncidentID string            `json:"incident_id"`
	Type       TimelineEventType `json:"type"`
	FromStatus *Status           `json:"from_status,omitempty"`
	ToStatus   *Status           `json:"to_status,omitempty"`
	Message    string            `json:"message,omitempty"`
	AuthorID   string            `json:"author_id"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Comment is a free-text note on an incident. Creating a comment always
// also appends a COMMENT timeline event carrying the same body.
type Comment struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	AuthorID   string    `json:"author_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
