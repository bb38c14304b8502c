package domain

import "time"

// Status represents the lifecycle state of an incident.
type Status string

// Incident statuses.
const (
	StatusNew        Status = "new"
	StatusTriaged    Status = "triaged"
	StatusInProgress Status = "in_progress"
	StatusOnHold     Status = "on_hold"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusReopened   Status = "reopened"
)

// statusTransitions is the allowed-next table for incident statuses.
// Kept as data so the lifecycle rules are auditable in one place.
// There is no terminal state: both resolved and closed accept reopening.
var statusTransitions = map[Status][]Status{
	StatusNew:        {StatusTriaged, StatusInProgress},
	StatusTriaged:    {StatusInProgress, StatusOnHold, StatusResolved},
	StatusInProgress: {StatusOnHold, StatusResolved},
	StatusOnHold:     {StatusInProgress, StatusResolved},
	StatusResolved:   {StatusClosed, StatusReopened},
	StatusClosed:     {StatusReopened},
	StatusReopened:   {StatusInProgress, StatusOnHold, StatusResolved},
}

// IsValid checks if the status is one of the defined statuses.
func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether target is in the allowed-next set of s.
// A transition to the same status is not allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range statusTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// AllowedNext returns a copy of the allowed-next set for s.
func (s Status) AllowedNext() []Status {
	next := statusTransitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsOpen reports whether the status counts as open for reporting purposes.
func (s Status) IsOpen() bool {
	return s != StatusResolved && s != StatusClosed
}

// Severity represents the criticality of an incident, sev1 most critical.
type Severity string

// Severity levels.
const (
	SeveritySev1 Severity = "sev1"
	SeveritySev2 Severity = "sev2"
	SeveritySev3 Severity = "sev3"
	SeveritySev4 Severity = "sev4"
)

// DefaultSeverity is applied when an incident is created without one.
const DefaultSeverity = SeveritySev3

// Severities lists all severity levels in criticality order.
var Severities = []Severity{SeveritySev1, SeveritySev2, SeveritySev3, SeveritySev4}

// IsValid checks if the severity is one of the defined levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeveritySev1, SeveritySev2, SeveritySev3, SeveritySev4:
		return true
	default:
		return false
	}
}

// IsCritical reports whether the severity warrants paging on creation.
func (s Severity) IsCritical() bool {
	return s == SeveritySev1 || s == SeveritySev2
}

// Incident represents an operational incident tracked through its lifecycle.
//
// Milestone timestamps (TriagedAt, InProgressAt, ResolvedAt, ClosedAt) are
// set the first time the corresponding status is reached and never moved
// afterwards, so reopening keeps the original resolution time.
type Incident struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Severity     Severity   `json:"severity"`
	TeamID       *string    `json:"team_id"`
	ServiceID    *string    `json:"service_id"`
	ReporterID   string     `json:"reporter_id"`
	AssigneeID   *string    `json:"assignee_id"`
	CategoryIDs  []string   `json:"category_ids"`
	TagIDs       []string   `json:"tag_ids"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	TriagedAt    *time.Time `json:"triaged_at"`
	InProgressAt *time.Time `json:"in_progress_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	ClosedAt     *time.Time `json:"closed_at"`
}

// ResolveDuration returns the time between creation and first resolution.
// The second return value is false for unresolved incidents.
func (i *Incident) ResolveDuration() (time.Duration, bool) {
	if i.ResolvedAt == nil {
		return 0, false
	}
	return i.ResolvedAt.Sub(i.CreatedAt), true
}
