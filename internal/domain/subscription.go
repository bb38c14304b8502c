package domain

import "time"

// NotificationSubscription links a user to an incident they follow.
// One row per (incident, user) pair; created automatically for the reporter
// at incident creation and for the assignee whenever one is set.
type NotificationSubscription struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}
