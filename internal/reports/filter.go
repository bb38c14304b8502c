// Package reports computes operational metrics over the incident population:
// point-in-time KPIs, categorical breakdowns, trend series and exports.
package reports

import (
	"errors"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
)

// Validation errors for report parameters.
var (
	ErrUnknownGroupBy  = errors.New("unknown group_by dimension")
	ErrUnknownInterval = errors.New("unknown interval")
	ErrInvalidRange    = errors.New("invalid time range")
	ErrInvalidSeverity = errors.New("invalid severity filter")
)

// Filter narrows the incident population a report runs over.
// From/To bound createdAt as a half-open interval [from, to).
type Filter struct {
	From      *time.Time
	To        *time.Time
	TeamID    *string
	ServiceID *string
	Severity  *domain.Severity
}

// Validate checks filter consistency.
func (f Filter) Validate() error {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return ErrInvalidRange
	}
	if f.Severity != nil && !f.Severity.IsValid() {
		return ErrInvalidSeverity
	}
	return nil
}

// GroupBy is a breakdown dimension.
type GroupBy string

// Breakdown dimensions.
const (
	GroupBySeverity GroupBy = "severity"
	GroupByStatus   GroupBy = "status"
	GroupByTeam     GroupBy = "team"
	GroupByService  GroupBy = "service"
	GroupByCategory GroupBy = "category"
	GroupByAssignee GroupBy = "assignee"
)

// IsValid checks if the dimension is supported.
func (g GroupBy) IsValid() bool {
	switch g {
	case GroupBySeverity, GroupByStatus, GroupByTeam, GroupByService, GroupByCategory, GroupByAssignee:
		return true
	default:
		return false
	}
}

// Interval is a timeseries bucket width.
type Interval string

// Timeseries intervals.
const (
	IntervalDay  Interval = "day"
	IntervalWeek Interval = "week"
)

// IsValid checks if the interval is supported.
func (i Interval) IsValid() bool {
	return i == IntervalDay || i == IntervalWeek
}
