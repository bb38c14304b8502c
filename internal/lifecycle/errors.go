package lifecycle

import "errors"

// Lifecycle errors surfaced to callers unmodified.
var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrForbidden         = errors.New("operation allowed only for the reporter")
	ErrInvalidSeverity   = errors.New("invalid severity")
	ErrInvalidStatus     = errors.New("invalid status")
)
