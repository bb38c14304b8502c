// Package notify decides whether a newly created incident warrants paging
// and fans the notification out to the configured gateways.
package notify

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/pkg/ctxlog"
)

// Message is the payload handed to a gateway.
type Message struct {
	IncidentID string
	Title      string
	Severity   domain.Severity
	Link       string
}

// Gateway delivers a message to one external destination (chat webhook,
// paging service). Implementations own their transport and rate limiting.
type Gateway interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// ShouldNotify reports whether a severity warrants notification.
func ShouldNotify(severity domain.Severity) bool {
	return severity.IsCritical()
}

// Trigger inspects created incidents and dispatches notifications.
type Trigger struct {
	gateways []Gateway
	baseURL  string
}

// NewTrigger creates a trigger dispatching to the given gateways.
// baseURL is used to build the deep link into the UI.
func NewTrigger(baseURL string, gateways ...Gateway) *Trigger {
	return &Trigger{
		gateways: gateways,
		baseURL:  baseURL,
	}
}

// IncidentCreated notifies all gateways about a new critical incident.
// Failure of any channel is logged and swallowed so the create operation
// that triggered the notification is never rolled back by delivery issues.
func (t *Trigger) IncidentCreated(ctx context.Context, incident *domain.Incident) error {
	if !ShouldNotify(incident.Severity) {
		return nil
	}

	msg := Message{
		IncidentID: incident.ID,
		Title:      incident.Title,
		Severity:   incident.Severity,
		Link:       fmt.Sprintf("%s/incidents/%s", t.baseURL, incident.ID),
	}

	logger := ctxlog.FromContext(ctx)
	for _, gw := range t.gateways {
		if err := gw.Send(ctx, msg); err != nil {
			DispatchTotal.WithLabelValues(gw.Name(), "error").Inc()
			logger.Error("notification dispatch failed",
				"gateway", gw.Name(),
				"incident_id", incident.ID,
				"error", err,
			)
			continue
		}
		DispatchTotal.WithLabelValues(gw.Name(), "ok").Inc()
		logger.Info("notification sent",
			"gateway", gw.Name(),
			"incident_id", incident.ID,
			"severity", incident.Severity,
		)
	}

	return nil
}
