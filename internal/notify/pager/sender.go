// Package pager provides notification sending to an events-API style paging service.
package pager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bissquit/incident-pulse/internal/notify"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Config holds paging service sender configuration.
type Config struct {
	Endpoint   string        // events API endpoint
	RoutingKey string        // integration routing key
	Timeout    time.Duration // request timeout
	RateLimit  float64       // events per second, 0 disables limiting
}

// Sender triggers pages through an events API.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new pager sender.
func NewSender(config Config) (*Sender, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("pager endpoint is required")
	}
	if config.RoutingKey == "" {
		return nil, fmt.Errorf("pager routing key is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
	}, nil
}

// Name returns the gateway name.
func (s *Sender) Name() string {
	return "pager"
}

type eventPayload struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key"`
	Links       []eventLink  `json:"links,omitempty"`
	Payload     eventDetails `json:"payload"`
}

type eventDetails struct {
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	Severity string `json:"severity"`
}

type eventLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Send triggers a page for the message.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload := eventPayload{
		RoutingKey:  s.config.RoutingKey,
		EventAction: "trigger",
		DedupKey:    msg.IncidentID,
		Links:       []eventLink{{Href: msg.Link, Text: "Open incident"}},
		Payload: eventDetails{
			Summary:  fmt.Sprintf("[%s] %s", msg.Severity, msg.Title),
			Source:   "incident-pulse",
			Severity: string(msg.Severity),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pager returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
