// Package webhook provides chat notification sending via incoming webhooks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/incident-pulse/internal/notify"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "IncidentPulse"
)

// Config holds chat webhook sender configuration.
type Config struct {
	URL       string        // incoming webhook URL
	Username  string        // display name, default "IncidentPulse"
	Timeout   time.Duration // request timeout
	RateLimit float64       // messages per second, 0 disables limiting
}

// Sender posts incident notifications to a chat incoming webhook.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new chat webhook sender.
func NewSender(config Config) (*Sender, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if config.Username == "" {
		config.Username = defaultUsername
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
	return "chat"
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
}

// Send posts the message to the webhook.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload := webhookPayload{
		Username: s.config.Username,
		Text: fmt.Sprintf("### [%s] %s\n\nIncident `%s` was opened.\n\n[Open incident](%s)",
			strings.ToUpper(string(msg.Severity)), msg.Title, msg.IncidentID, msg.Link),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
