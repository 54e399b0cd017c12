package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// Sink delivers a single notification message to an external channel.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the static configuration for a WebhookSink.
type Config struct {
	WebhookURL string
}

// Dependencies allow test overrides for the HTTP client.
type Dependencies struct {
	HTTPClient *http.Client
}

// WebhookSink posts messages as Slack-compatible JSON payloads.
type WebhookSink struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	Text string `json:"text"`
}

// NewWebhookSink builds a WebhookSink from configuration and dependencies.
func NewWebhookSink(cfg Config, deps Dependencies) (*WebhookSink, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if deps.HTTPClient == nil {
		return nil, fmt.Errorf("HTTP client is required")
	}
	return &WebhookSink{
		url:    cfg.WebhookURL,
		client: deps.HTTPClient,
	}, nil
}

// Send posts one message. Any non-2xx response is an error; retries are the
// dispatcher's concern.
func (s *WebhookSink) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(webhookPayload{Text: msg.Text})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pagewatch/0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery failed: status %s", resp.Status)
	}
	return nil
}

// ConsoleSink is the fallback when no webhook is configured: messages are
// written to the local log and delivery always succeeds.
type ConsoleSink struct {
	logger zerolog.Logger
}

// NewConsoleSink builds a ConsoleSink writing through the given logger.
func NewConsoleSink(logger zerolog.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger}
}

func (s *ConsoleSink) Send(ctx context.Context, msg Message) error {
	s.logger.Info().
		Str("category", string(msg.Category)).
		Str("target", msg.TargetKey).
		Msg(msg.Text)
	return nil
}

var (
	_ Sink = (*WebhookSink)(nil)
	_ Sink = (*ConsoleSink)(nil)
)
