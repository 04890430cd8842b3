package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/platinummonkey/groundwork/pkg/observability"
)

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer writes mail to the log instead of delivering it
type LogMailer struct {
	logger *observability.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message
func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.logger.WithFields(map[string]interface{}{
		"to":      email.To,
		"subject": email.Subject,
	}).Info("Email queued")
	return nil
}

// RetryConfig configures relay retries
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default relay retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// delay returns the wait before the given retry (1-based)
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// RelayMailer posts each email as JSON to an HTTP mail relay
type RelayMailer struct {
	url    string
	client *http.Client
	retry  RetryConfig
}

// NewRelayMailer creates a relay mailer. client may be nil.
func NewRelayMailer(url string, client *http.Client, retry RetryConfig) *RelayMailer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffMultiplier <= 1.0 {
		retry.BackoffMultiplier = 2.0
	}
	return &RelayMailer{url: url, client: client, retry: retry}
}

// Send posts the email, retrying transport errors and 5xx responses with backoff
func (m *RelayMailer) Send(ctx context.Context, email Email) error {
	data, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retry.delay(attempt - 1)):
			}
		}

		retryable, err := m.post(ctx, data)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return fmt.Errorf("failed to send email to %s: %w", email.To, lastErr)
}

func (m *RelayMailer) post(ctx context.Context, data []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return true, nil
}

// NewMailer returns a RelayMailer posting to relayURL, or a LogMailer when no
// relay is configured
func NewMailer(relayURL string, logger *observability.Logger) Mailer {
	if relayURL == "" {
		return NewLogMailer(logger)
	}
	return NewRelayMailer(relayURL, nil, DefaultRetryConfig())
}
