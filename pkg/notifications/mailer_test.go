package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/observability"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2}
}

func TestRelayMailer_Send(t *testing.T) {
	var got Email
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	mailer := NewRelayMailer(server.URL, server.Client(), fastRetry())
	err := mailer.Send(context.Background(), Email{To: "a@example.com", Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.To)
}

func TestRelayMailer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mailer := NewRelayMailer(server.URL, server.Client(), fastRetry())
	require.NoError(t, mailer.Send(context.Background(), Email{To: "a@example.com"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRelayMailer_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	mailer := NewRelayMailer(server.URL, server.Client(), fastRetry())
	err := mailer.Send(context.Background(), Email{To: "a@example.com"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffMultiplier: 2}
	assert.Equal(t, time.Second, cfg.delay(1))
	assert.Equal(t, 2*time.Second, cfg.delay(2))
	assert.Equal(t, 3*time.Second, cfg.delay(3))
}

func TestNewMailer(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, io.Discard)

	assert.IsType(t, &LogMailer{}, NewMailer("", logger))
	assert.IsType(t, &RelayMailer{}, NewMailer("http://relay.local/send", logger))
}
