package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/contextkeys"
	"github.com/platinummonkey/groundwork/pkg/models"
)

func newRedisLimiter(t *testing.T, limit int) (*DistributedRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewDistributedRateLimiter(client, InvitationRateLimitConfig(limit), "ratelimit:invite"), mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newRedisLimiter(t, 2)

	first, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.Equal(t, time.Hour, first.ResetIn)

	second, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Equal(t, 2, third.Limit)

	other, err := limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are counted independently")

	assert.True(t, mr.Exists("ratelimit:invite:user:1"))
	assert.Equal(t, time.Hour, mr.TTL("ratelimit:invite:user:1"))
}

func TestDistributedRateLimiter_WindowIsNotExtended(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newRedisLimiter(t, 5)

	_, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	mr.FastForward(40 * time.Minute)

	result, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, result.ResetIn)

	mr.FastForward(21 * time.Minute)
	remaining, err := limiter.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining, "window expired")
}

func TestDistributedRateLimiter_ResetAndTTL(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newRedisLimiter(t, 1)

	_, err := limiter.Allow(ctx, "user:7")
	require.NoError(t, err)

	ttl, err := limiter.TTL(ctx, "user:7")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	require.NoError(t, limiter.Reset(ctx, "user:7"))
	result, err := limiter.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 1)
	mr.Close()

	result, err := limiter.Allow(context.Background(), "user:1")
	assert.Error(t, err)
	assert.True(t, result.Allowed)
}

func TestLocalRateLimiter(t *testing.T) {
	limiter := NewLocalRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	result, err := limiter.Allow(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.Allow(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Minute, result.ResetIn)

	now = now.Add(time.Minute)
	limiter.Cleanup()
	assert.Empty(t, limiter.windows)

	result, err = limiter.Allow(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (RateLimitResult, error) {
	return RateLimitResult{Allowed: true}, errors.New("connection refused")
}

func TestRateLimitMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	t.Run("rejects over the limit with retry headers", func(t *testing.T) {
		limiter, _ := newRedisLimiter(t, 1)
		handler := RateLimit(limiter)(okHandler)
		user := &models.User{ID: 42}

		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/1/invitations", nil)
			req = req.WithContext(contextkeys.WithUser(req.Context(), user))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		first := send()
		assert.Equal(t, http.StatusCreated, first.Code)
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

		second := send()
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "3600", second.Header().Get("Retry-After"))
		assert.Contains(t, second.Body.String(), "rate limit exceeded")
	})

	t.Run("fails open when the limiter errors", func(t *testing.T) {
		handler := RateLimit(failingLimiter{})(okHandler)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("anonymous callers are keyed by address", func(t *testing.T) {
		limiter := NewLocalRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
		handler := RateLimit(limiter)(okHandler)

		for _, addr := range []string{"10.0.0.1:5000", "10.0.0.2:5000"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusCreated, rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:6000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}
