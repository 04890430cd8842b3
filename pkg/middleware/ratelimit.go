package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/groundwork/pkg/contextkeys"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// InvitationRateLimitConfig limits invitation sends per user per hour
func InvitationRateLimitConfig(perHour int) *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: perHour,
		WindowDuration:    time.Hour,
	}
}

// RateLimitResult describes one counted request
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts requests per key within a fixed window
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// LocalRateLimiter is a fixed-window limiter held in process memory. It backs
// single-instance deployments that run without Redis.
type LocalRateLimiter struct {
	config  *RateLimitConfig
	windows map[string]*window
	mu      sync.Mutex
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewLocalRateLimiter creates an in-memory limiter
func NewLocalRateLimiter(config *RateLimitConfig) *LocalRateLimiter {
	return &LocalRateLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow counts a request for key
func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (RateLimitResult, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	win, ok := rl.windows[key]
	if !ok || !now.Before(win.resetAt) {
		win = &window{resetAt: now.Add(rl.config.WindowDuration)}
		rl.windows[key] = win
	}
	win.count++

	return newResult(rl.config, int64(win.count), win.resetAt.Sub(now)), nil
}

// Cleanup drops expired windows
func (rl *LocalRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, win := range rl.windows {
		if !now.Before(win.resetAt) {
			delete(rl.windows, key)
		}
	}
}

func newResult(config *RateLimitConfig, count int64, resetIn time.Duration) RateLimitResult {
	remaining := config.RequestsPerWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   count <= int64(config.RequestsPerWindow),
		Limit:     config.RequestsPerWindow,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

// RateLimit wraps a handler with limiter. Authenticated callers are keyed by user
// id, everyone else by client address. Limiter errors fail open.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				observability.FromContext(r.Context()).
					WithError(err).
					WithField("key", key).
					Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)
			if !result.Allowed {
				retryAfter := int(result.ResetIn.Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				httputil.WriteTooManyRequests(w, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	if result.ResetIn > 0 {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(result.ResetIn).Unix()))
	}
}

func rateLimitKey(r *http.Request) string {
	if user := contextkeys.GetUser(r.Context()); user != nil {
		return fmt.Sprintf("user:%d", user.ID)
	}
	return "ip:" + getClientIP(r)
}

func getClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
