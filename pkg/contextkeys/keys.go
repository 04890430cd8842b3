// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. Only
// request-scoped values travel in the context: the authenticated caller, the
// request ID and the request logger. Stores and services are injected explicitly.
package contextkeys

import (
	"context"

	"github.com/platinummonkey/groundwork/pkg/models"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey contains *models.User
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all protected API endpoints
	UserKey Key = "user"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the authenticated user, or nil for anonymous requests
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(UserKey).(*models.User); ok {
		return user
	}
	return nil
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
