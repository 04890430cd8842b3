package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/auth"
	"github.com/platinummonkey/groundwork/pkg/contextkeys"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// TokenAuthenticator verifies a raw bearer token
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*auth.Claims, error)
}

// UserResolver binds verified claims to a user row
type UserResolver interface {
	Resolve(ctx context.Context, claims *auth.Claims) (*models.User, error)
}

// AuthMiddleware authenticates bearer ID tokens and stores the caller in the context
type AuthMiddleware struct {
	authenticator TokenAuthenticator
	users         UserResolver
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator TokenAuthenticator, users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		users:         users,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteAPIError(w, r, apierr.Unauthorized("missing or malformed authorization header"))
			return
		}

		claims, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			httputil.WriteAPIError(w, r, err)
			return
		}

		user, err := m.users.Resolve(r.Context(), claims)
		if err != nil {
			httputil.WriteAPIError(w, r, err)
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		ctx = observability.WithLogger(ctx, observability.FromContext(ctx).WithField("user_id", user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// CurrentUser returns the authenticated caller, or UNAUTHORIZED when the request
// did not pass through AuthMiddleware.
func CurrentUser(r *http.Request) (*models.User, error) {
	user := contextkeys.GetUser(r.Context())
	if user == nil {
		return nil, apierr.Unauthorized("authentication required")
	}
	return user, nil
}
