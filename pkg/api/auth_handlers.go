package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/auth"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/middleware"
	"github.com/platinummonkey/groundwork/pkg/models"
)

const (
	stateCookie    = "groundwork_oauth_state"
	stateCookieTTL = 10 * time.Minute
)

// SignInFlow is the authorization code flow of the identity provider.
// auth.OIDCAuthenticator implements it when a client secret is configured.
type SignInFlow interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (string, *auth.Claims, error)
}

// SignInResult is returned by the callback. The client sends IDToken as a bearer
// token on later requests.
type SignInResult struct {
	IDToken string       `json:"id_token"`
	User    *models.User `json:"user"`
}

// AuthHandlers handles sign-in and identity requests
type AuthHandlers struct {
	flow  SignInFlow
	users middleware.UserResolver
}

// NewAuthHandlers creates a new AuthHandlers. A nil flow disables the browser
// sign-in routes.
func NewAuthHandlers(flow SignInFlow, users middleware.UserResolver) *AuthHandlers {
	return &AuthHandlers{flow: flow, users: users}
}

// RegisterPublicRoutes registers the sign-in routes
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router) {
	if h.flow == nil || h.users == nil {
		return
	}
	router.HandleFunc("/auth/login", h.Login).Methods("GET")
	router.HandleFunc("/auth/callback", h.Callback).Methods("GET")
}

// RegisterRoutes registers identity routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.Me).Methods("GET")
}

// Login redirects to the identity provider
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     APIPrefix + "/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.flow.LoginURL(state), http.StatusFound)
}

// Callback completes sign-in: it checks state, exchanges the code and binds the
// verified identity to a user row.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		httputil.WriteAPIError(w, r, apierr.Unauthorized("sign-in was not completed: "+msg))
		return
	}

	cookie, err := r.Cookie(stateCookie)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		httputil.WriteAPIError(w, r, apierr.BadRequest("invalid sign-in state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: APIPrefix + "/auth", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		httputil.WriteAPIError(w, r, apierr.BadRequest("missing authorization code"))
		return
	}

	rawIDToken, claims, err := h.flow.Exchange(r.Context(), code)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	user, err := h.users.Resolve(r.Context(), claims)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, SignInResult{IDToken: rawIDToken, User: user})
}

// Me returns the authenticated caller
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	_ = httputil.WriteSuccess(w, user)
}
