package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/httputil"
	"github.com/platinummonkey/groundwork/pkg/middleware"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// APIPrefix is the path prefix of every versioned route
const APIPrefix = "/api/v1"

// Services are the domain services behind the API. A nil service leaves its
// routes unregistered.
type Services struct {
	Projects      ProjectService
	Costs         CostService
	Contacts      ContactService
	Documents     DocumentService
	Events        EventService
	Invitations   InvitationService
	Notifications NotificationService
	SecurityLog   SecurityLogService
	Portfolio     PortfolioService
	Search        SearchService
	Reports       ReportService
}

// Options configures the server's cross-cutting concerns
type Options struct {
	// Auth authenticates every route except the public ones. Required.
	Auth *middleware.AuthMiddleware
	// SignIn enables the browser login flow when set together with Users
	SignIn SignInFlow
	Users  middleware.UserResolver
	// InviteLimiter caps invitation sends per caller; nil disables the limit
	InviteLimiter middleware.Limiter

	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Gatherer    prometheus.Gatherer
	Health      *observability.HealthChecker
	CORSOrigins []string
	// MaxBodyBytes caps non-multipart request bodies; 0 leaves them unbounded
	MaxBodyBytes int64
}

// Server routes HTTP requests to the domain services
type Server struct {
	router *mux.Router
	public *mux.Router
	authed *mux.Router
}

// NewServer builds the router
func NewServer(services Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	router := mux.NewRouter()
	router.Use(httputil.RecoveryMiddleware, httputil.RequestIDMiddleware, httputil.LoggingMiddleware(logger))
	if len(opts.CORSOrigins) > 0 {
		router.Use(httputil.CORSMiddleware(opts.CORSOrigins))
	}
	if opts.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	if opts.MaxBodyBytes > 0 {
		router.Use(httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteAPIError(w, r, apierr.NotFound("route"))
	})

	if opts.Health != nil {
		observability.RegisterHealthRoutes(router, opts.Health)
	}
	if opts.Gatherer != nil {
		observability.RegisterMetricsEndpoint(router, opts.Gatherer)
	}

	// Public routes are added before the authenticated subrouter so they match first.
	v1 := router.PathPrefix(APIPrefix).Subrouter()
	public := v1.NewRoute().Subrouter()
	authed := v1.NewRoute().Subrouter()
	authed.Use(opts.Auth.Handler)

	s := &Server{router: router, public: public, authed: authed}

	s.RegisterRoutes(NewAuthHandlers(opts.SignIn, opts.Users))
	if services.Projects != nil {
		s.RegisterRoutes(NewProjectHandlers(services.Projects))
	}
	if services.Costs != nil {
		s.RegisterRoutes(NewCostHandlers(services.Costs))
	}
	if services.Contacts != nil {
		s.RegisterRoutes(NewContactHandlers(services.Contacts))
	}
	if services.Documents != nil {
		s.RegisterRoutes(NewDocumentHandlers(services.Documents))
	}
	if services.Events != nil {
		s.RegisterRoutes(NewEventHandlers(services.Events))
	}
	if services.Invitations != nil {
		s.RegisterRoutes(NewInvitationHandlers(services.Invitations, opts.InviteLimiter))
	}
	if services.Notifications != nil {
		s.RegisterRoutes(NewNotificationHandlers(services.Notifications))
	}
	if services.SecurityLog != nil {
		s.RegisterRoutes(NewSecurityLogHandlers(services.SecurityLog))
	}
	s.RegisterRoutes(NewPortfolioHandlers(services.Portfolio, services.Search, services.Reports))
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in request tracing
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "groundwork.api")
}

// RouteRegistrar is implemented by handler groups
type RouteRegistrar interface {
	// RegisterRoutes adds routes that require an authenticated caller
	RegisterRoutes(router *mux.Router)
}

// PublicRouteRegistrar is implemented by handler groups with unauthenticated routes
type PublicRouteRegistrar interface {
	RegisterPublicRoutes(router *mux.Router)
}

// RegisterRoutes adds a handler group's routes under APIPrefix
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	if p, ok := registrar.(PublicRouteRegistrar); ok {
		p.RegisterPublicRoutes(s.public)
	}
	registrar.RegisterRoutes(s.authed)
}

// currentUser returns the authenticated caller, writing UNAUTHORIZED when absent
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := middleware.CurrentUser(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return nil, false
	}
	return user, true
}

// projectScope reads the caller and the {id} project path parameter
func projectScope(w http.ResponseWriter, r *http.Request) (*models.User, int64, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, 0, false
	}
	projectID, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return nil, 0, false
	}
	return user, projectID, true
}

// childScope is projectScope plus the id of an entity within the project
func childScope(w http.ResponseWriter, r *http.Request, key string) (*models.User, int64, int64, bool) {
	user, projectID, ok := projectScope(w, r)
	if !ok {
		return nil, 0, 0, false
	}
	childID, err := httputil.PathInt64(r, key)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return nil, 0, 0, false
	}
	return user, projectID, childID, true
}
