// Package api is the HTTP surface of groundwork.
//
// # Overview
//
// Routes live under /api/v1 and are built on gorilla/mux. Every route requires a
// bearer ID token except the invitation preview, the unsubscribe link target and
// the sign-in flow. /healthz, /readyz and /metrics sit outside the prefix.
//
// Handlers are grouped per domain (projects, costs, contacts, documents, events,
// invitations, notifications, security log, portfolio). Each group depends on a
// narrow service interface and registers its routes through RouteRegistrar:
//
//	server := api.NewServer(api.Services{Projects: projectService}, api.Options{Auth: authMiddleware})
//	http.ListenAndServe(":8080", server.Handler())
//
// # Errors
//
// Services return *apierr.Error values; handlers render them with
// httputil.WriteAPIError so every failure has the same JSON body:
//
//	{"code": "FORBIDDEN", "message": "..."}
//
// # Rate limiting
//
// Invitation sends are limited per caller when Options.InviteLimiter is set.
package api
