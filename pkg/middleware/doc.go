// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Authentication
//
// AuthMiddleware reads "Authorization: Bearer <id token>", verifies it against the
// OIDC provider and resolves the subject to a user row:
//
//	authMW := middleware.NewAuthMiddleware(authenticator, directory)
//	protected.Use(authMW.Handler)
//
// Handlers read the caller with CurrentUser(r).
//
// # Rate limiting
//
// RateLimit counts requests per caller in a fixed window. DistributedRateLimiter
// keeps the counters in Redis; LocalRateLimiter keeps them in memory for
// single-instance deployments:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient,
//		middleware.InvitationRateLimitConfig(20), "ratelimit:invite")
//	router.Handle("/projects/{id}/invitations", middleware.RateLimit(limiter)(invite))
//
// Limiter errors are logged and the request is allowed. Rejected requests get 429
// with Retry-After and X-RateLimit-* headers.
package middleware
