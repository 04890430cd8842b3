// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown.
//
// # Logging
//
// Logger is a thin wrapper over logrus that writes JSON:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("project_id", id).Info("project created")
//
// Request handlers use FromContext, which adds request_id and user_id.
//
// # Metrics
//
// NewMetrics registers the groundwork_* collectors. Access checks, invitation
// operations, blob calls and report renders are recorded through the Observe*
// helpers, which are no-ops on a nil *Metrics.
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
package observability
