package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/analytics"
	"github.com/platinummonkey/groundwork/pkg/api"
	"github.com/platinummonkey/groundwork/pkg/async"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/auth"
	"github.com/platinummonkey/groundwork/pkg/blob"
	"github.com/platinummonkey/groundwork/pkg/config"
	"github.com/platinummonkey/groundwork/pkg/contacts"
	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/documents"
	"github.com/platinummonkey/groundwork/pkg/events"
	"github.com/platinummonkey/groundwork/pkg/invitations"
	"github.com/platinummonkey/groundwork/pkg/middleware"
	"github.com/platinummonkey/groundwork/pkg/notifications"
	"github.com/platinummonkey/groundwork/pkg/observability"
	"github.com/platinummonkey/groundwork/pkg/projects"
	"github.com/platinummonkey/groundwork/pkg/reports"
	"github.com/platinummonkey/groundwork/pkg/search"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "groundwork: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout).
		WithField("service", "groundwork")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceVersion := cfg.Observability.OTelServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}
	telemetry, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: serviceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	conns, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	primary := conns.Primary()
	if cfg.Database.MigrateOnStart {
		if err := db.RunMigrations(ctx, primary, logger); err != nil {
			return err
		}
	}

	redisClient, err := db.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	blobs, err := blob.New(ctx, cfg.S3, metrics)
	if err != nil {
		return err
	}

	authenticator, err := auth.NewOIDCAuthenticator(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	users := auth.NewCachedDirectory(auth.NewPostgresUserStore(primary), cfg.Auth.UserCacheSize, cfg.Auth.UserCacheTTL)

	auditLog := audit.NewDBLogger(primary)
	accessRepo := access.NewPostgresRepository(primary)
	verifier := access.NewVerifier(accessRepo, auditLog, metrics)

	notifier := notifications.NewService(
		notifications.NewPostgresStore(primary),
		notifications.NewMailer(cfg.Notifier.MailRelayURL, logger),
		cfg.Notifier.MailFrom,
		cfg.Notifier.UnsubscribeURL,
	)

	costStore := costs.NewPostgresStore(primary)
	contactStore := contacts.NewPostgresStore(primary)
	eventStore := events.NewPostgresStore(primary)

	services := api.Services{
		Projects:  projects.NewService(projects.NewPostgresStore(primary), verifier, auditLog, users),
		Costs:     costs.NewService(costStore, verifier, auditLog),
		Contacts:  contacts.NewService(contactStore, verifier, auditLog),
		Documents: documents.NewService(documents.NewPostgresStore(primary), blobs, verifier, auditLog),
		Events:    events.NewService(eventStore, verifier, auditLog),
		Invitations: invitations.NewService(invitations.NewPostgresStore(primary), verifier, accessRepo, auditLog,
			notifier, metrics, invitations.Options{TTL: cfg.Invitations.TTL, AcceptURL: cfg.Invitations.AcceptURL}),
		Notifications: notifier,
		SecurityLog:   audit.NewSecurityLog(auditLog, verifier.Guard()),
		Portfolio:     analytics.NewService(analytics.NewPostgresStore(conns.Replica())),
		Search:        search.NewService(conns.Replica()),
		Reports:       reports.NewService(verifier, costStore, contactStore, eventStore, blobs, auditLog, metrics),
	}

	opts := api.Options{
		Auth:         middleware.NewAuthMiddleware(authenticator, users),
		Users:        users,
		Logger:       logger,
		Metrics:      metrics,
		Gatherer:     registry,
		Health:       observability.NewHealthChecker(primary, redisClient, version),
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: int64(cfg.Server.MaxBodyBytes),
	}
	if authenticator.SignInEnabled() {
		opts.SignIn = authenticator
	}
	opts.InviteLimiter = inviteLimiter(ctx, cfg.Invitations, redisClient, logger)

	server := api.NewServer(services, opts)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(context.Context) error {
		cancel()
		return conns.Close()
	})
	shutdown.Register(telemetry.Shutdown)
	if redisClient != nil {
		shutdown.Register(func(context.Context) error { return redisClient.Close() })
	}

	conns.StartHealthCheckRoutine(ctx, 30*time.Second, metrics)
	if cfg.File != "" {
		async.SafeGo(ctx, logger, "config-watch", func(ctx context.Context) {
			if err := config.WatchLogLevel(ctx, cfg.File, logger); err != nil {
				logger.WithError(err).Warn("Config watcher stopped")
			}
		})
	}

	async.SafeGo(ctx, logger, "http-server", func(context.Context) {
		logger.WithField("addr", httpServer.Addr).WithField("version", version).Info("Groundwork API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	})

	return shutdown.WaitForSignal(ctx)
}

// inviteLimiter shares the invitation budget through Redis when it is configured
// and counts in process otherwise
func inviteLimiter(ctx context.Context, cfg config.InvitationsConfig, client *redis.Client, logger *observability.Logger) middleware.Limiter {
	if cfg.RateLimitPerHour <= 0 {
		return nil
	}
	limits := middleware.InvitationRateLimitConfig(cfg.RateLimitPerHour)
	if client != nil {
		return middleware.NewDistributedRateLimiter(client, limits, "groundwork:ratelimit:invite")
	}

	local := middleware.NewLocalRateLimiter(limits)
	async.SafeGo(ctx, logger, "ratelimit-cleanup", func(ctx context.Context) {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				local.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	})
	return local
}
