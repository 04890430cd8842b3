package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/config"
	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/invitations"
	"github.com/platinummonkey/groundwork/pkg/notifications"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

var (
	runOnce  = flag.Bool("run-once", false, "Send due reminders once and exit")
	schedule = flag.String("schedule", "", "Cron schedule for the reminder job (default: notifier.schedule from config)")
	workers  = flag.Int("workers", 4, "Reminders sent concurrently")
	timeout  = flag.Duration("timeout", 30*time.Second, "Time allowed for each reminder")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "groundwork-notifier: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout).
		WithField("service", "groundwork-notifier")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conns, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conns.Close()
	primary := conns.Primary()

	auditLog := audit.NewDBLogger(primary)
	accessRepo := access.NewPostgresRepository(primary)
	notifier := notifications.NewService(
		notifications.NewPostgresStore(primary),
		notifications.NewMailer(cfg.Notifier.MailRelayURL, logger),
		cfg.Notifier.MailFrom,
		cfg.Notifier.UnsubscribeURL,
	)
	service := invitations.NewService(
		invitations.NewPostgresStore(primary),
		access.NewVerifier(accessRepo, auditLog, nil),
		accessRepo,
		auditLog,
		notifier,
		nil,
		invitations.Options{TTL: cfg.Invitations.TTL, AcceptURL: cfg.Invitations.AcceptURL},
	)
	opts := invitations.ReminderOptions{Window: cfg.Notifier.ReminderWindow, Workers: *workers, Timeout: *timeout}

	if *runOnce {
		return sendReminders(ctx, service, logger, opts)
	}

	expr := *schedule
	if expr == "" {
		expr = cfg.Notifier.Schedule
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(expr, func() {
		// errors are logged; the next run retries whatever is still pending
		_ = sendReminders(ctx, service, logger, opts)
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", expr, err)
	}

	c.Start()
	logger.WithFields(map[string]interface{}{
		"schedule": expr,
		"window":   opts.Window.String(),
	}).Info("Reminder job started")

	<-ctx.Done()
	logger.Info("Shutting down reminder job")
	<-c.Stop().Done()
	return nil
}

func sendReminders(ctx context.Context, service *invitations.Service, logger *observability.Logger, opts invitations.ReminderOptions) error {
	start := time.Now()
	sent, err := service.SendReminders(ctx, logger, opts)
	entry := logger.WithFields(map[string]interface{}{
		"sent":        sent,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("Reminder run failed")
		return err
	}
	entry.Info("Reminder run completed")
	return nil
}
