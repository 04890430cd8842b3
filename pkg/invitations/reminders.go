package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/groundwork/pkg/async"
	"github.com/platinummonkey/groundwork/pkg/notifications"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// ReminderOptions configures a reminder run
type ReminderOptions struct {
	// Window selects invitations expiring within this duration of now
	Window  time.Duration
	Workers int
	// Timeout bounds each reminder
	Timeout time.Duration
}

// SendReminders mails every pending invitation that expires within the window and
// has not been reminded yet. Invitation state is never changed. It returns the
// number of reminders sent.
func (s *Service) SendReminders(ctx context.Context, logger *observability.Logger, opts ReminderOptions) (int, error) {
	now := s.now()
	pending, err := s.store.ListExpiring(ctx, now, now.Add(opts.Window))
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sent := make(chan struct{}, len(pending))
	errs := async.Batch(ctx, pending, opts.Workers, opts.Timeout, func(ctx context.Context, p *Pending) error {
		recorded, err := s.store.RecordReminder(ctx, p.Access.ID, now)
		if err != nil {
			return fmt.Errorf("invitation %d: %w", p.Access.ID, err)
		}
		if !recorded {
			return nil
		}

		link := ""
		if p.Access.Token != nil {
			link = strings.ReplaceAll(s.opts.AcceptURL, "{token}", *p.Access.Token)
		}
		s.notifier.NotifyEmail(ctx, p.Access.InvitedEmail, notifications.Message{
			Kind:  notifications.KindInvitationReminder,
			Title: fmt.Sprintf("Your invitation to %s expires soon", p.ProjectName),
			Body: fmt.Sprintf("%s invited you to %s with %s access. The invitation expires on %s.",
				p.InviterName, p.ProjectName, p.Access.Permission, p.Access.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST")),
			Link: link,
		})
		s.metrics.ObserveReminder()
		sent <- struct{}{}
		return nil
	})
	close(sent)

	count := len(sent)
	logger.WithFields(map[string]interface{}{
		"candidates": len(pending),
		"sent":       count,
		"failed":     len(errs),
	}).Info("Invitation reminders processed")

	return count, errors.Join(errs...)
}
