package notifications

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// Service records notifications and mails them to subscribed users
type Service struct {
	store          Store
	mailer         Mailer
	from           string
	unsubscribeURL string
	now            func() time.Time
}

// NewService creates the notification service. unsubscribeURL contains {token}.
func NewService(store Store, mailer Mailer, from, unsubscribeURL string) *Service {
	return &Service{
		store:          store,
		mailer:         mailer,
		from:           from,
		unsubscribeURL: unsubscribeURL,
		now:            time.Now,
	}
}

// Notify stores an in-app notification for the user and emails it if they are
// subscribed. Only the insert can fail the call.
func (s *Service) Notify(ctx context.Context, userID int64, msg Message) error {
	if _, err := s.store.Insert(ctx, userID, msg); err != nil {
		return err
	}

	logger := observability.FromContext(ctx).WithField("recipient_id", userID)

	token, err := newToken()
	if err != nil {
		logger.WithError(err).Warn("Failed to generate unsubscribe token")
		return nil
	}
	sub, err := s.store.EnsureSubscription(ctx, userID, token)
	if err != nil {
		logger.WithError(err).Warn("Failed to load subscription")
		return nil
	}
	if !sub.EmailEnabled {
		return nil
	}
	s.send(ctx, sub.Email, msg, sub.UnsubscribeToken)
	return nil
}

// NotifyEmail mails an address that may not have an account yet. Nothing is stored.
func (s *Service) NotifyEmail(ctx context.Context, email string, msg Message) {
	email = models.NormalizeEmail(email)

	sub, err := s.store.SubscriptionByEmail(ctx, email)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("Failed to load subscription")
	}
	token := ""
	if sub != nil {
		if !sub.EmailEnabled {
			return
		}
		token = sub.UnsubscribeToken
	}
	s.send(ctx, email, msg, token)
}

func (s *Service) send(ctx context.Context, to string, msg Message, unsubscribeToken string) {
	email := Email{From: s.from, To: to, Subject: msg.Title, Body: msg.Body}
	if msg.Link != "" {
		email.Body += "\n\n" + msg.Link
	}
	if unsubscribeToken != "" && s.unsubscribeURL != "" {
		email.UnsubscribeURL = strings.ReplaceAll(s.unsubscribeURL, "{token}", unsubscribeToken)
	}

	if err := s.mailer.Send(ctx, email); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("kind", msg.Kind).
			Warn("Failed to send notification email")
	}
}

// List returns one page of the user's notifications
func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) (*Page, error) {
	page, err := s.store.List(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apierr.Internal("failed to list notifications", err)
	}
	return page, nil
}

// MarkRead marks one notification read
func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	found, err := s.store.MarkRead(ctx, userID, id, s.now())
	if err != nil {
		return apierr.Internal("failed to mark notification read", err)
	}
	if !found {
		return apierr.NotFound("notification")
	}
	return nil
}

// MarkAllRead marks all of the user's notifications read
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, apierr.Internal("failed to mark notifications read", err)
	}
	return n, nil
}

// Unsubscribe disables email for the token's owner and rotates the token so the
// link cannot be replayed. A failed rotation is logged; the user stays unsubscribed.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apierr.Validation(map[string]string{"token": "is required"})
	}

	userID, found, err := s.store.DisableEmail(ctx, token, s.now())
	if err != nil {
		return apierr.Internal("failed to unsubscribe", err)
	}
	if !found {
		return apierr.NotFound("subscription")
	}

	logger := observability.FromContext(ctx).WithField("subscriber_id", userID)
	next, err := newToken()
	if err != nil {
		logger.WithError(err).Warn("Failed to generate unsubscribe token")
		return nil
	}
	if err := s.store.RotateToken(ctx, userID, next, s.now()); err != nil {
		logger.WithError(err).Warn("Failed to rotate unsubscribe token")
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
