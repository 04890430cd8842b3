package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store persists notifications and subscriptions
type Store interface {
	Insert(ctx context.Context, userID int64, msg Message) (*Notification, error)
	List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) (*Page, error)
	MarkRead(ctx context.Context, userID, id int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	// EnsureSubscription creates the user's subscription with token if none exists and returns it
	EnsureSubscription(ctx context.Context, userID int64, token string) (*Subscription, error)
	// SubscriptionByEmail returns nil when the address has no account or no subscription yet
	SubscriptionByEmail(ctx context.Context, email string) (*Subscription, error)
	DisableEmail(ctx context.Context, token string, at time.Time) (int64, bool, error)
	RotateToken(ctx context.Context, userID int64, token string, at time.Time) error
}

// PostgresStore implements Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert stores a notification
func (s *PostgresStore) Insert(ctx context.Context, userID int64, msg Message) (*Notification, error) {
	n := &Notification{UserID: userID, Kind: msg.Kind, Title: msg.Title, Body: msg.Body, Link: msg.Link}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, kind, title, body, link)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, userID, msg.Kind, msg.Title, msg.Body, msg.Link).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	return n, nil
}

// List returns the user's notifications, newest first
func (s *PostgresStore) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) (*Page, error) {
	page := &Page{Notifications: []*Notification{}, Limit: limit, Offset: offset}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE read_at IS NULL)
		FROM notifications WHERE user_id = $1
	`, userID).Scan(&page.Total, &page.Unread)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	if unreadOnly {
		page.Total = page.Unread
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, title, body, link, read_at, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n := &Notification{}
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Link, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		page.Notifications = append(page.Notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return page, nil
}

// MarkRead marks one of the user's notifications read. It reports false if the
// notification does not belong to the user.
func (s *PostgresStore) MarkRead(ctx context.Context, userID, id int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkAllRead marks every unread notification read and returns how many changed
func (s *PostgresStore) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL
	`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// EnsureSubscription creates the subscription row on first use
func (s *PostgresStore) EnsureSubscription(ctx context.Context, userID int64, token string) (*Subscription, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_subscriptions (user_id, unsubscribe_token)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	sub := &Subscription{UserID: userID}
	err = s.db.QueryRowContext(ctx, `
		SELECT u.email, s.email_enabled, s.unsubscribe_token
		FROM notification_subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.user_id = $1
	`, userID).Scan(&sub.Email, &sub.EmailEnabled, &sub.UnsubscribeToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// SubscriptionByEmail looks up the subscription of the account with this address
func (s *PostgresStore) SubscriptionByEmail(ctx context.Context, email string) (*Subscription, error) {
	sub := &Subscription{Email: email}
	err := s.db.QueryRowContext(ctx, `
		SELECT s.user_id, s.email_enabled, s.unsubscribe_token
		FROM notification_subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE u.email = $1
	`, email).Scan(&sub.UserID, &sub.EmailEnabled, &sub.UnsubscribeToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// DisableEmail turns off email for the subscription holding token
func (s *PostgresStore) DisableEmail(ctx context.Context, token string, at time.Time) (int64, bool, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE notification_subscriptions SET email_enabled = FALSE, updated_at = $2
		WHERE unsubscribe_token = $1
		RETURNING user_id
	`, token, at).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to disable email: %w", err)
	}
	return userID, true, nil
}

// RotateToken replaces the user's unsubscribe token
func (s *PostgresStore) RotateToken(ctx context.Context, userID int64, token string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_subscriptions SET unsubscribe_token = $2, updated_at = $3
		WHERE user_id = $1
	`, userID, token, at)
	if err != nil {
		return fmt.Errorf("failed to rotate unsubscribe token: %w", err)
	}
	return nil
}
