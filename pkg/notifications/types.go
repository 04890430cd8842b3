package notifications

import "time"

// Kind classifies a notification
type Kind string

const (
	KindInvitation         Kind = "invitation"
	KindInvitationAccepted Kind = "invitation_accepted"
	KindInvitationReminder Kind = "invitation_reminder"
	KindAccessRevoked      Kind = "access_revoked"
)

// Message is the content of a notification
type Message struct {
	Kind  Kind
	Title string
	Body  string
	Link  string
}

// Notification is a stored in-app notification
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Kind      Kind       `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Subscription holds a user's email preference
type Subscription struct {
	UserID           int64
	Email            string
	EmailEnabled     bool
	UnsubscribeToken string
}

// Page is one page of a user's notifications
type Page struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Unread        int64           `json:"unread"`
	Limit         int             `json:"limit"`
	Offset        int             `json:"offset"`
}

// Email is an outgoing message
type Email struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	UnsubscribeURL string `json:"unsubscribe_url,omitempty"`
}
