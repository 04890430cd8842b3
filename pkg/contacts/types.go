// Package contacts keeps a project's address book of vendors, consultants and
// officials, and lets everyone with access rate them once.
package contacts

import "time"

// Contact is one address book entry with its rating summary
type Contact struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Name        string    `json:"name"`
	Company     string    `json:"company,omitempty"`
	Role        string    `json:"role,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// AverageRating is nil until someone rates the contact
	AverageRating *float64 `json:"average_rating"`
	RatingCount   int      `json:"rating_count"`
}

// Input is the body of an add or update request
type Input struct {
	Name    string `json:"name" validate:"notblank,max=200"`
	Company string `json:"company" validate:"max=200"`
	Role    string `json:"role" validate:"max=100"`
	Email   string `json:"email" validate:"omitempty,email,max=320"`
	Phone   string `json:"phone" validate:"max=50"`
	Notes   string `json:"notes" validate:"max=4000"`
}

// RatingInput is the body of a rating request
type RatingInput struct {
	Score   int    `json:"score" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Rating is one user's score for a contact
type Rating struct {
	ID        int64     `json:"id"`
	ContactID int64     `json:"contact_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
