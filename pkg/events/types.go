// Package events keeps the project timeline: milestones, inspections, meetings and
// deadlines.
package events

import "time"

// Kind classifies an event
type Kind string

const (
	KindMilestone  Kind = "milestone"
	KindInspection Kind = "inspection"
	KindMeeting    Kind = "meeting"
	KindDeadline   Kind = "deadline"
	KindOther      Kind = "other"
)

// Event is one entry on the project timeline
type Event struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Kind        Kind       `json:"kind"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Completed reports whether the event has been marked done
func (e *Event) Completed() bool {
	return e.CompletedAt != nil
}

// Input is the body of an add or update request
type Input struct {
	Title       string    `json:"title" validate:"notblank,max=200"`
	Kind        Kind      `json:"kind" validate:"required,oneof=milestone inspection meeting deadline other"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Notes       string    `json:"notes" validate:"max=2000"`
}

// Filter narrows List
type Filter struct {
	// Upcoming keeps incomplete events scheduled from now on
	Upcoming bool
	Limit    int
}
