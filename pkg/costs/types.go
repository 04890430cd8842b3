// Package costs records project cost lines and summarises them against the budget.
package costs

import (
	"time"
)

// Category groups cost lines in the breakdown
type Category string

const (
	CategoryLand      Category = "land"
	CategoryHard      Category = "hard"
	CategorySoft      Category = "soft"
	CategoryFinancing Category = "financing"
	CategoryOther     Category = "other"
)

// Categories lists every category in breakdown order
var Categories = []Category{CategoryLand, CategoryHard, CategorySoft, CategoryFinancing, CategoryOther}

// Item is one cost line
type Item struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Vendor      string    `json:"vendor,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	IncurredOn  time.Time `json:"incurred_on"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input is the body of an add or update request
type Input struct {
	Category    Category  `json:"category" validate:"required,oneof=land hard soft financing other"`
	Description string    `json:"description" validate:"notblank,max=500"`
	Vendor      string    `json:"vendor" validate:"max=200"`
	AmountCents int64     `json:"amount_cents" validate:"gt=0"`
	IncurredOn  time.Time `json:"incurred_on" validate:"required"`
}

// CategoryTotal sums the lines of one category
type CategoryTotal struct {
	Category   Category `json:"category"`
	TotalCents int64    `json:"total_cents"`
	Count      int      `json:"count"`
}

// Breakdown is the project's spend against its budget. VarianceCents is budget
// minus spend, so a negative value is an overrun.
type Breakdown struct {
	ProjectID     int64           `json:"project_id"`
	BudgetCents   int64           `json:"budget_cents"`
	TotalCents    int64           `json:"total_cents"`
	VarianceCents int64           `json:"variance_cents"`
	ByCategory    []CategoryTotal `json:"by_category"`
}

// NewBreakdown fills every category, including empty ones, in Categories order
func NewBreakdown(projectID, budgetCents int64, totals map[Category]CategoryTotal) *Breakdown {
	b := &Breakdown{ProjectID: projectID, BudgetCents: budgetCents, ByCategory: make([]CategoryTotal, 0, len(Categories))}
	for _, c := range Categories {
		t := totals[c]
		t.Category = c
		b.ByCategory = append(b.ByCategory, t)
		b.TotalCents += t.TotalCents
	}
	b.VarianceCents = b.BudgetCents - b.TotalCents
	return b
}
