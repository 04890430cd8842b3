package analytics

import (
	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/events"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// UpcomingLimit caps the events listed in a summary
const UpcomingLimit = 10

// StatusTotal counts projects in one status
type StatusTotal struct {
	Status      models.ProjectStatus `json:"status"`
	Count       int                  `json:"count"`
	BudgetCents int64                `json:"budget_cents"`
}

// UpcomingEvent is an event with the name of its project
type UpcomingEvent struct {
	*events.Event
	ProjectName string `json:"project_name"`
}

// ProjectHealth is the per-project input to alerting
type ProjectHealth struct {
	ProjectID     int64
	ProjectName   string
	Status        models.ProjectStatus
	BudgetCents   int64
	SpentCents    int64
	OverdueEvents int
}

// Summary is the portfolio roll-up. VarianceCents is budget minus spend.
type Summary struct {
	ProjectCount     int                   `json:"project_count"`
	ByStatus         []StatusTotal         `json:"by_status"`
	TotalBudgetCents int64                 `json:"total_budget_cents"`
	TotalSpentCents  int64                 `json:"total_spent_cents"`
	VarianceCents    int64                 `json:"variance_cents"`
	SpendByCategory  []costs.CategoryTotal `json:"spend_by_category"`
	UpcomingEvents   []*UpcomingEvent      `json:"upcoming_events"`
	Alerts           []Alert               `json:"alerts"`
}
