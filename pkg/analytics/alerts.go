package analytics

import (
	"fmt"

	"github.com/platinummonkey/groundwork/pkg/models"
)

// Alert types
const (
	AlertOverBudget  = "over_budget"
	AlertNearBudget  = "near_budget"
	AlertOverdue     = "overdue_events"
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// NearBudgetRatio is the share of budget spent that raises a near_budget alert
const NearBudgetRatio = 0.9

// Alert flags a project that needs attention
type Alert struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	ProjectID   int64  `json:"project_id"`
	ProjectName string `json:"project_name"`
	Message     string `json:"message"`
}

// CheckAlerts derives alerts from per-project health. Archived and completed
// projects are skipped; projects without a budget never raise budget alerts.
func CheckAlerts(health []ProjectHealth) []Alert {
	alerts := []Alert{}
	for _, h := range health {
		if h.Status == models.ProjectStatusArchived || h.Status == models.ProjectStatusCompleted {
			continue
		}
		if h.BudgetCents > 0 {
			switch {
			case h.SpentCents > h.BudgetCents:
				alerts = append(alerts, Alert{
					Type:        AlertOverBudget,
					Severity:    SeverityCritical,
					ProjectID:   h.ProjectID,
					ProjectName: h.ProjectName,
					Message:     fmt.Sprintf("spend exceeds budget by %s", models.FormatCents(h.SpentCents-h.BudgetCents)),
				})
			case float64(h.SpentCents) >= NearBudgetRatio*float64(h.BudgetCents):
				alerts = append(alerts, Alert{
					Type:        AlertNearBudget,
					Severity:    SeverityWarning,
					ProjectID:   h.ProjectID,
					ProjectName: h.ProjectName,
					Message: fmt.Sprintf("%.0f%% of budget spent",
						100*float64(h.SpentCents)/float64(h.BudgetCents)),
				})
			}
		}
		if h.OverdueEvents > 0 {
			alerts = append(alerts, Alert{
				Type:        AlertOverdue,
				Severity:    SeverityWarning,
				ProjectID:   h.ProjectID,
				ProjectName: h.ProjectName,
				Message:     fmt.Sprintf("%d overdue event(s)", h.OverdueEvents),
			})
		}
	}
	return alerts
}
