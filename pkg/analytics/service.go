package analytics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/costs"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// Service provides the portfolio summary
type Service struct {
	store Store
}

// NewService creates a new analytics service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Summary rolls up every project the caller owns or holds accepted access to.
// The four queries run concurrently; the first failure cancels the rest.
func (s *Service) Summary(ctx context.Context, caller *models.User) (*Summary, error) {
	if caller == nil {
		return nil, apierr.Unauthorized(access.MsgAuthRequired)
	}
	ctx, span := observability.StartSpan(ctx, "Analytics.Summary")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", caller.ID))

	var (
		statuses []StatusTotal
		spend    map[costs.Category]costs.CategoryTotal
		upcoming []*UpcomingEvent
		health   []ProjectHealth
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		statuses, err = s.store.StatusTotals(gctx, caller.ID)
		return err
	})
	g.Go(func() (err error) {
		spend, err = s.store.SpendByCategory(gctx, caller.ID)
		return err
	})
	g.Go(func() (err error) {
		upcoming, err = s.store.UpcomingEvents(gctx, caller.ID, UpcomingLimit)
		return err
	})
	g.Go(func() (err error) {
		health, err = s.store.ProjectHealth(gctx, caller.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summary query failed")
		return nil, apierr.Internal("failed to build portfolio summary", err)
	}

	summary := buildSummary(statuses, spend, upcoming, health)
	span.SetAttributes(attribute.Int("projects.count", summary.ProjectCount))
	return summary, nil
}

func buildSummary(statuses []StatusTotal, spend map[costs.Category]costs.CategoryTotal,
	upcoming []*UpcomingEvent, health []ProjectHealth) *Summary {

	byStatus := make(map[models.ProjectStatus]StatusTotal, len(statuses))
	for _, st := range statuses {
		byStatus[st.Status] = st
	}

	summary := &Summary{UpcomingEvents: upcoming, Alerts: CheckAlerts(health)}
	for _, status := range models.ProjectStatuses {
		st := byStatus[status]
		st.Status = status
		summary.ByStatus = append(summary.ByStatus, st)
		summary.ProjectCount += st.Count
		summary.TotalBudgetCents += st.BudgetCents
	}

	// the category breakdown is the same shape as a single project's
	breakdown := costs.NewBreakdown(0, summary.TotalBudgetCents, spend)
	summary.SpendByCategory = breakdown.ByCategory
	summary.TotalSpentCents = breakdown.TotalCents
	summary.VarianceCents = breakdown.VarianceCents
	if summary.UpcomingEvents == nil {
		summary.UpcomingEvents = []*UpcomingEvent{}
	}
	return summary
}
