// Package analytics builds the portfolio summary: every project a user can read,
// rolled up into status counts, budget against spend, spend by category, the next
// upcoming events and alerts for projects that are over budget or behind schedule.
//
// The summary queries are independent and run concurrently:
//
//	summary, err := svc.Summary(ctx, caller)
//	fmt.Printf("%d projects, %d cents over budget\n",
//		summary.ProjectCount, -summary.VarianceCents)
package analytics
