// Package search provides full-text search across a user's portfolio.
//
// # Overview
//
// Projects, contacts, documents and events are matched with PostgreSQL full text
// search (plainto_tsquery) and ranked with ts_rank. Results only ever come from
// projects the caller owns or holds accepted, non-revoked access to.
//
// # Query Syntax
//
// Free text:
//
//	search?q=framing inspection
//
// Entity type filter (repeatable):
//
//	search?q=permit type:document type:event
//
// Project filter:
//
//	search?q=surveyor project:12
//
// # Usage Example
//
//	resp, err := svc.Search(ctx, caller, search.Request{Query: "permit", Limit: 20})
//	for _, r := range resp.Results {
//		fmt.Printf("%s %d in %s (rank %.2f)\n", r.EntityType, r.EntityID, r.ProjectName, r.Rank)
//	}
package search
