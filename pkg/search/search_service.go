package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/db"
	"github.com/platinummonkey/groundwork/pkg/models"
)

var searchTracer = otel.Tracer("groundwork/search/service")

// Paging limits
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// MsgQueryRequired is returned when the query has no free text
const MsgQueryRequired = "search query is required"

// Request is a search request
type Request struct {
	Query  string // free text plus type: and project: filters
	Limit  int
	Offset int
}

// Result is one match
type Result struct {
	EntityType  string  `json:"entity_type"`
	EntityID    int64   `json:"entity_id"`
	ProjectID   int64   `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet,omitempty"`
	Rank        float64 `json:"rank"`
}

// Response is a page of results
type Response struct {
	Results    []Result `json:"results"`
	TotalCount int      `json:"total_count"`
	Query      string   `json:"query"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

// entitySources select each type's matches with the same column names. %s
// receives the project filter.
var entitySources = map[string]string{
	EntityProject: `
		SELECT 'project' AS entity_type, p.id AS entity_id, p.id AS project_id, p.name AS project_name,
			p.name AS title, p.description AS snippet,
			ts_rank(to_tsvector('english', p.name || ' ' || p.description || ' ' || p.city), q.query) AS rank
		FROM projects p CROSS JOIN q
		WHERE p.id IN (SELECT id FROM visible)
			AND to_tsvector('english', p.name || ' ' || p.description || ' ' || p.city) @@ q.query%s`,
	EntityContact: `
		SELECT 'contact' AS entity_type, c.id AS entity_id, c.project_id, p.name AS project_name,
			c.name AS title, c.company AS snippet,
			ts_rank(to_tsvector('english', c.name || ' ' || c.company || ' ' || c.role || ' ' || c.notes), q.query) AS rank
		FROM contacts c JOIN projects p ON p.id = c.project_id CROSS JOIN q
		WHERE c.project_id IN (SELECT id FROM visible)
			AND to_tsvector('english', c.name || ' ' || c.company || ' ' || c.role || ' ' || c.notes) @@ q.query%s`,
	EntityDocument: `
		SELECT 'document' AS entity_type, d.id AS entity_id, d.project_id, p.name AS project_name,
			d.name AS title, d.content_type AS snippet,
			ts_rank(to_tsvector('english', d.name), q.query) AS rank
		FROM documents d JOIN projects p ON p.id = d.project_id CROSS JOIN q
		WHERE d.project_id IN (SELECT id FROM visible) AND d.deleted_at IS NULL
			AND to_tsvector('english', d.name) @@ q.query%s`,
	EntityEvent: `
		SELECT 'event' AS entity_type, e.id AS entity_id, e.project_id, p.name AS project_name,
			e.title AS title, e.notes AS snippet,
			ts_rank(to_tsvector('english', e.title || ' ' || e.notes), q.query) AS rank
		FROM events e JOIN projects p ON p.id = e.project_id CROSS JOIN q
		WHERE e.project_id IN (SELECT id FROM visible)
			AND to_tsvector('english', e.title || ' ' || e.notes) @@ q.query%s`,
}

var projectColumn = map[string]string{
	EntityProject:  "p.id",
	EntityContact:  "c.project_id",
	EntityDocument: "d.project_id",
	EntityEvent:    "e.project_id",
}

// Service searches a user's portfolio using PostgreSQL FTS
type Service struct {
	db     *sql.DB
	parser *QueryParser
}

// NewService creates a new search service
func NewService(db *sql.DB) *Service {
	return &Service{db: db, parser: NewQueryParser()}
}

// Search matches req.Query against everything the caller can read
func (s *Service) Search(ctx context.Context, caller *models.User, req Request) (*Response, error) {
	if caller == nil {
		return nil, apierr.Unauthorized(access.MsgAuthRequired)
	}
	ctx, span := searchTracer.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Int64("user.id", caller.ID),
			attribute.Int("limit", req.Limit),
			attribute.Int("offset", req.Offset),
		),
	)
	defer span.End()

	parsed, err := s.parser.Parse(req.Query)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse query")
		return nil, apierr.BadRequest(err.Error())
	}
	if len(parsed.Terms) == 0 {
		span.SetStatus(codes.Error, "empty query")
		return nil, apierr.BadRequest(MsgQueryRequired)
	}
	req.Limit, req.Offset = clampPage(req.Limit, req.Offset)
	span.SetAttributes(
		attribute.Bool("has_filters", parsed.HasFilters()),
		attribute.Int("term_count", len(parsed.Terms)),
	)

	union, args := buildUnion(parsed, caller.ID)

	pageArgs := append(append([]interface{}{}, args...), req.Limit, req.Offset)
	rows, err := s.db.QueryContext(ctx, union+fmt.Sprintf(`
		SELECT entity_type, entity_id, project_id, project_name, title, snippet, rank
		FROM matches
		ORDER BY rank DESC, entity_type ASC, entity_id ASC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to execute search")
		return nil, apierr.Internal("failed to search", err)
	}
	defer rows.Close()

	results := make([]Result, 0, req.Limit)
	for rows.Next() {
		var (
			r       Result
			snippet sql.NullString
		)
		if err := rows.Scan(&r.EntityType, &r.EntityID, &r.ProjectID, &r.ProjectName, &r.Title, &snippet, &r.Rank); err != nil {
			span.RecordError(err)
			return nil, apierr.Internal("failed to search", err)
		}
		r.Snippet = snippet.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error iterating results")
		return nil, apierr.Internal("failed to search", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, union+`SELECT COUNT(*) FROM matches`, args...).Scan(&total); err != nil {
		// the page is still valid without the total
		span.AddEvent("failed to get total count",
			trace.WithAttributes(attribute.String("error", err.Error())),
		)
		total = req.Offset + len(results)
	}

	span.SetAttributes(
		attribute.Int("result_count", len(results)),
		attribute.Int("total_count", total),
	)
	span.SetStatus(codes.Ok, "search completed")

	return &Response{
		Results:    results,
		TotalCount: total,
		Query:      req.Query,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}, nil
}

// buildUnion returns the WITH clause defining matches, and its arguments: $1 the
// user, $2 the text and $3 the project when filtered.
func buildUnion(q *ParsedQuery, userID int64) (string, []interface{}) {
	args := []interface{}{userID, q.Text()}
	projectFilter := func(string) string { return "" }
	if q.ProjectID != nil {
		args = append(args, *q.ProjectID)
		projectFilter = func(entity string) string {
			return fmt.Sprintf(" AND %s = $3", projectColumn[entity])
		}
	}

	parts := make([]string, 0, len(EntityTypes))
	for _, entity := range EntityTypes {
		if q.Includes(entity) {
			parts = append(parts, fmt.Sprintf(entitySources[entity], projectFilter(entity)))
		}
	}

	var b strings.Builder
	b.WriteString(`WITH visible AS (` + db.VisibleProjectIDs + `
	), q AS (
		SELECT plainto_tsquery('english', $2) AS query
	), matches AS (`)
	b.WriteString(strings.Join(parts, "\n\t\tUNION ALL"))
	b.WriteString("\n\t)\n")
	return b.String(), args
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
