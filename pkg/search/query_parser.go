package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Entity types that can be searched
const (
	EntityProject  = "project"
	EntityContact  = "contact"
	EntityDocument = "document"
	EntityEvent    = "event"
)

// EntityTypes lists every searchable type in result tie-break order
var EntityTypes = []string{EntityProject, EntityContact, EntityDocument, EntityEvent}

// ParsedQuery is a search string split into free text and filters
type ParsedQuery struct {
	Terms       []string
	EntityTypes []string
	ProjectID   *int64
	Raw         string
}

// QueryParser parses key:value filters out of a search string
type QueryParser struct {
	filterPattern *regexp.Regexp
}

// NewQueryParser creates a new query parser
func NewQueryParser() *QueryParser {
	// key:value or key:"quoted value"
	return &QueryParser{filterPattern: regexp.MustCompile(`([\w-]+):("([^"]+)"|(\S+))`)}
}

// Parse splits queryStr. Unknown keys are kept as free text.
func (p *QueryParser) Parse(queryStr string) (*ParsedQuery, error) {
	query := &ParsedQuery{Raw: queryStr}

	for _, match := range p.filterPattern.FindAllStringSubmatch(queryStr, -1) {
		value := match[3]
		if value == "" {
			value = match[4]
		}
		if err := p.parseFilter(query, match[1], value); err != nil {
			return nil, err
		}
	}

	clean := p.filterPattern.ReplaceAllStringFunc(queryStr, func(m string) string {
		key := strings.ToLower(m[:strings.Index(m, ":")])
		if key == "type" || key == "project" {
			return " "
		}
		return m
	})
	query.Terms = strings.Fields(clean)
	return query, nil
}

func (p *QueryParser) parseFilter(query *ParsedQuery, key, value string) error {
	switch strings.ToLower(key) {
	case "type":
		value = strings.ToLower(value)
		for _, t := range EntityTypes {
			if t == value {
				for _, seen := range query.EntityTypes {
					if seen == value {
						return nil
					}
				}
				query.EntityTypes = append(query.EntityTypes, value)
				return nil
			}
		}
		return fmt.Errorf("invalid entity type: %s (must be one of: %s)", value, strings.Join(EntityTypes, ", "))

	case "project":
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid project id: %s", value)
		}
		query.ProjectID = &id
	}
	return nil
}

// Text is the free text handed to plainto_tsquery
func (q *ParsedQuery) Text() string {
	return strings.Join(q.Terms, " ")
}

// HasFilters reports whether the query narrows types or projects
func (q *ParsedQuery) HasFilters() bool {
	return len(q.EntityTypes) > 0 || q.ProjectID != nil
}

// Includes reports whether results of entityType are wanted
func (q *ParsedQuery) Includes(entityType string) bool {
	if len(q.EntityTypes) == 0 {
		return true
	}
	for _, t := range q.EntityTypes {
		if t == entityType {
			return true
		}
	}
	return false
}
