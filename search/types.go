// Package search implements the full-text search index over page,
// segment and promoted-event text, backed by PostgreSQL's native tsvector/tsquery and the
// pg_trgm extension's similarity() for fuzzy fallback matching.
package search

import "time"

// Document is one indexed unit: a page, a segment or a promoted event, carrying enough
// denormalized fields to render a result without a join back to the
// repository store.
type Document struct {
	DocID         string
	SourceKind    string // "page", "segment" or "event"
	PageID        string
	PublicationID string
	IssueDate     time.Time
	Text          string
}

// Query describes a parsed search request.
type Query struct {
	Raw           string
	PublicationID string
	DateStart     *time.Time
	DateEnd       *time.Time
	FuzzyFallback bool
}

// Facet is one bucketed count over a field (publication_id, year).
type Facet struct {
	Value string
	Count int
}

// Result is one ranked search hit.
type Result struct {
	Document Document
	Rank     float64
	Fuzzy    bool
}

// SearchOptions bounds and facets a Search call.
type SearchOptions struct {
	Limit       int
	Offset      int
	FacetFields []string
	// Threshold overrides fuzzyThreshold when > 0, on a caller-facing
	// 0-100 scale; fuzzySearch rescales it to pg_trgm's 0-1 similarity.
	Threshold float64
}

// SearchResponse is the output of Search.
type SearchResponse struct {
	Results    []Result
	TotalItems int
	Facets     map[string][]Facet
}
