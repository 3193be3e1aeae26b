package search

import (
	"context"
	"strconv"
	"strings"
	"time"

	"newsarchive/kinderr"
	"newsarchive/logging"
	"newsarchive/pgxdb"
	"newsarchive/repo"
)

// fuzzyThreshold is the default pg_trgm similarity() cutoff below which
// a fuzzy match is not surfaced. 70 is the middle of the 60/70/80
// candidates considered; see the decisions record for why.
const fuzzyThreshold = 0.70

// Index is the Postgres-backed full-text search index.
type Index struct {
	db  *pgxdb.DB
	log *logging.ContextLogger
}

// New constructs an Index over an already-migrated pool.
func New(db *pgxdb.DB, log *logging.ContextLogger) *Index {
	return &Index{db: db, log: log.WithField("component", "search")}
}

// IndexDocument upserts a document's searchable text.
func (idx *Index) IndexDocument(ctx context.Context, doc Document) error {
	err := idx.db.Exec(ctx, `
		INSERT INTO search_documents (doc_id, source_kind, page_id, publication_id, issue_date, text)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id) DO UPDATE SET
			text = EXCLUDED.text,
			indexed_at = now()
	`, doc.DocID, doc.SourceKind, doc.PageID, doc.PublicationID, doc.IssueDate, doc.Text)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "index document")
	}
	return nil
}

// DeleteDocument removes a document from the index.
func (idx *Index) DeleteDocument(ctx context.Context, docID string) error {
	return idx.db.Exec(ctx, `DELETE FROM search_documents WHERE doc_id = $1`, docID)
}

// Reindex rebuilds the index for one of the two sources the index
// covers: "repository" (pages' OCR text plus promoted segments' text)
// or "main" (the main database's promoted events). mainDB is unused
// when source is "repository" and may be nil in that case.
func (idx *Index) Reindex(ctx context.Context, store *repo.Store, mainDB *pgxdb.DB, source string) (int, error) {
	switch source {
	case "repository":
		return idx.reindexRepository(ctx, store)
	case "main":
		return idx.reindexMain(ctx, mainDB)
	default:
		return 0, kinderr.New(kinderr.Validation, "unknown reindex source").WithDetail("source", source)
	}
}

func (idx *Index) reindexRepository(ctx context.Context, store *repo.Store) (int, error) {
	count := 0

	pages, err := store.SearchPages(ctx, repo.SearchPredicate{}, 100000, 0)
	if err != nil {
		return count, err
	}
	for _, p := range pages {
		if p.OCRText == nil || *p.OCRText == "" {
			continue
		}
		doc := Document{
			DocID:         "page:" + p.PageID,
			SourceKind:    "page",
			PageID:        p.PageID,
			PublicationID: p.PublicationID,
			IssueDate:     p.IssueDate,
			Text:          *p.OCRText,
		}
		if err := idx.IndexDocument(ctx, doc); err != nil {
			return count, err
		}
		count++
	}

	segments, segPages, err := store.PromotedSegments(ctx)
	if err != nil {
		return count, err
	}
	for i, seg := range segments {
		if seg.Text == "" {
			continue
		}
		page := segPages[i]
		doc := Document{
			DocID:         "segment:" + seg.SegmentID,
			SourceKind:    "segment",
			PageID:        seg.PageID,
			PublicationID: page.PublicationID,
			IssueDate:     page.IssueDate,
			Text:          seg.Text,
		}
		if err := idx.IndexDocument(ctx, doc); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func (idx *Index) reindexMain(ctx context.Context, mainDB *pgxdb.DB) (int, error) {
	if mainDB == nil {
		return 0, kinderr.New(kinderr.Validation, "reindex of main source requires the main database connection")
	}

	rows, err := mainDB.Query(ctx, `SELECT event_id, publication_id, issue_date, title, text FROM events`)
	if err != nil {
		return 0, kinderr.Wrap(kinderr.Internal, err, "query events for reindex")
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var eventID, publicationID, title, text string
		var issueDate time.Time
		if err := rows.Scan(&eventID, &publicationID, &issueDate, &title, &text); err != nil {
			return count, kinderr.Wrap(kinderr.Internal, err, "scan event for reindex")
		}
		doc := Document{
			DocID:         "event:" + eventID,
			SourceKind:    "event",
			PublicationID: publicationID,
			IssueDate:     issueDate,
			Text:          text,
		}
		if err := idx.IndexDocument(ctx, doc); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}

// Search runs q against the index, exact tsvector matches ranked ahead
// of fuzzy trigram matches, faceted per options.FacetFields.
func (idx *Index) Search(ctx context.Context, q Query, opts SearchOptions) (*SearchResponse, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return argPlaceholder(len(args))
	}

	if q.PublicationID != "" {
		clauses = append(clauses, "publication_id = "+arg(q.PublicationID))
	}
	if q.DateStart != nil {
		clauses = append(clauses, "issue_date >= "+arg(*q.DateStart))
	}
	if q.DateEnd != nil {
		clauses = append(clauses, "issue_date <= "+arg(*q.DateEnd))
	}

	tsq := toTSQuery(q.Raw)
	exactClause := ""
	if tsq != "" {
		exactClause = "tsv @@ to_tsquery('english', " + arg(tsq) + ")"
	}

	where := strings.Join(append(append([]string{}, clauses...), nonEmpty(exactClause)...), " AND ")
	if where == "" {
		where = "TRUE"
	}
	// whereArgs is a snapshot of args at this point: facets() only ever
	// references the where-clause placeholders, but args keeps growing
	// below with the rank/limit/offset bind values for the main query.
	whereArgs := append([]interface{}{}, args...)

	rankArg := ""
	if tsq != "" {
		rankArg = arg(tsq)
	}

	var query string
	if tsq != "" {
		query = `
			SELECT doc_id, source_kind, page_id, publication_id, issue_date, text,
			       ts_rank(tsv, to_tsquery('english', ` + rankArg + `)) AS rank
			FROM search_documents
			WHERE ` + where + `
			ORDER BY rank DESC
			LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)
	} else {
		query = `
			SELECT doc_id, source_kind, page_id, publication_id, issue_date, text, 0 AS rank
			FROM search_documents
			WHERE ` + where + `
			ORDER BY issue_date DESC
			LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)
	}

	rows, err := idx.db.Query(ctx, query, args...)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "search query")
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var d Document
		var rank float64
		if err := rows.Scan(&d.DocID, &d.SourceKind, &d.PageID, &d.PublicationID, &d.IssueDate, &d.Text, &rank); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan search result")
		}
		results = append(results, Result{Document: d, Rank: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if (len(results) == 0 || q.FuzzyFallback) && q.Raw != "" {
		fuzzy, err := idx.fuzzySearch(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			results = fuzzy
		} else {
			results = append(results, fuzzy...)
		}
	}

	facets, err := idx.facets(ctx, opts.FacetFields, where, whereArgs)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{Results: results, TotalItems: len(results), Facets: facets}, nil
}

// fuzzySearch is the fallback path when no exact tsvector match is
// found: it ranks candidates by pg_trgm similarity() against the raw
// query text.
func (idx *Index) fuzzySearch(ctx context.Context, q Query, opts SearchOptions) ([]Result, error) {
	threshold := fuzzyThreshold
	if opts.Threshold > 0 {
		// opts.Threshold is caller-facing on a 0-100 scale; pg_trgm's
		// similarity() operates on 0-1.
		threshold = opts.Threshold / 100.0
	}
	rows, err := idx.db.Query(ctx, `
		SELECT doc_id, source_kind, page_id, publication_id, issue_date, text, similarity(text, $1) AS sim
		FROM search_documents
		WHERE similarity(text, $1) >= $2
		ORDER BY sim DESC
		LIMIT $3
	`, q.Raw, threshold, opts.Limit)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "fuzzy search query")
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var d Document
		var sim float64
		if err := rows.Scan(&d.DocID, &d.SourceKind, &d.PageID, &d.PublicationID, &d.IssueDate, &d.Text, &sim); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan fuzzy result")
		}
		results = append(results, Result{Document: d, Rank: sim, Fuzzy: true})
	}
	return results, rows.Err()
}

func (idx *Index) facets(ctx context.Context, fields []string, where string, args []interface{}) (map[string][]Facet, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	out := make(map[string][]Facet)
	for _, field := range fields {
		column := facetColumn(field)
		if column == "" {
			continue
		}
		rows, err := idx.db.Query(ctx, `
			SELECT `+column+` AS value, count(*) FROM search_documents
			WHERE `+where+`
			GROUP BY value ORDER BY count(*) DESC LIMIT 20
		`, args...)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "facet query")
		}
		var facets []Facet
		for rows.Next() {
			var f Facet
			if err := rows.Scan(&f.Value, &f.Count); err != nil {
				rows.Close()
				return nil, err
			}
			facets = append(facets, f)
		}
		rows.Close()
		out[field] = facets
	}
	return out, nil
}

func facetColumn(field string) string {
	switch field {
	case "publication_id":
		return "publication_id"
	case "year":
		return "extract(year from issue_date)::text"
	default:
		return ""
	}
}

func argPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
