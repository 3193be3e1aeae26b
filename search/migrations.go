package search

import "context"

// schemaDDL creates the search_documents table with a generated tsvector
// column and the pg_trgm extension used for fuzzy fallback matching via
// similarity(). This lives in the same database as the repository store
// (search is a derived index over it, not a separate system of record).
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS search_documents (
	doc_id         TEXT PRIMARY KEY,
	source_kind    TEXT NOT NULL,
	page_id        TEXT NOT NULL,
	publication_id TEXT NOT NULL,
	issue_date     DATE NOT NULL,
	text           TEXT NOT NULL,
	tsv            TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', text)) STORED,
	indexed_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_search_documents_tsv ON search_documents USING GIN (tsv);
CREATE INDEX IF NOT EXISTS idx_search_documents_trgm ON search_documents USING GIN (text gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_search_documents_pub_date ON search_documents (publication_id, issue_date);
`

// Migrate creates the search schema if it does not already exist.
func (idx *Index) Migrate(ctx context.Context) error {
	return idx.db.Exec(ctx, schemaDDL)
}
