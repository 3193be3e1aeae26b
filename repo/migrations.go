package repo

import "context"

// schemaDDL creates the repository schema: publications, newspaper_pages,
// article_segments, newspaper_articles, and the work queue tables
// (processing_queue, bulk_processing_tasks), with foreign keys expressing
// the cascade-delete invariants from the data model.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS publications (
	publication_id TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	place_city     TEXT NOT NULL DEFAULT '',
	place_state    TEXT NOT NULL DEFAULT '',
	first_issue    DATE,
	last_issue     DATE
);

CREATE TABLE IF NOT EXISTS newspaper_pages (
	page_id        TEXT PRIMARY KEY,
	publication_id TEXT NOT NULL REFERENCES publications(publication_id),
	issue_date     DATE NOT NULL,
	sequence       INT NOT NULL,
	source_system  TEXT NOT NULL,
	image_ref      TEXT NOT NULL,
	ocr_text_ref   TEXT,
	hocr_ref       TEXT,
	ocr_text       TEXT,
	status         TEXT NOT NULL DEFAULT 'new',
	metadata       JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (publication_id, issue_date, sequence, source_system)
);

CREATE TABLE IF NOT EXISTS article_segments (
	segment_id TEXT PRIMARY KEY,
	page_id    TEXT NOT NULL REFERENCES newspaper_pages(page_id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	bbox_x     INT NOT NULL,
	bbox_y     INT NOT NULL,
	bbox_w     INT NOT NULL,
	bbox_h     INT NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	image_ref  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'draft',
	entities   JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (confidence >= 0 AND confidence <= 1)
);

CREATE TABLE IF NOT EXISTS newspaper_articles (
	article_id  TEXT PRIMARY KEY,
	page_id     TEXT NOT NULL REFERENCES newspaper_pages(page_id) ON DELETE CASCADE,
	segment_ids TEXT[] NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	metadata    JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS bulk_processing_tasks (
	bulk_id     TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	operation   TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	total       INT NOT NULL DEFAULT 0,
	pending     INT NOT NULL DEFAULT 0,
	in_progress INT NOT NULL DEFAULT 0,
	succeeded   INT NOT NULL DEFAULT 0,
	failed      INT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS processing_queue (
	task_id          TEXT PRIMARY KEY,
	page_id          TEXT REFERENCES newspaper_pages(page_id) ON DELETE CASCADE,
	operation        TEXT NOT NULL,
	parameters       JSONB NOT NULL DEFAULT '{}',
	priority         INT NOT NULL DEFAULT 100,
	status           TEXT NOT NULL DEFAULT 'pending',
	attempts         INT NOT NULL DEFAULT 0,
	max_attempts     INT NOT NULL DEFAULT 3,
	last_error       TEXT,
	lease_owner      TEXT,
	lease_expires_at TIMESTAMPTZ,
	next_eligible_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	bulk_id          TEXT REFERENCES bulk_processing_tasks(bulk_id),
	enqueued_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_processing_queue_lease
	ON processing_queue (status, priority, enqueued_at)
	WHERE status = 'pending';

CREATE INDEX IF NOT EXISTS idx_newspaper_pages_pub_date
	ON newspaper_pages (publication_id, issue_date);
`

// Migrate creates the repository schema if it does not already exist.
// Run by the "setup" CLI command.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Exec(ctx, schemaDDL)
}
