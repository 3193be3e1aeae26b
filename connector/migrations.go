package connector

import "context"

// schemaDDL creates the main database's events table and its link back
// to the repository store. event_links lives here, not in the
// repository database, since the main database is what downstream
// consumers query and it must be able to express "this event came from
// that segment" without a cross-database foreign key (Postgres has
// none).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	event_id       TEXT PRIMARY KEY,
	content_hash   TEXT NOT NULL UNIQUE,
	publication_id TEXT NOT NULL,
	issue_date     DATE NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	text           TEXT NOT NULL,
	promoted_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS event_links (
	event_id   TEXT NOT NULL REFERENCES events(event_id) ON DELETE CASCADE,
	segment_id TEXT NOT NULL,
	PRIMARY KEY (event_id, segment_id)
);

CREATE INDEX IF NOT EXISTS idx_events_pub_date ON events (publication_id, issue_date);
`

// Migrate creates the main database's schema if it does not already
// exist.
func (c *Connector) Migrate(ctx context.Context) error {
	return c.main.Exec(ctx, schemaDDL)
}
