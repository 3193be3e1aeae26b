package connector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"newsarchive/kinderr"
	"newsarchive/logging"
	"newsarchive/pgxdb"
	"newsarchive/repo"
)

// Connector holds handles to both the repository database and the main
// events database and moves promoted segments from the former to the
// latter.
type Connector struct {
	repoDB *repo.Store
	main   *pgxdb.DB
	log    *logging.ContextLogger

	fuzzyThreshold float64
}

// New constructs a Connector. fuzzyThreshold overrides
// defaultFuzzyThreshold when non-zero.
func New(repoStore *repo.Store, main *pgxdb.DB, fuzzyThreshold float64, log *logging.ContextLogger) *Connector {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = defaultFuzzyThreshold
	}
	return &Connector{repoDB: repoStore, main: main, fuzzyThreshold: fuzzyThreshold, log: log.WithField("component", "connector")}
}

// contentHash derives a stable identifier for an event's text so the
// same segment promoted twice (e.g. after a reprocess) does not create
// a second event row.
func contentHash(publicationID, text string) string {
	sum := sha256.Sum256([]byte(publicationID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// FindDuplicates compares req's text against existing events for the
// same publication within a date window, using token-set Jaccard
// similarity, and returns any matches above the configured threshold.
func (c *Connector) FindDuplicates(ctx context.Context, req PromoteRequest) ([]Duplicate, error) {
	rows, err := c.main.Query(ctx, `
		SELECT event_id, text FROM events
		WHERE publication_id = $1 AND issue_date BETWEEN $2 - interval '1 day' AND $2 + interval '1 day'
	`, req.PublicationID, req.IssueDate)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "query candidate events")
	}
	defer rows.Close()

	var duplicates []Duplicate
	for rows.Next() {
		var eventID, text string
		if err := rows.Scan(&eventID, &text); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan candidate event")
		}
		sim := jaccardSimilarity(req.Text, text)
		if sim >= c.fuzzyThreshold {
			duplicates = append(duplicates, Duplicate{SegmentID: req.SegmentID, MatchedEventID: eventID, Similarity: sim})
		}
	}
	return duplicates, rows.Err()
}

// Promote content-hashes req, checks for duplicates, and inserts (or
// reuses) an Event row plus an event_links row referencing the source
// segment by identifier. Per the promotion-semantics decision, the
// segment's image (if any) is referenced, not copied: the repository
// store remains the sole owner of segment files.
func (c *Connector) Promote(ctx context.Context, req PromoteRequest) (PromoteResult, error) {
	hash := contentHash(req.PublicationID, req.Text)

	duplicates, err := c.FindDuplicates(ctx, req)
	if err != nil {
		return PromoteResult{}, err
	}
	if len(duplicates) > 0 {
		best := duplicates[0]
		for _, d := range duplicates[1:] {
			if d.Similarity > best.Similarity {
				best = d
			}
		}
		if err := c.linkSegment(ctx, best.MatchedEventID, req.SegmentID); err != nil {
			return PromoteResult{}, err
		}
		return PromoteResult{EventID: best.MatchedEventID, Duplicate: true, MatchedID: best.MatchedEventID}, nil
	}

	eventID := uuid.NewString()
	err = c.main.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO events (event_id, content_hash, publication_id, issue_date, title, text)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (content_hash) DO NOTHING
		`, eventID, hash, req.PublicationID, req.IssueDate, req.Title, req.Text)
		if err != nil {
			return err
		}
		// On a content_hash conflict the insert above is skipped and the
		// existing event is reused, so read back its id.
		if err := tx.QueryRow(ctx, `SELECT event_id FROM events WHERE content_hash = $1`, hash).Scan(&eventID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO event_links (event_id, segment_id)
			SELECT event_id, $2 FROM events WHERE content_hash = $1
			ON CONFLICT DO NOTHING
		`, hash, req.SegmentID)
		return err
	})
	if err != nil {
		return PromoteResult{}, kinderr.Wrap(kinderr.Internal, err, "promote segment")
	}
	return PromoteResult{EventID: eventID}, nil
}

func (c *Connector) linkSegment(ctx context.Context, eventID, segmentID string) error {
	err := c.main.Exec(ctx, `
		INSERT INTO event_links (event_id, segment_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, eventID, segmentID)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "link segment to event")
	}
	return nil
}

// SyncToMain promotes every reviewed segment on a publication's pages
// into the main database and marks each one promoted in the
// repository store once its event exists.
func (c *Connector) SyncToMain(ctx context.Context, publicationID string) (int, error) {
	segments, pages, err := c.repoDB.ReviewedSegments(ctx, publicationID)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for i, seg := range segments {
		page := pages[i]
		_, err := c.Promote(ctx, PromoteRequest{
			SegmentID:     seg.SegmentID,
			PublicationID: page.PublicationID,
			IssueDate:     page.IssueDate,
			Text:          seg.Text,
		})
		if err != nil {
			return promoted, err
		}
		if err := c.repoDB.MarkSegmentPromoted(ctx, seg.SegmentID); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// SearchEvents runs a simple substring search against the main
// database's promoted events, for `search --source main`. The main
// store carries no tsvector index of its own: it is a small, append-
// mostly table of already-curated promotions, not the bulk OCR corpus
// the search package indexes, so a trigram-free ILIKE scan is adequate.
func (c *Connector) SearchEvents(ctx context.Context, query string, limit, offset int) ([]Event, error) {
	rows, err := c.main.Query(ctx, `
		SELECT event_id, content_hash, publication_id, issue_date, title, text, promoted_at
		FROM events
		WHERE text ILIKE $1 OR title ILIKE $1
		ORDER BY promoted_at DESC
		LIMIT $2 OFFSET $3
	`, "%"+query+"%", limit, offset)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "search events")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.EventID, &e.ContentHash, &e.PublicationID, &e.IssueDate, &e.Title, &e.Text, &e.PromotedAt); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan event row")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SyncFromMain reports segment_ids referenced by event_links that are
// no longer present in the repository store (e.g. a page was deleted
// after promotion). The repository store and the main database are
// separate Postgres connections, so this anti-join cannot be expressed
// as a single query: it fetches the linked segment ids from main, then
// checks each against the repository store and keeps what is missing.
func (c *Connector) SyncFromMain(ctx context.Context) ([]string, error) {
	linked, err := c.linkedSegmentIDs(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := c.repoDB.ExistingSegmentIDs(ctx, linked)
	if err != nil {
		return nil, err
	}

	var orphaned []string
	for _, segmentID := range linked {
		if !existing[segmentID] {
			orphaned = append(orphaned, segmentID)
		}
	}
	return orphaned, nil
}

func (c *Connector) linkedSegmentIDs(ctx context.Context) ([]string, error) {
	rows, err := c.main.Query(ctx, `SELECT DISTINCT segment_id FROM event_links`)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "query linked segments")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var segmentID string
		if err := rows.Scan(&segmentID); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan linked segment id")
		}
		ids = append(ids, segmentID)
	}
	return ids, rows.Err()
}

// eventIDByHash returns the event_id of the event with the given
// content hash, if one exists.
func (c *Connector) eventIDByHash(ctx context.Context, hash string) (string, bool, error) {
	var eventID string
	err := c.main.QueryRow(ctx, `SELECT event_id FROM events WHERE content_hash = $1`, hash).Scan(&eventID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, kinderr.Wrap(kinderr.Internal, err, "query event by content hash")
	}
	return eventID, true, nil
}

// Reconcile repairs the two-database promotion pipeline after a crash
// between an event insert and its event_links insert (or vice versa).
// Working from (segment_id, content_hash), it re-derives each promoted
// segment's expected event and either attaches the missing link or,
// when the segment itself no longer exists, removes the stale link.
// Run repeatedly, it converges toward exactly one event_links row per
// promoted segment.
func (c *Connector) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	segments, pages, err := c.repoDB.PromotedSegments(ctx)
	if err != nil {
		return result, err
	}
	for i, seg := range segments {
		page := pages[i]
		hash := contentHash(page.PublicationID, seg.Text)

		eventID, ok, err := c.eventIDByHash(ctx, hash)
		if err != nil {
			return result, err
		}
		if !ok {
			// The segment was marked promoted but its event never made
			// it into the main database (crash before the first
			// insert); Promote is idempotent, so re-running it repairs
			// both rows in one step.
			res, err := c.Promote(ctx, PromoteRequest{
				SegmentID:     seg.SegmentID,
				PublicationID: page.PublicationID,
				IssueDate:     page.IssueDate,
				Text:          seg.Text,
			})
			if err != nil {
				return result, err
			}
			eventID = res.EventID
		}

		linked, err := c.segmentLinked(ctx, eventID, seg.SegmentID)
		if err != nil {
			return result, err
		}
		if !linked {
			if err := c.linkSegment(ctx, eventID, seg.SegmentID); err != nil {
				return result, err
			}
			result.Attached++
		}
	}

	orphaned, err := c.SyncFromMain(ctx)
	if err != nil {
		return result, err
	}
	for _, segmentID := range orphaned {
		if err := c.removeLink(ctx, segmentID); err != nil {
			return result, err
		}
		result.Removed++
	}
	return result, nil
}

func (c *Connector) segmentLinked(ctx context.Context, eventID, segmentID string) (bool, error) {
	var exists bool
	err := c.main.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM event_links WHERE event_id = $1 AND segment_id = $2)
	`, eventID, segmentID).Scan(&exists)
	if err != nil {
		return false, kinderr.Wrap(kinderr.Internal, err, "query event link existence")
	}
	return exists, nil
}

func (c *Connector) removeLink(ctx context.Context, segmentID string) error {
	err := c.main.Exec(ctx, `DELETE FROM event_links WHERE segment_id = $1`, segmentID)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "remove stale event link")
	}
	return nil
}
