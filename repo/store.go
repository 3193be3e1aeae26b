package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"newsarchive/kinderr"
	"newsarchive/logging"
	"newsarchive/pgxdb"
)

// Store is the repository store: it owns a base directory of original
// images, OCR artifacts, and segment clips, plus the relational index
// describing them. The on-disk file and its index row are always
// created or removed together.
type Store struct {
	db   *pgxdb.DB
	base string
	log  *logging.ContextLogger
}

// New constructs a Store over an already-open pool and base directory.
func New(db *pgxdb.DB, baseDir string, log *logging.ContextLogger) *Store {
	return &Store{db: db, base: baseDir, log: log.WithField("component", "repo")}
}

// AddPage writes the original image (and its .meta.json sidecar) to disk
// and inserts the Page row in a single transaction's worth of atomicity:
// if the row insert fails, the file is removed; the file is written
// before the row exists so a crash between the two leaves at most an
// orphan file, never an index row with no backing bytes.
func (s *Store) AddPage(ctx context.Context, p Page, imageBytes []byte, ext string, rawUpstreamMeta map[string]interface{}) (string, error) {
	path := OriginalPath(s.base, p.SourceSystem, p.PublicationID, p.IssueDate, p.Sequence, ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", kinderr.Wrap(kinderr.Internal, err, "create original directory")
	}
	if err := os.WriteFile(path, imageBytes, 0o644); err != nil {
		return "", kinderr.Wrap(kinderr.Internal, err, "write original image")
	}
	if rawUpstreamMeta != nil {
		if sidecar, err := json.Marshal(rawUpstreamMeta); err == nil {
			_ = os.WriteFile(MetaSidecarPath(path), sidecar, 0o644)
		}
	}

	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		_ = os.Remove(path)
		return "", kinderr.Wrap(kinderr.Internal, err, "marshal page metadata")
	}

	if p.Status == "" {
		p.Status = PageNew
	}

	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO newspaper_pages
			(page_id, publication_id, issue_date, sequence, source_system, image_ref, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.PageID, p.PublicationID, p.IssueDate, p.Sequence, p.SourceSystem, path, string(p.Status), metaJSON)
	if err != nil {
		_ = os.Remove(path)
		if isUniqueViolation(err) {
			return "", kinderr.New(kinderr.Conflict, "page already exists for (publication, issue_date, sequence, source)").
				WithDetail("publication_id", p.PublicationID).
				WithDetail("issue_date", p.IssueDate.Format("2006-01-02")).
				WithDetail("sequence", p.Sequence)
		}
		return "", kinderr.Wrap(kinderr.Internal, err, "insert page row")
	}

	s.log.WithField("page_id", p.PageID).Debug("page added")
	return p.PageID, nil
}

// ImportPage inserts a page row whose backing files already exist on
// disk at p.ImageRef (the import command's job is restoring index rows
// during a migration/restore, not re-acquiring bytes already present).
func (s *Store) ImportPage(ctx context.Context, p Page) error {
	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "marshal page metadata")
	}
	if p.Status == "" {
		p.Status = PageNew
	}
	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO newspaper_pages
			(page_id, publication_id, issue_date, sequence, source_system, image_ref, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (publication_id, issue_date, sequence, source_system) DO NOTHING
	`, p.PageID, p.PublicationID, p.IssueDate, p.Sequence, p.SourceSystem, p.ImageRef, string(p.Status), metaJSON)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "insert imported page row")
	}
	return nil
}

// AttachOCR writes the OCR text and HOCR artifacts and transitions the
// page's status to ocr_done.
func (s *Store) AttachOCR(ctx context.Context, pageID, text, hocr string) error {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if page.Status != PageQueued && page.Status != PageProcessing {
		return kinderr.New(kinderr.Validation, "page is not in a state that accepts OCR output").
			WithDetail("status", string(page.Status))
	}

	lccn := page.PublicationID
	textPath := OCRTextPath(s.base, page.SourceSystem, lccn, page.IssueDate, page.Sequence)
	hocrPath := OCRHOCRPath(s.base, page.SourceSystem, lccn, page.IssueDate, page.Sequence)

	if err := os.MkdirAll(filepath.Dir(textPath), 0o755); err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "create ocr text directory")
	}
	if err := os.MkdirAll(filepath.Dir(hocrPath), 0o755); err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "create ocr hocr directory")
	}
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "write ocr text")
	}
	if err := os.WriteFile(hocrPath, []byte(hocr), 0o644); err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "write hocr")
	}

	err = s.db.Exec(ctx, `
		UPDATE newspaper_pages
		SET ocr_text_ref = $2, hocr_ref = $3, ocr_text = $4, status = $5, updated_at = now()
		WHERE page_id = $1
	`, pageID, textPath, hocrPath, text, string(PageOCRDone))
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "update page after ocr")
	}
	return nil
}

// AddSegments inserts segments for a page transactionally, validating
// that each bbox lies within the page's declared image bounds (when
// known) and that confidence is in [0,1]. On success the page
// transitions to segmented.
func (s *Store) AddSegments(ctx context.Context, pageID string, imageW, imageH int, segments []Segment) error {
	for i := range segments {
		b := segments[i].BBox
		if b.X < 0 || b.Y < 0 || (imageW > 0 && b.X+b.W > imageW) || (imageH > 0 && b.Y+b.H > imageH) {
			return kinderr.New(kinderr.Validation, "segment bbox lies outside parent page image bounds").
				WithDetail("segment_index", i)
		}
		if segments[i].Confidence < 0 || segments[i].Confidence > 1 {
			return kinderr.New(kinderr.Validation, "segment confidence out of [0,1] range").
				WithDetail("segment_index", i)
		}
		if segments[i].Status == "" {
			segments[i].Status = SegmentDraft
		}
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, seg := range segments {
			entitiesJSON, err := json.Marshal(seg.Entities)
			if err != nil {
				return kinderr.Wrap(kinderr.Internal, err, "marshal segment entities")
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO article_segments
					(segment_id, page_id, kind, bbox_x, bbox_y, bbox_w, bbox_h, text, confidence, image_ref, status, entities)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			`, seg.SegmentID, pageID, string(seg.Kind), seg.BBox.X, seg.BBox.Y, seg.BBox.W, seg.BBox.H,
				seg.Text, seg.Confidence, seg.ImageRef, string(seg.Status), entitiesJSON)
			if err != nil {
				return kinderr.Wrap(kinderr.Internal, err, "insert segment")
			}
		}
		_, err := tx.Exec(ctx, `UPDATE newspaper_pages SET status = $2, updated_at = now() WHERE page_id = $1`,
			pageID, string(PageSegmented))
		if err != nil {
			return kinderr.Wrap(kinderr.Internal, err, "update page status after segmentation")
		}
		return nil
	})
}

// AddSegmentImage writes an image-kind segment's clip bytes to disk and
// returns its path, sharding by the current entry count of the target
// directory per the layout's threshold rule.
func (s *Store) AddSegmentImage(ctx context.Context, source, segmentID string, issueDate time.Time, data []byte) (string, error) {
	dir := filepath.Join(s.base, "segments", source, issueDate.Format("2006"))
	siblingCount := 0
	if entries, err := os.ReadDir(dir); err == nil {
		siblingCount = len(entries)
	}

	path := SegmentPath(s.base, source, segmentID, issueDate, siblingCount, "jpg")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", kinderr.Wrap(kinderr.Internal, err, "create segment image directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", kinderr.Wrap(kinderr.Internal, err, "write segment image")
	}
	return path, nil
}

// GetPage loads a single page by identifier.
func (s *Store) GetPage(ctx context.Context, pageID string) (*Page, error) {
	row := s.db.QueryRow(ctx, `
		SELECT page_id, publication_id, issue_date, sequence, source_system,
		       image_ref, ocr_text, hocr_ref, status, metadata, created_at, updated_at
		FROM newspaper_pages WHERE page_id = $1
	`, pageID)

	var p Page
	var metaJSON []byte
	var ocrText *string
	var hocrRef *string
	err := row.Scan(&p.PageID, &p.PublicationID, &p.IssueDate, &p.Sequence, &p.SourceSystem,
		&p.ImageRef, &ocrText, &hocrRef, &p.Status, &metaJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, kinderr.New(kinderr.NotFound, "page not found").WithDetail("page_id", pageID)
		}
		return nil, kinderr.Wrap(kinderr.Internal, err, "query page")
	}
	p.OCRText = ocrText
	p.HOCRRef = hocrRef
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &p.Metadata)
	}
	return &p, nil
}

// MarkPageQueued transitions a page to queued, the precondition AttachOCR
// requires. Called when an ocr_extract task is enqueued for the page.
func (s *Store) MarkPageQueued(ctx context.Context, pageID string) error {
	err := s.db.Exec(ctx, `UPDATE newspaper_pages SET status = $2, updated_at = now() WHERE page_id = $1`,
		pageID, string(PageQueued))
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "mark page queued")
	}
	return nil
}

// ReviewedSegments returns every segment in reviewed status on a
// publication's pages, together with the owning page's identifying
// fields, for promotion into the main events database.
func (s *Store) ReviewedSegments(ctx context.Context, publicationID string) ([]Segment, []Page, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.segment_id, s.page_id, s.kind, s.bbox_x, s.bbox_y, s.bbox_w, s.bbox_h,
		       s.text, s.confidence, s.image_ref, s.status, s.created_at,
		       p.publication_id, p.issue_date
		FROM article_segments s
		JOIN newspaper_pages p ON p.page_id = s.page_id
		WHERE p.publication_id = $1 AND s.status = $2
		ORDER BY p.issue_date ASC
	`, publicationID, string(SegmentReviewed))
	if err != nil {
		return nil, nil, kinderr.Wrap(kinderr.Internal, err, "query reviewed segments")
	}
	defer rows.Close()

	var segments []Segment
	var pages []Page
	for rows.Next() {
		var seg Segment
		var page Page
		if err := rows.Scan(&seg.SegmentID, &seg.PageID, &seg.Kind, &seg.BBox.X, &seg.BBox.Y, &seg.BBox.W, &seg.BBox.H,
			&seg.Text, &seg.Confidence, &seg.ImageRef, &seg.Status, &seg.CreatedAt,
			&page.PublicationID, &page.IssueDate); err != nil {
			return nil, nil, kinderr.Wrap(kinderr.Internal, err, "scan reviewed segment")
		}
		page.PageID = seg.PageID
		segments = append(segments, seg)
		pages = append(pages, page)
	}
	return segments, pages, rows.Err()
}

// MarkSegmentPromoted transitions a segment to promoted status after
// the connector has moved it into the main events database.
func (s *Store) MarkSegmentPromoted(ctx context.Context, segmentID string) error {
	err := s.db.Exec(ctx, `UPDATE article_segments SET status = $2 WHERE segment_id = $1`, segmentID, string(SegmentPromoted))
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "mark segment promoted")
	}
	return nil
}

// PromotedSegments returns every segment already marked promoted,
// along with its page, so the connector can reconcile them against the
// main database's event_links without re-walking the whole corpus.
func (s *Store) PromotedSegments(ctx context.Context) ([]Segment, []Page, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.segment_id, s.page_id, s.kind, s.bbox_x, s.bbox_y, s.bbox_w, s.bbox_h,
		       s.text, s.confidence, s.image_ref, s.status, s.created_at,
		       p.publication_id, p.issue_date
		FROM article_segments s
		JOIN newspaper_pages p ON p.page_id = s.page_id
		WHERE s.status = $1
		ORDER BY p.issue_date ASC
	`, string(SegmentPromoted))
	if err != nil {
		return nil, nil, kinderr.Wrap(kinderr.Internal, err, "query promoted segments")
	}
	defer rows.Close()

	var segments []Segment
	var pages []Page
	for rows.Next() {
		var seg Segment
		var page Page
		if err := rows.Scan(&seg.SegmentID, &seg.PageID, &seg.Kind, &seg.BBox.X, &seg.BBox.Y, &seg.BBox.W, &seg.BBox.H,
			&seg.Text, &seg.Confidence, &seg.ImageRef, &seg.Status, &seg.CreatedAt,
			&page.PublicationID, &page.IssueDate); err != nil {
			return nil, nil, kinderr.Wrap(kinderr.Internal, err, "scan promoted segment")
		}
		page.PageID = seg.PageID
		segments = append(segments, seg)
		pages = append(pages, page)
	}
	return segments, pages, rows.Err()
}

// ExistingSegmentIDs reports which of ids are still present in the
// repository store, for the connector to detect event_links rows that
// have gone stale because their segment (or its page) was deleted.
func (s *Store) ExistingSegmentIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `SELECT segment_id FROM article_segments WHERE segment_id = ANY($1)`, ids)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "query existing segment ids")
	}
	defer rows.Close()

	for rows.Next() {
		var segmentID string
		if err := rows.Scan(&segmentID); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan segment id")
		}
		out[segmentID] = true
	}
	return out, rows.Err()
}

// SegmentsForPublication returns every segment belonging to a
// publication's pages, optionally bounded by issue date, for the
// extract-entities command to enumerate candidates.
func (s *Store) SegmentsForPublication(ctx context.Context, publicationID string, start, end *time.Time) ([]Segment, error) {
	clauses := []string{"p.publication_id = $1"}
	args := []interface{}{publicationID}
	if start != nil {
		args = append(args, *start)
		clauses = append(clauses, fmt.Sprintf("p.issue_date >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		clauses = append(clauses, fmt.Sprintf("p.issue_date <= $%d", len(args)))
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT s.segment_id, s.page_id, s.kind, s.bbox_x, s.bbox_y, s.bbox_w, s.bbox_h,
		       s.text, s.confidence, s.image_ref, s.status, s.entities, s.created_at
		FROM article_segments s
		JOIN newspaper_pages p ON p.page_id = s.page_id
		WHERE %s
		ORDER BY p.issue_date ASC
	`, strings.Join(clauses, " AND ")), args...)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "query segments for publication")
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var seg Segment
		var entitiesJSON []byte
		if err := rows.Scan(&seg.SegmentID, &seg.PageID, &seg.Kind, &seg.BBox.X, &seg.BBox.Y, &seg.BBox.W, &seg.BBox.H,
			&seg.Text, &seg.Confidence, &seg.ImageRef, &seg.Status, &entitiesJSON, &seg.CreatedAt); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan segment row")
		}
		if len(entitiesJSON) > 0 {
			_ = json.Unmarshal(entitiesJSON, &seg.Entities)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// AttachEntities records the entity mentions extracted from a segment's
// text.
func (s *Store) AttachEntities(ctx context.Context, segmentID string, entities []string) error {
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "marshal entities")
	}
	err = s.db.Exec(ctx, `UPDATE article_segments SET entities = $2 WHERE segment_id = $1`, segmentID, entitiesJSON)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "attach entities")
	}
	return nil
}

// SearchPages lists pages matching predicate, newest first, bounded by
// limit/offset.
func (s *Store) SearchPages(ctx context.Context, pred SearchPredicate, limit, offset int) ([]Page, error) {
	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if pred.PublicationID != "" {
		clauses = append(clauses, "publication_id = "+arg(pred.PublicationID))
	}
	if pred.SourceSystem != "" {
		clauses = append(clauses, "source_system = "+arg(pred.SourceSystem))
	}
	if pred.Status != "" {
		clauses = append(clauses, "status = "+arg(string(pred.Status)))
	}
	if pred.DateStart != nil {
		clauses = append(clauses, "issue_date >= "+arg(*pred.DateStart))
	}
	if pred.DateEnd != nil {
		clauses = append(clauses, "issue_date <= "+arg(*pred.DateEnd))
	}
	if pred.FreeText != "" {
		clauses = append(clauses, "ocr_text ILIKE "+arg("%"+pred.FreeText+"%"))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT page_id, publication_id, issue_date, sequence, source_system,
		       image_ref, ocr_text, hocr_ref, status, metadata, created_at, updated_at
		FROM newspaper_pages
		%s
		ORDER BY issue_date DESC, sequence ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "search pages")
	}
	defer rows.Close()

	var out []Page
	for rows.Next() {
		var p Page
		var metaJSON []byte
		var ocrText *string
		var hocrRef *string
		if err := rows.Scan(&p.PageID, &p.PublicationID, &p.IssueDate, &p.Sequence, &p.SourceSystem,
			&p.ImageRef, &ocrText, &hocrRef, &p.Status, &metaJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, err, "scan page row")
		}
		p.OCRText = ocrText
		p.HOCRRef = hocrRef
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &p.Metadata)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePage removes the page row. Segments, articles, and queued tasks
// referencing it cascade via foreign keys (§3); the original image, its
// .meta.json sidecar and the hOCR file are removed best-effort after the
// row is gone so a failed file removal never leaves a dangling index
// entry. The OCR text file and segment image clips are not removed.
func (s *Store) DeletePage(ctx context.Context, pageID string) error {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if err := s.db.Exec(ctx, `DELETE FROM newspaper_pages WHERE page_id = $1`, pageID); err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "delete page row")
	}
	_ = os.Remove(page.ImageRef)
	_ = os.Remove(MetaSidecarPath(page.ImageRef))
	if page.HOCRRef != nil {
		_ = os.Remove(*page.HOCRRef)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
