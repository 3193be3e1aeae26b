// Package repo implements the repository store: the component that owns
// the on-disk archive of original page images, OCR output, and derived
// article segments, together with the relational index describing them.
package repo

import "time"

// PageStatus is the monotonic status of a Page, except that failed may
// be re-queued back to queued.
type PageStatus string

const (
	PageNew        PageStatus = "new"
	PageQueued     PageStatus = "queued"
	PageProcessing PageStatus = "processing"
	PageOCRDone    PageStatus = "ocr_done"
	PageSegmented  PageStatus = "segmented"
	PageFailed     PageStatus = "failed"
)

// SegmentStatus tracks a segment's review/promotion lifecycle.
type SegmentStatus string

const (
	SegmentDraft    SegmentStatus = "draft"
	SegmentReviewed SegmentStatus = "reviewed"
	SegmentPromoted SegmentStatus = "promoted"
)

// SegmentKind classifies the bounding-box region a Segment covers.
type SegmentKind string

const (
	SegmentArticle  SegmentKind = "article"
	SegmentHeadline SegmentKind = "headline"
	SegmentImage    SegmentKind = "image"
)

// Publication is an archive-assigned newspaper title, identified by its
// LCCN-shaped control number.
type Publication struct {
	PublicationID string
	Title         string
	PlaceCity     string
	PlaceState    string
	FirstIssue    time.Time
	LastIssue     time.Time
}

// Page is one original newspaper page acquired from an archive.
type Page struct {
	PageID        string
	PublicationID string
	IssueDate     time.Time
	Sequence      int
	SourceSystem  string

	ImageRef string
	OCRText  *string
	HOCRRef  *string

	Status   PageStatus
	Metadata map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BBox is a pixel-space bounding box in the coordinate system of the
// parent page's image.
type BBox struct {
	X, Y, W, H int
}

// Segment is a classified rectangular region of a Page.
type Segment struct {
	SegmentID  string
	PageID     string
	Kind       SegmentKind
	BBox       BBox
	Text       string
	Confidence float64
	ImageRef   string
	Status     SegmentStatus
	Entities   []string
	CreatedAt  time.Time
}

// Article groups one or more Segments on the same page into a coherent
// composition.
type Article struct {
	ArticleID  string
	PageID     string
	SegmentIDs []string
	Title      string
	Text       string
	Metadata   map[string]interface{}
}

// SearchPredicate narrows SearchPages results.
type SearchPredicate struct {
	PublicationID string
	SourceSystem  string
	Status        PageStatus
	DateStart     *time.Time
	DateEnd       *time.Time
	FreeText      string
}
