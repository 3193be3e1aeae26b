package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"newsarchive/archive"
	"newsarchive/kinderr"
	"newsarchive/ner"
	"newsarchive/ocr"
	"newsarchive/queue"
	"newsarchive/repo"
)

// DownloadHandler fetches a page's original image (and any requested
// ancillary formats) from the archive client and writes it into the
// repository store via AddPage.
type DownloadHandler struct {
	Archive *archive.Client
	Store   *repo.Store
}

func (h *DownloadHandler) Name() string                  { return "download" }
func (h *DownloadHandler) CanHandle(op string) bool       { return op == "download" }

func (h *DownloadHandler) Execute(ctx context.Context, task queue.Task) error {
	page, ok := task.Parameters["page"].(map[string]interface{})
	if !ok {
		return kinderr.New(kinderr.Validation, "download task missing page parameter")
	}
	meta := decodePageMetadata(page)

	manifests, err := h.Archive.Download(ctx, meta, []archive.Format{archive.FormatJP2, archive.FormatPDF})
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		return kinderr.New(kinderr.NotFound, "no downloadable formats available for page")
	}

	primary := manifests[0]
	ext := formatExt(primary.Format)

	_, err = h.Store.AddPage(ctx, repo.Page{
		PageID:        uuid.NewString(),
		PublicationID: meta.LCCN,
		IssueDate:     meta.IssueDate,
		Sequence:      meta.Sequence,
		SourceSystem:  "chroniclingamerica",
	}, primary.Bytes, ext, map[string]interface{}{"source_url": meta.URL})
	return err
}

// OCRHandler runs the configured OCR engine against a page's image,
// persists the extracted text and hOCR, and enqueues the follow-up
// segment task so a single `process` invocation drives a page all the
// way to segmented without a second command.
type OCRHandler struct {
	Engine ocr.Engine
	Store  *repo.Store
	Queue  *queue.Queue
}

func (h *OCRHandler) Name() string            { return "ocr_extract" }
func (h *OCRHandler) CanHandle(op string) bool { return op == "ocr_extract" }

func (h *OCRHandler) Execute(ctx context.Context, task queue.Task) error {
	if task.PageID == "" {
		return kinderr.New(kinderr.Validation, "ocr_extract task missing page_id")
	}
	page, err := h.Store.GetPage(ctx, task.PageID)
	if err != nil {
		return err
	}

	lang, _ := task.Parameters["language"].(string)
	result, err := h.Engine.RunOCR(ctx, page.ImageRef, lang)
	if err != nil {
		return err
	}
	if err := h.Store.AttachOCR(ctx, task.PageID, result.Text, result.HOCR); err != nil {
		return err
	}

	if h.Queue != nil {
		_, err := h.Queue.Enqueue(ctx, queue.EnqueueRequest{
			PageID:    task.PageID,
			Operation: "segment",
			BulkID:    task.BulkID,
			Priority:  task.Priority,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SegmentHandler runs layout analysis against a page's stored hOCR and
// persists the resulting article/headline/image segments.
type SegmentHandler struct {
	Engine ocr.Engine
	Store  *repo.Store
}

func (h *SegmentHandler) Name() string            { return "segment" }
func (h *SegmentHandler) CanHandle(op string) bool { return op == "segment" }

func (h *SegmentHandler) Execute(ctx context.Context, task queue.Task) error {
	if task.PageID == "" {
		return kinderr.New(kinderr.Validation, "segment task missing page_id")
	}
	page, err := h.Store.GetPage(ctx, task.PageID)
	if err != nil {
		return err
	}
	if page.HOCRRef == nil {
		return kinderr.New(kinderr.Validation, "page has no hOCR to segment")
	}

	layout, err := h.Engine.AnalyzeLayout(ctx, *page.HOCRRef, page.ImageRef)
	if err != nil {
		return err
	}
	layout = ocr.FilterSegments(layout)

	segments := make([]repo.Segment, 0, len(layout))
	for _, l := range layout {
		seg := repo.Segment{
			SegmentID:  uuid.NewString(),
			PageID:     task.PageID,
			Kind:       l.Kind,
			BBox:       l.BBox,
			Text:       l.Text,
			Confidence: l.Confidence,
		}
		if l.Kind == repo.SegmentImage {
			if clip, err := ocr.CropSegmentImage(page.ImageRef, l.BBox); err == nil {
				if path, err := h.Store.AddSegmentImage(ctx, page.SourceSystem, seg.SegmentID, page.IssueDate, clip); err == nil {
					seg.ImageRef = path
				}
			}
		}
		segments = append(segments, seg)
	}

	return h.Store.AddSegments(ctx, task.PageID, 0, 0, segments)
}

// EntityHandler runs the heuristic entity tagger over a segment's text
// and records the resulting mentions. extract_entities task parameters carry the
// target segment_id since tasks are keyed on page_id, not segment_id.
type EntityHandler struct {
	Store *repo.Store
}

func (h *EntityHandler) Name() string            { return "extract_entities" }
func (h *EntityHandler) CanHandle(op string) bool { return op == "extract_entities" }

func (h *EntityHandler) Execute(ctx context.Context, task queue.Task) error {
	segmentID, _ := task.Parameters["segment_id"].(string)
	text, _ := task.Parameters["text"].(string)
	if segmentID == "" {
		return kinderr.New(kinderr.Validation, "extract_entities task missing segment_id")
	}

	entities := ner.Extract(text)
	return h.Store.AttachEntities(ctx, segmentID, entities)
}

func decodePageMetadata(m map[string]interface{}) archive.PageMetadata {
	var meta archive.PageMetadata
	if v, ok := m["lccn"].(string); ok {
		meta.LCCN = v
	}
	if v, ok := m["title"].(string); ok {
		meta.Title = v
	}
	if v, ok := m["issue_date"].(string); ok {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			meta.IssueDate = t
		}
	}
	if v, ok := m["sequence"].(float64); ok {
		meta.Sequence = int(v)
	}
	if v, ok := m["url"].(string); ok {
		meta.URL = v
	}
	if v, ok := m["pdf_url"].(string); ok {
		meta.PDFURL = v
	}
	if v, ok := m["jp2_url"].(string); ok {
		meta.JP2URL = v
	}
	if v, ok := m["ocr_text_url"].(string); ok {
		meta.OCRTextURL = v
	}
	return meta
}

func formatExt(f archive.Format) string {
	switch f {
	case archive.FormatJP2:
		return "jp2"
	case archive.FormatPDF:
		return "pdf"
	case archive.FormatOCRText:
		return "txt"
	default:
		return "bin"
	}
}
