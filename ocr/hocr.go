package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"newsarchive/repo"
)

var (
	hocrTagRE    = regexp.MustCompile(`<[^>]+>`)
	hocrBBoxRE   = regexp.MustCompile(`bbox (\d+) (\d+) (\d+) (\d+)`)
	hocrConfRE   = regexp.MustCompile(`x_wconf (\d+)`)
	hocrAreaOpen = regexp.MustCompile(`<div class='ocr_carea'[^>]*>`)
	stderrConfRE = regexp.MustCompile(`(\d+(\.\d+)?)`)
)

// stripHOCRMarkup reduces hOCR to plain text by dropping every tag. It
// is deliberately simple: hOCR is well-formed XHTML, but the pipeline
// only needs the rendered text, not a full DOM.
func stripHOCRMarkup(hocr string) string {
	text := hocrTagRE.ReplaceAllString(hocr, " ")
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

// parseConfidence reads the leading numeric token from an OCR engine's
// diagnostic stderr output as a 0-1 confidence score. tesseract-style
// engines report mean confidence as 0-100; this normalizes to 0-1.
func parseConfidence(stderr string) float64 {
	match := stderrConfRE.FindString(stderr)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	if value > 1 {
		return value / 100
	}
	return value
}

// segmentsFromHOCR extracts one LayoutSegment per ocr_carea (content
// area) block in hocr, classifying by block size: a wide, short area is
// treated as a headline, a tall narrow area as an image, everything
// else as article body text.
func segmentsFromHOCR(hocr string) []LayoutSegment {
	blocks := splitCAreas(hocr)
	segments := make([]LayoutSegment, 0, len(blocks))
	for _, block := range blocks {
		bboxMatch := hocrBBoxRE.FindStringSubmatch(block)
		if bboxMatch == nil {
			continue
		}
		bbox := repo.BBox{
			X: atoi(bboxMatch[1]),
			Y: atoi(bboxMatch[2]),
			W: atoi(bboxMatch[3]) - atoi(bboxMatch[1]),
			H: atoi(bboxMatch[4]) - atoi(bboxMatch[2]),
		}

		confidence := 1.0
		if confMatch := hocrConfRE.FindStringSubmatch(block); confMatch != nil {
			confidence = float64(atoi(confMatch[1])) / 100
		}

		segments = append(segments, LayoutSegment{
			Kind:       classifyBlock(bbox),
			BBox:       bbox,
			Text:       stripHOCRMarkup(block),
			Confidence: confidence,
		})
	}
	return segments
}

// splitCAreas returns the substring of hocr covered by each
// ocr_carea div, from its opening tag to the next one (or end of
// string).
func splitCAreas(hocr string) []string {
	opens := hocrAreaOpen.FindAllStringIndex(hocr, -1)
	blocks := make([]string, 0, len(opens))
	for i, loc := range opens {
		end := len(hocr)
		if i+1 < len(opens) {
			end = opens[i+1][0]
		}
		blocks = append(blocks, hocr[loc[0]:end])
	}
	return blocks
}

func classifyBlock(bbox repo.BBox) repo.SegmentKind {
	switch {
	case bbox.H > 0 && bbox.W/maxInt(bbox.H, 1) > 6:
		return repo.SegmentHeadline
	case bbox.H > 0 && bbox.H > bbox.W*2:
		return repo.SegmentImage
	default:
		return repo.SegmentArticle
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
