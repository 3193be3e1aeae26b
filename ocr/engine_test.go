package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsarchive/repo"
)

func TestFakeEngineRunOCR(t *testing.T) {
	e := &FakeEngine{Text: "THE DAILY HERALD", HOCR: "<div/>", Confidence: 0.92}
	result, err := e.RunOCR(context.Background(), "/pages/p1.jp2", "eng")
	require.NoError(t, err)
	assert.Equal(t, "THE DAILY HERALD", result.Text)
	assert.Equal(t, "<div/>", result.HOCR)
	assert.InDelta(t, 0.92, result.Confidence, 0.0001)
}

func TestFakeEngineAnalyzeLayout(t *testing.T) {
	segs := []LayoutSegment{{Kind: repo.SegmentArticle, Confidence: 0.8}}
	e := &FakeEngine{Segments: segs}
	got, err := e.AnalyzeLayout(context.Background(), "<div/>", "/pages/p1.jp2")
	require.NoError(t, err)
	assert.Equal(t, segs, got)
}

func TestFilterSegments(t *testing.T) {
	segments := []LayoutSegment{
		{Kind: repo.SegmentArticle, BBox: repo.BBox{W: 200, H: 300}, Confidence: 0.9},
		{Kind: repo.SegmentArticle, BBox: repo.BBox{W: 50, H: 300}, Confidence: 0.9},  // too narrow
		{Kind: repo.SegmentArticle, BBox: repo.BBox{W: 200, H: 300}, Confidence: 0.2}, // low confidence
		{Kind: repo.SegmentImage, BBox: repo.BBox{W: 150, H: 150}, Confidence: 0.6},
	}

	got := FilterSegments(segments)

	require.Len(t, got, 2)
	assert.Equal(t, repo.SegmentArticle, got[0].Kind)
	assert.Equal(t, repo.SegmentImage, got[1].Kind)
}

func TestFilterSegmentsEmptyInput(t *testing.T) {
	got := FilterSegments(nil)
	assert.Empty(t, got)
}
