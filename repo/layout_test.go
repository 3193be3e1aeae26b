package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOriginalPath(t *testing.T) {
	issueDate := time.Date(1923, 7, 4, 0, 0, 0, 0, time.UTC)
	got := OriginalPath("/data", "chroniclingamerica", "sn12345678", issueDate, 3, "jp2")
	assert.Equal(t, "/data/originals/chroniclingamerica/1923/07/sn12345678_1923-07-04_0003.jp2", got)
}

func TestOCRTextPath(t *testing.T) {
	issueDate := time.Date(1901, 1, 9, 0, 0, 0, 0, time.UTC)
	got := OCRTextPath("/data", "chroniclingamerica", "sn98765432", issueDate, 1)
	assert.Equal(t, "/data/ocr/text/chroniclingamerica/1901/sn98765432_1901-01-09_0001.txt", got)
}

func TestOCRHOCRPath(t *testing.T) {
	issueDate := time.Date(1901, 1, 9, 0, 0, 0, 0, time.UTC)
	got := OCRHOCRPath("/data", "chroniclingamerica", "sn98765432", issueDate, 1)
	assert.Equal(t, "/data/ocr/hocr/chroniclingamerica/1901/sn98765432_1901-01-09_0001.hocr", got)
}

func TestSegmentPathNoShardBelowThreshold(t *testing.T) {
	issueDate := time.Date(1950, 3, 2, 0, 0, 0, 0, time.UTC)
	got := SegmentPath("/data", "chroniclingamerica", "seg-abc", issueDate, 42, "txt")
	assert.Equal(t, "/data/segments/chroniclingamerica/1950/seg-abc.txt", got)
}

func TestSegmentPathShardsAtThreshold(t *testing.T) {
	issueDate := time.Date(1950, 3, 2, 0, 0, 0, 0, time.UTC)
	got := SegmentPath("/data", "chroniclingamerica", "seg-abc", issueDate, shardThreshold, "txt")
	want := "/data/segments/chroniclingamerica/1950/" + shard("seg-abc") + "/seg-abc.txt"
	assert.Equal(t, want, got)
}

func TestShardIsStableAndTwoHexChars(t *testing.T) {
	a := shard("seg-abc")
	b := shard("seg-abc")
	assert.Equal(t, a, b)
	assert.Len(t, a, 2)
	assert.NotEqual(t, a, shard("seg-xyz"))
}

func TestMetaSidecarPath(t *testing.T) {
	got := MetaSidecarPath("/data/originals/chroniclingamerica/1923/07/sn12345678_1923-07-04_0003.jp2")
	assert.Equal(t, "/data/originals/chroniclingamerica/1923/07/sn12345678_1923-07-04_0003.jp2.meta.json", got)
}
