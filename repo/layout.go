package repo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"
)

// shardThreshold is the per-directory entry count past which the layout
// interposes a two-character hash shard, per the repository store's
// directory-sizing rule.
const shardThreshold = 10000

// OriginalPath returns the on-disk path for an original page image:
//
//	<base>/originals/<source>/<yyyy>/<mm>/<lccn>_<yyyy-mm-dd>_<nnnn>.<ext>
func OriginalPath(base, source, lccn string, issueDate time.Time, sequence int, ext string) string {
	name := fmt.Sprintf("%s_%s_%04d.%s", lccn, issueDate.Format("2006-01-02"), sequence, ext)
	return filepath.Join(base, "originals", source, issueDate.Format("2006"), issueDate.Format("01"), name)
}

// OCRTextPath returns the on-disk path for a page's extracted text:
//
//	<base>/ocr/text/<source>/<yyyy>/<lccn>_<yyyy-mm-dd>_<nnnn>.txt
func OCRTextPath(base, source, lccn string, issueDate time.Time, sequence int) string {
	name := fmt.Sprintf("%s_%s_%04d.txt", lccn, issueDate.Format("2006-01-02"), sequence)
	return filepath.Join(base, "ocr", "text", source, issueDate.Format("2006"), name)
}

// OCRHOCRPath returns the on-disk path for a page's HOCR output:
//
//	<base>/ocr/hocr/<source>/<yyyy>/<lccn>_<yyyy-mm-dd>_<nnnn>.hocr
func OCRHOCRPath(base, source, lccn string, issueDate time.Time, sequence int) string {
	name := fmt.Sprintf("%s_%s_%04d.hocr", lccn, issueDate.Format("2006-01-02"), sequence)
	return filepath.Join(base, "ocr", "hocr", source, issueDate.Format("2006"), name)
}

// SegmentPath returns the on-disk path for a segment's text or image
// clip, sharding the segment directory once it would otherwise exceed
// shardThreshold entries for a given source/year.
//
//	<base>/segments/<source>/<yyyy>/<shard?>/<segment_id>.<ext>
func SegmentPath(base, source, segmentID string, issueDate time.Time, approxSiblingCount int, ext string) string {
	dir := filepath.Join(base, "segments", source, issueDate.Format("2006"))
	if approxSiblingCount >= shardThreshold {
		dir = filepath.Join(dir, shard(segmentID))
	}
	return filepath.Join(dir, segmentID+"."+ext)
}

// MetaSidecarPath returns the path of the .meta.json sidecar that
// accompanies an original image, carrying the raw upstream metadata for
// provenance.
func MetaSidecarPath(originalPath string) string {
	return originalPath + ".meta.json"
}

// shard derives a two-character hash shard from an identifier so that no
// single directory accumulates unbounded entries.
func shard(id string) string {
	sum := sha1.Sum([]byte(id))
	return hex.EncodeToString(sum[:1])
}
