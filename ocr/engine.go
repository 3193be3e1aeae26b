// Package ocr adapts an external OCR engine into the shapes the
// pipeline needs: page text extraction and layout analysis into
// classified segments.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"newsarchive/kinderr"
	"newsarchive/repo"
)

// minSegmentSide is the minimum pixel length of a segment's shorter
// bounding-box side; layout regions smaller than this are noise from
// the engine's page-segmentation pass and are dropped.
const minSegmentSide = 100

// minConfidence is the minimum per-segment OCR confidence retained.
// Segments below this are dropped rather than persisted as low-quality
// text.
const minConfidence = 0.5

// Result is the text extracted from a page image.
type Result struct {
	Text       string
	HOCR       string
	Confidence float64
}

// LayoutSegment is one classified region discovered by AnalyzeLayout,
// before persistence assigns it a SegmentID.
type LayoutSegment struct {
	Kind       repo.SegmentKind
	BBox       repo.BBox
	Text       string
	Confidence float64
}

// Engine runs OCR and layout analysis against a page image. The
// pipeline's ocr_extract operation calls RunOCR to produce the page's
// text and hOCR; the segment task it then enqueues calls AnalyzeLayout
// on that hOCR to produce the page's article segments.
type Engine interface {
	RunOCR(ctx context.Context, imagePath string, languageHint string) (Result, error)
	AnalyzeLayout(ctx context.Context, hocr string, imagePath string) ([]LayoutSegment, error)
}

// ShellEngine drives an external OCR binary (e.g. tesseract) as a
// subprocess, invoked with an explicit argument vector rather than
// through a shell, so no input is ever interpolated into a command
// string.
type ShellEngine struct {
	binary  string
	timeout time.Duration
}

// NewShellEngine constructs a ShellEngine invoking the named OCR
// binary. timeout bounds a single invocation; zero means no timeout
// beyond the caller's context.
func NewShellEngine(binary string, timeout time.Duration) *ShellEngine {
	return &ShellEngine{binary: binary, timeout: timeout}
}

// RunOCR invokes the OCR binary against imagePath, expecting it to
// emit hOCR on stdout and a confidence score as the first line of
// stderr. This mirrors the common convention of OCR CLIs (tesseract
// --hocr) that separate page text from diagnostic output.
func (e *ShellEngine) RunOCR(ctx context.Context, imagePath string, languageHint string) (Result, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return Result{}, kinderr.Wrap(kinderr.NotFound, err, "ocr: page image not found")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{imagePath, "stdout", "--hocr"}
	if languageHint != "" {
		args = append(args, "-l", languageHint)
	}

	cmd := exec.CommandContext(runCtx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, kinderr.Wrap(kinderr.Internal, err, fmt.Sprintf("ocr: engine failed: %s", stderr.String()))
	}

	hocr := stdout.String()
	text := stripHOCRMarkup(hocr)
	confidence := parseConfidence(stderr.String())

	return Result{Text: text, HOCR: hocr, Confidence: confidence}, nil
}

// AnalyzeLayout is not implemented by ShellEngine directly: layout
// analysis is delegated to segmentsFromHOCR, the hOCR bbox/confidence
// parser in hocr.go. FakeEngine does not use that parser; it returns
// its configured Segments.
func (e *ShellEngine) AnalyzeLayout(ctx context.Context, hocr string, imagePath string) ([]LayoutSegment, error) {
	return segmentsFromHOCR(hocr), nil
}

// FakeEngine is a deterministic in-process engine for tests: it never
// shells out, and its output is derived solely from its configured
// fields, making pipeline tests reproducible.
type FakeEngine struct {
	Text       string
	HOCR       string
	Confidence float64
	Segments   []LayoutSegment
}

func (e *FakeEngine) RunOCR(ctx context.Context, imagePath string, languageHint string) (Result, error) {
	return Result{Text: e.Text, HOCR: e.HOCR, Confidence: e.Confidence}, nil
}

func (e *FakeEngine) AnalyzeLayout(ctx context.Context, hocr string, imagePath string) ([]LayoutSegment, error) {
	return e.Segments, nil
}

// FilterSegments drops layout segments below the minimum size or
// confidence threshold. Callers apply this after AnalyzeLayout and
// before persisting segments to the repository store.
func FilterSegments(segments []LayoutSegment) []LayoutSegment {
	out := segments[:0:0]
	for _, s := range segments {
		shortSide := s.BBox.W
		if s.BBox.H < shortSide {
			shortSide = s.BBox.H
		}
		if shortSide < minSegmentSide {
			continue
		}
		if s.Confidence < minConfidence {
			continue
		}
		out = append(out, s)
	}
	return out
}
