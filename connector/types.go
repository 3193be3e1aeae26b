// Package connector bridges the repository store's segments into the
// separate "main" events database: promoting reviewed segments into
// durable event records, detecting likely duplicates against existing
// events, and reconciling the two stores.
package connector

import "time"

// Event is a record in the main database: a promoted, content-hashed
// representation of a repository segment.
type Event struct {
	EventID       string
	ContentHash   string
	PublicationID string
	IssueDate     time.Time
	Title         string
	Text          string
	SegmentRef    string // repository segment_id, referenced by text identifier
	PromotedAt    time.Time
}

// Duplicate is a candidate match between a segment pending promotion
// and an already-promoted Event.
type Duplicate struct {
	SegmentID      string
	MatchedEventID string
	Similarity     float64
}

// PromoteRequest describes one segment to promote.
type PromoteRequest struct {
	SegmentID     string
	PublicationID string
	IssueDate     time.Time
	Title         string
	Text          string
}

// PromoteResult reports the outcome of a Promote call.
type PromoteResult struct {
	EventID    string
	Duplicate  bool
	MatchedID  string
}

// ReconcileResult summarizes the repairs a Reconcile pass made.
type ReconcileResult struct {
	Attached int // event_links rows created for a promoted segment missing its link
	Removed  int // event_links rows deleted because their segment no longer exists
}
