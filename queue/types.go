// Package queue implements the durable priority work queue: pipeline
// operations are enqueued as tasks, leased by workers with
// FOR UPDATE SKIP LOCKED so concurrent workers never double-process a
// task, and retried with exponential backoff on failure.
package queue

import "time"

// Status is a task's position in its state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusLeased    Status = "leased"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Task is one unit of queued pipeline work.
type Task struct {
	TaskID     string
	PageID     string
	Operation  string
	Parameters map[string]interface{}
	Priority   int
	Status     Status
	Attempts   int
	MaxAttempts int
	LastError  string

	LeaseOwner     string
	LeaseExpiresAt *time.Time
	NextEligibleAt time.Time

	BulkID    string
	EnqueuedAt time.Time
}

// BulkStatus is a bulk task's lifecycle state.
type BulkStatus string

const (
	BulkRunning BulkStatus = "running"
	BulkPaused  BulkStatus = "paused"
	BulkDone    BulkStatus = "done"
	BulkCancelled BulkStatus = "cancelled"
)

// Bulk groups many Tasks issued from a single operator action (e.g. a
// date-range download) so their aggregate progress can be reported and
// the whole group paused, resumed, or cancelled together.
type Bulk struct {
	BulkID      string
	Description string
	Operation   string
	Status      BulkStatus
	Total       int
	Pending     int
	InProgress  int
	Succeeded   int
	Failed      int
	CreatedAt   time.Time
}

// EnqueueRequest describes a single task to enqueue.
type EnqueueRequest struct {
	PageID      string
	Operation   string
	Parameters  map[string]interface{}
	Priority    int
	MaxAttempts int
	BulkID      string
}
