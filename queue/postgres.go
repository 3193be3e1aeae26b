package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"newsarchive/kinderr"
	"newsarchive/logging"
	"newsarchive/pgxdb"
)

// baseRetryDelay and maxRetryDelay bound the exponential backoff applied
// between a task's failed attempts: base * 2^(attempts-1), capped.
const (
	baseRetryDelay = 300 * time.Second
	maxRetryDelay  = time.Hour
	leaseDuration  = 5 * time.Minute
)

// Queue is the Postgres-backed durable work queue.
type Queue struct {
	db  *pgxdb.DB
	log *logging.ContextLogger
}

// New constructs a Queue over an already-migrated pool.
func New(db *pgxdb.DB, log *logging.ContextLogger) *Queue {
	return &Queue{db: db, log: log.WithField("component", "queue")}
}

// Enqueue inserts a single task in pending status. When req.BulkID names
// an existing bulk (e.g. a handler chaining a follow-up task onto the
// bulk its triggering task belonged to), the bulk's total/pending
// counters grow to match, so "all children terminal" still means what
// it says for bulks whose task graph isn't known in full up front.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	taskID := uuid.NewString()
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 3
	}
	if req.Priority == 0 {
		req.Priority = 100
	}
	params, err := json.Marshal(req.Parameters)
	if err != nil {
		return "", kinderr.Wrap(kinderr.Validation, err, "marshal task parameters")
	}

	var bulkID interface{}
	if req.BulkID != "" {
		bulkID = req.BulkID
	}

	err = q.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO processing_queue
				(task_id, page_id, operation, parameters, priority, max_attempts, bulk_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, taskID, nullIfEmpty(req.PageID), req.Operation, params, req.Priority, req.MaxAttempts, bulkID)
		if err != nil {
			return fmt.Errorf("enqueue task: %w", err)
		}
		if req.BulkID != "" {
			_, err := tx.Exec(ctx, `
				UPDATE bulk_processing_tasks
				SET total = total + 1, pending = pending + 1
				WHERE bulk_id = $1 AND status NOT IN ('done', 'cancelled')
			`, req.BulkID)
			if err != nil {
				return fmt.Errorf("grow bulk counters: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", kinderr.Wrap(kinderr.Internal, err, "enqueue task")
	}
	return taskID, nil
}

// BulkCreate creates a Bulk row and enqueues one task per request,
// inside a single transaction so the bulk's total always matches the
// number of tasks actually queued.
func (q *Queue) BulkCreate(ctx context.Context, description, operation string, requests []EnqueueRequest) (string, error) {
	bulkID := uuid.NewString()
	err := q.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bulk_processing_tasks (bulk_id, description, operation, total, pending)
			VALUES ($1, $2, $3, $4, $4)
		`, bulkID, description, operation, len(requests))
		if err != nil {
			return fmt.Errorf("insert bulk row: %w", err)
		}
		for _, req := range requests {
			req.BulkID = bulkID
			if req.MaxAttempts <= 0 {
				req.MaxAttempts = 3
			}
			if req.Priority == 0 {
				req.Priority = 100
			}
			params, err := json.Marshal(req.Parameters)
			if err != nil {
				return fmt.Errorf("marshal task parameters: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO processing_queue
					(task_id, page_id, operation, parameters, priority, max_attempts, bulk_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.NewString(), nullIfEmpty(req.PageID), req.Operation, params, req.Priority, req.MaxAttempts, bulkID)
			if err != nil {
				return fmt.Errorf("insert bulk task: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", kinderr.Wrap(kinderr.Internal, err, "create bulk")
	}
	return bulkID, nil
}

// Lease atomically claims up to batchSize pending, eligible tasks for
// owner using FOR UPDATE SKIP LOCKED, so concurrent workers never claim
// the same row.
func (q *Queue) Lease(ctx context.Context, owner string, batchSize int) ([]Task, error) {
	var tasks []Task
	err := q.db.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT task_id FROM processing_queue
			WHERE status = 'pending' AND next_eligible_at <= now()
			  AND (bulk_id IS NULL OR bulk_id NOT IN (
			      SELECT bulk_id FROM bulk_processing_tasks WHERE status = 'paused'
			  ))
			ORDER BY priority ASC, enqueued_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, batchSize)
		if err != nil {
			return fmt.Errorf("select leasable tasks: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan task id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		expiresAt := time.Now().Add(leaseDuration)
		for _, id := range ids {
			row := tx.QueryRow(ctx, `
				UPDATE processing_queue
				SET status = 'leased', lease_owner = $2, lease_expires_at = $3, attempts = attempts + 1
				WHERE task_id = $1
				RETURNING task_id, page_id, operation, parameters, priority, status, attempts,
				          max_attempts, last_error, lease_owner, lease_expires_at, next_eligible_at,
				          bulk_id, enqueued_at
			`, id, owner, expiresAt)
			task, err := scanTask(row)
			if err != nil {
				return fmt.Errorf("lease task: %w", err)
			}
			tasks = append(tasks, *task)
		}
		return nil
	})
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "lease tasks")
	}
	return tasks, nil
}

// Heartbeat extends a leased task's expiry, used by long-running
// operations to signal liveness to the reaper that reclaims
// expired leases.
func (q *Queue) Heartbeat(ctx context.Context, taskID, owner string) error {
	expiresAt := time.Now().Add(leaseDuration)
	err := q.db.Exec(ctx, `
		UPDATE processing_queue SET lease_expires_at = $3
		WHERE task_id = $1 AND lease_owner = $2 AND status = 'leased'
	`, taskID, owner, expiresAt)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "heartbeat task")
	}
	return nil
}

// Complete transitions a leased task to succeeded and updates its
// bulk's counters.
func (q *Queue) Complete(ctx context.Context, taskID string) error {
	return q.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE processing_queue SET status = 'succeeded' WHERE task_id = $1 AND status = 'leased'
		`, taskID)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("task %s is not leased", taskID)
		}
		return adjustBulkCounters(ctx, tx, taskID, "succeeded = succeeded + 1, in_progress = in_progress - 1")
	})
}

// Fail records a failed attempt. If attempts remain, the task returns
// to pending with an exponential backoff delay (±25% is intentionally
// not applied here since retries are scheduled server-side, not
// client-side, so jitter is unnecessary for collision avoidance);
// otherwise it moves to failed terminally.
func (q *Queue) Fail(ctx context.Context, taskID string, cause error) error {
	return q.db.WithTx(ctx, func(tx pgx.Tx) error {
		var attempts, maxAttempts int
		if err := tx.QueryRow(ctx, `SELECT attempts, max_attempts FROM processing_queue WHERE task_id = $1`, taskID).
			Scan(&attempts, &maxAttempts); err != nil {
			return fmt.Errorf("load task for failure: %w", err)
		}

		errMsg := ""
		if cause != nil {
			errMsg = cause.Error()
		}

		if attempts >= maxAttempts || (cause != nil && !kinderr.Retryable(cause)) {
			if _, err := tx.Exec(ctx, `
				UPDATE processing_queue SET status = 'failed', last_error = $2 WHERE task_id = $1
			`, taskID, errMsg); err != nil {
				return fmt.Errorf("mark task failed: %w", err)
			}
			return adjustBulkCounters(ctx, tx, taskID, "failed = failed + 1, in_progress = in_progress - 1")
		}

		delay := retryDelay(attempts)
		if _, err := tx.Exec(ctx, `
			UPDATE processing_queue
			SET status = 'pending', last_error = $2, next_eligible_at = now() + $3 * interval '1 second',
			    lease_owner = NULL, lease_expires_at = NULL
			WHERE task_id = $1
		`, taskID, errMsg, delay.Seconds()); err != nil {
			return fmt.Errorf("requeue task: %w", err)
		}
		return adjustBulkCounters(ctx, tx, taskID, "pending = pending + 1, in_progress = in_progress - 1")
	})
}

// Cancel moves the one task to cancelled; other tasks in its bulk are
// left as they are (CancelBulk cancels a whole bulk).
func (q *Queue) Cancel(ctx context.Context, taskID string) error {
	err := q.db.Exec(ctx, `
		UPDATE processing_queue SET status = 'cancelled'
		WHERE task_id = $1 AND status IN ('pending', 'leased')
	`, taskID)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "cancel task")
	}
	return nil
}

// PauseBulk marks a bulk as paused; the scheduler excludes its tasks
// from leasing while paused.
func (q *Queue) PauseBulk(ctx context.Context, bulkID string) error {
	return q.db.Exec(ctx, `UPDATE bulk_processing_tasks SET status = 'paused' WHERE bulk_id = $1`, bulkID)
}

// ResumeBulk returns a paused bulk to running.
func (q *Queue) ResumeBulk(ctx context.Context, bulkID string) error {
	return q.db.Exec(ctx, `UPDATE bulk_processing_tasks SET status = 'running' WHERE bulk_id = $1 AND status = 'paused'`, bulkID)
}

// CancelBulk cancels a bulk and every one of its not-yet-terminal tasks.
func (q *Queue) CancelBulk(ctx context.Context, bulkID string) error {
	return q.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE bulk_processing_tasks SET status = 'cancelled' WHERE bulk_id = $1`, bulkID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE processing_queue SET status = 'cancelled'
			WHERE bulk_id = $1 AND status IN ('pending', 'leased')
		`, bulkID)
		return err
	})
}

// RetryFailedBulk requeues only a bulk's failed children, per the
// partial-failure contract: retry-failed never touches tasks that
// already succeeded or are still in flight.
func (q *Queue) RetryFailedBulk(ctx context.Context, bulkID string) (int, error) {
	var count int
	err := q.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE processing_queue
			SET status = 'pending', attempts = 0, last_error = NULL, next_eligible_at = now()
			WHERE bulk_id = $1 AND status = 'failed'
		`, bulkID)
		if err != nil {
			return err
		}
		count = int(tag.RowsAffected())
		if count == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE bulk_processing_tasks
			SET failed = failed - $2, pending = pending + $2, status = 'running'
			WHERE bulk_id = $1
		`, bulkID, count)
		return err
	})
	if err != nil {
		return 0, kinderr.Wrap(kinderr.Internal, err, "retry failed bulk tasks")
	}
	return count, nil
}

// BulkStatus loads a bulk's current progress counters.
func (q *Queue) BulkStatus(ctx context.Context, bulkID string) (*Bulk, error) {
	row := q.db.QueryRow(ctx, `
		SELECT bulk_id, description, operation, status, total, pending, in_progress, succeeded, failed, created_at
		FROM bulk_processing_tasks WHERE bulk_id = $1
	`, bulkID)
	var b Bulk
	if err := row.Scan(&b.BulkID, &b.Description, &b.Operation, &b.Status, &b.Total, &b.Pending,
		&b.InProgress, &b.Succeeded, &b.Failed, &b.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, kinderr.New(kinderr.NotFound, "bulk task not found").WithDetail("bulk_id", bulkID)
		}
		return nil, kinderr.Wrap(kinderr.Internal, err, "query bulk status")
	}
	return &b, nil
}

// ReclaimExpiredLeases returns leased tasks whose lease has expired back
// to pending, for workers that died mid-task without calling Fail.
func (q *Queue) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	tag, err := q.execReturningCount(ctx, `
		UPDATE processing_queue SET status = 'pending', lease_owner = NULL, lease_expires_at = NULL
		WHERE status = 'leased' AND lease_expires_at < now()
	`)
	if err != nil {
		return 0, kinderr.Wrap(kinderr.Internal, err, "reclaim expired leases")
	}
	return tag, nil
}

func (q *Queue) execReturningCount(ctx context.Context, sql string, args ...interface{}) (int, error) {
	tag, err := q.db.Pool().Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func retryDelay(attempts int) time.Duration {
	delay := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(attempts-1)))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func adjustBulkCounters(ctx context.Context, tx pgx.Tx, taskID, setClause string) error {
	var bulkID *string
	if err := tx.QueryRow(ctx, `SELECT bulk_id FROM processing_queue WHERE task_id = $1`, taskID).Scan(&bulkID); err != nil {
		return fmt.Errorf("load task bulk_id: %w", err)
	}
	if bulkID == nil {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE bulk_processing_tasks SET `+setClause+` WHERE bulk_id = $1`, *bulkID); err != nil {
		return fmt.Errorf("adjust bulk counters: %w", err)
	}
	var total, succeeded, failed int
	if err := tx.QueryRow(ctx, `SELECT total, succeeded, failed FROM bulk_processing_tasks WHERE bulk_id = $1`, *bulkID).
		Scan(&total, &succeeded, &failed); err != nil {
		return fmt.Errorf("load bulk totals: %w", err)
	}
	if succeeded+failed >= total {
		if _, err := tx.Exec(ctx, `UPDATE bulk_processing_tasks SET status = 'done' WHERE bulk_id = $1 AND status = 'running'`, *bulkID); err != nil {
			return fmt.Errorf("mark bulk done: %w", err)
		}
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var pageID *string
	var params []byte
	var lastError *string
	var leaseOwner *string
	var bulkID *string
	err := row.Scan(&t.TaskID, &pageID, &t.Operation, &params, &t.Priority, &t.Status, &t.Attempts,
		&t.MaxAttempts, &lastError, &leaseOwner, &t.LeaseExpiresAt, &t.NextEligibleAt, &bulkID, &t.EnqueuedAt)
	if err != nil {
		return nil, err
	}
	if pageID != nil {
		t.PageID = *pageID
	}
	if lastError != nil {
		t.LastError = *lastError
	}
	if leaseOwner != nil {
		t.LeaseOwner = *leaseOwner
	}
	if bulkID != nil {
		t.BulkID = *bulkID
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &t.Parameters)
	}
	return &t, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
