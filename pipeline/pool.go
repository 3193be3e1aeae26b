package pipeline

import (
	"context"
	"sync"
	"time"

	"newsarchive/config"
	"newsarchive/logging"
	"newsarchive/queue"
)

// Pool polls the work queue on a fixed interval, leasing up to
// BatchSize tasks at a time and running up to MaxConcurrent of them
// concurrently, dispatching each through a Registry and reporting
// outcomes back to the queue and the event bus.
type Pool struct {
	q        *queue.Queue
	registry *Registry
	events   *EventBus
	log      *logging.ContextLogger

	pollInterval time.Duration
	maxConcurrent int
	batchSize     int
	ownerID       string

	mu      sync.Mutex
	paused  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	sem     chan struct{}
}

// NewPool constructs a Pool. ownerID identifies this worker process in
// lease ownership, typically hostname:pid.
func NewPool(q *queue.Queue, registry *Registry, events *EventBus, cfg config.Queue, ownerID string, log *logging.ContextLogger) *Pool {
	return &Pool{
		q:             q,
		registry:      registry,
		events:        events,
		log:           log.WithField("component", "pipeline.pool"),
		pollInterval:  cfg.PollInterval,
		maxConcurrent: cfg.MaxConcurrent,
		batchSize:     cfg.BatchSize,
		ownerID:       ownerID,
		sem:           make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Start runs the poll loop until the supplied context is cancelled or
// Stop is called. It blocks until the loop has fully drained.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	defer close(p.doneCh)

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-p.stopCh:
			wg.Wait()
			return
		case <-ticker.C:
			if p.isPaused() {
				continue
			}
			tasks, err := p.q.Lease(ctx, p.ownerID, p.batchSize)
			if err != nil {
				p.log.WithError(err).Warn("lease tasks")
				continue
			}
			for _, task := range tasks {
				task := task
				p.sem <- struct{}{}
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer func() { <-p.sem }()
					p.run(ctx, task)
				}()
			}
		}
	}
}

// Stop requests the poll loop exit and waits for in-flight tasks to
// finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

// Pause stops new leases from being taken without tearing down the poll
// loop; in-flight tasks still run to completion.
func (p *Pool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Resume reverses Pause.
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

func (p *Pool) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Pool) run(ctx context.Context, task queue.Task) {
	log := p.log.WithField("task_id", task.TaskID).WithField("operation", task.Operation)
	result := p.registry.Dispatch(ctx, task)

	if result.Err != nil {
		log.WithError(result.Err).Warn("task failed")
		if err := p.q.Fail(ctx, task.TaskID, result.Err); err != nil {
			log.WithError(err).Error("record task failure")
		}
	} else {
		log.Debug("task succeeded")
		if err := p.q.Complete(ctx, task.TaskID); err != nil {
			log.WithError(err).Error("record task completion")
		}
	}

	p.events.Publish(ctx, Event{
		TaskID:    task.TaskID,
		BulkID:    task.BulkID,
		Operation: task.Operation,
		Status:    result.Status,
		Error:     errString(result.Err),
		Timestamp: result.EndTime,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
