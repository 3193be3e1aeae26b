package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"newsarchive/logging"
	"newsarchive/queue"
)

// eventsChannel is the single Redis pub/sub channel progress events are
// published to; subscribers filter by BulkID client-side.
const eventsChannel = "newsarchive:pipeline:events"

// subscriberBufferSize bounds how many unconsumed events a slow
// subscriber can fall behind by before its events are dropped rather
// than blocking the publisher.
const subscriberBufferSize = 64

// Event is one task-completion notification.
type Event struct {
	TaskID    string    `json:"task_id"`
	BulkID    string    `json:"bulk_id,omitempty"`
	Operation string    `json:"operation"`
	Status    queue.Status `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus publishes task-completion events over Redis pub/sub. A nil
// *EventBus (no Redis configured) makes Publish/Subscribe no-ops, since
// progress streaming is an operational nicety, not a correctness
// requirement of the queue itself.
type EventBus struct {
	client *redis.Client
	log    *logging.ContextLogger
}

// NewEventBus constructs an EventBus over an already-configured redis
// client. Pass a nil client to disable event publishing entirely.
func NewEventBus(client *redis.Client, log *logging.ContextLogger) *EventBus {
	return &EventBus{client: client, log: log.WithField("component", "pipeline.events")}
}

// Publish emits an event. Failures are logged, not returned: a dropped
// progress event must never fail the task it describes.
func (b *EventBus) Publish(ctx context.Context, ev Event) {
	if b == nil || b.client == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.WithError(err).Warn("marshal pipeline event")
		return
	}
	if err := b.client.Publish(ctx, eventsChannel, data).Err(); err != nil {
		b.log.WithError(err).Warn("publish pipeline event")
	}
}

// Subscribe returns a channel of decoded events. The returned channel is
// closed when ctx is cancelled. Slow readers that do not keep up with
// subscriberBufferSize have each newly arriving event dropped while the
// buffer is full, rather than blocking the publisher, matching the fan-out semantics expected of a progress feed.
func (b *EventBus) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event, subscriberBufferSize)
	if b == nil || b.client == nil {
		close(out)
		return out
	}

	sub := b.client.Subscribe(ctx, eventsChannel)
	msgs := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				default:
					b.log.Warn("dropping pipeline event: subscriber buffer full")
				}
			}
		}
	}()

	return out
}
