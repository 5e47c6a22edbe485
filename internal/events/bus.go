package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType labels a workflow lifecycle event.
type EventType string

const (
	WorkflowStarted   EventType = "workflow_started"
	StepCompleted     EventType = "step_completed"
	StepFailed        EventType = "step_failed"
	WorkflowEscalated EventType = "workflow_escalated"
	WorkflowCompleted EventType = "workflow_completed"
)

// Event is one entry on the lifecycle stream.
type Event struct {
	ExecutionID string    `json:"execution_id"`
	Workflow    string    `json:"workflow"`
	Type        EventType `json:"type"`
	Step        string    `json:"step,omitempty"`
	Agent       string    `json:"agent,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const defaultStream = "flowline:events"

// Bus publishes workflow lifecycle events to a Redis stream so external
// consumers (dashboards, alerting) can tail them. The service runs fine
// without one; callers hold a nil *Bus in that case.
type Bus struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// NewBus connects to Redis and verifies the connection.
func NewBus(redisURL, stream string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = defaultStream
	}
	return &Bus{rdb: rdb, stream: stream, logger: logger}, nil
}

// Publish appends an event to the stream. A nil bus is a no-op.
func (b *Bus) Publish(ctx context.Context, ev *Event) error {
	if b == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.stream, err)
	}

	b.logger.Debug("published event",
		zap.String("workflow", ev.Workflow),
		zap.String("type", string(ev.Type)))
	return nil
}

// Subscribe tails the stream from its current tip. Cancel the context
// to stop; the returned channel is closed on exit.
func (b *Bus) Subscribe(ctx context.Context) <-chan *Event {
	ch := make(chan *Event, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{b.stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()

			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if err != redis.Nil {
					b.logger.Warn("event stream read failed", zap.Error(err))
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- &ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	return b.rdb.Close()
}
