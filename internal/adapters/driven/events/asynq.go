package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// AsynqMaxRetry is how often a worker retries a failed webhook task.
const AsynqMaxRetry = 5

// enqueuer is the part of *asynq.Client the publisher uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

var _ driven.EventPublisher = (*AsynqPublisher)(nil)

// AsynqPublisher enqueues one task per event.
type AsynqPublisher struct {
	client enqueuer
	queue  string
	logger *zap.Logger
}

// NewAsynqPublisher creates a publisher on the given redis connection.
func NewAsynqPublisher(opt asynq.RedisClientOpt, queue string, logger *zap.Logger) *AsynqPublisher {
	return newAsynqPublisher(asynq.NewClient(opt), queue, logger)
}

func newAsynqPublisher(client enqueuer, queue string, logger *zap.Logger) *AsynqPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsynqPublisher{client: client, queue: queue, logger: logger}
}

// TaskType is "webhook:<source>" in lower case.
func TaskType(source domain.Source) string {
	return "webhook:" + strings.ToLower(string(source))
}

// Publish enqueues each event with its ID as the task ID, so a provider
// redelivery of the same event is dropped.
func (p *AsynqPublisher) Publish(ctx context.Context, events []domain.WebhookEvent) error {
	for i := range events {
		evt := &events[i]
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshalling event %s: %w", evt.ID, err)
		}

		task := asynq.NewTask(TaskType(evt.Source), payload)
		_, err = p.client.EnqueueContext(ctx, task,
			asynq.Queue(p.queue),
			asynq.MaxRetry(AsynqMaxRetry),
			asynq.TaskID(evt.ID),
		)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			p.logger.Debug("webhook event already enqueued", zap.String("event_id", evt.ID))
			continue
		}
		if err != nil {
			p.logger.Error("failed to enqueue webhook event",
				zap.String("source", evt.Source.String()), zap.String("event_id", evt.ID), zap.Error(err))
			return fmt.Errorf("enqueueing event %s: %w", evt.ID, err)
		}
	}
	return nil
}

// Close closes the redis connection.
func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}
