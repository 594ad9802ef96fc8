package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/justic/shortsgen/internal/model"
)

// TaskTypeVideoProcess is the asynq task type carrying a model.Job payload.
const TaskTypeVideoProcess = "video:process"

const asynqQueueName = "video"

// AsynqProducer enqueues jobs as durable asynq tasks with a retry budget.
// Tasks that exhaust their retries are archived by asynq.
type AsynqProducer struct {
	client    *asynq.Client
	maxRetry  int
	timeout   time.Duration
	retention time.Duration
}

// TaskTimeout is the asynq deadline for one job: a full transcode budget
// for each variant the worker renders.
func TaskTimeout(transcode time.Duration, variants int) time.Duration {
	return transcode * time.Duration(max(variants, 1))
}

func NewAsynqProducer(client *asynq.Client, maxRetry int, timeout time.Duration) *AsynqProducer {
	return &AsynqProducer{
		client:    client,
		maxRetry:  maxRetry,
		timeout:   timeout,
		retention: 24 * time.Hour,
	}
}

// NewVideoTask wraps a job into an asynq task.
func NewVideoTask(job *model.Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return asynq.NewTask(TaskTypeVideoProcess, data), nil
}

// QueueName is the asynq queue workers should serve.
func QueueName() string { return asynqQueueName }

func (p *AsynqProducer) Push(ctx context.Context, job *model.Job) error {
	task, err := NewVideoTask(job)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(asynqQueueName),
		asynq.MaxRetry(p.maxRetry),
		asynq.Retention(p.retention),
	}
	if p.timeout > 0 {
		opts = append(opts, asynq.Timeout(p.timeout))
	}

	if _, err := p.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}
