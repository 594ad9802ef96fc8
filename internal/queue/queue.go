// Package queue carries pipeline jobs from the callback handler to workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justic/shortsgen/internal/model"
)

const (
	DefaultName = "video_processing_jobs"

	ModeList  = "list"
	ModeAsynq = "asynq"
)

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("queue empty")

// Producer enqueues jobs.
type Producer interface {
	Push(ctx context.Context, job *model.Job) error
}

// Consumer blocks for the next raw message. Parsing is the caller's concern.
type Consumer interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// RedisQueue is a plain Redis list: LPUSH at the tail, BRPOP from the head.
// Messages are removed on pop; there is no ack and no redelivery.
type RedisQueue struct {
	redis *redis.Client
	name  string
}

func NewRedisQueue(redisClient *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = DefaultName
	}
	return &RedisQueue{redis: redisClient, name: name}
}

func (q *RedisQueue) Name() string { return q.name }

func (q *RedisQueue) Push(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.PushRaw(ctx, data)
}

// PushRaw enqueues an already encoded message.
func (q *RedisQueue) PushRaw(ctx context.Context, data []byte) error {
	if err := q.redis.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.redis.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}
	// BRPOP replies with [list, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	return []byte(res[1]), nil
}

// Len reports the number of pending messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.name).Result()
}
