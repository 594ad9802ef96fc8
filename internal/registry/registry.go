// Package registry keeps the short-lived per-task state shared by the API and
// the callback handler: who owns a task, what was asked and where it stands.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justic/shortsgen/internal/model"
)

const DefaultTTL = 24 * time.Hour

func ownerKey(id string) string  { return fmt.Sprintf("task:user:%s", id) }
func promptKey(id string) string { return fmt.Sprintf("task:prompt:%s", id) }
func statusKey(id string) string { return fmt.Sprintf("task:status:%s", id) }

// setStatusScript writes the status only when the current value is one of the
// allowed predecessors (or absent) and refreshes the expiry of every task key.
//
// KEYS: owner, prompt, status
// ARGV: next, ttl seconds, predecessors...
var setStatusScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[3])
if cur then
	local allowed = false
	for i = 3, #ARGV do
		if ARGV[i] == cur then
			allowed = true
			break
		end
	end
	if not allowed then
		return 0
	end
end
local ttl = tonumber(ARGV[2])
redis.call('SET', KEYS[3], ARGV[1], 'EX', ttl)
redis.call('EXPIRE', KEYS[1], ttl)
redis.call('EXPIRE', KEYS[2], ttl)
return 1
`)

// Registry is a Redis-backed task registry
type Registry struct {
	redis *redis.Client
	ttl   time.Duration
}

func New(redisClient *redis.Client, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{redis: redisClient, ttl: ttl}
}

// Create records a new task as QUEUED. The owner is written with SET NX so an
// existing mapping is never replaced.
func (r *Registry) Create(ctx context.Context, id, owner, prompt string) error {
	ok, err := r.redis.SetNX(ctx, ownerKey(id), owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set task owner: %w", err)
	}
	if !ok {
		return fmt.Errorf("task %s already registered", id)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, promptKey(id), prompt, r.ttl)
	pipe.Set(ctx, statusKey(id), string(model.StatusQueued), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to initialise task: %w", err)
	}
	return nil
}

// SetStatus moves a task forward. Backward moves and moves out of a terminal
// state return model.ErrInvalidTransition.
func (r *Registry) SetStatus(ctx context.Context, id string, status model.Status) error {
	if !status.IsWritable() {
		return fmt.Errorf("%w: %s is not a stored status", model.ErrInvalidTransition, status)
	}

	args := []interface{}{string(status), int64(r.ttl / time.Second)}
	for _, p := range model.Predecessors(status) {
		args = append(args, string(p))
	}

	res, err := setStatusScript.Run(ctx, r.redis, []string{ownerKey(id), promptKey(id), statusKey(id)}, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("%w: task %s to %s", model.ErrInvalidTransition, id, status)
	}
	return nil
}

// ForceStatus overwrites the status without transition checks.
func (r *Registry) ForceStatus(ctx context.Context, id string, status model.Status) error {
	if !status.IsWritable() {
		return fmt.Errorf("%w: %s is not a stored status", model.ErrInvalidTransition, status)
	}
	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, statusKey(id), string(status), r.ttl)
	pipe.Expire(ctx, ownerKey(id), r.ttl)
	pipe.Expire(ctx, promptKey(id), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to force task status: %w", err)
	}
	return nil
}

// Get returns the task. A task without an owner mapping is reported as
// model.ErrTaskNotFound; a missing status reads as UNKNOWN.
func (r *Registry) Get(ctx context.Context, id string) (*model.Task, error) {
	vals, err := r.redis.MGet(ctx, ownerKey(id), promptKey(id), statusKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task: %w", err)
	}

	owner, _ := vals[0].(string)
	if owner == "" {
		return nil, model.ErrTaskNotFound
	}
	prompt, _ := vals[1].(string)

	status := model.StatusUnknown
	if s, ok := vals[2].(string); ok && s != "" {
		status = model.Status(s)
	}

	return &model.Task{ID: id, Owner: owner, Prompt: prompt, Status: status}, nil
}

// Status returns only the stored status, UNKNOWN when absent.
func (r *Registry) Status(ctx context.Context, id string) (model.Status, error) {
	s, err := r.redis.Get(ctx, statusKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.StatusUnknown, nil
		}
		return "", fmt.Errorf("failed to read task status: %w", err)
	}
	return model.Status(s), nil
}
