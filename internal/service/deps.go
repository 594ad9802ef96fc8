package service

import (
	"context"

	"github.com/justic/shortsgen/internal/model"
)

// TaskRegistry is the task state store shared with the callback handler
type TaskRegistry interface {
	Create(ctx context.Context, id, owner, prompt string) error
	SetStatus(ctx context.Context, id string, status model.Status) error
	Get(ctx context.Context, id string) (*model.Task, error)
}

// StatusNotifier pushes task status changes to live subscribers
type StatusNotifier interface {
	BroadcastStatus(taskID string, status model.Status, videoKey string)
}

type nopNotifier struct{}

func (nopNotifier) BroadcastStatus(string, model.Status, string) {}
