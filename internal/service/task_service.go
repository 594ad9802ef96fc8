package service

import (
	"context"
	"errors"

	"github.com/justic/shortsgen/internal/model"
)

// TaskService answers status queries for the owner of a task
type TaskService struct {
	registry TaskRegistry
}

func NewTaskService(registry TaskRegistry) *TaskService {
	return &TaskService{registry: registry}
}

// Status reports a task's status to its owner. An unknown task is reported
// as NOT_FOUND rather than an error; another user's task is model.ErrForbidden.
func (s *TaskService) Status(ctx context.Context, caller, taskID string) (*model.TaskStatusResponse, error) {
	task, err := s.registry.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return &model.TaskStatusResponse{TaskID: taskID, Status: model.StatusNotFound}, nil
		}
		return nil, err
	}

	if task.Owner != caller {
		return nil, model.ErrForbidden
	}

	return &model.TaskStatusResponse{TaskID: taskID, Status: task.Status}, nil
}
