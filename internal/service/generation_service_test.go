package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justic/shortsgen/internal/model"
)

func TestGenerationService_Generate(t *testing.T) {
	reg := newTestRegistry(t)
	gen := &fakeGenerator{taskID: "abc123"}
	svc := NewGenerationService(gen, reg, "veo", zerolog.Nop())

	resp, err := svc.Generate(context.Background(), "user-42", "a cat surfing")
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.TaskID)
	assert.Equal(t, model.StatusQueued, resp.Status)

	task, err := reg.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "user-42", task.Owner)
	assert.Equal(t, "a cat surfing", task.Prompt)
}

func TestGenerationService_UpstreamFailureCreatesNoTask(t *testing.T) {
	reg := newTestRegistry(t)
	gen := &fakeGenerator{err: &model.UpstreamRequestError{Op: "create task", StatusCode: 500}}
	svc := NewGenerationService(gen, reg, "veo", zerolog.Nop())

	_, err := svc.Generate(context.Background(), "user-42", "p")
	var upstream *model.UpstreamRequestError
	assert.True(t, errors.As(err, &upstream))
}

func TestGenerationService_RegistryFailureStillAccepts(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Create(context.Background(), "dup", "someone", "p"))
	svc := NewGenerationService(&fakeGenerator{taskID: "dup"}, reg, "veo", zerolog.Nop())

	resp, err := svc.Generate(context.Background(), "user-42", "p")
	require.NoError(t, err)
	assert.Equal(t, "dup", resp.TaskID)
}

func TestTaskService_Status(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Create(ctx, "abc123", "user-42", "p"))
	svc := NewTaskService(reg)

	resp, err := svc.Status(ctx, "user-42", "abc123")
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, resp.Status)

	_, err = svc.Status(ctx, "user-7", "abc123")
	assert.ErrorIs(t, err, model.ErrForbidden)

	resp, err = svc.Status(ctx, "user-42", "nope")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotFound, resp.Status)
}
