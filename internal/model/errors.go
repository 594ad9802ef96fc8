package model

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrForbidden           = errors.New("forbidden")
	ErrCallbackIncomplete  = errors.New("callback payload missing task id or result url")
	ErrOwnerMappingMissing = errors.New("task owner mapping not found")
	ErrInvalidTransition   = errors.New("invalid task status transition")
	ErrVideoNotFound       = errors.New("video not found")
	ErrUnknownVariant      = errors.New("unknown variant")
)

// UpstreamRequestError is returned when the generation service call fails or
// its response cannot be used.
type UpstreamRequestError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s failed (status %d): %s", e.Op, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s failed: %s", e.Op, e.Body)
}

func (e *UpstreamRequestError) Unwrap() error { return e.Err }

// PipelineStageError marks a job aborted in one of the pipeline stages.
type PipelineStageError struct {
	Stage string
	Key   string
	Err   error
}

func (e *PipelineStageError) Error() string {
	return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.Key, e.Err)
}

func (e *PipelineStageError) Unwrap() error { return e.Err }
