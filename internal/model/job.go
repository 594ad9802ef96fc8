package model

import (
	"encoding/json"
	"fmt"
)

// Job is one unit of worker pipeline work. It is immutable once enqueued.
type Job struct {
	InputKey  string `json:"input_key"`
	OutputKey string `json:"output_key"`
	// Variant is optional; empty means every configured variant.
	Variant string `json:"variant,omitempty"`
}

// Validate checks that both storage keys are present.
func (j *Job) Validate() error {
	if j.InputKey == "" {
		return fmt.Errorf("job is missing input_key")
	}
	if j.OutputKey == "" {
		return fmt.Errorf("job is missing output_key")
	}
	return nil
}

// ParseJob decodes and validates a queue message.
func ParseJob(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}
