package model

// Status is the lifecycle state of a generation task.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"

	// Read-side only. Never written to the registry.
	StatusNotFound Status = "NOT_FOUND"
	StatusUnknown  Status = "UNKNOWN"
)

// stage orders the writable statuses; terminal states share the last stage.
var stage = map[Status]int{
	StatusQueued:     1,
	StatusProcessing: 2,
	StatusCompleted:  3,
	StatusFailed:     3,
}

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsWritable reports whether the status may be stored in the registry.
func (s Status) IsWritable() bool {
	_, ok := stage[s]
	return ok
}

// CanTransitionTo reports whether a task in status s may move to next.
// Status only moves forward; FAILED is reachable from any non-terminal
// state and rewriting the current status is a no-op that is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.IsWritable() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	cur, ok := stage[s]
	if !ok {
		return true
	}
	return stage[next] > cur
}

// Predecessors lists every stored status from which next is reachable.
func Predecessors(next Status) []Status {
	var out []Status
	for _, s := range []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed} {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// Task is one generation request as held by the registry.
type Task struct {
	ID     string `json:"task_id"`
	Owner  string `json:"-"`
	Prompt string `json:"-"`
	Status Status `json:"status"`
}

// TaskStatusResponse is returned by the status endpoint.
type TaskStatusResponse struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`
}
