package agent

import "time"

// Task is a unit of work handed to an agent. Type selects the handler,
// Data is the opaque payload. StepName and StepConfig are set by the
// orchestrator when the task runs as part of a workflow step.
type Task struct {
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	StepName   string         `json:"step_name,omitempty"`
	StepConfig map[string]any `json:"step_config,omitempty"`
}

// WithStep returns a copy of the task bound to a workflow step.
// The original task is never mutated.
func (t *Task) WithStep(name string, config map[string]any) *Task {
	return &Task{
		Type:       t.Type,
		Data:       t.Data,
		StepName:   name,
		StepConfig: config,
	}
}

// WithData returns a copy of the task with the payload replaced.
func (t *Task) WithData(data map[string]any) *Task {
	return &Task{
		Type:       t.Type,
		Data:       data,
		StepName:   t.StepName,
		StepConfig: t.StepConfig,
	}
}

// Result is the outcome of a single Process call.
type Result struct {
	Success   bool           `json:"success"`
	Agent     string         `json:"agent"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
