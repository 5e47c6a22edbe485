package agent

import (
	"context"
	"sync"
	"time"

	"github.com/nidhogg/flowline/internal/fault"
	"go.uber.org/zap"
)

// State represents an agent's current condition.
type State string

const (
	StateIdle    State = "idle"
	StateWorking State = "working"
	StateError   State = "error"
)

// Metrics accumulates per-agent counters. AverageProcessingTime is a
// running average in milliseconds, recomputed incrementally on each task.
type Metrics struct {
	TasksProcessed        uint64  `json:"tasks_processed"`
	Errors                uint64  `json:"errors"`
	AverageProcessingTime float64 `json:"average_processing_time_ms"`
}

// Status is a point-in-time snapshot of an agent. Reading it has no
// side effects.
type Status struct {
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	State       State   `json:"state"`
	Metrics     Metrics `json:"metrics"`
	HistorySize int     `json:"history_size"`
}

// Agent is a named worker that processes tasks dispatched by type.
type Agent interface {
	Name() string
	Role() string
	Process(ctx context.Context, task *Task) (*Result, error)
	Status() Status
}

// HandlerFunc implements one task type for an agent.
type HandlerFunc func(ctx context.Context, task *Task) (map[string]any, error)

// historySize bounds the per-agent task history ring.
const historySize = 100

// Base carries the shared state machinery for concrete agents: state
// transitions, metrics, and the bounded history. The handler set is fixed
// at construction; an unknown task type yields a failed result with a
// typed unsupported-task error message.
//
// All mutable state is guarded by a single mutex, so one agent shared by
// concurrent workflow executions keeps consistent counters. The state
// field still only reflects the most recent transition.
type Base struct {
	name     string
	role     string
	handlers map[string]HandlerFunc

	mu      sync.Mutex
	state   State
	metrics Metrics
	history *History

	logger *zap.Logger
}

// NewBase creates the shared agent core with a closed handler set.
func NewBase(name, role string, handlers map[string]HandlerFunc, logger *zap.Logger) *Base {
	return &Base{
		name:     name,
		role:     role,
		handlers: handlers,
		state:    StateIdle,
		history:  NewHistory(historySize),
		logger:   logger,
	}
}

func (b *Base) Name() string { return b.name }
func (b *Base) Role() string { return b.role }

// Process validates the task, dispatches it to the matching handler, and
// records the outcome. Handler failures are absorbed into a failed Result;
// only malformed tasks surface as an error return.
func (b *Base) Process(ctx context.Context, task *Task) (*Result, error) {
	if task == nil || task.Type == "" {
		return nil, fault.New(fault.Validation, "task type is required")
	}
	if task.Data == nil {
		return nil, fault.New(fault.Validation, "task data is required")
	}

	b.setState(StateWorking)
	start := time.Now()

	var (
		data map[string]any
		err  error
	)
	if handler, ok := b.handlers[task.Type]; ok {
		data, err = handler(ctx, task)
	} else {
		err = fault.Newf(fault.UnsupportedTask, "agent %s: unknown task type %q", b.name, task.Type)
	}
	elapsed := time.Since(start)

	result := &Result{
		Agent:     b.name,
		Timestamp: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		b.logger.Warn("task failed",
			zap.String("agent", b.name),
			zap.String("type", task.Type),
			zap.Error(err))
	} else {
		result.Success = true
		result.Data = data
	}

	b.record(task, result, elapsed)
	return result, nil
}

// Status returns a snapshot of the agent.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:        b.name,
		Role:        b.role,
		State:       b.state,
		Metrics:     b.metrics,
		HistorySize: b.history.Len(),
	}
}

// History returns the most recent entries, newest last.
func (b *Base) HistoryEntries() []HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.Entries()
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// record folds one completed task into metrics, state, and history.
func (b *Base) record(task *Task, result *Result, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.TasksProcessed++
	n := float64(b.metrics.TasksProcessed)
	ms := float64(elapsed.Microseconds()) / 1000.0
	b.metrics.AverageProcessingTime = (b.metrics.AverageProcessingTime*(n-1) + ms) / n

	if result.Success {
		b.state = StateIdle
	} else {
		b.metrics.Errors++
		b.state = StateError
	}

	b.history.Push(HistoryEntry{
		TaskType:  task.Type,
		StepName:  task.StepName,
		Success:   result.Success,
		Error:     result.Error,
		Timestamp: result.Timestamp,
	})
}
