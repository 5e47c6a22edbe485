package orchestrator

import (
	"time"

	"github.com/nidhogg/flowline/internal/agent"
)

// ExecutionStatus tracks a workflow execution's lifecycle.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionEscalated ExecutionStatus = "escalated"
)

// Step binds one workflow position to an agent. The agent name is
// resolved when the step executes, not at registration time.
type Step struct {
	Name              string         `json:"name"`
	Agent             string         `json:"agent"`
	Config            map[string]any `json:"config,omitempty"`
	Retries           int            `json:"retries"`
	EscalateOnFailure bool           `json:"escalate_on_failure"`
}

// Workflow is a named, ordered step sequence with an optional
// escalation handler agent.
type Workflow struct {
	Name              string `json:"name"`
	Steps             []Step `json:"steps"`
	EscalationHandler string `json:"escalation_handler,omitempty"`
}

// StepResult pairs a step with its agent's outcome. One is recorded per
// executed step, whether it succeeded or not.
type StepResult struct {
	Step   string        `json:"step"`
	Agent  string        `json:"agent"`
	Result *agent.Result `json:"result"`
}

// Execution is the in-flight record of one workflow run.
type Execution struct {
	ID          string          `json:"id"`
	Workflow    string          `json:"workflow"`
	Status      ExecutionStatus `json:"status"`
	CurrentStep string          `json:"current_step,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
}

// ExecutionResult is the final outcome of one workflow execution.
type ExecutionResult struct {
	Success     bool            `json:"success"`
	Status      ExecutionStatus `json:"status"`
	Workflow    string          `json:"workflow"`
	ExecutionID string          `json:"execution_id"`
	Escalated   bool            `json:"escalated,omitempty"`
	FailedStep  string          `json:"failed_step,omitempty"`
	Error       string          `json:"error,omitempty"`
	Escalation  *agent.Result   `json:"escalation,omitempty"`
	Results     []StepResult    `json:"results"`
	DurationMS  int64           `json:"duration_ms"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Snapshot is the orchestrator-wide status view served by GET /status.
type Snapshot struct {
	ActiveExecutions int            `json:"active_executions"`
	MaxConcurrent    int            `json:"max_concurrent"`
	AgentCount       int            `json:"agent_count"`
	WorkflowCount    int            `json:"workflow_count"`
	Agents           []agent.Status `json:"agents"`
	Workflows        []string       `json:"workflows"`
	NotifyPlatforms  []string       `json:"notify_platforms,omitempty"`
}
