package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewSupervisor creates the escalation handler agent. It builds a
// human-readable digest of a failed workflow step so the failure can be
// surfaced without rerunning anything.
func NewSupervisor(logger *zap.Logger) *Base {
	handlers := map[string]HandlerFunc{
		"escalation": escalationDigest,
	}
	return NewBase("supervisor", "escalation-handler", handlers, logger)
}

func escalationDigest(_ context.Context, task *Task) (map[string]any, error) {
	workflow, _ := task.Data["workflow"].(string)
	failedStep, _ := task.Data["failed_step"].(string)
	if workflow == "" || failedStep == "" {
		return nil, fmt.Errorf("escalation: data.workflow and data.failed_step are required")
	}

	// The orchestrator passes the failed step's full result; plain
	// strings and JSON-decoded maps are accepted for direct invocations.
	var errMsg string
	switch v := task.Data["error"].(type) {
	case *Result:
		errMsg = v.Error
	case map[string]any:
		errMsg, _ = v["error"].(string)
	case string:
		errMsg = v
	}

	completed := 0
	switch v := task.Data["steps_completed"].(type) {
	case int:
		completed = v
	case float64:
		completed = int(v)
	}

	return map[string]any{
		"workflow":        workflow,
		"failed_step":     failedStep,
		"digest":          fmt.Sprintf("workflow %q failed at step %q after %d step(s): %s", workflow, failedStep, completed, errMsg),
		"recommendation":  "inspect the failing agent's history and retry the workflow",
		"steps_completed": completed,
	}, nil
}
