package orchestrator

import (
	"context"
	"time"

	"github.com/nidhogg/flowline/internal/agent"
	"github.com/nidhogg/flowline/internal/events"
	"github.com/nidhogg/flowline/internal/notify"
	"go.uber.org/zap"
)

// escalate hands a failed, flagged step to the workflow's escalation
// handler and builds the terminal result. This path always returns a
// well-formed result: a missing or failing handler degrades to the
// default escalation payload, never to an error for the caller.
func (o *Orchestrator) escalate(ctx context.Context, wf *Workflow, step *Step, failed *agent.Result, results []StepResult, exec *Execution, start time.Time) *ExecutionResult {
	o.setExecStatus(exec, ExecutionEscalated)
	o.collector.RecordEscalation(wf.Name)
	o.collector.RecordWorkflow(wf.Name, "escalated", time.Since(start))
	o.publish(ctx, &events.Event{
		ExecutionID: exec.ID,
		Workflow:    wf.Name,
		Type:        events.WorkflowEscalated,
		Step:        step.Name,
		Agent:       step.Agent,
		Error:       failed.Error,
	})

	if err := o.hub.Send(ctx, &notify.Notification{
		Workflow:    wf.Name,
		ExecutionID: exec.ID,
		FailedStep:  step.Name,
		Agent:       step.Agent,
		Error:       failed.Error,
	}); err != nil {
		o.logger.Warn("escalation notification failed", zap.Error(err))
	}

	out := &ExecutionResult{
		Status:      ExecutionEscalated,
		Workflow:    wf.Name,
		ExecutionID: exec.ID,
		Escalated:   true,
		FailedStep:  step.Name,
		Error:       failed.Error,
		Results:     results,
		DurationMS:  time.Since(start).Milliseconds(),
		Timestamp:   time.Now(),
	}

	if wf.EscalationHandler == "" {
		return out
	}
	handler, err := o.Agent(wf.EscalationHandler)
	if err != nil {
		o.logger.Warn("escalation handler not found",
			zap.String("workflow", wf.Name),
			zap.String("handler", wf.EscalationHandler))
		return out
	}

	escTask := &agent.Task{
		Type: "escalation",
		Data: map[string]any{
			"workflow":         wf.Name,
			"failed_step":      step.Name,
			"error":            failed,
			"previous_results": results,
			"steps_completed":  len(results) - 1,
		},
	}
	escRes, escErr := handler.Process(ctx, escTask)
	if escErr != nil || escRes == nil || !escRes.Success {
		// The handler's own failure is swallowed; the default payload
		// already covers the caller.
		o.logger.Error("escalation handler failed",
			zap.String("workflow", wf.Name),
			zap.String("handler", wf.EscalationHandler),
			zap.Error(escErr))
		return out
	}

	out.Escalation = escRes
	o.logger.Info("escalation handled",
		zap.String("workflow", wf.Name),
		zap.String("handler", wf.EscalationHandler),
		zap.String("failed_step", step.Name))
	return out
}
