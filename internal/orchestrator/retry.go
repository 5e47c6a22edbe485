package orchestrator

import (
	"context"
	"time"

	"github.com/nidhogg/flowline/internal/agent"
	"github.com/nidhogg/flowline/internal/fault"
	"go.uber.org/zap"
)

// ExecuteWithRetry invokes an agent directly with the retry policy used
// by workflow steps. maxRetries <= 0 falls back to the direct-call
// default of 3 attempts.
func (o *Orchestrator) ExecuteWithRetry(ctx context.Context, agentName string, task *agent.Task, maxRetries int) (*agent.Result, error) {
	a, err := o.Agent(agentName)
	if err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = defaultDirectRetries
	}
	return o.executeWithRetry(ctx, a, task, maxRetries, "", "")
}

// executeWithRetry runs up to maxRetries attempts against the agent. A
// failure is either a returned error or a Result with Success false; any
// successful attempt returns immediately. Between attempts (never after
// the last) it sleeps 2^attempt * backoffBase, honoring ctx cancellation.
// On exhaustion the last failure comes back as a typed error.
func (o *Orchestrator) executeWithRetry(ctx context.Context, a agent.Agent, task *agent.Task, maxRetries int, workflow, stepName string) (*agent.Result, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		start := time.Now()
		res, err := a.Process(ctx, task)
		o.recordAgentTask(a.Name(), res, err, time.Since(start))

		if err == nil && res != nil && res.Success {
			return res, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fault.Newf(fault.AgentExecution, "agent %s: %s", a.Name(), res.Error)
		}

		if attempt == maxRetries {
			break
		}
		o.collector.RecordRetry(workflow, stepName)
		delay := o.backoff(attempt)
		o.logger.Debug("retrying task",
			zap.String("agent", a.Name()),
			zap.String("type", task.Type),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fault.Wrap(fault.AgentExecution,
		"all attempts failed for agent "+a.Name(), lastErr)
}

// backoff returns the exponential delay after the given attempt:
// base*2, base*4, base*8, ...
func (o *Orchestrator) backoff(attempt int) time.Duration {
	return o.backoffBase * time.Duration(1<<attempt)
}
