package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/flowline/internal/agent"
	"github.com/nidhogg/flowline/internal/events"
	"github.com/nidhogg/flowline/internal/fault"
	"github.com/nidhogg/flowline/internal/metrics"
	"github.com/nidhogg/flowline/internal/notify"
	"go.uber.org/zap"
)

const (
	defaultMaxConcurrent = 10
	defaultBackoffBase   = 100 * time.Millisecond
	// defaultDirectRetries applies when ExecuteWithRetry is called
	// outside a workflow step, where no per-step budget exists.
	defaultDirectRetries = 3
)

// Config tunes the orchestrator. Zero values take the defaults.
type Config struct {
	MaxConcurrent int
	BackoffBase   time.Duration
}

// Orchestrator owns the agent and workflow registries and executes
// workflows step by step: retry with backoff per step, result data
// threaded forward, escalation handoff on flagged failures. Admission
// is a fail-fast semaphore, not a queue.
type Orchestrator struct {
	mu        sync.RWMutex
	agents    map[string]agent.Agent
	workflows map[string]*Workflow

	sem           chan struct{}
	maxConcurrent int
	backoffBase   time.Duration

	runMu   sync.Mutex
	running map[string]*Execution

	collector *metrics.Collector
	bus       *events.Bus
	hub       *notify.Hub
	logger    *zap.Logger
}

// New creates an orchestrator. Collector, bus, and hub may be nil.
func New(cfg Config, collector *metrics.Collector, bus *events.Bus, hub *notify.Hub, logger *zap.Logger) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	return &Orchestrator{
		agents:        make(map[string]agent.Agent),
		workflows:     make(map[string]*Workflow),
		sem:           make(chan struct{}, cfg.MaxConcurrent),
		maxConcurrent: cfg.MaxConcurrent,
		backoffBase:   cfg.BackoffBase,
		running:       make(map[string]*Execution),
		collector:     collector,
		bus:           bus,
		hub:           hub,
		logger:        logger,
	}
}

// RegisterAgent adds an agent under its unique name.
func (o *Orchestrator) RegisterAgent(a agent.Agent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.agents[a.Name()]; exists {
		return fault.Newf(fault.DuplicateAgent, "agent %q already registered", a.Name())
	}
	o.agents[a.Name()] = a
	o.logger.Info("registered agent",
		zap.String("agent", a.Name()),
		zap.String("role", a.Role()))
	return nil
}

// RegisterWorkflow upserts a workflow definition. Referenced agent names
// are deliberately not validated here; steps bind late, at execution.
func (o *Orchestrator) RegisterWorkflow(wf *Workflow) error {
	if wf == nil || wf.Name == "" {
		return fault.New(fault.Validation, "workflow name is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workflows[wf.Name] = wf
	o.logger.Info("registered workflow",
		zap.String("workflow", wf.Name),
		zap.Int("steps", len(wf.Steps)))
	return nil
}

// Agent returns a registered agent by name.
func (o *Orchestrator) Agent(name string) (agent.Agent, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.agents[name]
	if !ok {
		return nil, fault.Newf(fault.NotFound, "agent %q not found", name)
	}
	return a, nil
}

// Workflow returns a registered workflow by name.
func (o *Orchestrator) Workflow(name string) (*Workflow, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	wf, ok := o.workflows[name]
	if !ok {
		return nil, fault.Newf(fault.NotFound, "workflow %q not found", name)
	}
	return wf, nil
}

// AgentStatuses returns status snapshots for all agents, sorted by name.
func (o *Orchestrator) AgentStatuses() []agent.Status {
	o.mu.RLock()
	agents := make([]agent.Agent, 0, len(o.agents))
	for _, a := range o.agents {
		agents = append(agents, a)
	}
	o.mu.RUnlock()

	statuses := make([]agent.Status, len(agents))
	for i, a := range agents {
		statuses[i] = a.Status()
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// WorkflowNames returns registered workflow names, sorted.
func (o *Orchestrator) WorkflowNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.workflows))
	for name := range o.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveExecutions returns the number of in-flight workflow executions.
func (o *Orchestrator) ActiveExecutions() int {
	return len(o.sem)
}

// Running returns the in-flight execution records.
func (o *Orchestrator) Running() []Execution {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	out := make([]Execution, 0, len(o.running))
	for _, e := range o.running {
		out = append(out, *e)
	}
	return out
}

// Status builds the orchestrator-wide snapshot.
func (o *Orchestrator) Status() Snapshot {
	agents := o.AgentStatuses()
	workflows := o.WorkflowNames()
	return Snapshot{
		ActiveExecutions: o.ActiveExecutions(),
		MaxConcurrent:    o.maxConcurrent,
		AgentCount:       len(agents),
		WorkflowCount:    len(workflows),
		Agents:           agents,
		Workflows:        workflows,
		NotifyPlatforms:  o.hub.Platforms(),
	}
}

// setExecStatus transitions an execution's lifecycle status so Running
// snapshots stay truthful up to the moment the record is dropped.
func (o *Orchestrator) setExecStatus(exec *Execution, status ExecutionStatus) {
	o.runMu.Lock()
	exec.Status = status
	o.runMu.Unlock()
}

// ExecuteAgent invokes one agent directly, outside any workflow.
func (o *Orchestrator) ExecuteAgent(ctx context.Context, agentName string, task *agent.Task) (*agent.Result, error) {
	a, err := o.Agent(agentName)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := a.Process(ctx, task)
	o.recordAgentTask(a.Name(), res, err, time.Since(start))
	return res, err
}

// ExecuteWorkflow runs the named workflow against the initial task.
// Steps run strictly in order; a step's result data replaces the payload
// for the next step. A failing step either escalates (flagged) or is
// skipped over (soft failure). The admission slot is released on every
// exit path.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, name string, task *agent.Task) (*ExecutionResult, error) {
	wf, err := o.Workflow(name)
	if err != nil {
		return nil, err
	}

	select {
	case o.sem <- struct{}{}:
	default:
		return nil, fault.Newf(fault.CapacityExceeded,
			"maximum concurrent executions reached (%d)", o.maxConcurrent)
	}
	defer func() {
		<-o.sem
		o.collector.SetActive(o.ActiveExecutions())
	}()
	o.collector.SetActive(o.ActiveExecutions())

	start := time.Now()
	exec := &Execution{
		ID:        uuid.New().String(),
		Workflow:  wf.Name,
		Status:    ExecutionRunning,
		StartedAt: start,
	}
	o.runMu.Lock()
	o.running[exec.ID] = exec
	o.runMu.Unlock()
	defer func() {
		o.runMu.Lock()
		delete(o.running, exec.ID)
		o.runMu.Unlock()
	}()

	o.logger.Info("executing workflow",
		zap.String("workflow", wf.Name),
		zap.String("execution", exec.ID),
		zap.Int("steps", len(wf.Steps)))
	o.publish(ctx, &events.Event{
		ExecutionID: exec.ID,
		Workflow:    wf.Name,
		Type:        events.WorkflowStarted,
	})

	current := task
	var results []StepResult

	for _, step := range wf.Steps {
		o.runMu.Lock()
		exec.CurrentStep = step.Name
		o.runMu.Unlock()

		a, err := o.Agent(step.Agent)
		if err != nil {
			// A dangling agent reference aborts the whole run; this is a
			// definition defect, not a step failure, so no escalation.
			o.setExecStatus(exec, ExecutionFailed)
			o.collector.RecordWorkflow(wf.Name, "failed", time.Since(start))
			return nil, fault.Wrap(fault.NotFound,
				"step "+step.Name+": agent "+step.Agent, err)
		}

		stepTask := current.WithStep(step.Name, step.Config)
		// A step may re-key the handler for its agent via config.
		if t, ok := step.Config["task_type"].(string); ok && t != "" {
			stepTask.Type = t
		}
		res, err := o.executeWithRetry(ctx, a, stepTask, step.Retries, wf.Name, step.Name)
		if err != nil {
			if ctx.Err() != nil {
				o.setExecStatus(exec, ExecutionFailed)
				o.collector.RecordWorkflow(wf.Name, "failed", time.Since(start))
				return nil, err
			}
			res = &agent.Result{
				Agent:     step.Agent,
				Error:     err.Error(),
				Timestamp: time.Now(),
			}
		}
		results = append(results, StepResult{Step: step.Name, Agent: step.Agent, Result: res})

		if !res.Success {
			o.publish(ctx, &events.Event{
				ExecutionID: exec.ID,
				Workflow:    wf.Name,
				Type:        events.StepFailed,
				Step:        step.Name,
				Agent:       step.Agent,
				Error:       res.Error,
			})
			if step.EscalateOnFailure {
				return o.escalate(ctx, wf, &step, res, results, exec, start), nil
			}
			// Soft failure: keep going with whatever data the step left.
			o.logger.Warn("step failed, continuing",
				zap.String("workflow", wf.Name),
				zap.String("step", step.Name),
				zap.String("error", res.Error))
		} else {
			o.publish(ctx, &events.Event{
				ExecutionID: exec.ID,
				Workflow:    wf.Name,
				Type:        events.StepCompleted,
				Step:        step.Name,
				Agent:       step.Agent,
			})
		}

		if res.Data != nil {
			current = current.WithData(res.Data)
		}
	}

	duration := time.Since(start)
	o.setExecStatus(exec, ExecutionCompleted)
	o.collector.RecordWorkflow(wf.Name, "completed", duration)
	o.publish(ctx, &events.Event{
		ExecutionID: exec.ID,
		Workflow:    wf.Name,
		Type:        events.WorkflowCompleted,
	})
	o.logger.Info("workflow completed",
		zap.String("workflow", wf.Name),
		zap.String("execution", exec.ID),
		zap.Duration("duration", duration))

	return &ExecutionResult{
		Success:     true,
		Status:      ExecutionCompleted,
		Workflow:    wf.Name,
		ExecutionID: exec.ID,
		Results:     results,
		DurationMS:  duration.Milliseconds(),
		Timestamp:   time.Now(),
	}, nil
}

func (o *Orchestrator) publish(ctx context.Context, ev *events.Event) {
	if err := o.bus.Publish(ctx, ev); err != nil {
		o.logger.Warn("event publish failed",
			zap.String("workflow", ev.Workflow),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}

func (o *Orchestrator) recordAgentTask(name string, res *agent.Result, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil || res == nil || !res.Success {
		outcome = "failure"
	}
	o.collector.RecordAgentTask(name, outcome, elapsed)
}
