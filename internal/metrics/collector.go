// Package metrics provides Prometheus instrumentation for the
// orchestrator core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the service's Prometheus instruments. A nil *Collector
// is a no-op so instrumentation stays optional in tests.
type Collector struct {
	workflowExecutions *prometheus.CounterVec
	workflowDuration   *prometheus.HistogramVec
	stepRetries        *prometheus.CounterVec
	escalations        *prometheus.CounterVec
	agentTasks         *prometheus.CounterVec
	agentTaskDuration  *prometheus.HistogramVec
	activeExecutions   prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector creates a collector with its own registry, so tests can
// construct collectors independently without duplicate registration.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		workflowExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_executions_total",
				Help:      "Total workflow executions by outcome",
			},
			[]string{"workflow", "outcome"},
		),
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_duration_seconds",
				Help:      "Workflow execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"workflow"},
		),
		stepRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_retries_total",
				Help:      "Total retry attempts by workflow step",
			},
			[]string{"workflow", "step"},
		),
		escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escalations_total",
				Help:      "Total workflow escalations",
			},
			[]string{"workflow"},
		),
		agentTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_tasks_total",
				Help:      "Total agent task invocations by outcome",
			},
			[]string{"agent", "outcome"},
		),
		agentTaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_task_duration_seconds",
				Help:      "Agent task processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		activeExecutions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Workflow executions currently in flight",
			},
		),
		registry: registry,
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordWorkflow records one finished workflow execution.
func (c *Collector) RecordWorkflow(workflow, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.workflowExecutions.WithLabelValues(workflow, outcome).Inc()
	c.workflowDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt for a step.
func (c *Collector) RecordRetry(workflow, step string) {
	if c == nil {
		return
	}
	c.stepRetries.WithLabelValues(workflow, step).Inc()
}

// RecordEscalation records one escalation.
func (c *Collector) RecordEscalation(workflow string) {
	if c == nil {
		return
	}
	c.escalations.WithLabelValues(workflow).Inc()
}

// RecordAgentTask records one agent invocation.
func (c *Collector) RecordAgentTask(agent, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.agentTasks.WithLabelValues(agent, outcome).Inc()
	c.agentTaskDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// SetActive updates the in-flight execution gauge.
func (c *Collector) SetActive(n int) {
	if c == nil {
		return
	}
	c.activeExecutions.Set(float64(n))
}
