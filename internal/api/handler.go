package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/flowline/internal/agent"
	"github.com/nidhogg/flowline/internal/fault"
	"github.com/nidhogg/flowline/internal/metrics"
	"github.com/nidhogg/flowline/internal/orchestrator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	orch           *orchestrator.Orchestrator
	collector      *metrics.Collector
	allowedOrigins []string
	logger         *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(orch *orchestrator.Orchestrator, collector *metrics.Collector, allowedOrigins []string, logger *zap.Logger) *Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Handler{
		orch:           orch,
		collector:      collector,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/status", h.status)
		r.Get("/agents", h.listAgents)
		r.Get("/agents/{name}/status", h.agentStatus)
		r.Get("/agents/{name}/history", h.agentHistory)
		r.Post("/agents/execute", h.executeAgent)
		r.Get("/workflows", h.listWorkflows)
		r.Post("/workflows/execute", h.executeWorkflow)
	})

	if reg := h.collector.Registry(); reg != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "flowline"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Status())
}

type agentSummary struct {
	Name  string      `json:"name"`
	Role  string      `json:"role"`
	State agent.State `json:"state"`
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	statuses := h.orch.AgentStatuses()
	agents := make([]agentSummary, len(statuses))
	for i, s := range statuses {
		agents[i] = agentSummary{Name: s.Name, Role: s.Role, State: s.State}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

func (h *Handler) agentStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := h.orch.Agent(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Status())
}

func (h *Handler) agentHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := h.orch.Agent(name)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := []agent.HistoryEntry{}
	if hist, ok := a.(interface{ HistoryEntries() []agent.HistoryEntry }); ok {
		entries = hist.HistoryEntries()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":   name,
		"history": entries,
		"count":   len(entries),
	})
}

func (h *Handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	names := h.orch.WorkflowNames()
	writeJSON(w, http.StatusOK, map[string]any{
		"workflows": names,
		"count":     len(names),
	})
}

type executeWorkflowRequest struct {
	WorkflowName string      `json:"workflow_name"`
	Task         *agent.Task `json:"task"`
}

func (h *Handler) executeWorkflow(w http.ResponseWriter, r *http.Request) {
	var req executeWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fault.Wrap(fault.Validation, "invalid request body", err))
		return
	}
	if req.WorkflowName == "" {
		writeError(w, fault.New(fault.Validation, "workflow_name is required"))
		return
	}
	if req.Task == nil || req.Task.Type == "" || req.Task.Data == nil {
		writeError(w, fault.New(fault.Validation, "task with type and data is required"))
		return
	}

	result, err := h.orch.ExecuteWorkflow(r.Context(), req.WorkflowName, req.Task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  result.Success,
		"workflow": result.Workflow,
		"result":   result,
	})
}

type executeAgentRequest struct {
	AgentName string      `json:"agent_name"`
	Task      *agent.Task `json:"task"`
}

func (h *Handler) executeAgent(w http.ResponseWriter, r *http.Request) {
	var req executeAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fault.Wrap(fault.Validation, "invalid request body", err))
		return
	}
	if req.AgentName == "" {
		writeError(w, fault.New(fault.Validation, "agent_name is required"))
		return
	}
	if req.Task == nil || req.Task.Type == "" || req.Task.Data == nil {
		writeError(w, fault.New(fault.Validation, "task with type and data is required"))
		return
	}

	result, err := h.orch.ExecuteAgent(r.Context(), req.AgentName, req.Task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": result.Success,
		"agent":   req.AgentName,
		"result":  result,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, fault.HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"code":  string(fault.CodeOf(err)),
	})
}
