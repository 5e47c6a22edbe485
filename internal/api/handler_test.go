package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidhogg/flowline/internal/agent"
	"github.com/nidhogg/flowline/internal/metrics"
	"github.com/nidhogg/flowline/internal/orchestrator"
	"go.uber.org/zap"
)

// newTestHandler wires a handler with the builtin agents and one
// workflow, no Redis or chat platforms.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	orch := orchestrator.New(orchestrator.Config{MaxConcurrent: 2}, nil, nil, nil, logger)
	for _, a := range []agent.Agent{
		agent.NewTriage(logger),
		agent.NewAnalyst(logger),
		agent.NewSupervisor(logger),
	} {
		if err := orch.RegisterAgent(a); err != nil {
			t.Fatalf("register agent: %v", err)
		}
	}
	if err := orch.RegisterWorkflow(&orchestrator.Workflow{
		Name:              "triage-only",
		EscalationHandler: "supervisor",
		Steps: []orchestrator.Step{
			{Name: "classify", Agent: "triage", Retries: 1, Config: map[string]any{"task_type": "classify"}},
			{Name: "route", Agent: "triage", Retries: 1, Config: map[string]any{"task_type": "route"}},
		},
	}); err != nil {
		t.Fatalf("register workflow: %v", err)
	}

	h := NewHandler(orch, metrics.NewCollector("flowline_test"), nil, logger)
	return h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["service"] != "flowline" {
		t.Errorf("expected service flowline, got %q", body["service"])
	}
}

func TestStatus(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/status")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snap orchestrator.Snapshot
	decodeJSON(t, resp, &snap)
	if snap.AgentCount != 3 {
		t.Errorf("expected 3 agents, got %d", snap.AgentCount)
	}
	if snap.WorkflowCount != 1 {
		t.Errorf("expected 1 workflow, got %d", snap.WorkflowCount)
	}
	if snap.MaxConcurrent != 2 {
		t.Errorf("expected max concurrent 2, got %d", snap.MaxConcurrent)
	}
}

func TestListAgents(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/agents")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Agents []agentSummary `json:"agents"`
		Count  int            `json:"count"`
	}
	decodeJSON(t, resp, &body)
	if body.Count != 3 || len(body.Agents) != 3 {
		t.Fatalf("expected 3 agents, got %+v", body)
	}
	// Sorted by name.
	if body.Agents[0].Name != "analyst" || body.Agents[2].Name != "triage" {
		t.Errorf("unexpected agent order: %+v", body.Agents)
	}
}

func TestAgentStatus(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/agents/triage/status")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st agent.Status
	decodeJSON(t, resp, &st)
	if st.Name != "triage" || st.State != agent.StateIdle {
		t.Errorf("unexpected status: %+v", st)
	}

	resp = getJSON(t, ts, "/api/agents/ghost/status")
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unknown agent, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAgentHistory(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	// Fresh agents start with an empty history.
	resp := getJSON(t, ts, "/api/agents/triage/history")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Agent   string               `json:"agent"`
		History []agent.HistoryEntry `json:"history"`
		Count   int                  `json:"count"`
	}
	decodeJSON(t, resp, &body)
	if body.Count != 0 || len(body.History) != 0 {
		t.Fatalf("expected empty history, got %+v", body)
	}

	// One processed task, one history entry.
	resp = postJSON(t, ts, "/api/agents/execute", map[string]interface{}{
		"agent_name": "triage",
		"task": map[string]interface{}{
			"type": "classify",
			"data": map[string]interface{}{"text": "billing question"},
		},
	})
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/agents/triage/history")
	decodeJSON(t, resp, &body)
	if body.Count != 1 || len(body.History) != 1 {
		t.Fatalf("expected one history entry, got %+v", body)
	}
	if body.History[0].TaskType != "classify" || !body.History[0].Success {
		t.Errorf("unexpected entry: %+v", body.History[0])
	}

	resp = getJSON(t, ts, "/api/agents/ghost/history")
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unknown agent, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListWorkflows(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/workflows")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Workflows []string `json:"workflows"`
		Count     int      `json:"count"`
	}
	decodeJSON(t, resp, &body)
	if body.Count != 1 || body.Workflows[0] != "triage-only" {
		t.Errorf("unexpected workflows: %+v", body)
	}
}

func TestExecuteAgent(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/agents/execute", map[string]interface{}{
		"agent_name": "triage",
		"task": map[string]interface{}{
			"type": "classify",
			"data": map[string]interface{}{"text": "the app crashes with an error"},
		},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Success bool          `json:"success"`
		Agent   string        `json:"agent"`
		Result  *agent.Result `json:"result"`
	}
	decodeJSON(t, resp, &body)
	if !body.Success || body.Agent != "triage" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if body.Result.Data["category"] != "bug" {
		t.Errorf("expected bug classification, got %v", body.Result.Data)
	}
}

func TestExecuteAgentValidation(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing agent name", map[string]interface{}{
			"task": map[string]interface{}{"type": "t", "data": map[string]interface{}{}},
		}, 400},
		{"missing task", map[string]interface{}{"agent_name": "triage"}, 400},
		{"unknown agent", map[string]interface{}{
			"agent_name": "ghost",
			"task":       map[string]interface{}{"type": "t", "data": map[string]interface{}{}},
		}, 404},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts, "/api/agents/execute", tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestExecuteWorkflow(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/workflows/execute", map[string]interface{}{
		"workflow_name": "triage-only",
		"task": map[string]interface{}{
			"type": "classify",
			"data": map[string]interface{}{"text": "billing invoice is wrong, need a refund"},
		},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Success bool                          `json:"success"`
		Result  *orchestrator.ExecutionResult `json:"result"`
	}
	decodeJSON(t, resp, &body)
	if !body.Success {
		t.Fatalf("expected success, got %+v", body.Result)
	}
	if len(body.Result.Results) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(body.Result.Results))
	}
	final := body.Result.Results[1].Result
	if final.Data["queue"] != "finance" {
		t.Errorf("billing must route to finance, got %v", final.Data)
	}
}

func TestExecuteWorkflowNotFound(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/workflows/execute", map[string]interface{}{
		"workflow_name": "ghost",
		"task": map[string]interface{}{
			"type": "t",
			"data": map[string]interface{}{},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND code, got %q", body["code"])
	}
}

func TestExecuteWorkflowBadBody(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/workflows/execute", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/metrics")
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
