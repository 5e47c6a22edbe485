package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// NewWriter creates the writer agent: template-based drafting and
// markdown formatting of upstream results.
func NewWriter(logger *zap.Logger) *Base {
	handlers := map[string]HandlerFunc{
		"draft":  draft,
		"format": formatReport,
	}
	return NewBase("writer", "writer", handlers, logger)
}

func draft(_ context.Context, task *Task) (map[string]any, error) {
	title, _ := task.Data["title"].(string)
	if title == "" {
		if category, ok := task.Data["category"].(string); ok {
			title = fmt.Sprintf("Report: %s", category)
		} else {
			title = "Report"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if summary, ok := task.Data["summary"].(string); ok && summary != "" {
		fmt.Fprintf(&b, "%s\n\n", summary)
	}
	if keywords, ok := task.Data["keywords"].([]string); ok && len(keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(keywords, ", "))
	}

	out := make(map[string]any, len(task.Data)+2)
	for k, v := range task.Data {
		out[k] = v
	}
	out["title"] = title
	out["draft"] = b.String()
	return out, nil
}

// formatReport renders the payload as a sorted markdown field list,
// skipping the bulky text/draft fields.
func formatReport(_ context.Context, task *Task) (map[string]any, error) {
	if len(task.Data) == 0 {
		return nil, fmt.Errorf("format: data is empty")
	}

	keys := make([]string, 0, len(task.Data))
	for k := range task.Data {
		if k == "text" || k == "draft" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- **%s**: %v\n", k, task.Data[k])
	}
	if d, ok := task.Data["draft"].(string); ok && d != "" {
		fmt.Fprintf(&b, "\n%s", d)
	}

	return map[string]any{"report": b.String()}, nil
}
