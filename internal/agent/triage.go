package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// categoryKeywords scores input text against known request categories.
var categoryKeywords = map[string][]string{
	"bug":     {"bug", "error", "crash", "broken", "fail", "failure", "exception"},
	"feature": {"feature", "request", "add", "support", "enhancement", "improve"},
	"billing": {"billing", "invoice", "payment", "charge", "refund", "subscription"},
	"support": {"help", "question", "how", "documentation", "docs", "guide"},
}

// categoryRoutes maps a category to the downstream queue name.
var categoryRoutes = map[string]string{
	"bug":     "engineering",
	"feature": "product",
	"billing": "finance",
	"support": "helpdesk",
	"general": "helpdesk",
}

var questionRe = regexp.MustCompile(`(?i)\b(how|what|why|where|when|can|could|would)\b.*\?`)

// NewTriage creates the classifier agent. It scores free text against
// keyword lists and routes it to a downstream queue.
func NewTriage(logger *zap.Logger) *Base {
	handlers := map[string]HandlerFunc{
		"classify": classify,
		"route":    route,
	}
	return NewBase("triage", "classifier", handlers, logger)
}

func classify(_ context.Context, task *Task) (map[string]any, error) {
	text, ok := task.Data["text"].(string)
	if !ok || text == "" {
		return nil, fmt.Errorf("classify: data.text is required")
	}

	lower := strings.ToLower(text)
	scores := make(map[string]int)
	for category, words := range categoryKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				scores[category]++
			}
		}
	}

	best := "general"
	bestScore := 0
	for category, score := range scores {
		if score > bestScore {
			best, bestScore = category, score
		}
	}

	return map[string]any{
		"text":        text,
		"category":    best,
		"score":       bestScore,
		"is_question": questionRe.MatchString(text),
		"keywords":    extractKeywords(text, 10),
	}, nil
}

func route(_ context.Context, task *Task) (map[string]any, error) {
	category, ok := task.Data["category"].(string)
	if !ok || category == "" {
		return nil, fmt.Errorf("route: data.category is required")
	}

	queue, ok := categoryRoutes[category]
	if !ok {
		queue = categoryRoutes["general"]
	}

	out := make(map[string]any, len(task.Data)+1)
	for k, v := range task.Data {
		out[k] = v
	}
	out["queue"] = queue
	return out, nil
}
