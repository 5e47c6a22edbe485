package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var positiveWords = []string{"good", "great", "love", "excellent", "thanks", "works", "fast"}
var negativeWords = []string{"bad", "slow", "hate", "terrible", "broken", "annoying", "worst"}

// NewAnalyst creates the analyst agent: keyword extraction, naive
// sentiment scoring, and lead-sentence summarization.
func NewAnalyst(logger *zap.Logger) *Base {
	handlers := map[string]HandlerFunc{
		"extract_keywords": analystKeywords,
		"analyze":          analyze,
		"summarize":        summarize,
	}
	return NewBase("analyst", "analyst", handlers, logger)
}

func textField(task *Task) (string, error) {
	if text, ok := task.Data["text"].(string); ok && text != "" {
		return text, nil
	}
	return "", fmt.Errorf("data.text is required")
}

func analystKeywords(_ context.Context, task *Task) (map[string]any, error) {
	text, err := textField(task)
	if err != nil {
		return nil, fmt.Errorf("extract_keywords: %w", err)
	}
	return map[string]any{
		"text":     text,
		"keywords": extractKeywords(text, 20),
	}, nil
}

func analyze(_ context.Context, task *Task) (map[string]any, error) {
	text, err := textField(task)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	lower := strings.ToLower(text)
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}

	sentiment := "neutral"
	switch {
	case score > 0:
		sentiment = "positive"
	case score < 0:
		sentiment = "negative"
	}

	out := make(map[string]any, len(task.Data)+4)
	for k, v := range task.Data {
		out[k] = v
	}
	out["sentiment"] = sentiment
	out["sentiment_score"] = score
	out["word_count"] = len(strings.Fields(text))
	out["keywords"] = extractKeywords(text, 10)
	return out, nil
}

// summarize keeps the first N sentences. N comes from the step config
// (max_sentences) and defaults to 2.
func summarize(_ context.Context, task *Task) (map[string]any, error) {
	text, err := textField(task)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	maxSentences := 2
	if v, ok := task.StepConfig["max_sentences"].(float64); ok && v > 0 {
		maxSentences = int(v)
	}

	sentences := splitSentences(text)
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}

	out := make(map[string]any, len(task.Data)+1)
	for k, v := range task.Data {
		out[k] = v
	}
	out["summary"] = strings.Join(sentences, " ")
	return out, nil
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed+".")
		}
	}
	return out
}
