package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notification describes an escalated workflow failure.
type Notification struct {
	Workflow    string    `json:"workflow"`
	ExecutionID string    `json:"execution_id"`
	FailedStep  string    `json:"failed_step"`
	Agent       string    `json:"agent"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
}

// Text renders the notification for chat platforms.
func (n *Notification) Text() string {
	return fmt.Sprintf("[escalation] workflow %q failed at step %q (agent %s): %s",
		n.Workflow, n.FailedStep, n.Agent, n.Error)
}

// Notifier delivers escalation notifications to one platform.
type Notifier interface {
	Platform() string
	Notify(ctx context.Context, n *Notification) error
	Close() error
}

// Record tracks a delivered notification for the in-memory history.
type Record struct {
	Notification *Notification `json:"notification"`
	SentAt       time.Time     `json:"sent_at"`
	Targets      []string      `json:"targets"`
}

// Hub fans escalation notifications out to all registered platforms.
// A nil *Hub is a no-op, so wiring notifications stays optional.
type Hub struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	history   []Record
	logger    *zap.Logger
}

// NewHub creates an empty notifier hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		notifiers: make(map[string]Notifier),
		logger:    logger,
	}
}

// Register adds a platform notifier.
func (h *Hub) Register(n Notifier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifiers[n.Platform()] = n
	h.logger.Info("registered notifier", zap.String("platform", n.Platform()))
}

// Platforms returns the registered platform names, sorted. A nil hub
// has none.
func (h *Hub) Platforms() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.notifiers))
	for p := range h.notifiers {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Send delivers the notification to every platform. Per-platform failures
// are logged and collected; one bad platform never blocks the rest.
func (h *Hub) Send(ctx context.Context, n *Notification) error {
	if h == nil {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	h.mu.RLock()
	targets := make(map[string]Notifier, len(h.notifiers))
	for p, nt := range h.notifiers {
		targets[p] = nt
	}
	h.mu.RUnlock()

	var sent []string
	var failed int
	for platform, notifier := range targets {
		if err := notifier.Notify(ctx, n); err != nil {
			h.logger.Error("notification failed",
				zap.String("platform", platform), zap.Error(err))
			failed++
			continue
		}
		sent = append(sent, platform)
	}

	h.mu.Lock()
	h.history = append(h.history, Record{
		Notification: n,
		SentAt:       time.Now(),
		Targets:      sent,
	})
	h.mu.Unlock()

	if failed > 0 {
		return fmt.Errorf("notification failed on %d platform(s)", failed)
	}
	return nil
}

// History returns the most recent delivery records.
func (h *Hub) History(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 || limit > len(h.history) {
		limit = len(h.history)
	}
	start := len(h.history) - limit
	out := make([]Record, limit)
	copy(out, h.history[start:])
	return out
}

// Close shuts down all notifiers.
func (h *Hub) Close() error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for platform, n := range h.notifiers {
		if err := n.Close(); err != nil {
			h.logger.Error("notifier close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}
