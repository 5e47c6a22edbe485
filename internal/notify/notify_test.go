package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeNotifier struct {
	platform string
	fail     bool

	mu     sync.Mutex
	sent   []*Notification
	closed bool
}

func (f *fakeNotifier) Platform() string { return f.platform }

func (f *fakeNotifier) Notify(_ context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("delivery refused")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestHubFansOut(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slack := &fakeNotifier{platform: "slack"}
	discord := &fakeNotifier{platform: "discord"}
	hub.Register(slack)
	hub.Register(discord)

	err := hub.Send(context.Background(), &Notification{
		Workflow:   "content-pipeline",
		FailedStep: "draft",
		Agent:      "writer",
		Error:      "all attempts failed",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if slack.sentCount() != 1 || discord.sentCount() != 1 {
		t.Errorf("expected both platforms notified, got slack=%d discord=%d",
			slack.sentCount(), discord.sentCount())
	}
}

func TestHubPartialFailure(t *testing.T) {
	hub := NewHub(zap.NewNop())
	good := &fakeNotifier{platform: "slack"}
	bad := &fakeNotifier{platform: "discord", fail: true}
	hub.Register(good)
	hub.Register(bad)

	err := hub.Send(context.Background(), &Notification{Workflow: "w", FailedStep: "s"})
	if err == nil {
		t.Fatal("expected an error when one platform fails")
	}
	if good.sentCount() != 1 {
		t.Error("working platform must still be notified")
	}

	history := hub.History(0)
	if len(history) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(history))
	}
	if len(history[0].Targets) != 1 || history[0].Targets[0] != "slack" {
		t.Errorf("history must record only successful targets, got %v", history[0].Targets)
	}
}

func TestHubHistoryLimit(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Register(&fakeNotifier{platform: "slack"})

	for i := 0; i < 5; i++ {
		if err := hub.Send(context.Background(), &Notification{Workflow: "w", FailedStep: "s"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	if got := hub.History(2); len(got) != 2 {
		t.Errorf("expected 2 records with limit, got %d", len(got))
	}
	if got := hub.History(100); len(got) != 5 {
		t.Errorf("oversized limit must return everything, got %d", len(got))
	}
}

func TestHubSendStampsTimestamp(t *testing.T) {
	hub := NewHub(zap.NewNop())
	n := &Notification{Workflow: "w", FailedStep: "s"}
	if err := hub.Send(context.Background(), n); err != nil {
		t.Fatalf("send: %v", err)
	}
	if n.Timestamp.IsZero() {
		t.Error("send must stamp the notification")
	}
}

func TestHubPlatforms(t *testing.T) {
	hub := NewHub(zap.NewNop())
	if got := hub.Platforms(); len(got) != 0 {
		t.Errorf("expected no platforms on empty hub, got %v", got)
	}

	hub.Register(&fakeNotifier{platform: "slack"})
	hub.Register(&fakeNotifier{platform: "discord"})
	got := hub.Platforms()
	if len(got) != 2 || got[0] != "discord" || got[1] != "slack" {
		t.Errorf("expected sorted platform names, got %v", got)
	}
}

func TestNilHubIsNoop(t *testing.T) {
	var hub *Hub
	if err := hub.Send(context.Background(), &Notification{}); err != nil {
		t.Errorf("nil hub send: %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Errorf("nil hub close: %v", err)
	}
	if got := hub.Platforms(); got != nil {
		t.Errorf("nil hub must have no platforms, got %v", got)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub(zap.NewNop())
	f := &fakeNotifier{platform: "slack"}
	hub.Register(f)
	if err := hub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !f.closed {
		t.Error("close must propagate to notifiers")
	}
}

func TestNotificationText(t *testing.T) {
	n := &Notification{
		Workflow:   "content-pipeline",
		FailedStep: "draft",
		Agent:      "writer",
		Error:      "boom",
	}
	text := n.Text()
	for _, want := range []string{"content-pipeline", "draft", "writer", "boom"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q: %s", want, text)
		}
	}
}
