package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackNotifier posts escalation notifications to one Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackNotifier creates a Slack notifier.
// botToken is the Bot User OAuth Token (xoxb-...).
func NewSlackNotifier(botToken, channel string, logger *zap.Logger) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
		logger:  logger,
	}
}

func (s *SlackNotifier) Platform() string { return "slack" }

// Notify posts the escalation message to the configured channel.
func (s *SlackNotifier) Notify(_ context.Context, n *Notification) error {
	text := fmt.Sprintf("*:rotating_light: Workflow escalation*\n%s", n.Text())
	_, _, err := s.client.PostMessage(s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionUsername("flowline"),
		slack.MsgOptionIconEmoji(":robot_face:"),
	)
	if err != nil {
		s.logger.Error("slack send failed",
			zap.String("channel", s.channel), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func (s *SlackNotifier) Close() error { return nil }
