package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordNotifier posts escalation notifications to one Discord channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordNotifier creates a Discord notifier. Delivery uses the REST
// API only, so the gateway websocket is never opened.
func NewDiscordNotifier(token, channelID string, logger *zap.Logger) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
		logger:    logger,
	}, nil
}

func (d *DiscordNotifier) Platform() string { return "discord" }

// Notify posts the escalation message to the configured channel.
func (d *DiscordNotifier) Notify(_ context.Context, n *Notification) error {
	content := fmt.Sprintf("**Workflow escalation**\n%s", n.Text())
	if _, err := d.session.ChannelMessageSend(d.channelID, content); err != nil {
		d.logger.Error("discord send failed",
			zap.String("channel", d.channelID), zap.Error(err))
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Close shuts down the Discord session.
func (d *DiscordNotifier) Close() error {
	return d.session.Close()
}
