package notify

import (
	"context"
	"fmt"

	slackgo "github.com/slack-go/slack"

	"github.com/solpilot/solpilot/internal/config"
)

// SlackSink posts notifications to a fixed Slack channel.
type SlackSink struct {
	cfg    config.SlackConfig
	client *slackgo.Client
}

// NewSlackSink creates a SlackSink.
func NewSlackSink(cfg config.SlackConfig) *SlackSink {
	return &SlackSink{cfg: cfg}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, n Notification) error {
	if s.cfg.BotToken == "" || s.cfg.Channel == "" {
		return fmt.Errorf("slack: bot token or channel not configured")
	}
	if s.client == nil {
		s.client = slackgo.New(s.cfg.BotToken)
	}

	_, _, err := s.client.PostMessageContext(ctx, s.cfg.Channel,
		slackgo.MsgOptionText(fmt.Sprintf("*%s*\n%s", n.Title, n.Body), false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}
