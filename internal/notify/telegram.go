package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/solpilot/solpilot/internal/config"
)

// TelegramSink pushes notifications to a fixed Telegram chat.
type TelegramSink struct {
	cfg config.TelegramConfig
	bot *tgbotapi.BotAPI
}

// NewTelegramSink creates a TelegramSink. The bot connection is established
// lazily on the first send.
func NewTelegramSink(cfg config.TelegramConfig) *TelegramSink {
	return &TelegramSink{cfg: cfg}
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Send(ctx context.Context, n Notification) error {
	if t.cfg.Token == "" || t.cfg.ChatID == 0 {
		return fmt.Errorf("telegram: token or chat id not configured")
	}
	if t.bot == nil {
		bot, err := tgbotapi.NewBotAPI(t.cfg.Token)
		if err != nil {
			return fmt.Errorf("telegram: create bot: %w", err)
		}
		t.bot = bot
	}

	msg := tgbotapi.NewMessage(t.cfg.ChatID, n.Title+"\n"+n.Body)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}
