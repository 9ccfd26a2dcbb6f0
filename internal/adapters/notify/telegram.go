package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sgmartin/ltdbot/internal/ports"
)

// Telegram delivers heartbeats to a chat. It implements ports.Notifier.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	paper  bool
}

// NewTelegram authenticates the bot once at startup.
func NewTelegram(token string, chatID int64, paper bool) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, paper: paper}, nil
}

// Heartbeat sends the liveness summary as one Markdown message.
func (t *Telegram) Heartbeat(_ context.Context, hb ports.Heartbeat) error {
	mode := "LIVE"
	if t.paper {
		mode = "PAPER"
	}
	text := fmt.Sprintf("*ltdbot* `%s`\ntick %d\nmatches: %d\nin-play: %d\nassigned: %d",
		mode, hb.Tick, hb.Total, hb.InPlay, hb.Assigned)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify.Telegram: send: %w", err)
	}
	return nil
}

// Multi fans a heartbeat out to several notifiers, keeping the first error.
type Multi []ports.Notifier

// Heartbeat delivers to every notifier even when one fails.
func (m Multi) Heartbeat(ctx context.Context, hb ports.Heartbeat) error {
	var firstErr error
	for _, n := range m {
		if err := n.Heartbeat(ctx, hb); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
