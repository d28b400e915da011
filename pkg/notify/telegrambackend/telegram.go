// Package telegrambackend adapts notify.Notifier to Telegram via telego.
package telegrambackend

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/freitascorp/sheriff/pkg/notify"
)

// Backend posts alerts to a single Telegram chat.
type Backend struct {
	bot    *telego.Bot
	chatID int64
}

// New creates a Backend authenticated with a bot token.
func New(token string, chatID int64) (*Backend, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegrambackend: new bot: %w", err)
	}
	return &Backend{bot: bot, chatID: chatID}, nil
}

func (b *Backend) Notify(ctx context.Context, a notify.Alert) error {
	text := fmt.Sprintf("%s\n%s", a.Title, a.Body)
	_, err := b.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: b.chatID},
		Text:   text,
	})
	return err
}
