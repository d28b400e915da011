// Package discordbackend adapts notify.Notifier to Discord via a bot
// session's channel message send.
package discordbackend

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/freitascorp/sheriff/pkg/notify"
)

// Backend posts alerts to a single Discord channel.
type Backend struct {
	session   *discordgo.Session
	channelID string
}

// New opens a Discord bot session and binds it to one channel.
func New(token, channelID string) (*Backend, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordbackend: new session: %w", err)
	}
	return &Backend{session: s, channelID: channelID}, nil
}

func (b *Backend) Notify(ctx context.Context, a notify.Alert) error {
	content := fmt.Sprintf("**%s**\n%s", a.Title, a.Body)
	_, err := b.session.ChannelMessageSend(b.channelID, content, discordgo.WithContext(ctx))
	return err
}
