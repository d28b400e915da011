// Package slackbackend adapts notify.Notifier to Slack, via the
// webhook-token-authenticated chat.postMessage call.
package slackbackend

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/freitascorp/sheriff/pkg/notify"
)

// Backend posts alerts to a single Slack channel.
type Backend struct {
	client  *slack.Client
	channel string
}

// New creates a Backend authenticated with a bot token.
func New(token, channel string) *Backend {
	return &Backend{client: slack.New(token), channel: channel}
}

func (b *Backend) Notify(ctx context.Context, a notify.Alert) error {
	text := fmt.Sprintf("*%s*\n%s", a.Title, a.Body)
	_, _, err := b.client.PostMessageContext(ctx, b.channel, slack.MsgOptionText(text, false))
	return err
}
