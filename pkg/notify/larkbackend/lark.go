// Package larkbackend adapts notify.Notifier to Lark/Feishu enterprise
// bots. Sends authenticate through the Lark SDK client's own app-token
// handling; the oauth2 client-credentials config the Backend holds is
// not used when sending.
package larkbackend

import (
	"context"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/freitascorp/sheriff/pkg/notify"
)

// Backend posts alerts to a single Lark chat.
type Backend struct {
	client *lark.Client
	chatID string
	oauth  *clientcredentials.Config
}

// New creates a Backend. appID/appSecret are exchanged for an access
// token lazily, on first Notify, by the SDK's own client.
func New(appID, appSecret, chatID, tokenURL string) *Backend {
	return &Backend{
		client: lark.NewClient(appID, appSecret),
		chatID: chatID,
		oauth: &clientcredentials.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			TokenURL:     tokenURL,
		},
	}
}

func (b *Backend) Notify(ctx context.Context, a notify.Alert) error {
	content := fmt.Sprintf(`{"text":"%s\n%s"}`, a.Title, a.Body)
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(b.chatID).
			MsgType("text").
			Content(content).
			Build()).
		Build()

	resp, err := b.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("larkbackend: send: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("larkbackend: %s", resp.Msg)
	}
	return nil
}
