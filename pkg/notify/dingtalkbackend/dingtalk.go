// Package dingtalkbackend adapts notify.Notifier to DingTalk enterprise
// robots. Credentials are obtained via an oauth2 client-credentials
// exchange before the first send, matching DingTalk's app token model.
// A stream client is also built from the same app credentials but is
// never started; alert delivery is a one-shot webhook push rather than
// a long-lived stream session.
package dingtalkbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	dingtalkclient "github.com/open-dingtalk/dingtalk-stream-sdk-go/client"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/freitascorp/sheriff/pkg/notify"
)

// Backend posts alerts to a single DingTalk robot webhook, authenticated
// with an app-level access token.
type Backend struct {
	webhookURL string
	oauth      *clientcredentials.Config
	identity   *dingtalkclient.StreamClient
}

// New creates a Backend. appKey/appSecret are exchanged for an access
// token on first Notify via tokenURL; they also configure a stream
// client that New builds but nothing starts.
func New(webhookURL, appKey, appSecret, tokenURL string) *Backend {
	return &Backend{
		webhookURL: webhookURL,
		oauth: &clientcredentials.Config{
			ClientID:     appKey,
			ClientSecret: appSecret,
			TokenURL:     tokenURL,
		},
		identity: dingtalkclient.NewStreamClient(
			dingtalkclient.WithAppCredential(dingtalkclient.NewAppCredentialConfig(appKey, appSecret)),
		),
	}
}

type dingtalkTextMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

func (b *Backend) Notify(ctx context.Context, a notify.Alert) error {
	msg := dingtalkTextMessage{MsgType: "text"}
	msg.Text.Content = fmt.Sprintf("%s\n%s", a.Title, a.Body)

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	httpClient := b.oauth.Client(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalkbackend: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dingtalkbackend: unexpected status %d", resp.StatusCode)
	}
	return nil
}
