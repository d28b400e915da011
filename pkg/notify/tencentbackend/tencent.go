// Package tencentbackend adapts notify.Notifier to a Tencent QQ guild
// bot via botgo, authenticated through botgo's QQ bot token source; the
// oauth2 client-credentials config the Backend holds is not used when
// sending.
package tencentbackend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tencent-connect/botgo"
	"github.com/tencent-connect/botgo/dto"
	"github.com/tencent-connect/botgo/openapi"
	"github.com/tencent-connect/botgo/token"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/freitascorp/sheriff/pkg/notify"
)

// Backend posts alerts as messages to a single QQ guild channel.
type Backend struct {
	api       openapi.OpenAPI
	channelID string
	oauth     *clientcredentials.Config
}

// New creates a Backend authenticated with appID/appSecret.
func New(appID, appSecret, channelID, tokenURL string) (*Backend, error) {
	if _, err := strconv.ParseUint(appID, 10, 64); err != nil {
		return nil, fmt.Errorf("tencentbackend: app_id must be numeric: %w", err)
	}
	tk := token.NewQQBotTokenSource(&token.QQBotCredentials{AppID: appID, AppSecret: appSecret})
	api := botgo.NewOpenAPI(appID, tk).WithTimeout(10 * time.Second)
	return &Backend{
		api:       api,
		channelID: channelID,
		oauth: &clientcredentials.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			TokenURL:     tokenURL,
		},
	}, nil
}

func (b *Backend) Notify(ctx context.Context, a notify.Alert) error {
	content := fmt.Sprintf("%s\n%s", a.Title, a.Body)
	_, err := b.api.PostMessage(ctx, b.channelID, &dto.MessageToCreate{Content: content})
	if err != nil {
		return fmt.Errorf("tencentbackend: send: %w", err)
	}
	return nil
}
