package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/freitascorp/sheriff/pkg/config"
	"github.com/freitascorp/sheriff/pkg/history"
	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/notify"
	"github.com/freitascorp/sheriff/pkg/notify/dingtalkbackend"
	"github.com/freitascorp/sheriff/pkg/notify/discordbackend"
	"github.com/freitascorp/sheriff/pkg/notify/larkbackend"
	"github.com/freitascorp/sheriff/pkg/notify/slackbackend"
	"github.com/freitascorp/sheriff/pkg/notify/telegrambackend"
	"github.com/freitascorp/sheriff/pkg/notify/tencentbackend"
	"github.com/freitascorp/sheriff/pkg/summarize"
	"github.com/freitascorp/sheriff/pkg/summarize/anthropicbackend"
	"github.com/freitascorp/sheriff/pkg/summarize/copilotbackend"
	"github.com/freitascorp/sheriff/pkg/summarize/openaibackend"
)

// buildNotifyHub constructs one backend per name in cfg.Notify.Backends,
// skipping (and logging) any that fail to construct so a single bad
// credential never keeps the daemon from starting, per SPEC_FULL.md
// C9's "backend construction never blocks Model mutation."
func buildNotifyHub(cfg config.DaemonConfig, logger *slog.Logger) *notify.Hub {
	var backends []notify.Notifier
	for _, name := range cfg.Notify.Backends {
		b, err := buildNotifyBackend(name, cfg.Notify)
		if err != nil {
			logger.Warn("notify: skipping backend", "backend", name, "error", err)
			continue
		}
		backends = append(backends, b)
	}
	return notify.NewHub(backends, 2, 64, logger)
}

func buildNotifyBackend(name string, cfg config.NotifyConfig) (notify.Notifier, error) {
	switch name {
	case "slack":
		return slackbackend.New(cfg.Slack.WebhookToken, cfg.Slack.Channel), nil
	case "discord":
		return discordbackend.New(cfg.Discord.BotToken, cfg.Discord.ChannelID)
	case "telegram":
		return telegrambackend.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	case "lark":
		return larkbackend.New(cfg.Lark.AppID, cfg.Lark.AppSecret, cfg.Lark.ChatID, cfg.Lark.TokenURL), nil
	case "dingtalk":
		return dingtalkbackend.New(cfg.Dingtalk.WebhookURL, cfg.Dingtalk.ClientID, cfg.Dingtalk.ClientSecret, cfg.Dingtalk.TokenURL), nil
	case "tencent":
		return tencentbackend.New(cfg.Tencent.AppID, cfg.Tencent.AppSecret, cfg.Tencent.ChannelID, cfg.Tencent.TokenURL)
	default:
		return nil, fmt.Errorf("wiring: unknown notify backend %q", name)
	}
}

// noBackend is the Summarizer used when no summarize.backend is
// configured: it always errors, so Batcher.closeBatch falls back to its
// templated digest on every batch rather than needing a nil check.
type noBackend struct{}

func (noBackend) Summarize(context.Context, []model.Event) (string, error) {
	return "", fmt.Errorf("wiring: no summarize backend configured")
}

// buildSummarizer selects the Incident Summarizer's LLM backend. An
// empty or unknown selection yields noBackend, so summarize.Batcher
// always falls back to its templated digest.
func buildSummarizer(cfg config.SummarizeConfig) summarize.Summarizer {
	switch cfg.Backend {
	case "anthropic":
		return anthropicbackend.New(cfg.APIKey, anthropic.Model(cfg.Model))
	case "openai":
		return openaibackend.New(cfg.APIKey, cfg.Model)
	case "copilot":
		return copilotbackend.New(cfg.Model)
	default:
		return noBackend{}
	}
}

// buildHistoryStore selects the Event History Store backend.
func buildHistoryStore(cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return history.NewMemoryStore(), nil
	case "file":
		return history.NewFileStore(cfg.Path)
	case "sqlite":
		return history.NewSQLiteStore(cfg.Path)
	case "postgres":
		return history.NewPostgresStoreFromDSN(cfg.Postgres)
	default:
		return nil, fmt.Errorf("wiring: unknown history backend %q", cfg.Backend)
	}
}
