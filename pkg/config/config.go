// Package config implements the Daemon Config & Bootstrap layer (C12):
// process-level settings for the sheriff daemon itself — bus address,
// HA peers, maintenance cron, notifier/summarizer/history backend
// selection — distinct from the Config Grammar that describes the
// deputy/command/script Model.
package config

import (
	"fmt"
	"os"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// BusConfig configures the orders/info transport and the diagnostic HA
// peer-status side channel.
type BusConfig struct {
	ListenAddr   string   `yaml:"listen_addr"    env:"SHERIFF_BUS_LISTEN_ADDR"`
	HAPeers      []string `yaml:"ha_peers"       env:"SHERIFF_BUS_HA_PEERS" envSeparator:","`
	HAStatusAddr string   `yaml:"ha_status_addr" env:"SHERIFF_BUS_HA_STATUS_ADDR"`
}

// SlackConfig holds Slack backend credentials.
type SlackConfig struct {
	WebhookToken string `yaml:"webhook_token" env:"SHERIFF_SLACK_TOKEN"`
	Channel      string `yaml:"channel"       env:"SHERIFF_SLACK_CHANNEL"`
}

// DiscordConfig holds Discord backend credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"  env:"SHERIFF_DISCORD_TOKEN"`
	ChannelID string `yaml:"channel_id" env:"SHERIFF_DISCORD_CHANNEL_ID"`
}

// TelegramConfig holds Telegram backend credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"SHERIFF_TELEGRAM_TOKEN"`
	ChatID   int64  `yaml:"chat_id"   env:"SHERIFF_TELEGRAM_CHAT_ID"`
}

// LarkConfig holds Lark/Feishu app credentials.
type LarkConfig struct {
	AppID     string `yaml:"app_id"     env:"SHERIFF_LARK_APP_ID"`
	AppSecret string `yaml:"app_secret" env:"SHERIFF_LARK_APP_SECRET"`
	ChatID    string `yaml:"chat_id"    env:"SHERIFF_LARK_CHAT_ID"`
	TokenURL  string `yaml:"token_url"  env:"SHERIFF_LARK_TOKEN_URL"`
}

// DingtalkConfig holds DingTalk robot webhook and app credentials.
type DingtalkConfig struct {
	WebhookURL   string `yaml:"webhook_url"   env:"SHERIFF_DINGTALK_WEBHOOK_URL"`
	ClientID     string `yaml:"client_id"     env:"SHERIFF_DINGTALK_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"SHERIFF_DINGTALK_CLIENT_SECRET"`
	TokenURL     string `yaml:"token_url"     env:"SHERIFF_DINGTALK_TOKEN_URL"`
}

// TencentConfig holds Tencent QQ bot credentials.
type TencentConfig struct {
	AppID     string `yaml:"app_id"     env:"SHERIFF_TENCENT_APP_ID"`
	AppSecret string `yaml:"app_secret" env:"SHERIFF_TENCENT_APP_SECRET"`
	ChannelID string `yaml:"channel_id" env:"SHERIFF_TENCENT_CHANNEL_ID"`
	TokenURL  string `yaml:"token_url"  env:"SHERIFF_TENCENT_TOKEN_URL"`
}

// NotifyConfig selects and configures the Alerting Fan-out backends.
type NotifyConfig struct {
	Backends []string       `yaml:"backends" env:"SHERIFF_NOTIFY_BACKENDS" envSeparator:","`
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
	Lark     LarkConfig     `yaml:"lark"`
	Dingtalk DingtalkConfig `yaml:"dingtalk"`
	Tencent  TencentConfig  `yaml:"tencent"`
}

// SummarizeConfig selects the Incident Summarizer's LLM backend.
type SummarizeConfig struct {
	Backend      string `yaml:"backend"       env:"SHERIFF_SUMMARIZE_BACKEND"`
	APIKey       string `yaml:"api_key"       env:"SHERIFF_SUMMARIZE_API_KEY"`
	Model        string `yaml:"model"         env:"SHERIFF_SUMMARIZE_MODEL"`
	DebounceSecs int    `yaml:"debounce_secs" env:"SHERIFF_SUMMARIZE_DEBOUNCE_SECS"`
}

// HistoryConfig selects the Historian's durable backend.
type HistoryConfig struct {
	Backend  string `yaml:"backend"  env:"SHERIFF_HISTORY_BACKEND"` // "memory", "file", "sqlite", "postgres"
	Path     string `yaml:"path"     env:"SHERIFF_HISTORY_PATH"`
	Postgres string `yaml:"postgres" env:"SHERIFF_HISTORY_POSTGRES_DSN"`
}

// DaemonConfig is the full set of process-level bootstrap settings for
// the sheriff daemon.
type DaemonConfig struct {
	Bus              BusConfig       `yaml:"bus"`
	MaintenanceCron  string          `yaml:"maintenance_cron"    env:"SHERIFF_MAINTENANCE_CRON"`
	OrdersPeriodMS   int             `yaml:"orders_period_ms"    env:"SHERIFF_ORDERS_PERIOD_MS"`
	StaleInfoSeconds int             `yaml:"stale_info_seconds"  env:"SHERIFF_STALE_INFO_SECONDS"`
	Notify           NotifyConfig    `yaml:"notify"`
	Summarize        SummarizeConfig `yaml:"summarize"`
	History          HistoryConfig   `yaml:"history"`
}

// Defaults matching spec.md's publisher/stale-info windows.
const (
	DefaultOrdersPeriodMS   = 1000
	DefaultStaleInfoSeconds = 30
)

// Load reads path as YAML, overlays SHERIFF_* environment variables, and
// validates MaintenanceCron. An empty path skips the YAML step and
// starts from zero-value defaults before the environment overlay.
func Load(path string) (DaemonConfig, error) {
	var cfg DaemonConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment overlay: %w", err)
	}

	if cfg.OrdersPeriodMS <= 0 {
		cfg.OrdersPeriodMS = DefaultOrdersPeriodMS
	}
	if cfg.StaleInfoSeconds <= 0 {
		cfg.StaleInfoSeconds = DefaultStaleInfoSeconds
	}

	if cfg.MaintenanceCron != "" && !gronx.IsValid(cfg.MaintenanceCron) {
		return cfg, fmt.Errorf("config: invalid maintenance_cron %q", cfg.MaintenanceCron)
	}

	return cfg, nil
}
