package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
bus:
  listen_addr: ":7667"
  ha_peers: ["sheriff-b.internal:7667"]
maintenance_cron: "*/30 * * * *"
orders_period_ms: 1000
stale_info_seconds: 30
notify:
  backends: ["slack", "discord"]
  slack:
    webhook_token: "xoxb-fake"
summarize:
  backend: "anthropic"
history:
  backend: "sqlite"
  path: "/var/lib/sheriff/events.db"
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "daemon.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadParsesYAML(t *testing.T) {
	p := writeTempConfig(t, sampleYAML)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":7667", cfg.Bus.ListenAddr)
	assert.Equal(t, []string{"sheriff-b.internal:7667"}, cfg.Bus.HAPeers)
	assert.Equal(t, "*/30 * * * *", cfg.MaintenanceCron)
	assert.Equal(t, []string{"slack", "discord"}, cfg.Notify.Backends)
	assert.Equal(t, "xoxb-fake", cfg.Notify.Slack.WebhookToken)
	assert.Equal(t, "anthropic", cfg.Summarize.Backend)
	assert.Equal(t, "sqlite", cfg.History.Backend)
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	p := writeTempConfig(t, "bus:\n  listen_addr: \":7667\"\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultOrdersPeriodMS, cfg.OrdersPeriodMS)
	assert.Equal(t, DefaultStaleInfoSeconds, cfg.StaleInfoSeconds)
}

func TestLoadRejectsInvalidMaintenanceCron(t *testing.T) {
	p := writeTempConfig(t, "maintenance_cron: \"not a cron\"\n")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestEnvironmentOverlayWinsOverYAML(t *testing.T) {
	p := writeTempConfig(t, sampleYAML)
	t.Setenv("SHERIFF_BUS_LISTEN_ADDR", ":9999")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Bus.ListenAddr)
}

func TestLoadWithEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOrdersPeriodMS, cfg.OrdersPeriodMS)
	assert.Empty(t, cfg.MaintenanceCron)
}

func TestNextMaintenanceTickAdvances(t *testing.T) {
	cfg := DaemonConfig{MaintenanceCron: "*/30 * * * *"}
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := cfg.NextMaintenanceTick(after)
	require.NoError(t, err)
	assert.True(t, next.After(after))
}
