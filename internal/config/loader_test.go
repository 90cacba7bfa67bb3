package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unset убирает переменную на время теста; t.Setenv вернёт её обратно.
func unset(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func clearAgents(t *testing.T) {
	t.Helper()
	for n := 1; n <= MaxAgents; n++ {
		unset(t, fmt.Sprintf("BOT%d_TOKEN", n))
		unset(t, fmt.Sprintf("BOT_TOKEN_%d", n))
		unset(t, fmt.Sprintf("CLIENT_ID_%d", n))
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 15*time.Second, cfg.Timings.ReadyTimeout)
	assert.Equal(t, 5*time.Second, cfg.Timings.RecoveryWait)
	assert.Equal(t, 2*time.Second, cfg.Timings.Cooldown)
	assert.Equal(t, 500*time.Millisecond, cfg.Timings.Settle)
	assert.Equal(t, 2*time.Second, cfg.Timings.Pacing)
	assert.Equal(t, "0.0.0.0:5000", cfg.Keepalive.Addr)
}

func TestLoadYAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afkfleet.yaml")
	content := `
guild_id: "g-yaml"
logging:
  level: debug
  format: json
timings:
  pacing: 3s
  settle: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := Defaults()
	require.NoError(t, loadYAML(&cfg, path))

	assert.Equal(t, "g-yaml", cfg.GuildID)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3*time.Second, cfg.Timings.Pacing)
	assert.Equal(t, 250*time.Millisecond, cfg.Timings.Settle)
	// не тронутые поля остаются дефолтными
	assert.Equal(t, 15*time.Second, cfg.Timings.ReadyTimeout)
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, loadYAML(&cfg, filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestEnvOverridesYAML(t *testing.T) {
	clearAgents(t)
	path := filepath.Join(t.TempDir(), "afkfleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("guild_id: g-yaml\nowner_id: o-yaml\n"), 0o644))

	t.Setenv("DISCORD_GUILD_ID", "g-env")
	t.Setenv("DISCORD_OWNER_ID", "")
	t.Setenv("AFKFLEET_PACING", "100ms")
	t.Setenv("AFKFLEET_COOLDOWN", "not-a-duration")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "g-env", cfg.GuildID)
	assert.Equal(t, "o-yaml", cfg.OwnerID)
	assert.Equal(t, 100*time.Millisecond, cfg.Timings.Pacing)
	assert.Equal(t, 2*time.Second, cfg.Timings.Cooldown)
}

func TestDotEnvFillsMissingOnly(t *testing.T) {
	clearAgents(t)
	unset(t, "DISCORD_GUILD_ID")
	t.Setenv("DISCORD_OWNER_ID", "owner-from-process")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"DISCORD_GUILD_ID=guild-from-file\nDISCORD_OWNER_ID=owner-from-file\n"), 0o644))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "guild-from-file", cfg.GuildID)
	assert.Equal(t, "owner-from-process", cfg.OwnerID)
}

func TestLoadRequiresGuildAndOwner(t *testing.T) {
	clearAgents(t)
	unset(t, "DISCORD_GUILD_ID")
	t.Setenv("DISCORD_OWNER_ID", "o")

	_, err := Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_GUILD_ID")
}

func TestAgentsFromEnv(t *testing.T) {
	clearAgents(t)
	t.Setenv("BOT1_TOKEN", "t1")
	t.Setenv("CLIENT_ID_1", "c1")
	t.Setenv("BOT_TOKEN_2", "t2")
	t.Setenv("CLIENT_ID_2", "c2")
	t.Setenv("BOT3_TOKEN", "t3") // без client id
	t.Setenv("BOT5_TOKEN", "t5")
	t.Setenv("BOT_TOKEN_5", "ignored")
	t.Setenv("CLIENT_ID_5", "c5")

	agents, skipped := agentsFromEnv(MaxAgents)
	assert.Equal(t, []Agent{
		{Name: "Bot 1", Token: "t1", AppID: "c1"},
		{Name: "Bot 2", Token: "t2", AppID: "c2"},
		{Name: "Bot 5", Token: "t5", AppID: "c5"},
	}, agents)
	assert.Equal(t, []string{"Bot 3"}, skipped)
}

func TestValidate(t *testing.T) {
	base := Defaults()
	base.GuildID, base.OwnerID = "g", "o"
	require.NoError(t, base.Validate())

	bad := base
	bad.Logging.Format = "xml"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Timings.ReadyTimeout = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Timings.Pacing = -time.Second
	assert.Error(t, bad.Validate())

	bad = base
	bad.Metrics.Enabled, bad.Metrics.Interval = true, 0
	assert.Error(t, bad.Validate())
}

func TestMetricsFromEnv(t *testing.T) {
	clearAgents(t)
	t.Setenv("DISCORD_GUILD_ID", "g")
	t.Setenv("DISCORD_OWNER_ID", "o")
	t.Setenv("AFKFLEET_METRICS", "true")
	t.Setenv("AFKFLEET_METRICS_ENDPOINT", "collector:4317")
	t.Setenv("AFKFLEET_METRICS_INSECURE", "1")
	t.Setenv("AFKFLEET_METRICS_INTERVAL", "10s")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Metrics{
		Enabled:  true,
		Endpoint: "collector:4317",
		Insecure: true,
		Interval: 10 * time.Second,
	}, cfg.Metrics)
}
