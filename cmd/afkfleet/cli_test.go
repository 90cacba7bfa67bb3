package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/EgorLis/afkfleet/internal/config"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestVersion(t *testing.T) {
	out, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestRunRequiresGuildAndOwner(t *testing.T) {
	unsetEnv(t, "DISCORD_GUILD_ID")
	unsetEnv(t, "DISCORD_OWNER_ID")

	noFile := filepath.Join(t.TempDir(), "missing")
	_, err := executeCLI(t, "run", "--config", noFile, "--env-file", noFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_GUILD_ID")
}

func TestWireAppBuildsFleetInOrder(t *testing.T) {
	for n := 1; n <= config.MaxAgents; n++ {
		unsetEnv(t, fmt.Sprintf("BOT%d_TOKEN", n))
		unsetEnv(t, fmt.Sprintf("BOT_TOKEN_%d", n))
		unsetEnv(t, fmt.Sprintf("CLIENT_ID_%d", n))
	}
	t.Setenv("DISCORD_GUILD_ID", "g")
	t.Setenv("DISCORD_OWNER_ID", "o")
	t.Setenv("BOT2_TOKEN", "t2")
	t.Setenv("CLIENT_ID_2", "c2")
	t.Setenv("BOT_TOKEN_7", "t7")
	t.Setenv("CLIENT_ID_7", "c7")
	t.Setenv("BOT9_TOKEN", "t9")

	noFile := filepath.Join(t.TempDir(), "missing")
	cfg, err := config.Load(noFile, noFile)
	require.NoError(t, err)

	a, err := wireApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Equal(t, 2, a.fleet.Len())

	var names []string
	for _, m := range a.fleet.Members() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"Bot 2", "Bot 7"}, names)

	// до логина никто не онлайн и не стримит
	for _, st := range a.status() {
		assert.False(t, st.Online)
		assert.Zero(t, st.Streaming)
	}
	for _, agent := range a.agents {
		agent.Stop()
	}
}

func TestWireAppExportsMetricsWhenEnabled(t *testing.T) {
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })
	t.Setenv("DISCORD_GUILD_ID", "g")
	t.Setenv("DISCORD_OWNER_ID", "o")
	t.Setenv("AFKFLEET_METRICS", "true")
	t.Setenv("AFKFLEET_METRICS_ENDPOINT", "127.0.0.1:4317")
	t.Setenv("AFKFLEET_METRICS_INSECURE", "true")

	noFile := filepath.Join(t.TempDir(), "missing")
	cfg, err := config.Load(noFile, noFile)
	require.NoError(t, err)

	a, err := wireApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	for _, agent := range a.agents {
		agent.Stop()
	}
	a.close()
}
