package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load: defaults < YAML < .env < ENV. Оба файла необязательные.
// .env не перетирает то, что уже есть в окружении процесса.
func Load(yamlPath, envFile string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	if err := loadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("config env file: %w", err)
	}
	loadEnv(&cfg)
	cfg.Agents, cfg.Skipped = agentsFromEnv(MaxAgents)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func loadEnv(cfg *Config) {
	setString(&cfg.GuildID, "DISCORD_GUILD_ID")
	setString(&cfg.OwnerID, "DISCORD_OWNER_ID")

	setString(&cfg.Keepalive.Addr, "AFKFLEET_KEEPALIVE_ADDR")
	setBool(&cfg.Keepalive.Enabled, "AFKFLEET_KEEPALIVE")

	setString(&cfg.Logging.Level, "AFKFLEET_LOG_LEVEL")
	setString(&cfg.Logging.Format, "AFKFLEET_LOG_FORMAT")
	setString(&cfg.Logging.Service, "AFKFLEET_LOG_SERVICE")

	setBool(&cfg.Metrics.Enabled, "AFKFLEET_METRICS")
	setString(&cfg.Metrics.Endpoint, "AFKFLEET_METRICS_ENDPOINT")
	setBool(&cfg.Metrics.Insecure, "AFKFLEET_METRICS_INSECURE")
	setDuration(&cfg.Metrics.Interval, "AFKFLEET_METRICS_INTERVAL")

	setDuration(&cfg.Timings.ReadyTimeout, "AFKFLEET_READY_TIMEOUT")
	setDuration(&cfg.Timings.RecoveryWait, "AFKFLEET_RECOVERY_WAIT")
	setDuration(&cfg.Timings.Cooldown, "AFKFLEET_COOLDOWN")
	setDuration(&cfg.Timings.Settle, "AFKFLEET_SETTLE")
	setDuration(&cfg.Timings.Pacing, "AFKFLEET_PACING")
	setDuration(&cfg.Timings.PresenceReset, "AFKFLEET_PRESENCE_RESET")
	setDuration(&cfg.Timings.FrameInterval, "AFKFLEET_FRAME_INTERVAL")
}

// agentsFromEnv: BOT{n}_TOKEN или BOT_TOKEN_{n} + CLIENT_ID_{n}, n = 1..limit.
// Пустые слоты пропускаем молча, неполные уходят в skipped.
func agentsFromEnv(limit int) (agents []Agent, skipped []string) {
	for n := 1; n <= limit; n++ {
		name := fmt.Sprintf("Bot %d", n)
		token := os.Getenv(fmt.Sprintf("BOT%d_TOKEN", n))
		if token == "" {
			token = os.Getenv(fmt.Sprintf("BOT_TOKEN_%d", n))
		}
		appID := os.Getenv(fmt.Sprintf("CLIENT_ID_%d", n))

		switch {
		case token == "" && appID == "":
			continue
		case token == "" || appID == "":
			skipped = append(skipped, name)
			continue
		}
		agents = append(agents, Agent{Name: name, Token: token, AppID: appID})
	}
	return agents, skipped
}

// Validate — без гильдии и владельца процесс не стартует.
func (c *Config) Validate() error {
	if c.GuildID == "" || c.OwnerID == "" {
		return errors.New("missing critical environment variables: DISCORD_GUILD_ID, DISCORD_OWNER_ID")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	t := c.Timings
	if t.ReadyTimeout <= 0 || t.RecoveryWait <= 0 || t.FrameInterval <= 0 {
		return errors.New("timings.ready_timeout, recovery_wait and frame_interval must be > 0")
	}
	if t.Cooldown < 0 || t.Settle < 0 || t.Pacing < 0 || t.PresenceReset < 0 {
		return errors.New("timings must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Interval <= 0 {
		return errors.New("metrics.interval must be > 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
