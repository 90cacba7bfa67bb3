// Package config собирает настройки флота: defaults < YAML < .env < ENV.
package config

import "time"

// DefaultConfigFile — YAML, который ищем по умолчанию (необязательный).
const DefaultConfigFile = "afkfleet.yaml"

// DefaultEnvFile — .env рядом с бинарником (необязательный).
const DefaultEnvFile = ".env"

// MaxAgents — сколько слотов BOT{n}_TOKEN проверяем.
const MaxAgents = 20

type Config struct {
	GuildID   string    `yaml:"guild_id"`
	OwnerID   string    `yaml:"owner_id"`
	Keepalive Keepalive `yaml:"keepalive"`
	Logging   Logging   `yaml:"logging"`
	Timings   Timings   `yaml:"timings"`
	Metrics   Metrics   `yaml:"metrics"`

	// Агенты приходят только из окружения, токены в YAML не кладём.
	Agents []Agent `yaml:"-"`
	// Skipped — слоты, где есть токен или client id, но не оба.
	Skipped []string `yaml:"-"`
}

type Keepalive struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

type Logging struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // text | json
	Service string `yaml:"service"`
}

// Metrics — OTLP/gRPC-экспорт счётчиков. Пустой Endpoint берётся из
// OTEL_EXPORTER_OTLP_ENDPOINT.
type Metrics struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Insecure bool          `yaml:"insecure"`
	Interval time.Duration `yaml:"interval"`
}

type Timings struct {
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`
	RecoveryWait  time.Duration `yaml:"recovery_wait"`
	Cooldown      time.Duration `yaml:"cooldown"`
	Settle        time.Duration `yaml:"settle"`
	Pacing        time.Duration `yaml:"pacing"`
	PresenceReset time.Duration `yaml:"presence_reset"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// Agent — учётка одного бота.
type Agent struct {
	Name  string
	Token string
	AppID string
}

func Defaults() Config {
	return Config{
		Keepalive: Keepalive{Addr: "0.0.0.0:5000", Enabled: true},
		Logging:   Logging{Level: "info", Format: "text", Service: "afkfleet"},
		Metrics:   Metrics{Interval: 30 * time.Second},
		Timings: Timings{
			ReadyTimeout:  15 * time.Second,
			RecoveryWait:  5 * time.Second,
			Cooldown:      2 * time.Second,
			Settle:        500 * time.Millisecond,
			Pacing:        2 * time.Second,
			PresenceReset: 2 * time.Second,
			FrameInterval: 20 * time.Millisecond,
		},
	}
}
