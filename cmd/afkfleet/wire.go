package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EgorLis/afkfleet/internal/bot"
	"github.com/EgorLis/afkfleet/internal/config"
	"github.com/EgorLis/afkfleet/internal/discord"
	"github.com/EgorLis/afkfleet/internal/fleet"
	"github.com/EgorLis/afkfleet/internal/keepalive"
	"github.com/EgorLis/afkfleet/internal/telemetry"
	"github.com/EgorLis/afkfleet/internal/voice"
)

type app struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *telemetry.Metrics
	// досылает метрики при остановке
	shutdownMetrics telemetry.ShutdownFunc

	agents []*bot.Agent
	fleet  *fleet.Fleet
}

// wireApp собирает агентов и флот. Gateway ещё не открыт.
func wireApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	shutdownMetrics, err := telemetry.InitMeterProvider(context.Background(), cfg.Metrics, cfg.Logging.Service)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if cfg.Metrics.Enabled {
		log.Info("otlp metrics export enabled", "endpoint", cfg.Metrics.Endpoint, "interval", cfg.Metrics.Interval)
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	for _, name := range cfg.Skipped {
		log.Error("missing token or client ID, agent skipped", "bot", name)
	}

	t := cfg.Timings
	opts := bot.Options{
		GuildID: cfg.GuildID,
		OwnerID: cfg.OwnerID,
		Timings: bot.Timings{
			Voice: voice.Timings{
				ReadyTimeout:  t.ReadyTimeout,
				RecoveryWait:  t.RecoveryWait,
				Cooldown:      t.Cooldown,
				FrameInterval: t.FrameInterval,
			},
			PresenceReset: t.PresenceReset,
		},
		Log:     log,
		Metrics: metrics,
	}

	a := &app{cfg: cfg, log: log, metrics: metrics, shutdownMetrics: shutdownMetrics}
	members := make([]fleet.Member, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		client, err := discord.New(ac.Name, ac.Token, ac.AppID, log.With("bot", ac.Name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ac.Name, err)
		}
		o := opts
		o.Name = ac.Name
		agent := bot.New(o, client)
		a.agents = append(a.agents, agent)
		members = append(members, agent)
	}
	a.fleet = fleet.New(members...)

	coord := fleet.NewCoordinator(a.fleet, fleet.Timings{
		ReadyTimeout: t.ReadyTimeout,
		Settle:       t.Settle,
		Pacing:       t.Pacing,
	}, log.With("component", "fleet"))
	coord.OnOutcome = func(o fleet.Outcome) {
		metrics.FleetOutcome(context.Background(), o.Agent, o.Kind.String())
	}
	rep := fleet.NewReporter(a.fleet)
	for _, agent := range a.agents {
		agent.UseFleet(coord, rep)
	}
	return a, nil
}

// close досылает метрики.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownMetrics(ctx); err != nil {
		a.log.Warn("metrics shutdown failed", "err", err)
	}
}

// status — снимок для /status keepalive-сервера.
func (a *app) status() []keepalive.AgentState {
	out := make([]keepalive.AgentState, 0, len(a.agents))
	for _, agent := range a.agents {
		st := keepalive.AgentState{Name: agent.Name(), Online: agent.Online()}
		for _, s := range agent.Supervisor().Sessions() {
			if s.Phase.Streaming() {
				st.Streaming++
			}
		}
		out = append(out, st)
	}
	return out
}
