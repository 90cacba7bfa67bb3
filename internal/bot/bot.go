package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/EgorLis/afkfleet/internal/discord"
	"github.com/EgorLis/afkfleet/internal/fleet"
	"github.com/EgorLis/afkfleet/internal/telemetry"
	"github.com/EgorLis/afkfleet/internal/voice"
)

// Platform — всё, что агенту нужно от Discord. Реализует *discord.Client.
type Platform interface {
	voice.Dialer

	Open() error
	Close() error
	Online() bool
	UserID() string
	Tag() string
	Latency() time.Duration
	SetPresence(status string) error
	VoiceChannelOf(guildID, userID string) string
	ChannelName(channelID string) string
	RegisterCommands(ctx context.Context, guildID string, specs []discord.CommandSpec) (int, error)
	ReleaseStaleVoice() int
}

type Timings struct {
	Voice voice.Timings
	// PresenceReset — сколько бот висит invisible при /reset.
	PresenceReset time.Duration
}

type Options struct {
	Name    string
	GuildID string
	OwnerID string
	Timings Timings
	Log     *slog.Logger
	Metrics *telemetry.Metrics
}

// Agent — один бот флота: Discord-сессия, голосовой Supervisor и команды.
type Agent struct {
	name    string
	guildID string
	ownerID string

	platform Platform
	sup      *voice.Supervisor
	log      *slog.Logger
	metrics  *telemetry.Metrics

	presenceReset time.Duration
	startedAt     time.Time
	sleep         func(ctx context.Context, d time.Duration) error

	// флотовые сервисы, появляются после сборки флота
	coord    *fleet.Coordinator
	reporter *fleet.Reporter

	registerOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New собирает агента поверх discord.Client и вешает его обработчики на события клиента.
func New(opts Options, c *discord.Client) *Agent {
	a := newAgent(opts, c)

	c.OnReady = a.HandleReady
	c.OnCommand = func(cmd discord.Command, r discord.Replier) {
		if err := a.HandleCommand(cmd, r); err != nil && !errors.Is(err, ErrUnauthorized) {
			a.log.Warn("command failed", "command", cmd.Name, "user", cmd.UserID, "err", err)
		}
	}
	c.OnTransportError = a.HandleTransportError
	return a
}

func newAgent(opts Options, p Platform) *Agent {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("bot", opts.Name)

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		name:          opts.Name,
		guildID:       opts.GuildID,
		ownerID:       opts.OwnerID,
		platform:      p,
		log:           log,
		metrics:       opts.Metrics,
		presenceReset: opts.Timings.PresenceReset,
		startedAt:     time.Now(),
		sleep:         sleepCtx,
		ctx:           ctx,
		cancel:        cancel,
	}
	a.sup = voice.NewSupervisor(opts.Name, p, opts.Timings.Voice, log)
	a.sup.OnPhase = a.onPhase
	a.sup.OnRecovery = a.onRecovery
	return a
}

// UseFleet отдаёт агенту флотовые сервисы для /joinall и /botlist.
func (a *Agent) UseFleet(coord *fleet.Coordinator, rep *fleet.Reporter) {
	a.coord = coord
	a.reporter = rep
}

func (a *Agent) Name() string                  { return a.name }
func (a *Agent) Supervisor() *voice.Supervisor { return a.sup }
func (a *Agent) Online() bool                  { return a.platform.Online() }
func (a *Agent) Tag() string                   { return a.platform.Tag() }

func (a *Agent) PlatformChannel(guildID string) string {
	return a.platform.VoiceChannelOf(guildID, a.platform.UserID())
}

// Uptime — с момента создания агента.
func (a *Agent) Uptime() time.Duration { return time.Since(a.startedAt) }

// Start подключает бота к gateway. Дальше всё идёт через события.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("agent already started")
	}
	if err := a.platform.Open(); err != nil {
		return err
	}
	a.started = true
	a.log.Info("gateway connected")
	return nil
}

// Stop сносит голосовые сессии, ждёт фоновые задачи и закрывает gateway.
// Повторный вызов ничего не делает.
func (a *Agent) Stop() {
	a.mu.Lock()
	started := a.started
	a.started = false
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
	a.sup.Shutdown()
	if !started {
		return
	}
	if err := a.platform.Close(); err != nil {
		a.log.Warn("gateway close failed", "err", discord.DescribeTransportError(err))
	}
}

// RegisterCommands заливает slash-команды в гильдию.
func (a *Agent) RegisterCommands(ctx context.Context) error {
	_, err := a.platform.RegisterCommands(ctx, a.guildID, CommandSpecs(a.name))
	return err
}

// ========================= events =========================

// HandleReady: чистим голос, оставшийся с прошлой сессии, ставим статус;
// команды регистрируем один раз за жизнь процесса.
func (a *Agent) HandleReady() {
	if n := a.platform.ReleaseStaleVoice(); n > 0 {
		a.log.Info("released stale voice connections", "count", n)
	}
	if err := a.platform.SetPresence(discord.StatusIdle); err != nil {
		a.log.Warn("set presence failed", "err", discord.DescribeTransportError(err))
	}
	a.registerOnce.Do(func() {
		a.goBackground(func(ctx context.Context) {
			if err := a.RegisterCommands(ctx); err != nil {
				a.log.Error("command deployment failed", "err", discord.DescribeTransportError(err))
			}
		})
	})
}

func (a *Agent) HandleTransportError(err error) {
	a.log.Warn("discord transport error", "err", discord.DescribeTransportError(err))
}

func (a *Agent) onPhase(info voice.SessionInfo, from voice.Phase) {
	a.log.Debug("voice phase", "session", info.ID, "guild", info.GuildID,
		"from", from.String(), "to", info.Phase.String())
	if from == voice.PhaseIdle && info.Phase == voice.PhaseConnecting {
		a.metrics.SessionStarted(a.ctx, a.name)
	}
	a.metrics.PhaseChanged(a.ctx, a.name, info.Phase.String())
}

func (a *Agent) onRecovery(info voice.SessionInfo) {
	a.log.Info("voice reconnecting to last channel", "session", info.ID,
		"guild", info.GuildID, "channel", info.ChannelID, "retry", info.Retries)
	a.metrics.Recovery(a.ctx, a.name)
}

// goBackground — фоновая задача, которую Stop дождётся.
func (a *Agent) goBackground(fn func(ctx context.Context)) {
	if a.ctx.Err() != nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
