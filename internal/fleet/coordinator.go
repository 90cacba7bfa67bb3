package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EgorLis/afkfleet/internal/voice"
)

type Timings struct {
	ReadyTimeout time.Duration // сколько ждём ready у каждого бота
	Settle       time.Duration // пауза после сноса старой сессии
	Pacing       time.Duration // пауза между ботами
}

func DefaultTimings() Timings {
	return Timings{
		ReadyTimeout: 15 * time.Second,
		Settle:       500 * time.Millisecond,
		Pacing:       2 * time.Second,
	}
}

type OutcomeKind int

const (
	Joined OutcomeKind = iota
	TimedOut
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Joined:
		return "joined"
	case TimedOut:
		return "timeout"
	default:
		return "error"
	}
}

// Outcome — результат массового захода для одного бота.
type Outcome struct {
	Agent string
	Kind  OutcomeKind
	Err   error
}

// Message — строка для follow-up'а в чат.
func (o Outcome) Message() string {
	switch o.Kind {
	case Joined:
		return fmt.Sprintf("✅ [%s] Joined and starting silence loop.", o.Agent)
	case TimedOut:
		return fmt.Sprintf("❌ [%s] Timeout: Failed to reach READY state.", o.Agent)
	default:
		return fmt.Sprintf("❌ [%s] Error: %v", o.Agent, o.Err)
	}
}

type Coordinator struct {
	fleet   *Fleet
	timings Timings
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	// один массовый заход за раз, следующий ждёт
	mu sync.Mutex

	// OnOutcome — после каждого бота (метрики).
	OnOutcome func(Outcome)
}

func NewCoordinator(f *Fleet, t Timings, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{fleet: f, timings: t, log: log, sleep: sleepCtx}
}

// MassJoin по очереди заводит всех ботов в target.
// Ошибка одного бота не останавливает остальных; прерывает только ctx.
// notify вызывается сразу после каждого бота.
func (c *Coordinator) MassJoin(ctx context.Context, target voice.Target, notify func(Outcome)) []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := c.fleet.Members()
	out := make([]Outcome, 0, len(members))
	c.log.Info("mass join started", "guild", target.GuildID, "channel", target.ChannelID, "agents", len(members))

	for i, m := range members {
		if ctx.Err() != nil {
			break
		}
		o := c.joinOne(ctx, m, target)
		out = append(out, o)

		if o.Kind == Joined {
			c.log.Info("mass join: agent joined", "bot", o.Agent)
		} else {
			c.log.Warn("mass join: agent failed", "bot", o.Agent, "outcome", o.Kind.String(), "err", o.Err)
		}
		if c.OnOutcome != nil {
			c.OnOutcome(o)
		}
		if notify != nil {
			notify(o)
		}

		if i < len(members)-1 {
			if err := c.sleep(ctx, c.timings.Pacing); err != nil {
				break
			}
		}
	}

	c.log.Info("mass join completed", "guild", target.GuildID, "processed", len(out))
	return out
}

func (c *Coordinator) joinOne(ctx context.Context, m Member, target voice.Target) Outcome {
	sup := m.Supervisor()
	o := Outcome{Agent: m.Name()}

	// старую сессию сносим и даём платформе переварить
	if _, ok := sup.Session(target.GuildID); ok || sup.RecoveryPending(target.GuildID) {
		sup.Reset(target.GuildID)
		if err := c.sleep(ctx, c.timings.Settle); err != nil {
			o.Kind, o.Err = Failed, err
			return o
		}
	}

	err := sup.JoinAndWait(ctx, target, c.timings.ReadyTimeout)
	switch {
	case err == nil:
		o.Kind = Joined
	case errors.Is(err, voice.ErrConnectTimeout):
		o.Kind, o.Err = TimedOut, err
	default:
		o.Kind, o.Err = Failed, err
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
