package discord

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/EgorLis/afkfleet/internal/voice"
)

const (
	// как часто проверяем vc.Ready
	pollInterval = 250 * time.Millisecond
	// сколько ждём, пока OpusSend примет фрейм
	sendTimeout = time.Second
)

var errNoVoice = errors.New("voice connection is not established")

// link — голосовое соединение поверх discordgo.VoiceConnection.
//
// discordgo сам переподключает голосовой websocket; мы только наблюдаем.
// vc.Ready ушёл в false: обрыв. Если бот всё ещё числится в канале, значит
// библиотека реконнектится. Пришёл новый VoiceStateUpdate с каналом:
// платформа заново согласует сессию. VoiceStateUpdate без канала означает,
// что бота убрали из голоса, и это обрыв в любом состоянии.
type link struct {
	c         *Client
	guildID   string
	channelID string

	events  chan voice.LinkEvent
	readyCh chan struct{}
	stop    chan struct{}

	// after — released предыдущего соединения в гильдии (nil, если его нет).
	// released закрывается, когда это соединение отпустило голос.
	after    chan struct{}
	released chan struct{}

	mu         sync.Mutex
	vc         *discordgo.VoiceConnection
	err        error
	joining    bool
	closed     bool
	up         bool
	recovering bool
	speaking   bool
}

func newLink(c *Client, guildID, channelID string) *link {
	return &link{
		c:         c,
		guildID:   guildID,
		channelID: channelID,
		events:    make(chan voice.LinkEvent, 8),
		readyCh:   make(chan struct{}),
		stop:      make(chan struct{}),
		released:  make(chan struct{}),
		joining:   true,
	}
}

// join блокируется внутри discordgo до готовности (или его собственного таймаута).
func (l *link) join() {
	if l.after != nil {
		<-l.after
	}

	l.mu.Lock()
	if l.closed {
		l.joining = false
		l.mu.Unlock()
		l.c.released(l)
		return
	}
	l.mu.Unlock()

	// selfMute: true, selfDeaf: false
	vc, err := l.c.voiceJoin(l.guildID, l.channelID, true, false)

	l.mu.Lock()
	l.joining = false
	if l.closed {
		l.mu.Unlock()
		if vc != nil {
			if err := l.c.voiceLeave(vc); err != nil {
				l.c.log.Warn("stale voice disconnect failed", "guild", l.guildID, "err", err)
			}
		}
		l.c.released(l)
		return
	}
	l.vc = vc
	if err != nil {
		l.err = &voice.TransportError{Op: "voice join", Err: err}
	} else {
		l.up = true
	}
	close(l.readyCh)
	l.mu.Unlock()

	if err != nil {
		l.c.reportTransport(l.err)
		return
	}
	go l.watch()
}

func (l *link) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.readyCh:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.err
	}
}

func (l *link) Events() <-chan voice.LinkEvent { return l.events }

func (l *link) SendFrame(ctx context.Context, frame []byte) error {
	l.mu.Lock()
	vc, speaking := l.vc, l.speaking
	l.mu.Unlock()
	if vc == nil {
		return errNoVoice
	}

	vc.RLock()
	ready, out := vc.Ready, vc.OpusSend
	vc.RUnlock()
	if !ready || out == nil {
		return errNoVoice
	}
	if !speaking {
		if err := vc.Speaking(true); err != nil {
			return &voice.TransportError{Op: "voice speaking", Err: err}
		}
		l.mu.Lock()
		l.speaking = true
		l.mu.Unlock()
	}

	t := time.NewTimer(sendTimeout)
	defer t.Stop()
	select {
	case out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errors.New("opus send queue is stuck")
	}
}

// Close можно звать повторно. Если заход ещё идёт, голос отпустит сам join.
func (l *link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stop)
	joining := l.joining
	vc := l.vc
	speaking := l.speaking
	l.mu.Unlock()

	l.c.forget(l)
	if joining {
		return nil
	}
	defer l.c.released(l)
	if vc == nil {
		return nil
	}
	if speaking {
		_ = vc.Speaking(false)
	}
	if err := l.c.voiceLeave(vc); err != nil {
		return &voice.TransportError{Op: "voice disconnect", Err: err}
	}
	return nil
}

// watch опрашивает vc.Ready, отдельного события у discordgo нет.
func (l *link) watch() {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
		}

		l.mu.Lock()
		vc := l.vc
		l.mu.Unlock()
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()

		if ready {
			l.markUp()
			continue
		}
		l.markDown()
		// бот всё ещё в канале, discordgo переподключает голос сам
		if l.c.VoiceChannelOf(l.guildID, l.c.UserID()) != "" {
			l.markReconnecting()
		}
	}
}

func (l *link) markUp() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.up || l.closed {
		return
	}
	l.up, l.recovering = true, false
	l.emitLocked(voice.LinkReady)
}

// markDown: опрос увидел, что соединение не готово. Во время восстановления
// молчит, иначе каждый тик опроса заново открывал бы обрыв.
func (l *link) markDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.up || l.closed {
		return
	}
	l.up, l.speaking = false, false
	l.emitLocked(voice.LinkDropped)
}

// markLost: платформа убрала бота из канала. Срабатывает и посреди
// восстановления, включая провал собственного реконнекта discordgo.
func (l *link) markLost() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if (!l.up && !l.recovering) || l.closed {
		return
	}
	l.up, l.recovering, l.speaking = false, false, false
	l.emitLocked(voice.LinkDropped)
}

func (l *link) markSignalling() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.up || l.recovering || l.closed || l.vc == nil {
		return
	}
	l.recovering = true
	l.emitLocked(voice.LinkSignalling)
}

func (l *link) markReconnecting() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.up || l.recovering || l.closed {
		return
	}
	l.recovering = true
	l.emitLocked(voice.LinkReconnecting)
}

func (l *link) emitLocked(ev voice.LinkEvent) {
	select {
	case l.events <- ev:
	default:
		l.c.log.Warn("voice event dropped", "guild", l.guildID, "event", ev.String())
	}
}
