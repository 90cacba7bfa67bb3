// Package voicetest — фейковый транспорт для тестов поверх voice.Dialer/voice.Link.
package voicetest

import (
	"context"
	"errors"
	"sync"

	"github.com/EgorLis/afkfleet/internal/voice"
)

// Mode — как ведёт себя новое соединение.
type Mode int

const (
	// Ready — соединение готово сразу.
	Ready Mode = iota
	// Manual — готовность/ошибку выставляет тест (MarkReady/Fail).
	Manual
	// Hang — никогда не становится готовым.
	Hang
	// Refuse — Dial сразу возвращает ошибку.
	Refuse
)

var ErrRefused = errors.New("voicetest: dial refused")

// Dialer — фейковый voice.Dialer.
type Dialer struct {
	mu    sync.Mutex
	mode  Mode
	links []*Link
	gone  map[string]bool
	gate  <-chan struct{}
}

func NewDialer(mode Mode) *Dialer {
	return &Dialer{mode: mode, gone: map[string]bool{}}
}

func (d *Dialer) SetMode(m Mode) {
	d.mu.Lock()
	d.mode = m
	d.mu.Unlock()
}

// BlockClose — Close новых соединений висит, пока gate не закроют.
func (d *Dialer) BlockClose(gate <-chan struct{}) {
	d.mu.Lock()
	d.gate = gate
	d.mu.Unlock()
}

// RemoveChannel — канал «удалён», ChannelExists вернёт false.
func (d *Dialer) RemoveChannel(channelID string) {
	d.mu.Lock()
	d.gone[channelID] = true
	d.mu.Unlock()
}

func (d *Dialer) Dial(_ context.Context, guildID, channelID string) (voice.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == Refuse {
		return nil, ErrRefused
	}
	l := newLink(guildID, channelID)
	l.gate = d.gate
	if d.mode == Ready {
		l.MarkReady()
	}
	d.links = append(d.links, l)
	return l, nil
}

func (d *Dialer) ChannelExists(_, channelID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return channelID != "" && !d.gone[channelID]
}

// Dials — сколько раз звали Dial успешно.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.links)
}

// Link возвращает i-е созданное соединение.
func (d *Dialer) Link(i int) *Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.links[i]
}

// Last — последнее созданное соединение (nil если не было).
func (d *Dialer) Last() *Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.links) == 0 {
		return nil
	}
	return d.links[len(d.links)-1]
}

// Link — фейковое соединение.
type Link struct {
	GuildID   string
	ChannelID string

	events chan voice.LinkEvent
	gate   <-chan struct{}

	mu       sync.Mutex
	ready    chan struct{}
	settled  bool
	readyErr error
	closed   bool
	frames   int
}

func newLink(guildID, channelID string) *Link {
	return &Link{
		GuildID:   guildID,
		ChannelID: channelID,
		events:    make(chan voice.LinkEvent, 16),
		ready:     make(chan struct{}),
	}
}

func (l *Link) MarkReady() { l.settle(nil) }

func (l *Link) Fail(err error) { l.settle(err) }

func (l *Link) settle(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settled {
		return
	}
	l.settled = true
	l.readyErr = err
	close(l.ready)
}

// Emit — смоделировать событие от платформы.
func (l *Link) Emit(ev voice.LinkEvent) { l.events <- ev }

func (l *Link) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ready:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.readyErr
	}
}

func (l *Link) Events() <-chan voice.LinkEvent { return l.events }

func (l *Link) SendFrame(_ context.Context, _ []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("voicetest: link closed")
	}
	l.frames++
	return nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	if l.gate != nil {
		<-l.gate
	}
	return nil
}

func (l *Link) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Link) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}
