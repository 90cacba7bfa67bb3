package discord

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/EgorLis/afkfleet/internal/voice"
)

// PresenceActivity — активность, которую бот показывает в статусе.
const PresenceActivity = "AFK Presence"

// Статусы присутствия.
const (
	StatusIdle      = "idle"
	StatusInvisible = "invisible"
)

var errNotReady = errors.New("gateway session is not ready")

// Client — один бот: сессия discordgo + голосовые соединения.
type Client struct {
	name    string
	appID   string
	session *discordgo.Session
	log     *slog.Logger

	// "События" (аналог EventEmitter)
	OnReady          func()
	OnCommand        func(cmd Command, r Replier)
	OnTransportError func(error)

	// заход и выход из голоса; в тестах подменяются
	voiceJoin  func(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
	voiceLeave func(vc *discordgo.VoiceConnection) error

	mu    sync.Mutex
	links map[string]*link         // guild -> активное соединение
	tails map[string]chan struct{} // guild -> released последнего соединения
}

func New(name, token, appID string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, &voice.TransportError{Op: "session", Err: err}
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	s.StateEnabled = true

	c := &Client{
		name:    name,
		appID:   appID,
		session: s,
		log:     log,
		links:   make(map[string]*link),
		tails:   make(map[string]chan struct{}),

		voiceJoin:  s.ChannelVoiceJoin,
		voiceLeave: func(vc *discordgo.VoiceConnection) error { return vc.Disconnect() },
	}
	s.AddHandler(c.onReady)
	s.AddHandler(c.onInteraction)
	s.AddHandler(c.onVoiceState)
	s.AddHandler(c.onDisconnect)
	return c, nil
}

// Open подключается к gateway.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return &voice.TransportError{Op: "gateway open", Err: err}
	}
	return nil
}

// Close рвёт все голосовые соединения и gateway.
func (c *Client) Close() error {
	c.mu.Lock()
	links := make([]*link, 0, len(c.links))
	for _, l := range c.links {
		links = append(links, l)
	}
	c.mu.Unlock()
	for _, l := range links {
		_ = l.Close()
	}
	if err := c.session.Close(); err != nil {
		return &voice.TransportError{Op: "gateway close", Err: err}
	}
	return nil
}

// Online — залогинен ли бот и получил ли Ready.
func (c *Client) Online() bool {
	c.session.RLock()
	ready := c.session.DataReady
	c.session.RUnlock()
	return ready && c.session.State.User != nil
}

func (c *Client) UserID() string {
	if u := c.session.State.User; u != nil {
		return u.ID
	}
	return ""
}

// Tag — имя бота для отчётов ("" если не залогинен).
func (c *Client) Tag() string {
	if u := c.session.State.User; u != nil {
		return u.String()
	}
	return ""
}

func (c *Client) Latency() time.Duration { return c.session.HeartbeatLatency() }

// SetPresence: активность показываем только в idle.
func (c *Client) SetPresence(status string) error {
	data := discordgo.UpdateStatusData{Status: status}
	if status == StatusIdle {
		data.Activities = []*discordgo.Activity{{Name: PresenceActivity, Type: discordgo.ActivityTypeGame}}
	}
	if err := c.session.UpdateStatusComplex(data); err != nil {
		return &voice.TransportError{Op: "presence", Err: err}
	}
	return nil
}

// VoiceChannelOf — в каком голосовом канале пользователь по данным платформы.
func (c *Client) VoiceChannelOf(guildID, userID string) string {
	if userID == "" {
		return ""
	}
	vs, err := c.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// ChannelName — имя канала из кэша, иначе сам id.
func (c *Client) ChannelName(channelID string) string {
	ch, err := c.session.State.Channel(channelID)
	if err != nil || ch == nil {
		return channelID
	}
	return ch.Name
}

// ChannelExists — резолвится ли канал из кэша гильдии.
func (c *Client) ChannelExists(guildID, channelID string) bool {
	if channelID == "" {
		return false
	}
	ch, err := c.session.State.Channel(channelID)
	return err == nil && ch != nil && ch.GuildID == guildID
}

// Dial начинает заход в голосовой канал и сразу возвращает полуоткрытое соединение.
//
// discordgo держит один VoiceConnection на гильдию, поэтому заходы в одну
// гильдию идут по очереди: новый ждёт, пока предыдущее соединение отпустит голос.
func (c *Client) Dial(_ context.Context, guildID, channelID string) (voice.Link, error) {
	if !c.Online() {
		return nil, &voice.TransportError{Op: "voice join", Err: errNotReady}
	}
	l := newLink(c, guildID, channelID)

	c.mu.Lock()
	prev := c.links[guildID]
	c.links[guildID] = l
	l.after = c.tails[guildID]
	c.tails[guildID] = l.released
	c.mu.Unlock()
	if prev != nil {
		go func() { _ = prev.Close() }()
	}

	go l.join()
	return l, nil
}

// ReleaseStaleVoice рвёт голосовые соединения, оставшиеся в сессии discordgo
// без нашего учёта (например, после повторного Ready).
func (c *Client) ReleaseStaleVoice() int {
	c.session.RLock()
	stale := make([]*discordgo.VoiceConnection, 0, len(c.session.VoiceConnections))
	for guildID, vc := range c.session.VoiceConnections {
		c.mu.Lock()
		_, ours := c.links[guildID]
		c.mu.Unlock()
		if !ours {
			stale = append(stale, vc)
		}
	}
	c.session.RUnlock()

	for _, vc := range stale {
		c.log.Info("found existing voice connection, cleaning up", "guild", vc.GuildID)
		if err := vc.Disconnect(); err != nil {
			c.reportTransport(&voice.TransportError{Op: "voice cleanup", Err: err})
		}
	}
	return len(stale)
}

func (c *Client) forget(l *link) {
	c.mu.Lock()
	if c.links[l.guildID] == l {
		delete(c.links, l.guildID)
	}
	c.mu.Unlock()
}

// released: соединение отпустило голос, следующий заход в гильдию может идти.
func (c *Client) released(l *link) {
	c.mu.Lock()
	if c.tails[l.guildID] == l.released {
		delete(c.tails, l.guildID)
	}
	c.mu.Unlock()
	close(l.released)
}

func (c *Client) linkFor(guildID string) *link {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links[guildID]
}

func (c *Client) reportTransport(err error) {
	if c.OnTransportError != nil {
		c.OnTransportError(err)
	}
}

// ========================= gateway handlers =========================

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	c.log.Info("logged in", "user", r.User.String(), "id", r.User.ID, "guilds", len(r.Guilds))
	if c.OnReady != nil {
		c.OnReady()
	}
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.reportTransport(&voice.TransportError{Op: "gateway", Err: errors.New("disconnected")})
}

// onVoiceState ловит изменения голосового состояния самого бота.
func (c *Client) onVoiceState(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || s.State.User == nil || vs.UserID != s.State.User.ID {
		return
	}
	l := c.linkFor(vs.GuildID)
	if l == nil {
		return
	}
	if vs.ChannelID == "" {
		l.markLost()
		return
	}
	l.markSignalling()
}

func (c *Client) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	cmd := commandFromInteraction(i.Interaction)
	if c.OnCommand == nil {
		return
	}
	c.OnCommand(cmd, &interactionReplier{session: s, interaction: i.Interaction})
}
