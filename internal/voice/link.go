package voice

import "context"

// Target — куда подключаться.
type Target struct {
	GuildID   string
	ChannelID string
}

// LinkEvent — то, что транспорт сообщает о живом соединении.
type LinkEvent int

const (
	LinkReady LinkEvent = iota
	LinkDropped
	LinkSignalling
	LinkReconnecting
)

func (e LinkEvent) String() string {
	switch e {
	case LinkReady:
		return "ready"
	case LinkDropped:
		return "dropped"
	case LinkSignalling:
		return "signalling"
	case LinkReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// FrameSink принимает опус-фреймы.
type FrameSink interface {
	SendFrame(ctx context.Context, frame []byte) error
}

// Link — одно голосовое соединение.
//
// Dialer.Dial не блокируется: соединение возвращается полуоткрытым, а
// WaitReady ждёт подтверждения от платформы. Close разрывает соединение в
// любом состоянии и может вызываться повторно.
type Link interface {
	FrameSink
	WaitReady(ctx context.Context) error
	Events() <-chan LinkEvent
	Close() error
}

// Dialer открывает голосовые соединения и резолвит каналы.
type Dialer interface {
	Dial(ctx context.Context, guildID, channelID string) (Link, error)
	ChannelExists(guildID, channelID string) bool
}
