// Package fleet — операции над всеми ботами сразу: массовый заход и сверка состояний.
//
// Fleet собирается один раз при старте и дальше только читается,
// поэтому Coordinator и Reporter держат его без блокировок.
package fleet

import "github.com/EgorLis/afkfleet/internal/voice"

// Member — то, что флоту нужно знать о боте.
type Member interface {
	Name() string
	Supervisor() *voice.Supervisor
	// Online — залогинен и получил Ready.
	Online() bool
	Tag() string
	// PlatformChannel — в каком канале бота видит сама платформа ("" если нигде).
	PlatformChannel(guildID string) string
}

type Fleet struct {
	members []Member
}

func New(members ...Member) *Fleet {
	return &Fleet{members: append([]Member(nil), members...)}
}

// Members — в порядке добавления.
func (f *Fleet) Members() []Member {
	return append([]Member(nil), f.members...)
}

func (f *Fleet) Len() int { return len(f.members) }
