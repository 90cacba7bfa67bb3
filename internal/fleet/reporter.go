package fleet

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/EgorLis/afkfleet/internal/voice"
)

// PageLimit — после этого размера страница уходит в чат (у Discord потолок 2000).
const PageLimit = 1700

type Consistency int

const (
	Consistent Consistency = iota
	// Ghost — у нас есть сессия, а платформа бота ни в каком канале не видит.
	Ghost
	// Mismatch — платформа видит бота в канале, а у нас сессии нет (или канал другой).
	Mismatch
)

func (c Consistency) String() string {
	switch c {
	case Ghost:
		return "ghost"
	case Mismatch:
		return "mismatch"
	default:
		return "consistent"
	}
}

// Classify сравнивает наше состояние с тем, что видит платформа.
func Classify(hasSession bool, sessionChannel, platformChannel string) Consistency {
	switch {
	case hasSession && platformChannel == "":
		return Ghost
	case !hasSession && platformChannel != "":
		return Mismatch
	case hasSession && sessionChannel != platformChannel:
		// кто-то перетащил бота руками
		return Mismatch
	default:
		return Consistent
	}
}

// AgentStatus — снимок одного бота для отчёта.
type AgentStatus struct {
	Name            string
	Tag             string
	Online          bool
	Session         *voice.SessionInfo
	PlatformChannel string
	State           Consistency
}

type Reporter struct {
	fleet *Fleet
}

func NewReporter(f *Fleet) *Reporter {
	return &Reporter{fleet: f}
}

// Collect снимает состояние всех ботов в гильдии, в порядке флота.
func (r *Reporter) Collect(guildID string) []AgentStatus {
	members := r.fleet.Members()
	out := make([]AgentStatus, 0, len(members))
	for _, m := range members {
		st := AgentStatus{Name: m.Name(), Online: m.Online()}
		if st.Online {
			st.Tag = m.Tag()
			st.PlatformChannel = m.PlatformChannel(guildID)
		}
		if info, ok := m.Supervisor().Session(guildID); ok {
			st.Session = &info
		}
		var sessionChannel string
		if st.Session != nil {
			sessionChannel = st.Session.ChannelID
		}
		st.State = Classify(st.Session != nil, sessionChannel, st.PlatformChannel)
		out = append(out, st)
	}
	return out
}

// Report — текст отчёта, порезанный на страницы не длиннее PageLimit + один блок.
func (r *Reporter) Report(guildID string) []string {
	statuses := r.Collect(guildID)

	var pages []string
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 **%d-Bot Network Status**\n\n", len(statuses))

	for _, st := range statuses {
		writeStatus(&b, st)
		if utf8.RuneCountInString(b.String()) > PageLimit {
			pages = append(pages, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		pages = append(pages, b.String())
	}
	return pages
}

func writeStatus(b *strings.Builder, st AgentStatus) {
	tag := "OFFLINE"
	if st.Online {
		tag = "**" + st.Tag + "**"
	}
	loggedIn := "No"
	if st.Online {
		loggedIn = "Yes"
	}
	internal := "❌ Disconnected"
	if st.Session != nil {
		internal = "✅ " + st.Session.Phase.String()
	}
	platform := "Not in VC"
	if st.PlatformChannel != "" {
		platform = "<#" + st.PlatformChannel + ">"
	}

	fmt.Fprintf(b, "• [%s] %s\n", st.Name, tag)
	fmt.Fprintf(b, "  - Logged In: %s\n", loggedIn)
	fmt.Fprintf(b, "  - Internal VC: %s\n", internal)
	fmt.Fprintf(b, "  - Discord VC: %s%s\n\n", platform, label(st))
}

func label(st AgentStatus) string {
	switch st.State {
	case Ghost:
		return " 👻 **GHOST STATE** (Connection exists but no channel)"
	case Mismatch:
		if st.Session != nil {
			return fmt.Sprintf(" ⚠️ **DISCORD MISMATCH** (connection targets <#%s>)", st.Session.ChannelID)
		}
		return " ⚠️ **DISCORD MISMATCH** (Discord thinks in VC but no connection)"
	default:
		return ""
	}
}
