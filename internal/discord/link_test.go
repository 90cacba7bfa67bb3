package discord

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/afkfleet/internal/voice"
)

const selfID = "me"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New("Bot 1", "token", "app", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	c.session.State.User = &discordgo.User{ID: selfID, Username: "bot"}
	c.session.DataReady = true
	c.voiceLeave = func(*discordgo.VoiceConnection) error { return nil }
	return c
}

func drain(l *link) []voice.LinkEvent {
	var out []voice.LinkEvent
	for {
		select {
		case ev := <-l.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func upLink(c *Client) *link {
	l := newLink(c, "g", "c1")
	l.joining = false
	l.vc = &discordgo.VoiceConnection{}
	l.up = true
	return l
}

func TestLinkLostDuringReconnectIsNewDrop(t *testing.T) {
	l := upLink(newTestClient(t))

	l.markDown()
	l.markReconnecting()
	l.markDown() // опрос во время реконнекта молчит
	l.markLost()

	assert.Equal(t, []voice.LinkEvent{
		voice.LinkDropped, voice.LinkReconnecting, voice.LinkDropped,
	}, drain(l))
}

func TestLinkPollingDoesNotRepeatDrop(t *testing.T) {
	l := upLink(newTestClient(t))

	for range 3 {
		l.markDown()
		l.markReconnecting()
	}
	l.markUp()

	assert.Equal(t, []voice.LinkEvent{
		voice.LinkDropped, voice.LinkReconnecting, voice.LinkReady,
	}, drain(l))
}

func TestLinkSignallingAfterDrop(t *testing.T) {
	l := upLink(newTestClient(t))

	l.markDown()
	l.markSignalling()
	l.markSignalling()
	l.markLost()
	l.markSignalling()
	l.markUp()

	assert.Equal(t, []voice.LinkEvent{
		voice.LinkDropped, voice.LinkSignalling,
		voice.LinkDropped, voice.LinkSignalling,
		voice.LinkReady,
	}, drain(l))
}

func TestLinkLostWhileIdleIsIgnored(t *testing.T) {
	l := newLink(newTestClient(t), "g", "c1")
	l.markLost()
	l.markSignalling() // vc ещё нет
	assert.Empty(t, drain(l))
}

func TestLinkSilentAfterClose(t *testing.T) {
	l := upLink(newTestClient(t))

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	l.markDown()
	l.markLost()
	l.markReconnecting()
	l.markUp()

	assert.Empty(t, drain(l))
	select {
	case <-l.released:
	default:
		t.Fatal("closed link must release the guild")
	}
}

func TestVoiceStateFiltering(t *testing.T) {
	c := newTestClient(t)
	l := upLink(c)
	c.links["g"] = l

	update := func(guildID, userID, channelID string) {
		c.onVoiceState(c.session, &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
			GuildID: guildID, UserID: userID, ChannelID: channelID,
		}})
	}

	update("g", "someone", "")
	update("other", selfID, "")
	c.onVoiceState(c.session, &discordgo.VoiceStateUpdate{})
	assert.Empty(t, drain(l))

	update("g", selfID, "")
	assert.Equal(t, []voice.LinkEvent{voice.LinkDropped}, drain(l))

	update("g", selfID, "c1")
	assert.Equal(t, []voice.LinkEvent{voice.LinkSignalling}, drain(l))
}

func TestDialSerialisesJoinsPerGuild(t *testing.T) {
	c := newTestClient(t)

	var (
		mu        sync.Mutex
		joins     []string
		active    int
		maxActive int
	)
	gate := make(chan struct{})
	c.voiceJoin = func(_, channelID string, _, _ bool) (*discordgo.VoiceConnection, error) {
		mu.Lock()
		joins = append(joins, channelID)
		first := len(joins) == 1
		active++
		maxActive = max(maxActive, active)
		mu.Unlock()

		if first {
			<-gate
		}

		mu.Lock()
		active--
		mu.Unlock()
		return &discordgo.VoiceConnection{Ready: true}, nil
	}
	var leaves atomic.Int32
	c.voiceLeave = func(*discordgo.VoiceConnection) error {
		leaves.Add(1)
		return nil
	}
	joined := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(joins)
	}

	ctx := context.Background()
	_, err := c.Dial(ctx, "g", "a")
	require.NoError(t, err)
	second, err := c.Dial(ctx, "g", "b")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return joined() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return joined() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(gate)
	readyCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, second.WaitReady(readyCtx))

	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, joins)
	assert.Equal(t, 1, maxActive)
	mu.Unlock()
	// первый заход закрыли на полпути, его голос отпущен
	assert.EqualValues(t, 1, leaves.Load())

	require.NoError(t, second.Close())
	assert.EqualValues(t, 2, leaves.Load())
}

func TestCloseDuringJoinReleasesAfterJoin(t *testing.T) {
	c := newTestClient(t)
	entered, gate := make(chan struct{}), make(chan struct{})
	c.voiceJoin = func(_, _ string, _, _ bool) (*discordgo.VoiceConnection, error) {
		close(entered)
		<-gate
		return &discordgo.VoiceConnection{}, nil
	}
	var leaves atomic.Int32
	c.voiceLeave = func(*discordgo.VoiceConnection) error {
		leaves.Add(1)
		return nil
	}

	lk, err := c.Dial(context.Background(), "g", "a")
	require.NoError(t, err)
	l := lk.(*link)
	<-entered
	require.NoError(t, l.Close())
	assert.Nil(t, c.linkFor("g"))

	close(gate)
	select {
	case <-l.released:
	case <-time.After(time.Second):
		t.Fatal("join did not release the guild")
	}
	assert.EqualValues(t, 1, leaves.Load())
}
