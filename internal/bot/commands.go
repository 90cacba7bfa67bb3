package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/EgorLis/afkfleet/internal/discord"
	"github.com/EgorLis/afkfleet/internal/fleet"
	"github.com/EgorLis/afkfleet/internal/voice"
)

var (
	ErrUnauthorized   = errors.New("not allowed to use this command")
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandSpecs — набор slash-команд одного бота.
func CommandSpecs(name string) []discord.CommandSpec {
	return []discord.CommandSpec{
		{Name: "join", Description: fmt.Sprintf("Make %s join your voice channel", name)},
		{Name: "move", Description: fmt.Sprintf("Move %s to your current voice channel", name)},
		{Name: "leave", Description: fmt.Sprintf("Make %s leave the voice channel", name)},
		{Name: "ping", Description: "Check bot latency"},
		{Name: "uptime", Description: "Check how long the bot has been running"},
		{Name: "vcstatus", Description: "Check internal vs actual voice connection state"},
		{Name: "healthcheck", Description: "Show bot health stats"},
		{Name: "fixvoice", Description: "Forcefully destroy voice connection and clear states"},
		{Name: "reset", Description: "Full reset of bot state and voice connection"},
		{Name: "joinall", Description: "Make all bots join your current voice channel one by one"},
		{Name: "botlist", Description: "Display status and voice state for all bots"},
	}
}

// публичные команды, остальным нужен владелец или администратор
var public = map[string]bool{
	"ping":        true,
	"uptime":      true,
	"vcstatus":    true,
	"healthcheck": true,
}

func silent(format string, args ...any) discord.Message {
	return discord.Message{Content: fmt.Sprintf(format, args...), Silent: true}
}

func plain(format string, args ...any) discord.Message {
	return discord.Message{Content: fmt.Sprintf(format, args...)}
}

// HandleCommand выполняет slash-команду и отвечает через r.
// Ошибку отдаём только для логов: пользователь свой ответ уже получил.
func (a *Agent) HandleCommand(cmd discord.Command, r discord.Replier) error {
	a.log.Debug("command", "command", cmd.Name, "user", cmd.UserID, "guild", cmd.GuildID)

	if !public[cmd.Name] && !a.authorized(cmd) {
		if err := r.Reply(silent("❌ You are not allowed to use this command.")); err != nil {
			return err
		}
		return ErrUnauthorized
	}

	switch cmd.Name {

	// ---------- public ----------
	case "ping":
		return r.Reply(plain("🏓 [%s] Pong! Latency is %dms.", a.name, a.platform.Latency().Milliseconds()))

	case "uptime":
		return r.Reply(plain("⏳ [%s] Uptime: **%s**", a.name, formatUptime(a.Uptime())))

	case "vcstatus":
		return r.Reply(plain("%s", a.vcStatus(cmd.GuildID)))

	case "healthcheck":
		return r.Reply(discord.Message{Embed: a.healthEmbed(cmd.GuildID)})

	// ---------- voice ----------
	case "join":
		channel := a.platform.VoiceChannelOf(cmd.GuildID, cmd.UserID)
		if channel == "" {
			return r.Reply(silent("❌ Join a voice channel first."))
		}
		_, err := a.sup.Connect(voice.Target{GuildID: cmd.GuildID, ChannelID: channel})
		switch {
		case errors.Is(err, voice.ErrAlreadyConnected):
			return r.Reply(silent("⚠️ Bot is already connected."))
		case err != nil:
			a.log.Error("error joining voice", "channel", channel, "err", err)
			return errors.Join(err, r.Reply(silent("❌ Failed to join voice channel.")))
		}
		return r.Reply(silent("✅ [%s] Joined **%s**.", a.name, a.platform.ChannelName(channel)))

	case "move":
		channel := a.platform.VoiceChannelOf(cmd.GuildID, cmd.UserID)
		if channel == "" {
			return r.Reply(silent("❌ Join a voice channel first."))
		}
		_, err := a.sup.Move(voice.Target{GuildID: cmd.GuildID, ChannelID: channel})
		switch {
		case errors.Is(err, voice.ErrNotConnected):
			return r.Reply(silent("⚠️ Bot is not currently connected. Use `/join` instead."))
		case err != nil:
			a.log.Error("error moving voice", "channel", channel, "err", err)
			return errors.Join(err, r.Reply(silent("❌ Failed to move to the voice channel.")))
		}
		return r.Reply(silent("🚀 [%s] Moved to **%s**.", a.name, a.platform.ChannelName(channel)))

	case "leave":
		if err := a.sup.Disconnect(cmd.GuildID); err != nil {
			return r.Reply(silent("⚠️ [%s] I am not in a voice channel.", a.name))
		}
		return r.Reply(silent("✅ [%s] Left the voice channel.", a.name))

	case "fixvoice":
		a.sup.Reset(cmd.GuildID)
		return r.Reply(plain("🛠️ [%s] Voice connection destroyed and states cleared.", a.name))

	case "reset":
		return a.reset(cmd, r)

	// ---------- fleet ----------
	case "joinall":
		return a.joinAll(cmd, r)

	case "botlist":
		if a.reporter == nil {
			return r.Reply(silent("⚠️ Fleet status is not available."))
		}
		for _, page := range a.reporter.Report(cmd.GuildID) {
			// первая страница идёт ответом, остальные follow-up'ами
			if err := r.Reply(discord.Message{Content: page, Silent: true}); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
}

func (a *Agent) authorized(cmd discord.Command) bool {
	return cmd.Admin || (a.ownerID != "" && cmd.UserID == a.ownerID)
}

// reset: голос сносим сразу, статус уводим в invisible и через паузу возвращаем.
func (a *Agent) reset(cmd discord.Command, r discord.Replier) error {
	if err := r.Reply(plain("🔄 [%s] Force-leaving and resetting process...", a.name)); err != nil {
		return err
	}
	a.sup.Reset(cmd.GuildID)
	if err := a.platform.SetPresence(discord.StatusInvisible); err != nil {
		a.log.Warn("set presence failed", "err", discord.DescribeTransportError(err))
	}

	a.goBackground(func(ctx context.Context) {
		if err := a.sleep(ctx, a.presenceReset); err != nil {
			return
		}
		if err := a.platform.SetPresence(discord.StatusIdle); err != nil {
			a.log.Warn("set presence failed", "err", discord.DescribeTransportError(err))
		}
		if err := r.FollowUp(plain("✅ [%s] Bot has been refreshed and is ready.", a.name)); err != nil {
			a.log.Warn("reset follow-up failed", "err", err)
		}
	})
	return nil
}

func (a *Agent) joinAll(cmd discord.Command, r discord.Replier) error {
	if a.coord == nil {
		return r.Reply(silent("⚠️ Fleet is not available."))
	}
	channel := a.platform.VoiceChannelOf(cmd.GuildID, cmd.UserID)
	if channel == "" {
		return r.Reply(silent("❌ Join a voice channel first."))
	}
	if err := r.Reply(silent("🎬 Starting mass join to **%s**...", a.platform.ChannelName(channel))); err != nil {
		return err
	}

	target := voice.Target{GuildID: cmd.GuildID, ChannelID: channel}
	a.coord.MassJoin(a.ctx, target, func(o fleet.Outcome) {
		if err := r.FollowUp(silent("%s", o.Message())); err != nil {
			a.log.Warn("mass join follow-up failed", "agent", o.Agent, "err", err)
		}
	})
	return r.FollowUp(silent("🏁 Mass join process completed."))
}
