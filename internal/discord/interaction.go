package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/EgorLis/afkfleet/internal/voice"
)

// Command — разобранная slash-команда.
type Command struct {
	Name    string
	GuildID string
	UserID  string
	// Admin — у вызвавшего есть право администратора в гильдии.
	Admin bool
}

// Message — ответ на команду.
type Message struct {
	Content string
	// Silent — без уведомления (SUPPRESS_NOTIFICATIONS).
	Silent bool
	Embed  *discordgo.MessageEmbed
}

// Replier отвечает на конкретную команду.
// Первый Reply отвечает на interaction, дальше всё уходит follow-up'ами.
type Replier interface {
	Reply(m Message) error
	FollowUp(m Message) error
}

func commandFromInteraction(i *discordgo.Interaction) Command {
	cmd := Command{GuildID: i.GuildID}
	if i.Type == discordgo.InteractionApplicationCommand {
		cmd.Name = i.ApplicationCommandData().Name
	}
	switch {
	case i.Member != nil:
		if i.Member.User != nil {
			cmd.UserID = i.Member.User.ID
		}
		cmd.Admin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
	case i.User != nil:
		cmd.UserID = i.User.ID
	}
	return cmd
}

type interactionReplier struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction

	mu      sync.Mutex
	replied bool
}

func (r *interactionReplier) Reply(m Message) error {
	r.mu.Lock()
	if r.replied {
		r.mu.Unlock()
		return r.FollowUp(m)
	}
	r.replied = true
	r.mu.Unlock()

	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: m.Content,
			Embeds:  embeds(m.Embed),
			Flags:   flags(m.Silent),
		},
	})
	if err != nil {
		return &voice.TransportError{Op: "interaction respond", Err: err}
	}
	return nil
}

func (r *interactionReplier) FollowUp(m Message) error {
	_, err := r.session.FollowupMessageCreate(r.interaction, false, &discordgo.WebhookParams{
		Content: m.Content,
		Embeds:  embeds(m.Embed),
		Flags:   flags(m.Silent),
	})
	if err != nil {
		return &voice.TransportError{Op: "interaction follow-up", Err: err}
	}
	return nil
}

func embeds(e *discordgo.MessageEmbed) []*discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{e}
}

func flags(silent bool) discordgo.MessageFlags {
	if silent {
		return discordgo.MessageFlagsSuppressNotifications
	}
	return 0
}
