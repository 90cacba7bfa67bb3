package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v5"

	"github.com/EgorLis/afkfleet/internal/voice"
)

// CommandSpec — описание slash-команды для регистрации.
type CommandSpec struct {
	Name        string
	Description string
}

// registerTries — сколько раз пробуем залить команды, прежде чем сдаться.
const registerTries = 5

// RegisterCommands перезаписывает набор команд приложения в гильдии.
// Временные ошибки (сеть, 429, 5xx) ретраятся с экспоненциальной паузой.
func (c *Client) RegisterCommands(ctx context.Context, guildID string, specs []CommandSpec) (int, error) {
	if c.appID == "" {
		return 0, errors.New("application id is not set")
	}
	cmds := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, s := range specs {
		cmds = append(cmds, &discordgo.ApplicationCommand{
			Name:        s.Name,
			Description: s.Description,
		})
	}

	op := func() (int, error) {
		created, err := c.session.ApplicationCommandBulkOverwrite(c.appID, guildID, cmds,
			discordgo.WithContext(ctx))
		if err != nil {
			if !retryable(err) {
				return 0, backoff.Permanent(err)
			}
			c.log.Warn("command registration failed, retrying", "guild", guildID, "err", err)
			return 0, err
		}
		return len(created), nil
	}

	n, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(registerTries))
	if err != nil {
		return 0, &voice.TransportError{Op: "register commands", Err: err}
	}
	c.log.Info("registered slash commands", "guild", guildID, "count", n)
	return n, nil
}

// retryable: 4xx кроме 429 означает ошибку в самом запросе.
func retryable(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Response == nil {
		return true
	}
	code := rest.Response.StatusCode
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
