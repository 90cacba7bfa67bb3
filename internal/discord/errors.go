package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
)

// Коды закрытия голосового websocket'а Discord.
const (
	voiceCloseAuthFailed     = 4004
	voiceCloseSessionInvalid = 4006
	voiceCloseSessionTimeout = 4009
	voiceCloseDisconnected   = 4014
	voiceCloseServerCrashed  = 4015
)

var closeReasons = map[int]string{
	websocket.CloseNormalClosure:   "closed normally",
	websocket.CloseGoingAway:       "server is going away",
	websocket.CloseAbnormalClosure: "connection lost",
	websocket.CloseTryAgainLater:   "server busy, try again later",
	voiceCloseAuthFailed:           "authentication failed",
	voiceCloseSessionInvalid:       "voice session is no longer valid",
	voiceCloseSessionTimeout:       "voice session timed out",
	voiceCloseDisconnected:         "kicked or channel deleted",
	voiceCloseServerCrashed:        "voice server crashed",
}

// DescribeTransportError превращает ошибку платформы в короткую причину для логов и ответов.
func DescribeTransportError(err error) string {
	if err == nil {
		return ""
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if reason, ok := closeReasons[ce.Code]; ok {
			return fmt.Sprintf("websocket closed (%d): %s", ce.Code, reason)
		}
		return fmt.Sprintf("websocket closed (%d)", ce.Code)
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		switch {
		case rest.Message != nil && rest.Message.Message != "":
			return fmt.Sprintf("discord api error %d: %s", rest.Message.Code, rest.Message.Message)
		case rest.Response != nil:
			return "discord api: " + rest.Response.Status
		}
	}

	if errors.Is(err, discordgo.ErrWSAlreadyOpen) {
		return "gateway already open"
	}
	return err.Error()
}
