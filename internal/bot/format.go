package bot

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	colorGreen = 0x57F287
	colorRed   = 0xED4245
)

// formatUptime: "1h 2m 3s", часы не сворачиваются в дни.
func formatUptime(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", s/3600, (s%3600)/60, s%60)
}

// vcStatus — что думаем мы и есть ли живое соединение.
func (a *Agent) vcStatus(guildID string) string {
	internal := "Not thinking it's in any channel"
	if ch := a.sup.Tracked(guildID); ch != "" {
		internal = fmt.Sprintf("Thinking it's in <#%s>", ch)
	}
	connection := "No actual voice connection"
	if info, ok := a.sup.Session(guildID); ok {
		connection = fmt.Sprintf("Actual connection exists (%s)", info.Phase)
	}
	return fmt.Sprintf("📊 [%s] **VC Status:**\n- Internal: %s\n- Connection: %s", a.name, internal, connection)
}

func (a *Agent) healthEmbed(guildID string) *discordgo.MessageEmbed {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	voiceState, color := "Disconnected", colorRed
	if info, ok := a.sup.Session(guildID); ok {
		voiceState, color = info.Phase.String(), colorGreen
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🏥 %s Health Check", a.name),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Uptime", Value: fmt.Sprintf("%d minutes", int64(a.Uptime()/time.Minute)), Inline: true},
			{Name: "WS Ping", Value: fmt.Sprintf("%dms", a.platform.Latency().Milliseconds()), Inline: true},
			{Name: "Memory", Value: fmt.Sprintf("%.2f MB", float64(mem.HeapAlloc)/1024/1024), Inline: true},
			{Name: "Voice State", Value: voiceState, Inline: true},
		},
	}
}
