// Package bot — агент флота: склейка вокруг discord.Client и voice.Supervisor.
// Агент:
//   - на Ready чистит оставшиеся голосовые соединения, ставит статус
//     "AFK Presence" и (один раз) регистрирует slash-команды;
//   - обрабатывает команды (/join, /move, /leave, /fixvoice, /reset,
//     /joinall, /botlist, /ping, /uptime, /vcstatus, /healthcheck);
//   - для флотовых команд ходит в fleet.Coordinator и fleet.Reporter,
//     сам про остальных ботов ничего не знает.
//
// Жизненный цикл:
//   - Создать клиента discord.New(...) и агента bot.New(opts, client).
//   - Собрать флот и отдать сервисы: UseFleet(coord, reporter).
//   - Start() и по завершении Stop().
//
// Пример:
//
//	c, _ := discord.New("Bot 1", token, appID, log)
//	a := bot.New(bot.Options{Name: "Bot 1", GuildID: g, OwnerID: o}, c)
//	a.UseFleet(coord, reporter)
//	if err := a.Start(); err != nil { log.Error(...) }
//	defer a.Stop()
//
// Права: всё, кроме ping/uptime/vcstatus/healthcheck, доступно только
// владельцу (DISCORD_OWNER_ID) или администраторам гильдии.
package bot
