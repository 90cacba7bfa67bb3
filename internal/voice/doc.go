// Package voice — жизненный цикл голосовой сессии одного бота.
//
// Supervisor владеет сессиями бота (не больше одной на гильдию) и ведёт
// каждую по машине состояний Phase:
//
//	idle → connecting → ready → disconnected → signalling|reconnecting → ready
//	                                         ↘ destroyed (таймаут восстановления)
//
// Пока сессия в ready, Emitter гонит в соединение опус-тишину, чтобы
// платформа считала бота «в канале». При обрыве эмиттер сразу глушится,
// Supervisor ждёт RecoveryWait, пока платформа сама поднимет сессию; если
// не поднялась, рвёт соединение, выжидает Cooldown и подключается заново
// к последнему каналу (если канал ещё существует).
//
// Транспорт абстрагирован интерфейсами Dialer и Link, конкретная реализация
// поверх discordgo лежит в internal/discord, фейки для тестов в voicetest.
//
// Пример:
//
//	sup := voice.NewSupervisor("Bot 1", client, voice.DefaultTimings(), log)
//	if _, err := sup.Connect(voice.Target{GuildID: g, ChannelID: ch}); err != nil {
//	    // ErrAlreadyConnected / ErrNoTargetChannel / *TransportError
//	}
//	defer sup.Shutdown()
package voice
