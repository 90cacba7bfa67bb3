package voice

import "fmt"

// Phase — состояние голосовой сессии.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseReady
	PhaseDisconnected
	PhaseSignalling
	PhaseReconnecting
	PhaseDestroyed
)

var phaseNames = [...]string{
	PhaseIdle:         "idle",
	PhaseConnecting:   "connecting",
	PhaseReady:        "ready",
	PhaseDisconnected: "disconnected",
	PhaseSignalling:   "signalling",
	PhaseReconnecting: "reconnecting",
	PhaseDestroyed:    "destroyed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Event — входной сигнал машины состояний.
type Event int

const (
	EventJoin Event = iota
	EventReady
	EventConnectFailed
	EventDrop
	EventSignalling
	EventReconnecting
	EventRecoveryTimeout
	EventLeave
)

var eventNames = [...]string{
	EventJoin:            "join",
	EventReady:           "ready",
	EventConnectFailed:   "connect-failed",
	EventDrop:            "drop",
	EventSignalling:      "signalling",
	EventReconnecting:    "reconnecting",
	EventRecoveryTimeout: "recovery-timeout",
	EventLeave:           "leave",
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

// Phases и Events перечисляют все значения (удобно для тестов по всем парам).
var (
	Phases = []Phase{PhaseIdle, PhaseConnecting, PhaseReady, PhaseDisconnected, PhaseSignalling, PhaseReconnecting, PhaseDestroyed}
	Events = []Event{EventJoin, EventReady, EventConnectFailed, EventDrop, EventSignalling, EventReconnecting, EventRecoveryTimeout, EventLeave}
)

// TransitionError — недопустимая пара (фаза, событие).
type TransitionError struct {
	From  Phase
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s on %s", e.Event, e.From)
}

// Transition — полная функция переходов. Для недопустимой пары возвращает
// исходную фазу и *TransitionError.
func Transition(from Phase, ev Event) (Phase, error) {
	// leave разрешён из любой живой фазы
	if ev == EventLeave && from != PhaseDestroyed {
		return PhaseDestroyed, nil
	}

	switch from {
	case PhaseIdle:
		if ev == EventJoin {
			return PhaseConnecting, nil
		}
	case PhaseConnecting:
		switch ev {
		case EventReady:
			return PhaseReady, nil
		case EventConnectFailed:
			return PhaseDestroyed, nil
		}
	case PhaseReady:
		if ev == EventDrop {
			return PhaseDisconnected, nil
		}
	case PhaseDisconnected:
		switch ev {
		case EventSignalling:
			return PhaseSignalling, nil
		case EventReconnecting:
			return PhaseReconnecting, nil
		case EventRecoveryTimeout:
			return PhaseDestroyed, nil
		}
	case PhaseSignalling:
		switch ev {
		case EventReconnecting:
			return PhaseReconnecting, nil
		case EventReady:
			return PhaseReady, nil
		case EventDrop:
			return PhaseDisconnected, nil
		}
	case PhaseReconnecting:
		switch ev {
		case EventReady:
			return PhaseReady, nil
		case EventDrop:
			return PhaseDisconnected, nil
		}
	case PhaseDestroyed:
		// терминальная
	}
	return from, &TransitionError{From: from, Event: ev}
}

// Streaming — в этой фазе сессия гонит тишину и держит канал.
func (p Phase) Streaming() bool { return p == PhaseReady }

// Recovering — сессия оборвалась и ждёт восстановления.
func (p Phase) Recovering() bool {
	return p == PhaseDisconnected || p == PhaseSignalling || p == PhaseReconnecting
}
