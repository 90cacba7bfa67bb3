package voice

import "errors"

var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrNoTargetChannel  = errors.New("no target voice channel")
	ErrConnectTimeout   = errors.New("timeout waiting for ready state")
	ErrReconnectTimeout = errors.New("timeout waiting for voice recovery")

	// сессию снесли (leave/move/reset), пока мы ждали готовности
	errSuperseded = errors.New("session superseded")
)

// TransportError — любая ошибка нижнего уровня (gateway, REST, voice ws).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport: " + e.Op
	}
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
