package voice_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/afkfleet/internal/voice"
)

func TestTransitionAllPairs(t *testing.T) {
	type pair struct {
		from voice.Phase
		ev   voice.Event
	}
	valid := map[pair]voice.Phase{
		{voice.PhaseIdle, voice.EventJoin}:  voice.PhaseConnecting,
		{voice.PhaseIdle, voice.EventLeave}: voice.PhaseDestroyed,

		{voice.PhaseConnecting, voice.EventReady}:         voice.PhaseReady,
		{voice.PhaseConnecting, voice.EventConnectFailed}: voice.PhaseDestroyed,
		{voice.PhaseConnecting, voice.EventLeave}:         voice.PhaseDestroyed,

		{voice.PhaseReady, voice.EventDrop}:  voice.PhaseDisconnected,
		{voice.PhaseReady, voice.EventLeave}: voice.PhaseDestroyed,

		{voice.PhaseDisconnected, voice.EventSignalling}:      voice.PhaseSignalling,
		{voice.PhaseDisconnected, voice.EventReconnecting}:    voice.PhaseReconnecting,
		{voice.PhaseDisconnected, voice.EventRecoveryTimeout}: voice.PhaseDestroyed,
		{voice.PhaseDisconnected, voice.EventLeave}:           voice.PhaseDestroyed,

		{voice.PhaseSignalling, voice.EventReconnecting}: voice.PhaseReconnecting,
		{voice.PhaseSignalling, voice.EventReady}:        voice.PhaseReady,
		{voice.PhaseSignalling, voice.EventDrop}:         voice.PhaseDisconnected,
		{voice.PhaseSignalling, voice.EventLeave}:        voice.PhaseDestroyed,

		{voice.PhaseReconnecting, voice.EventReady}: voice.PhaseReady,
		{voice.PhaseReconnecting, voice.EventDrop}:  voice.PhaseDisconnected,
		{voice.PhaseReconnecting, voice.EventLeave}: voice.PhaseDestroyed,
	}

	for _, from := range voice.Phases {
		for _, ev := range voice.Events {
			got, err := voice.Transition(from, ev)
			want, ok := valid[pair{from, ev}]
			if ok {
				require.NoError(t, err, "%s on %s", ev, from)
				assert.Equal(t, want, got, "%s on %s", ev, from)
				continue
			}
			var te *voice.TransitionError
			require.True(t, errors.As(err, &te), "%s on %s must be rejected", ev, from)
			assert.Equal(t, from, got, "rejected transition keeps the phase")
		}
	}
}

func TestDestroyedIsTerminal(t *testing.T) {
	for _, ev := range voice.Events {
		_, err := voice.Transition(voice.PhaseDestroyed, ev)
		assert.Error(t, err, ev.String())
	}
}

func TestPhaseHelpers(t *testing.T) {
	assert.True(t, voice.PhaseReady.Streaming())
	assert.False(t, voice.PhaseReconnecting.Streaming())
	assert.True(t, voice.PhaseSignalling.Recovering())
	assert.False(t, voice.PhaseConnecting.Recovering())
	assert.Equal(t, "reconnecting", voice.PhaseReconnecting.String())
	assert.Equal(t, "phase(42)", voice.Phase(42).String())
}
