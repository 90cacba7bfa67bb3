package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, m.Name)
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestMetricsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.SessionStarted(ctx, "Bot 1")
	m.PhaseChanged(ctx, "Bot 1", "connecting")
	m.PhaseChanged(ctx, "Bot 1", "ready")
	m.Recovery(ctx, "Bot 1")
	m.FleetOutcome(ctx, "Bot 1", "joined")
	m.FleetOutcome(ctx, "Bot 2", "timeout")

	totals := collect(t, reader)
	assert.Equal(t, int64(1), totals["afkfleet.voice.sessions"])
	assert.Equal(t, int64(2), totals["afkfleet.voice.phase_changes"])
	assert.Equal(t, int64(1), totals["afkfleet.voice.recoveries"])
	assert.Equal(t, int64(2), totals["afkfleet.fleet.outcomes"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionStarted(context.Background(), "Bot 1")
		m.Recovery(context.Background(), "Bot 1")
		m.PhaseChanged(context.Background(), "Bot 1", "ready")
		m.FleetOutcome(context.Background(), "Bot 1", "joined")
	})
}
