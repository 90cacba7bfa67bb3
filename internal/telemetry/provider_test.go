package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/EgorLis/afkfleet/internal/config"
)

func restoreMeterProvider(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })
}

func TestInitMeterProviderDisabled(t *testing.T) {
	restoreMeterProvider(t)

	shutdown, err := InitMeterProvider(context.Background(), config.Metrics{}, "afkfleet")
	require.NoError(t, err)
	_, isSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.False(t, isSDK)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitMeterProviderInstallsSDK(t *testing.T) {
	restoreMeterProvider(t)

	shutdown, err := InitMeterProvider(context.Background(), config.Metrics{
		Enabled:  true,
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
		Interval: time.Hour,
	}, "afkfleet")
	require.NoError(t, err)
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	m, err := NewMetrics()
	require.NoError(t, err)
	m.SessionStarted(context.Background(), "Bot 1")

	// коллектора нет: досылка падает, но в пределах дедлайна
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_ = shutdown(ctx)
	assert.Less(t, time.Since(start), 5*time.Second)
}
