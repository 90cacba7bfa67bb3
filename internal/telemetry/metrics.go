// Package telemetry — счётчики OpenTelemetry для флота.
// Без настроенного SDK глобальный meter ничего не делает.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "afkfleet"

// Metrics — инструменты; методы безопасны на nil.
type Metrics struct {
	sessions     metric.Int64Counter
	recoveries   metric.Int64Counter
	phaseChanges metric.Int64Counter
	outcomes     metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.sessions, err = meter.Int64Counter("afkfleet.voice.sessions",
		metric.WithDescription("Number of voice sessions started"))
	if err != nil {
		return nil, err
	}

	m.recoveries, err = meter.Int64Counter("afkfleet.voice.recoveries",
		metric.WithDescription("Number of fresh reconnects after a lost voice session"))
	if err != nil {
		return nil, err
	}

	m.phaseChanges, err = meter.Int64Counter("afkfleet.voice.phase_changes",
		metric.WithDescription("Voice session phase transitions"))
	if err != nil {
		return nil, err
	}

	m.outcomes, err = meter.Int64Counter("afkfleet.fleet.outcomes",
		metric.WithDescription("Per-agent results of mass joins"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) SessionStarted(ctx context.Context, agent string) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agent)))
}

func (m *Metrics) Recovery(ctx context.Context, agent string) {
	if m == nil {
		return
	}
	m.recoveries.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agent)))
}

func (m *Metrics) PhaseChanged(ctx context.Context, agent, phase string) {
	if m == nil {
		return
	}
	m.phaseChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("phase", phase),
	))
}

func (m *Metrics) FleetOutcome(ctx context.Context, agent, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("outcome", outcome),
	))
}
