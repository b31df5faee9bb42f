// Package observe provides the OpenTelemetry metrics recorded by the audio
// pipeline and the Prometheus endpoint that exposes them.
//
// Tests should build a [Metrics] with [NewMetrics] and their own
// [metric.MeterProvider] rather than use [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all live-tray metrics.
const meterName = "github.com/petems/live-tray"

// Metrics holds the instruments for the capture and playback paths. All
// fields are safe for concurrent use.
type Metrics struct {
	// FramesSent counts microphone frames handed to the session.
	FramesSent metric.Int64Counter

	// SendFailures counts frames the session refused.
	SendFailures metric.Int64Counter

	// BuffersScheduled counts decoded buffers placed on the output clock.
	BuffersScheduled metric.Int64Counter

	// DecodeErrors counts inbound chunks that failed to decode.
	DecodeErrors metric.Int64Counter

	// Interruptions counts barge-in signals acted on.
	Interruptions metric.Int64Counter

	// SessionsOpened counts sessions that completed setup.
	SessionsOpened metric.Int64Counter

	// PlaybackActive tracks buffers queued or playing.
	PlaybackActive metric.Int64UpDownCounter

	// PlaybackLead is how far ahead of the device clock buffers were placed.
	PlaybackLead metric.Float64Histogram
}

// leadBuckets are bucket boundaries in seconds. Leads above a few seconds
// mean the model is far ahead of the speaker.
var leadBuckets = []float64{
	0, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesSent, err = m.Int64Counter("livetray.frames.sent",
		metric.WithDescription("Microphone frames sent to the live session."),
	); err != nil {
		return nil, err
	}
	if met.SendFailures, err = m.Int64Counter("livetray.send.failures",
		metric.WithDescription("Microphone frames the live session refused."),
	); err != nil {
		return nil, err
	}
	if met.BuffersScheduled, err = m.Int64Counter("livetray.buffers.scheduled",
		metric.WithDescription("Decoded buffers scheduled on the output clock."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("livetray.decode.errors",
		metric.WithDescription("Inbound audio chunks that failed to decode."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("livetray.interruptions",
		metric.WithDescription("Interruption signals that cancelled playback."),
	); err != nil {
		return nil, err
	}
	if met.SessionsOpened, err = m.Int64Counter("livetray.sessions.opened",
		metric.WithDescription("Live sessions that completed setup."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackActive, err = m.Int64UpDownCounter("livetray.playback.active",
		metric.WithDescription("Buffers currently queued or playing."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackLead, err = m.Float64Histogram("livetray.playback.lead",
		metric.WithDescription("Seconds between device time and a buffer's scheduled start."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(leadBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordScheduled records one buffer placed lead seconds ahead of the clock.
func (m *Metrics) RecordScheduled(ctx context.Context, lead float64) {
	m.BuffersScheduled.Add(ctx, 1)
	m.PlaybackActive.Add(ctx, 1)
	m.PlaybackLead.Record(ctx, lead)
}

// RecordReleased records n buffers leaving the active set.
func (m *Metrics) RecordReleased(ctx context.Context, n int) {
	if n > 0 {
		m.PlaybackActive.Add(ctx, -int64(n))
	}
}

// RecordInterruption records a barge-in that stopped n buffers.
func (m *Metrics) RecordInterruption(ctx context.Context, n int) {
	m.Interruptions.Add(ctx, 1)
	m.RecordReleased(ctx, n)
}
