// Package telemetry emits match and tick metrics over statsd. It hides the
// datadog client so the rest of the code only sees match.Recorder.
package telemetry

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"tinyhunt/internal/match"
)

const namespace = "tinyhunt."

// Metrics implements match.Recorder.
type Metrics struct {
	client ddstatsd.ClientInterface
	log    zerolog.Logger
}

// Noop returns metrics that go nowhere.
func Noop() *Metrics {
	return &Metrics{client: &ddstatsd.NoOpClient{}, log: zerolog.Nop()}
}

// New connects to the statsd agent at address. An empty address yields Noop.
func New(address string, tags []string, logger zerolog.Logger) (*Metrics, error) {
	if address == "" {
		return Noop(), nil
	}
	opts := []ddstatsd.Option{ddstatsd.WithNamespace(namespace)}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}
	client, err := ddstatsd.New(address, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "statsd client for %s", address)
	}
	return &Metrics{client: client, log: logger.With().Str("component", "telemetry").Logger()}, nil
}

// WithClient wraps an existing client.
func WithClient(client ddstatsd.ClientInterface, logger zerolog.Logger) *Metrics {
	return &Metrics{client: client, log: logger}
}

func (m *Metrics) Close() error {
	return eris.Wrap(m.client.Close(), "close statsd client")
}

// EmitTickStat records how long one tick took.
func (m *Metrics) EmitTickStat(start time.Time) {
	m.warn(m.client.Timing("tick", time.Since(start), nil, 1))
}

func (m *Metrics) MatchStarted(participants int) {
	m.warn(m.client.Incr("match.started", nil, 1))
	m.warn(m.client.Gauge("match.participants", float64(participants), nil, 1))
}

func (m *Metrics) MatchConcluded(reason match.EndReason, elapsed time.Duration) {
	tags := []string{"reason:" + reason.String()}
	m.warn(m.client.Incr("match.concluded", tags, 1))
	m.warn(m.client.Timing("match.duration", elapsed, tags, 1))
}

func (m *Metrics) RunnerConverted() {
	m.warn(m.client.Incr("match.conversions", nil, 1))
}

func (m *Metrics) SnapshotPublished(snap match.Snapshot) {
	m.warn(m.client.Gauge("match.runners", float64(snap.Runners), nil, 1))
	m.warn(m.client.Gauge("match.hunters", float64(snap.Hunters), nil, 1))
	m.warn(m.client.Gauge("match.remaining_seconds", float64(snap.RemainingSeconds), nil, 1))
}

func (m *Metrics) warn(err error) {
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to emit stat")
	}
}
