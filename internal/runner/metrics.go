package runner

import (
	"context"

	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/eagraf/holochain-runner/internal/node/signals"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the supervisor's progress. A nil *Metrics records nothing.
type Metrics struct {
	lifecycleState        prometheus.Gauge
	signalsTotal          *prometheus.CounterVec
	orchestrationDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		lifecycleState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "holochain_runner",
			Name:      "lifecycle_state",
			Help:      "Current supervisor lifecycle state (0=starting ... 7=stopped, 8=failed)",
		}),
		signalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holochain_runner",
			Name:      "progress_signals_total",
			Help:      "Progress signals emitted by signal name",
		}, []string{"signal"}),
		orchestrationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "holochain_runner",
			Name:      "orchestration_duration_seconds",
			Help:      "Duration of the orchestration pass by result",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"result"}),
	}
}

func (m *Metrics) setState(s LifecycleState) {
	if m == nil {
		return
	}
	m.lifecycleState.Set(float64(s))
}

func (m *Metrics) observeOrchestration(seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.orchestrationDuration.WithLabelValues(result).Observe(seconds)
}

// countingPublisher counts each signal before forwarding it.
type countingPublisher struct {
	metrics *Metrics
	next    pubsub.Publisher[signals.StateSignal]
}

func (m *Metrics) wrap(next pubsub.Publisher[signals.StateSignal]) pubsub.Publisher[signals.StateSignal] {
	if m == nil {
		return next
	}
	return &countingPublisher{metrics: m, next: next}
}

func (p *countingPublisher) PublishEvent(ctx context.Context, s *signals.StateSignal) error {
	p.metrics.signalsTotal.WithLabelValues(s.String()).Inc()
	if p.next == nil {
		return nil
	}
	return p.next.PublishEvent(ctx, s)
}
