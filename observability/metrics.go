package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"zaibatsu/core/events"
)

// engineMetrics translates the engine event stream into Prometheus series. It
// implements events.Emitter so it can be wired into an engine alongside any
// other subscriber.
type engineMetrics struct {
	events      *prometheus.CounterVec
	poolBalance *prometheus.GaugeVec
	openLoans   prometheus.Gauge
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// Engines returns the lazily-initialised metrics registry recording engine
// event activity.
func Engines() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zaibatsu",
				Subsystem: "engine",
				Name:      "events_total",
				Help:      "Count of emitted engine events segmented by event type.",
			}, []string{"type"}),
			poolBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "zaibatsu",
				Subsystem: "pool",
				Name:      "token_balance",
				Help:      "Remaining reward token balance per pool.",
			}, []string{"pool"}),
			openLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "zaibatsu",
				Subsystem: "loan",
				Name:      "open_loans",
				Help:      "Number of loan records currently open.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.events,
			engineRegistry.poolBalance,
			engineRegistry.openLoans,
		)
	})
	return engineRegistry
}

func normalizeLabel(value string) string {
	normalized := strings.TrimSpace(strings.ToLower(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// Emit implements the events.Emitter interface. Every event bumps a typed
// counter; pool and loan lifecycle events additionally move their gauges.
func (m *engineMetrics) Emit(event events.Event) {
	if m == nil || event == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(event.EventType())).Inc()
	switch e := event.(type) {
	case events.PoolCreated:
		m.poolBalance.WithLabelValues(normalizeLabel(e.PoolKey)).Set(float64(e.TokenBalance))
	case events.PoolFunded:
		m.poolBalance.WithLabelValues(normalizeLabel(e.PoolKey)).Set(float64(e.TokenBalance))
	case events.LoanCollateralLocked:
		m.openLoans.Inc()
	case events.LoanClosed:
		m.openLoans.Dec()
	}
}
