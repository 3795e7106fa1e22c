// Package metrics exposes the watcher's Prometheus collectors and a small
// HTTP server for /metrics and /healthz.
package metrics

import (
	"time"

	"hedge_watcher/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hedge_watcher"

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	assetFailures *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	suppressed    *prometheus.CounterVec
	ledgerSize    *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Monitor loop cycles by loop and outcome.",
		}, []string{"loop", "outcome"}),
		cycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Monitor loop cycle duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"loop"}),
		assetFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_failures_total",
			Help:      "Assets skipped inside a cycle, by error kind.",
		}, []string{"loop", "kind"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts dispatched to the notifier.",
		}, []string{"kind"}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Alerts withheld because the fingerprint was already notified.",
		}, []string{"kind"}),
		ledgerSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_size",
			Help:      "Fingerprints held by each dedup ledger.",
		}, []string{"kind"}),
	}
}

// ObserveCycle matches scheduler.Loop.OnCycle.
func (m *Metrics) ObserveCycle(loop string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.cycles.WithLabelValues(loop, outcome).Inc()
	m.cycleDuration.WithLabelValues(loop).Observe(took.Seconds())
}

func (m *Metrics) AssetFailure(loop string, err error) {
	if m == nil {
		return
	}
	m.assetFailures.WithLabelValues(loop, models.ErrorKind(err)).Inc()
}

func (m *Metrics) Alert(kind models.EventKind) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Suppressed(kind models.EventKind) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) LedgerSize(kind models.EventKind, n int) {
	if m == nil {
		return
	}
	m.ledgerSize.WithLabelValues(string(kind)).Set(float64(n))
}
