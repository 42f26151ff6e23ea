package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records outcomes of reconciliation runs (webhook
// confirmations and bulk imports).
type ReconcileMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	failure   *prometheus.CounterVec
	shortages prometheus.Counter
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_duration_seconds",
		Help:    "Duration of reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_success",
		Help: "Successful reconciliation runs.",
	}, []string{"path"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_failure",
		Help: "Failed reconciliation runs.",
	}, []string{"path"})
	shortages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_stock_shortages",
		Help: "Deductions capped because requested quantity exceeded stock.",
	})
	reg.MustRegister(duration, success, failure, shortages)
	return &ReconcileMetrics{
		duration:  duration,
		success:   success,
		failure:   failure,
		shortages: shortages,
	}
}

// ObserveDuration records the duration for the named reconciliation path.
func (m *ReconcileMetrics) ObserveDuration(path string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(path)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named path.
func (m *ReconcileMetrics) IncSuccess(path string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(path)).Inc()
}

// IncFailure increments the failure counter for the named path.
func (m *ReconcileMetrics) IncFailure(path string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(path)).Inc()
}

// IncShortage counts one capped deduction.
func (m *ReconcileMetrics) IncShortage() {
	if m == nil || m.shortages == nil {
		return
	}
	m.shortages.Inc()
}

func normalizeLabel(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}
