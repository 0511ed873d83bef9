package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Customer outcomes reported by a storage billing run.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// BillingMetrics tracks storage billing runs and the revaluation pass.
type BillingMetrics struct {
	runDuration  prometheus.Histogram
	runs         *prometheus.CounterVec
	customers    *prometheus.CounterVec
	revaluations *prometheus.CounterVec
}

// NewBillingMetrics registers the storage billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "storage_billing",
		Name:      "run_duration_seconds",
		Help:      "Wall time of storage billing runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
	})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage_billing",
		Name:      "runs_total",
		Help:      "Storage billing runs by result.",
	}, []string{"result"})
	customers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage_billing",
		Name:      "customers_total",
		Help:      "Customers processed by storage billing runs, by outcome.",
	}, []string{"outcome"})
	revaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage_billing",
		Name:      "revaluations_total",
		Help:      "Holding revaluation updates by result.",
	}, []string{"result"})
	reg.MustRegister(runDuration, runs, customers, revaluations)
	return &BillingMetrics{
		runDuration:  runDuration,
		runs:         runs,
		customers:    customers,
		revaluations: revaluations,
	}
}

// ObserveRun records one completed run. fatal marks runs aborted before any customer work.
func (b *BillingMetrics) ObserveRun(duration time.Duration, fatal bool) {
	if b == nil || b.runs == nil {
		return
	}
	b.runDuration.Observe(duration.Seconds())
	result := "completed"
	if fatal {
		result = "aborted"
	}
	b.runs.WithLabelValues(result).Inc()
}

// AddCustomers adds n customers to the given outcome.
func (b *BillingMetrics) AddCustomers(outcome string, n int) {
	if b == nil || b.customers == nil || n <= 0 {
		return
	}
	b.customers.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

// AddRevaluations records revaluation updates split by result.
func (b *BillingMetrics) AddRevaluations(updated, failed int) {
	if b == nil || b.revaluations == nil {
		return
	}
	if updated > 0 {
		b.revaluations.WithLabelValues("updated").Add(float64(updated))
	}
	if failed > 0 {
		b.revaluations.WithLabelValues("failed").Add(float64(failed))
	}
}
