package metrics

import "github.com/prometheus/client_golang/prometheus"

// Publish outcomes reported by the outbox publisher.
const (
	PublishDelivered = "delivered"
	PublishRetry     = "retry"
	PublishParked    = "parked"
)

// OutboxMetrics tracks delivery of billing events to Pub/Sub.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Counter
}

// NewOutboxMetrics registers the publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "batch_errors_total",
		Help:      "Publisher batches rolled back by a database error.",
	})
	reg.MustRegister(events, batches)
	return &OutboxMetrics{events: events, batches: batches}
}

// IncEvent counts one event outcome.
func (o *OutboxMetrics) IncEvent(eventType, outcome string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncBatchError counts a failed batch transaction.
func (o *OutboxMetrics) IncBatchError() {
	if o == nil || o.batches == nil {
		return
	}
	o.batches.Inc()
}
