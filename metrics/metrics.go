// Package metrics holds the Prometheus collectors of the ledger client.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledger_client"

// Metrics groups the client's collectors.
type Metrics struct {
	submitted *prometheus.CounterVec
	queries   *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_submitted_total",
			Help:      "Transactions handed to the node, by submission result.",
		}, []string{"result"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries sent, by query name and result.",
		}, []string{"query", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_outcomes_total",
			Help:      "Terminal transaction outcomes observed, by state.",
		}, []string{"state"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of client operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.submitted, m.queries, m.outcomes, m.latency)
	}
	return m
}

// Collectors returns every collector, for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.submitted, m.queries, m.outcomes, m.latency}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Submitted counts n transactions submitted with the given result.
func (m *Metrics) Submitted(n int, err error) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(result(err)).Add(float64(n))
}

// Query counts one query. refused marks a ledger error response.
func (m *Metrics) Query(name string, refused bool, err error) {
	if m == nil {
		return
	}
	r := result(err)
	if err == nil && refused {
		r = "refused"
	}
	m.queries.WithLabelValues(name, r).Inc()
}

// Outcome counts a terminal outcome.
func (m *Metrics) Outcome(state string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(state).Inc()
}

// Since records the duration of op started at start.
func (m *Metrics) Since(op string, start time.Time) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
