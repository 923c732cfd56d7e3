package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the counters services and middleware report into.
type Metrics struct {
	Registry        *prometheus.Registry
	Joins           *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	Reviews         *prometheus.CounterVec
	Emails          *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firecontest",
			Name:      "contest_joins_total",
			Help:      "Contest join attempts by outcome.",
		}, []string{"outcome"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firecontest",
			Name:      "payment_submissions_total",
			Help:      "Payment proof submissions by outcome.",
		}, []string{"outcome"}),
		Reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firecontest",
			Name:      "payment_reviews_total",
			Help:      "Admin payment decisions by resulting status.",
		}, []string{"status"}),
		Emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firecontest",
			Name:      "emails_total",
			Help:      "Outgoing emails by result.",
		}, []string{"result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "firecontest",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.Joins, m.Submissions, m.Reviews, m.Emails, m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// outcome labels a counter from a service error.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case KindValidation:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindCapacity:
		return "full"
	case KindDuplicate:
		return "duplicate"
	case KindPaymentRequired:
		return "payment_required"
	default:
		return "error"
	}
}

func (m *Metrics) observeJoin(err error) {
	if m != nil {
		m.Joins.WithLabelValues(outcome(err)).Inc()
	}
}

func (m *Metrics) observeSubmission(err error) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome(err)).Inc()
	}
}

func (m *Metrics) observeReview(status string) {
	if m != nil {
		m.Reviews.WithLabelValues(status).Inc()
	}
}
