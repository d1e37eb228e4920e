package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeFailed       = "failed"
	OutcomeCompleted    = "completed"
	OutcomePerfected    = "perfected"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Registrations    *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
	StatusRequests   prometheus.Counter
	ProgressStreams  prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
	EventPublishFail prometheus.Counter
}

// New registers collectors on a private registry so tests can build as many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "course_registrations_total",
			Help: "Participant registrations by result",
		}, []string{"status"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "course_submissions_total",
			Help: "Submissions by outcome",
		}, []string{"outcome"}),
		StatusRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "course_status_requests_total",
			Help: "Progress views derived",
		}),
		ProgressStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "course_progress_streams",
			Help: "Open websocket progress streams",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
		EventPublishFail: factory.NewCounter(prometheus.CounterOpts{
			Name: "course_event_publish_failures_total",
			Help: "Submission events that could not be published",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncRegistration(status string) {
	m.Registrations.WithLabelValues(status).Inc()
}

func (m *Metrics) IncSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncStatusRequests() {
	m.StatusRequests.Inc()
}

func (m *Metrics) IncStreams() {
	m.ProgressStreams.Inc()
}

func (m *Metrics) DecStreams() {
	m.ProgressStreams.Dec()
}

func (m *Metrics) ObserveRequest(method, route, code string, seconds float64) {
	m.RequestDuration.WithLabelValues(method, route, code).Observe(seconds)
}

func (m *Metrics) IncEventPublishFailures() {
	m.EventPublishFail.Inc()
}

// SubmissionOutcome picks the outcome label for a recorded row.
func SubmissionOutcome(testsPassed, perfected bool) string {
	switch {
	case perfected:
		return OutcomePerfected
	case testsPassed:
		return OutcomeCompleted
	default:
		return OutcomeFailed
	}
}
