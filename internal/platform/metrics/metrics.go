package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SubmissionsTotal *prometheus.CounterVec
	BadgesIssued     prometheus.Counter
	UpstreamFailures *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a caller-supplied registry. Tests use this
// to avoid duplicate-registration panics across suite setups.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "publish_badge_submissions_total",
			Help: "Form submissions by outcome (issued, rejected, failed)",
		}, []string{"outcome"}),
		BadgesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "publish_badge_badges_issued_total",
			Help: "Badge assertions successfully created at the issuer",
		}),
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "publish_badge_upstream_failures_total",
			Help: "Failed calls to collaborators by target (badgr, email, sheets)",
		}, []string{"target"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "publish_badge_request_duration_seconds",
			Help:    "End-to-end submission handling latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveSubmission counts one handled submission with its outcome.
func (m *Metrics) ObserveSubmission(outcome string) {
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// IncrementBadgesIssued increments the issued-badge counter by 1.
func (m *Metrics) IncrementBadgesIssued() {
	m.BadgesIssued.Inc()
}

// IncrementUpstreamFailure counts a failed collaborator call.
func (m *Metrics) IncrementUpstreamFailure(target string) {
	m.UpstreamFailures.WithLabelValues(target).Inc()
}

// ObserveRequestDuration records one request's wall-clock duration.
func (m *Metrics) ObserveRequestDuration(d time.Duration) {
	m.RequestDuration.Observe(d.Seconds())
}
