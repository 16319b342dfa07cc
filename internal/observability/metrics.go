package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the trust core's security counters.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authFailures    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	permDenied      prometheus.Counter
	mfaOutcomes     *prometheus.CounterVec
}

// NewMetrics registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Rejected authentication attempts by error code.",
		}, []string{"code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_denials_total",
			Help: "Requests denied by the rate limiter, by policy.",
		}, []string{"policy"}),
		permDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "permission_denials_total",
			Help: "Requests denied by the permission resolver.",
		}),
		mfaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mfa_verifications_total",
			Help: "MFA verification attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.authFailures,
		m.rateLimited,
		m.permDenied,
		m.mfaOutcomes,
	)
	return m
}

// RecordRequest accounts one completed HTTP request.
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError accounts a request rejected with the given error code.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	switch code {
	case "UNAUTHORIZED":
		m.authFailures.WithLabelValues(code).Inc()
	case "FORBIDDEN":
		m.permDenied.Inc()
	}
}

// RecordRateLimited accounts a limiter denial for the named policy.
func (m *Metrics) RecordRateLimited(policy string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(policy).Inc()
}

// RecordMFAVerification accounts one MFA verification attempt.
func (m *Metrics) RecordMFAVerification(ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.mfaOutcomes.WithLabelValues(outcome).Inc()
}
