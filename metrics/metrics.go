// Package metrics defines the Recorder interface the handlers report into,
// with a Prometheus-backed implementation and a zero-overhead noop.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives handler-level events. Handlers never depend on a
// concrete implementation.
type Recorder interface {
	// RecordTokenIssued is called after a successful token-endpoint
	// exchange, labeled by grant-type name.
	RecordTokenIssued(grantType string, duration time.Duration)

	// RecordTokenError is called when the token endpoint fails, labeled by
	// grant-type name ("" when the failure precedes grant dispatch) and
	// taxonomy kind.
	RecordTokenError(grantType, kind string)

	// RecordTokenValidation is called by the bearer check with "success",
	// "invalid", "expired" or "missing".
	RecordTokenValidation(result string)

	// RecordAuthorization is called by the authorize endpoint.
	RecordAuthorization(success bool)
}

// Ensure Metrics implements Recorder at compile time.
var _ Recorder = (*Metrics)(nil)

// Metrics is the Prometheus implementation of Recorder.
type Metrics struct {
	TokensIssuedTotal       *prometheus.CounterVec
	TokenErrorsTotal        *prometheus.CounterVec
	TokenIssuanceDuration   *prometheus.HistogramVec
	TokenValidationTotal    *prometheus.CounterVec
	AuthorizationsTotal     *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns the process-wide Recorder. Prometheus collectors may only be
// registered once, so the Prometheus recorder is a singleton; enabled=false
// yields the noop recorder instead.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoop()
	}
	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		TokensIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_tokens_issued_total",
			Help: "Tokens issued by the token endpoint, by grant type",
		}, []string{"grant_type"}),
		TokenErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_token_errors_total",
			Help: "Token endpoint failures, by grant type and error kind",
		}, []string{"grant_type", "kind"}),
		TokenIssuanceDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oauth_token_issuance_duration_seconds",
			Help:    "Wall time of successful token exchanges",
			Buckets: prometheus.DefBuckets,
		}, []string{"grant_type"}),
		TokenValidationTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_token_validation_total",
			Help: "Bearer token validations, by result",
		}, []string{"result"}),
		AuthorizationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_authorizations_total",
			Help: "Authorization endpoint outcomes",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordTokenIssued(grantType string, duration time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(grantType).Inc()
	m.TokenIssuanceDuration.WithLabelValues(grantType).Observe(duration.Seconds())
}

func (m *Metrics) RecordTokenError(grantType, kind string) {
	m.TokenErrorsTotal.WithLabelValues(grantType, kind).Inc()
}

func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordAuthorization(success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	m.AuthorizationsTotal.WithLabelValues(result).Inc()
}
