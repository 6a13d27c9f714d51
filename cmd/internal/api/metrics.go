package coyoteapi

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Token invalidation reasons.
const (
	InvalidationUnauthorized = "unauthorized"
	InvalidationSignOut      = "signout"
	InvalidationSignInFailed = "signin_failed"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	invalidations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// Registering twice on the same registry reuses the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coyote_client_requests_total",
			Help: "Backend requests issued by the client, by operation and status class.",
		}, []string{"op", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coyote_client_request_duration_seconds",
			Help:    "Backend request latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coyote_client_token_invalidations_total",
			Help: "Persisted session token deletions, by reason.",
		}, []string{"reason"}),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.invalidations, err = register(reg, m.invalidations); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if reg == nil {
		return c, nil
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeRequest(op, class string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, class).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) tokenInvalidated(reason string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(reason).Inc()
}
