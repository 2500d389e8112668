// Package metrics exposes Prometheus counters for the login flow.
//
// metrics.go -- Collector registration and the /metrics handler.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the login flow collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	initiations      *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	callbackDuration *prometheus.HistogramVec
	handler          http.Handler
}

// New registers the collectors on reg. A nil reg gets a fresh registry with
// the Go runtime and process collectors. Calling New again on the same reg
// returns a Metrics sharing the collectors already registered there.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		if _, err := register(reg, collectors.NewGoCollector()); err != nil {
			return nil, err
		}
		if _, err := register(reg, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, err
		}
	}

	var (
		m   Metrics
		err error
	)
	m.initiations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhole_oauth_initiations_total",
		Help: "Login initiations by provider and outcome.",
	}, []string{"provider", "outcome"}))
	if err != nil {
		return nil, err
	}

	m.callbacks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhole_oauth_callbacks_total",
		Help: "Provider callbacks by provider and outcome.",
	}, []string{"provider", "outcome"}))
	if err != nil {
		return nil, err
	}

	m.callbackDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyhole_oauth_callback_duration_seconds",
		Help:    "Callback latency including token exchange and user-info fetch.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider"}))
	if err != nil {
		return nil, err
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return &m, nil
}

// Initiate counts one login initiation.
func (m *Metrics) Initiate(provider, outcome string) {
	if m == nil {
		return
	}
	m.initiations.WithLabelValues(provider, outcome).Inc()
}

// Callback counts one callback and observes its duration.
func (m *Metrics) Callback(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(provider, outcome).Inc()
	m.callbackDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// register registers c. If an equal collector is already registered, the
// existing one is returned so increments land on the exported series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}
