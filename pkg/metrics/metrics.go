// Package metrics exports engine telemetry to Prometheus. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
	saved         *prometheus.CounterVec
	cache         *prometheus.CounterVec
	state         prometheus.Gauge
}

// New registers the engine metrics on reg, the default registerer when nil.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "kuaizi"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Latency of dictionary queries.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Dictionary queries that failed and returned no result.",
		}, []string{"operation"}),
		saved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_usage_total",
			Help:      "Usage records written to the user store.",
		}, []string{"kind"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_cache_lookups_total",
			Help:      "Candidate cache lookups by result.",
		}, []string{"result"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_state",
			Help:      "Lifecycle state of the dictionary stores.",
		}),
	}

	var err error
	if m.queryDuration, err = register(reg, m.queryDuration); err != nil {
		return nil, err
	}
	if m.queryErrors, err = register(reg, m.queryErrors); err != nil {
		return nil, err
	}
	if m.saved, err = register(reg, m.saved); err != nil {
		return nil, err
	}
	if m.cache, err = register(reg, m.cache); err != nil {
		return nil, err
	}
	if m.state, err = register(reg, m.state); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the collector already registered under the
// same description.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register engine metric: %w", err)
	}
	return c, nil
}

// ObserveQuery records the latency and outcome of one query.
func (m *Metrics) ObserveQuery(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.queryErrors.WithLabelValues(op).Inc()
	}
}

// AddSaved counts n usage records of kind ("word", "phrase", "emoji").
func (m *Metrics) AddSaved(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.saved.WithLabelValues(kind).Add(float64(n))
}

// CacheLookup counts a candidate cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// SetState publishes the lifecycle state.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}
