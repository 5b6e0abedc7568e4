// Package metrics exposes coordination counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stove_coordination/internal/netatmo"
	"stove_coordination/internal/ratelimit"
)

const namespace = "stove_coordination"

type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	vendorCalls   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	eventlog      *prometheus.CounterVec
	sweeps        *prometheus.CounterVec
}

// New registers every collector on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Coordination cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one coordination cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		vendorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "climate_api_calls_total",
			Help:      "Climate API calls by method and result.",
		}, []string{"method", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by kind and result.",
		}, []string{"kind", "result"}),
		eventlog: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventlog_entries_total",
			Help:      "Background event log writes by result.",
		}, []string{"result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_entries_total",
			Help:      "Volatile entries removed by background sweeps.",
		}, []string{"table"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.cycleDuration, m.vendorCalls, m.notifications, m.eventlog, m.sweeps,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// ObserveClimateCall matches netatmo.WithRateLimit's onCall hook.
func (m *Metrics) ObserveClimateCall(method string, err error) {
	m.vendorCalls.WithLabelValues(method, callResult(err)).Inc()
}

func (m *Metrics) ObserveNotification(kind, result string) {
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveEventLog(result string) {
	m.eventlog.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSweep(table string, removed int) {
	if removed > 0 {
		m.sweeps.WithLabelValues(table).Add(float64(removed))
	}
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ratelimit.ErrLimited):
		return "limited"
	case errors.Is(err, netatmo.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, netatmo.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
