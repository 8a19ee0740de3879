// Package metrics exposes the light's tick outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/statuslight/internal/poller"
	"github.com/jpalmerr/statuslight/internal/signal"
)

const namespace = "statuslight"

// tick outcomes, used as the "outcome" label of ticks_total
const (
	OutcomeSent        = "sent"
	OutcomeUnmapped    = "unmapped"
	OutcomeUnreachable = "unreachable"
	OutcomeError       = "error"
	OutcomeOK          = "ok"
	OutcomeSkipped     = "skipped"
)

// Metrics owns a private registry with every statuslight collector.
//
// Each Metrics is independent, so tests and multiple lights in one process
// never collide on the default registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	deviceUp      prometheus.Gauge
	probeLatency  prometheus.Histogram
	tickLatency   *prometheus.HistogramVec
	signal        *prometheus.GaugeVec
	statusChanges prometheus.Counter
	lastSent      prometheus.Gauge
	httpRequests  *prometheus.CounterVec

	lastStatus string
}

// New creates a Metrics with its collectors registered, plus the Go runtime
// and process collectors. initialStatus is the label the light starts with;
// a refresh that reads the same label is not counted as a change.
func New(initialStatus string) *Metrics {
	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		lastStatus: initialStatus,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks by task and outcome",
		}, []string{"task", "outcome"}),
		deviceUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_up",
			Help:      "Last liveness probe result (1=alive, 0=unreachable)",
		}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Device liveness probe latency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		tickLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Scheduler tick latency by task",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		signal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_on",
			Help:      "Last signal state written per channel (1=on, 0=off)",
		}, []string{"channel"}),
		statusChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Number of times the refreshed presence label changed",
		}),
		lastSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sent_timestamp_seconds",
			Help:      "Last successful signal write (epoch seconds)",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route and status",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.ticks,
		m.deviceUp,
		m.probeLatency,
		m.tickLatency,
		m.signal,
		m.statusChanges,
		m.lastSent,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one scheduler result. Observe is called from a single
// goroutine, the consumer of the scheduler's results.
func (m *Metrics) Observe(r poller.Result) {
	task := string(r.Task)
	outcome := Outcome(r)
	m.ticks.WithLabelValues(task, outcome).Inc()
	if r.Skipped {
		return
	}
	m.tickLatency.WithLabelValues(task).Observe(r.Latency.Seconds())

	switch r.Task {
	case poller.TaskSync:
		if r.Alive {
			m.deviceUp.Set(1)
			m.probeLatency.Observe(r.ProbeLatency.Seconds())
		} else {
			m.deviceUp.Set(0)
		}
		if r.Sent {
			for _, ch := range signal.Channels {
				m.signal.WithLabelValues(ch.String()).Set(boolToFloat(r.State.On(ch)))
			}
			m.lastSent.Set(float64(r.CheckedAt.Unix()))
		}
	case poller.TaskRefresh:
		if r.Error == nil {
			if r.Status != m.lastStatus {
				m.statusChanges.Inc()
			}
			m.lastStatus = r.Status
		}
	}
}

// ObserveRequest counts one API request.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Outcome classifies a result for the ticks_total counter.
func Outcome(r poller.Result) string {
	switch {
	case r.Skipped:
		return OutcomeSkipped
	case r.Task == poller.TaskSync && r.Sent:
		return OutcomeSent
	case r.Task == poller.TaskSync && r.Error == nil && r.Alive && !r.Mapped:
		return OutcomeUnmapped
	case r.Task == poller.TaskSync && !r.Alive:
		return OutcomeUnreachable
	case r.Error != nil:
		return OutcomeError
	default:
		return OutcomeOK
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
