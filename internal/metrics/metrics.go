// Package metrics exposes Prometheus metrics for the feed pipeline and its
// HTTP surface. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	samples           *prometheus.GaugeVec
	refreshSkipped    prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	gatherer          prometheus.Gatherer
}

// New creates the collectors and registers them with reg. When reg is also a
// prometheus.Gatherer, Handler serves it; otherwise the default gatherer is used.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerfeed_pipeline_runs_total",
			Help: "Pipeline runs by result and failure category.",
		}, []string{"result", "category"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "powerfeed_pipeline_run_duration_seconds",
			Help:    "Histogram of pipeline run durations, fetch included.",
			Buckets: prometheus.DefBuckets,
		}),
		samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "powerfeed_snapshot_samples",
			Help: "Samples per channel in the last successful snapshot.",
		}, []string{"channel"}),
		refreshSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerfeed_refresh_skipped_total",
			Help: "Refresh ticks skipped because another refresh held the guard.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: prometheus.DefaultGatherer,
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.samples,
		m.refreshSkipped,
		m.httpRequestsTotal,
		m.httpDuration,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// RunSucceeded records a successful pipeline run.
func (m *Metrics) RunSucceeded(d time.Duration, temperature, power int) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues("success", "none").Inc()
	m.runDuration.Observe(d.Seconds())
	m.samples.WithLabelValues("temperature").Set(float64(temperature))
	m.samples.WithLabelValues("power").Set(float64(power))
}

// RunFailed records a failed pipeline run.
func (m *Metrics) RunFailed(d time.Duration, category string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues("failure", category).Inc()
	m.runDuration.Observe(d.Seconds())
}

// RefreshSkipped records a refresh tick that lost the guard.
func (m *Metrics) RefreshSkipped() {
	if m == nil {
		return
	}
	m.refreshSkipped.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
