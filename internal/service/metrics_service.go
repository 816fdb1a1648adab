package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the timetable counters.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeConflict = "conflict"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the timetable engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	saveDuration    *prometheus.HistogramVec
	saves           *prometheus.CounterVec
	generations     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	clashes         prometheus.Counter
	sessions        prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	saveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_save_duration_seconds",
		Help:    "Duration of replace-all timetable writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_saves_total",
		Help: "Timetable saves by row status and outcome",
	}, []string{"status", "outcome"})

	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_generations_total",
		Help: "Generation collaborator calls by outcome",
	}, []string{"outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_notifications_total",
		Help: "Publish notifications by final outcome",
	}, []string{"outcome"})

	clashes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_teacher_clashes_total",
		Help: "Cross-class teacher clashes reported on save",
	})

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_editor_sessions",
		Help: "Open timetable editor sessions",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		saveDuration, saves, generations, notifications, clashes, sessions, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		saveDuration:    saveDuration,
		saves:           saves,
		generations:     generations,
		notifications:   notifications,
		clashes:         clashes,
		sessions:        sessions,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSave counts a save attempt. Successful saves also record their duration.
func (m *MetricsService) RecordSave(status, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(status, outcome).Inc()
	if outcome == outcomeSuccess {
		m.saveDuration.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// RecordGeneration counts a generation call.
func (m *MetricsService) RecordGeneration(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}

// RecordNotification counts the final outcome of a publish notification.
func (m *MetricsService) RecordNotification(delivered bool) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if !delivered {
		outcome = outcomeFailure
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// RecordClashes adds reported teacher clashes.
func (m *MetricsService) RecordClashes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.clashes.Add(float64(n))
}

// SetSessions publishes the open session count.
func (m *MetricsService) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
