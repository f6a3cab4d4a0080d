package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/campus-timetable/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP, cache, storage and
// scheduling instrumentation. A nil *MetricsService is safe to call.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Histogram
	cacheWrite         prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	dbQueryDuration    *prometheus.HistogramVec
	sessions           *prometheus.CounterVec
	classesPlaced      prometheus.Counter
	classesUnscheduled prometheus.Counter
	generationDuration prometheus.Histogram
	persistenceRetries *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	sessionCount         uint64
	sessionDurationTotal uint64
	placedCount          uint64
	unscheduledCount     uint64
	retryCount           uint64
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of timetable storage calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_generation_sessions_total",
			Help: "Generation sessions by mode",
		}, []string{"mode"}),
		classesPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_classes_placed_total",
			Help: "Classes placed by the assignment engine",
		}),
		classesUnscheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_classes_unscheduled_total",
			Help: "Requested classes the engine could not place",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetable_generation_duration_seconds",
			Help:    "Wall time of generation sessions",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		persistenceRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_persistence_retries_total",
			Help: "Rate-limited storage calls that were retried",
		}, []string{"operation"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheLookups,
		m.dbQueryDuration,
		m.sessions, m.classesPlaced, m.classesUnscheduled, m.generationDuration, m.persistenceRetries,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records the duration of a storage call.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveGeneration records the outcome of one generation session.
func (m *MetricsService) ObserveGeneration(mode models.GenerationMode, placed, unscheduled int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(string(mode)).Inc()
	m.generationDuration.Observe(duration.Seconds())
	if placed > 0 {
		m.classesPlaced.Add(float64(placed))
		atomic.AddUint64(&m.placedCount, uint64(placed))
	}
	if unscheduled > 0 {
		m.classesUnscheduled.Add(float64(unscheduled))
		atomic.AddUint64(&m.unscheduledCount, uint64(unscheduled))
	}
	atomic.AddUint64(&m.sessionCount, 1)
	atomic.AddUint64(&m.sessionDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordPersistenceRetry counts a backoff before retrying a storage operation.
func (m *MetricsService) RecordPersistenceRetry(operation string) {
	if m == nil {
		return
	}
	m.persistenceRetries.WithLabelValues(operation).Inc()
	atomic.AddUint64(&m.retryCount, 1)
}

// Snapshot aggregates counters for the JSON summary endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	sessions := atomic.LoadUint64(&m.sessionCount)

	snapshot := models.MetricsSnapshot{
		RequestsTotal:      requests,
		CacheHits:          hits,
		CacheMisses:        misses,
		GenerationSessions: sessions,
		ClassesPlaced:      atomic.LoadUint64(&m.placedCount),
		ClassesUnscheduled: atomic.LoadUint64(&m.unscheduledCount),
		PersistenceRetries: atomic.LoadUint64(&m.retryCount),
		Goroutines:         runtime.NumGoroutine(),
		GeneratedAt:        time.Now().UTC(),
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(atomic.LoadUint64(&m.requestDurationTotal)) / float64(requests) / float64(time.Millisecond)
	}
	if total := hits + misses; total > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(total)
	}
	if sessions > 0 {
		snapshot.AverageGenerationMs = float64(atomic.LoadUint64(&m.sessionDurationTotal)) / float64(sessions) / float64(time.Millisecond)
	}
	return snapshot
}
