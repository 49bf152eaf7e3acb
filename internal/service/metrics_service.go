package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	snapshotFetches *prometheus.CounterVec
	fetchDuration   prometheus.Observer
	viewSources     *prometheus.CounterVec
	exports         *prometheus.CounterVec
	saveFailures    *prometheus.CounterVec
	migrated        *prometheus.CounterVec
	annotations     *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
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
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	snapshotFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_fetch_total",
		Help: "Classroom snapshot fetch attempts by outcome",
	}, []string{"outcome"})

	fetchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_fetch_duration_seconds",
		Help:    "Duration of classroom snapshot fetches",
		Buckets: prometheus.DefBuckets,
	})

	viewSources := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "student_view_source_total",
		Help: "Student views served, by the data source they were built from",
	}, []string{"source", "state"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lesson_exports_total",
		Help: "Exports by kind and result",
	}, []string{"kind", "result"})

	saveFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_save_failures_total",
		Help: "Entity store writes rejected by the persistence substrate",
	}, []string{"entity"})

	migrated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "legacy_migrated_records_total",
		Help: "Records copied from the legacy blob into the record store",
	}, []string{"entity"})

	annotations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "annotation_requests_total",
		Help: "Calls to the annotation service by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		snapshotFetches, fetchDuration, viewSources, exports, saveFailures, migrated, annotations, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		snapshotFetches: snapshotFetches,
		fetchDuration:   fetchDuration,
		viewSources:     viewSources,
		exports:         exports,
		saveFailures:    saveFailures,
		migrated:        migrated,
		annotations:     annotations,
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
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSnapshotFetch counts one snapshot fetch by outcome.
func (m *MetricsService) RecordSnapshotFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.snapshotFetches.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.fetchDuration.Observe(duration.Seconds())
	}
}

// RecordViewSource counts a resolved student view.
func (m *MetricsService) RecordViewSource(source, state string) {
	if m == nil {
		return
	}
	m.viewSources.WithLabelValues(source, state).Inc()
}

// RecordExport counts one export attempt.
func (m *MetricsService) RecordExport(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.exports.WithLabelValues(kind, result).Inc()
}

// RecordSaveFailure counts a rejected entity write.
func (m *MetricsService) RecordSaveFailure(entity string) {
	if m == nil {
		return
	}
	m.saveFailures.WithLabelValues(entity).Inc()
}

// RecordMigrated counts records copied out of the legacy blob.
func (m *MetricsService) RecordMigrated(entity string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.migrated.WithLabelValues(entity).Add(float64(count))
}

// RecordAnnotation counts one annotation call.
func (m *MetricsService) RecordAnnotation(outcome string) {
	if m == nil {
		return
	}
	m.annotations.WithLabelValues(outcome).Inc()
}
