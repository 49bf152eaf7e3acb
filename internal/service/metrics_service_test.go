package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsServiceRecordsDomainCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordSnapshotFetch("ok", 20*time.Millisecond)
	m.RecordSnapshotFetch("http_error", 0)
	m.RecordViewSource("network", "READY")
	m.RecordExport("link", false)
	m.RecordExport("link", true)
	m.RecordSaveFailure("student")
	m.RecordMigrated("lesson", 3)
	m.RecordMigrated("lesson", 0)

	assert.Equal(t, float64(1), counterValue(t, m.snapshotFetches.WithLabelValues("ok")))
	assert.Equal(t, float64(1), counterValue(t, m.snapshotFetches.WithLabelValues("http_error")))
	assert.Equal(t, float64(1), counterValue(t, m.viewSources.WithLabelValues("network", "READY")))
	assert.Equal(t, float64(1), counterValue(t, m.exports.WithLabelValues("link", "rejected")))
	assert.Equal(t, float64(1), counterValue(t, m.exports.WithLabelValues("link", "ok")))
	assert.Equal(t, float64(1), counterValue(t, m.saveFailures.WithLabelValues("student")))
	assert.Equal(t, float64(3), counterValue(t, m.migrated.WithLabelValues("lesson")))
}

func TestMetricsServiceCacheHitRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	var metric dto.Metric
	require.NoError(t, m.cacheHitRatio.Write(&metric))
	assert.InDelta(t, 0.5, metric.GetGauge().GetValue(), 0.0001)
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordSnapshotFetch("ok", time.Millisecond)
	m.RecordExport("file", true)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/lessons", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}
