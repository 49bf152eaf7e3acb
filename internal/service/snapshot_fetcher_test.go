package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFetcherBustsCaches(t *testing.T) {
	var (
		mu     sync.Mutex
		stamps []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/student_data.json", r.URL.Path)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		mu.Lock()
		stamps = append(stamps, r.URL.Query().Get("t"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"generatedAt":1}`))
	}))
	defer srv.Close()

	fetcher := NewSnapshotFetcher(srv.URL+"/", time.Second, nil, nil)
	frozen := time.Unix(0, 1000)
	fetcher.now = func() time.Time { return frozen }

	for i := 0; i < 3; i++ {
		res, err := fetcher.Fetch(context.Background(), "student_data.json")
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.JSONEq(t, `{"generatedAt":1}`, string(res.Body))
	}

	require.Len(t, stamps, 3)
	prev := int64(0)
	for _, s := range stamps {
		v, err := strconv.ParseInt(s, 10, 64)
		require.NoError(t, err)
		assert.Greater(t, v, prev, "each attempt uses a fresh stamp even when the clock stands still")
		prev = v
	}
}

func TestSnapshotFetcherReturnsHTTPErrorsAsResults(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	metrics := NewMetricsService()
	fetcher := NewSnapshotFetcher(srv.URL, time.Second, metrics, nil)

	res, err := fetcher.Fetch(context.Background(), "class 1.json")
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "404 Not Found", res.Status)
	assert.Contains(t, res.URL, "/class%201.json?t=")
	assert.Equal(t, float64(1), counterValue(t, metrics.snapshotFetches.WithLabelValues("http_error")))
}

func TestSnapshotFetcherNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	metrics := NewMetricsService()
	fetcher := NewSnapshotFetcher(base, time.Second, metrics, nil)
	_, err := fetcher.Fetch(context.Background(), "student_data.json")
	require.Error(t, err)
	assert.Equal(t, float64(1), counterValue(t, metrics.snapshotFetches.WithLabelValues("network_error")))
}
