package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// maxSnapshotBytes bounds how much of a snapshot response is read.
const maxSnapshotBytes = 64 << 20

// FetchResult is a completed HTTP exchange for the snapshot file. Non-2xx
// responses are results, not errors; the caller decides what they mean.
type FetchResult struct {
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

// OK reports a 2xx response.
func (r *FetchResult) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// SnapshotFetcher downloads the published classroom snapshot, defeating any
// cache between it and the static host.
type SnapshotFetcher struct {
	client  *http.Client
	baseURL string
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	last    int64
}

// NewSnapshotFetcher constructs a fetcher for files under baseURL. timeout is
// the whole-request bound of the HTTP client.
func NewSnapshotFetcher(baseURL string, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *SnapshotFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SnapshotFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch GETs <base>/<filename>?t=<stamp>. The stamp strictly increases across
// calls so no two attempts share a URL. Only transport failures are errors.
func (f *SnapshotFetcher) Fetch(ctx context.Context, filename string) (*FetchResult, error) {
	target := fmt.Sprintf("%s/%s?t=%s", f.baseURL, url.PathEscape(filename), strconv.FormatInt(f.nextStamp(), 10))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.RecordSnapshotFetch("network_error", time.Since(start))
		return nil, fmt.Errorf("fetch %s: %w", filename, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		f.metrics.RecordSnapshotFetch("network_error", time.Since(start))
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if len(body) > maxSnapshotBytes {
		f.metrics.RecordSnapshotFetch("too_large", time.Since(start))
		return nil, fmt.Errorf("%s exceeds %d bytes", filename, maxSnapshotBytes)
	}

	result := &FetchResult{URL: target, StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	outcome := "ok"
	if !result.OK() {
		outcome = "http_error"
	}
	f.metrics.RecordSnapshotFetch(outcome, time.Since(start))
	f.logger.Debug("snapshot fetched",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))
	return result, nil
}

func (f *SnapshotFetcher) nextStamp() int64 {
	for {
		prev := atomic.LoadInt64(&f.last)
		next := f.now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if atomic.CompareAndSwapInt64(&f.last, prev, next) {
			return next
		}
	}
}
