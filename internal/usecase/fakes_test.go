package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"adpivot/internal/domain"
	"adpivot/internal/infrastructure"
	"adpivot/internal/pivot"
	"adpivot/pkg/logger"
	"adpivot/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var errBoom = errors.New("boom")

type fakeSource struct {
	mu     sync.Mutex
	ads    []domain.Ad
	err    error
	calls  int
	params []domain.FetchParams
}

func (f *fakeSource) FetchAds(ctx context.Context, params domain.FetchParams) ([]domain.Ad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.ads, nil
}

type fakeExporter struct {
	got []domain.ExportData
	err error
}

func (f *fakeExporter) Export(ctx context.Context, data domain.ExportData) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, data)
	return nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]domain.Ad, bool, error) {
	return nil, false, errBoom
}

func (brokenCache) Set(context.Context, string, []domain.Ad, time.Duration) error {
	return errBoom
}

func (brokenCache) Invalidate(context.Context, string) error { return errBoom }

func (brokenCache) Clear(context.Context) error { return errBoom }

func decodeAds(t *testing.T, raw string) []domain.Ad {
	t.Helper()
	var ads []domain.Ad
	if err := json.Unmarshal([]byte(raw), &ads); err != nil {
		t.Fatalf("decode ads: %v", err)
	}
	return ads
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestLoader(source domain.AdSource, cache domain.AdCache) *AdLoader {
	return NewAdLoader(source, cache, time.Minute, "vs", logger.Discard(), newTestMetrics())
}

func newTestService(source domain.AdSource, exporter domain.ExportClient) *PivotService {
	log := logger.Discard()
	loader := newTestLoader(source, infrastructure.NewMemoryAdCache(log))
	return NewPivotService(loader, pivot.New(pivot.WithShowMore(true)), exporter, log, newTestMetrics())
}

const sampleAds = `[
	{"platform": "meta", "title": "Sleep better vs. old method", "spend": 100, "revenue": 300, "impressions": 1000, "clicks": 20,
	 "start_date": "2024-01-01", "f_products": "A", "f_use_case": "Sleep", "f_angles": "Pain", "f_offers": "BOGO"},
	{"platform": "meta", "title": "Focus", "spend": 50, "revenue": 0, "impressions": 500, "clicks": 5,
	 "start_date": "2024-01-02", "f_products": ["A", "B"], "f_use_case": "Focus", "f_angles": ["Pain", "Gain"], "f_offers": "BOGO"},
	{"platform": "TikTok", "title": "Dance", "spend": 10, "impressions": 100, "clicks": 1,
	 "start_date": "2024-02-01", "f_products": "C", "f_use_case": "Sleep"}
]`
