package domain

import (
	"context"
	"time"
)

// interface for external API calls
type AdSource interface {
	FetchAds(ctx context.Context, params FetchParams) ([]Ad, error)
}

// AdCache holds fetched ad lists for a bounded time. It is owned by the
// calling layer; the pivot engine never sees it.
type AdCache interface {
	Get(ctx context.Context, key string) ([]Ad, bool, error)
	Set(ctx context.Context, key string, ads []Ad, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// interface for data export
type ExportClient interface {
	Export(ctx context.Context, data ExportData) error
}
