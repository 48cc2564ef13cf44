package repository

import (
	"context"
	"time"

	"EarlyPump/internal/domain/models"
)

// FeedSource fetches one signals feed.
type FeedSource interface {
	FetchFeed(ctx context.Context) (models.SignalFeed, error)
}

// DisplayRegion is the output sink of the renderer. Replace overwrites the whole content.
type DisplayRegion interface {
	Replace(ctx context.Context, content models.RegionContent) error
	Content(ctx context.Context) (models.RegionContent, error)
}

// TickerSource lists 24h tickers of an exchange.
type TickerSource interface {
	Tickers(ctx context.Context) ([]models.Ticker, error)
}

type SignalPublisher interface {
	PublishSignals(ctx context.Context, signals []models.PumpSignal) error
	Close() error
}

type SignalStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, signals []models.PumpSignal) error
	Query(ctx context.Context, coin string, since time.Time, limit int) ([]models.PumpSignal, error)
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordRefresh(state models.RegionState, seconds float64)
	RecordScan(found int, seconds float64)
	RecordPublished(n int)
	RecordStored(n int)
	RecordError(kind string)
}
