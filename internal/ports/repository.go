package ports

import (
	"context"
	"time"

	"btcTracker/internal/domain"
)

// CandleRepository defines the interface for storing and retrieving
// enriched candles. Writes are idempotent upserts keyed by timestamp.
type CandleRepository interface {
	// Upsert creates or replaces the document for the candle's timestamp.
	Upsert(ctx context.Context, candle *domain.EnrichedCandle) error
	// LatestTimestamp returns the timestamp of the newest stored candle.
	// Returns ErrNotFound when the store is empty.
	LatestTimestamp(ctx context.Context) (time.Time, error)
	// LoadRecent retrieves the newest n candles ordered ascending by
	// timestamp. Fewer than n may be returned when the store is short.
	LoadRecent(ctx context.Context, n int) ([]*domain.Candle, error)
}

// Enricher computes the indicator columns for an ordered candle series.
type Enricher interface {
	// Enrich returns one enriched row per input candle, oldest first.
	// Warmup rows carry NaN values for columns whose window is not yet
	// covered.
	Enrich(ctx context.Context, candles []*domain.Candle) ([]*domain.EnrichedCandle, error)
	// MinHistory returns the number of trailing candles required before
	// the longest-window column is defined.
	MinHistory() int
}
