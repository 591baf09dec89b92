package ports

import (
	"context"
	"time"

	"btcTracker/internal/domain"
)

// CandleSource fetches the most recent candles for a symbol, used for
// historical seeding.
type CandleSource interface {
	// GetKlines retrieves up to limit of the most recent candles for the
	// given symbol and interval, ordered ascending by timestamp.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
}

// RangeCandleSource fetches candles for an explicit time range, used
// for gap backfill. Implementations may return fewer candles than the
// range covers (partial exchange availability); that is not an error.
type RangeCandleSource interface {
	// GetCandlesRange retrieves all candles between start and end
	// (inclusive hour boundaries), ordered ascending with no duplicate
	// timestamps.
	GetCandlesRange(ctx context.Context, symbol, granularity string, start, end time.Time) ([]*domain.Candle, error)
}
