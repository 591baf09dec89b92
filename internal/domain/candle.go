package domain

import (
	"math"
	"sort"
	"time"
)

// Interval constants for the single timeframe this system tracks.
const (
	// BinanceInterval is the kline interval string used by the Binance API.
	BinanceInterval = "1h"
	// KuCoinGranularity is the candle type string used by the KuCoin API.
	KuCoinGranularity = "1hour"
	// CandleDuration is the bucket width of one candle.
	CandleDuration = time.Hour
)

// Candle is a single hourly OHLCV record. The timestamp is hour-aligned
// UTC and uniquely identifies the candle.
type Candle struct {
	Timestamp time.Time `bson:"timestamp"`
	Open      float64   `bson:"Open"`
	High      float64   `bson:"High"`
	Low       float64   `bson:"Low"`
	Close     float64   `bson:"Close"`
	Volume    float64   `bson:"Volume"`
}

// EnrichedCandle is a Candle plus the computed indicator columns.
// Indicator values may be NaN when the candle falls inside an
// indicator's warmup window; such rows must never be persisted.
type EnrichedCandle struct {
	Candle
	// Indicators maps column name to value for every column in the
	// indicator schema.
	Indicators map[string]float64
	// MoonCycle is the lunar phase label derived from the timestamp.
	MoonCycle string
}

// HasNaN reports whether any indicator value is NaN. Such rows fall
// inside a warmup window and must not be persisted.
func (e *EnrichedCandle) HasNaN() bool {
	for _, v := range e.Indicators {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// FloorHour truncates t to the top of the hour in UTC.
func FloorHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// SortCandles orders candles ascending by timestamp in place.
func SortCandles(candles []*Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// DedupeCandles removes candles with duplicate timestamps from an
// ascending-sorted slice, keeping the first occurrence.
func DedupeCandles(candles []*Candle) []*Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		if !c.Timestamp.Equal(out[len(out)-1].Timestamp) {
			out = append(out, c)
		}
	}
	return out
}
