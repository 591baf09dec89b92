package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcTracker/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var seriesStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func syntheticCandles(n int) []*domain.Candle {
	candles := make([]*domain.Candle, n)
	for i := 0; i < n; i++ {
		close := 100 + 10*math.Sin(float64(i)*0.35) + float64(i)*0.02
		candles[i] = &domain.Candle{
			Timestamp: seriesStart.Add(time.Duration(i) * time.Hour),
			Open:      close - 0.4,
			High:      close + 1.2,
			Low:       close - 1.1,
			Close:     close,
			Volume:    5 + float64(i%7),
		}
	}
	return candles
}

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(nopLogger{})
	require.NoError(t, err)
	return calc
}

func TestNewCalculator(t *testing.T) {
	calc := newCalculator(t)
	assert.Equal(t, 200, calc.MinHistory(), "longest declared window drives the minimum history")

	_, err := NewCalculator(nil)
	assert.Error(t, err, "logger is required")
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name        string
		schema      []Column
		expectError bool
	}{
		{
			name:   "declared schema is valid",
			schema: Schema(),
		},
		{
			name:        "duplicate column name",
			schema:      []Column{{Name: "X", MinWindow: 1}, {Name: "X", MinWindow: 2}},
			expectError: true,
		},
		{
			name:        "non-positive window",
			schema:      []Column{{Name: "X", MinWindow: 0}},
			expectError: true,
		},
		{
			name:        "empty name",
			schema:      []Column{{Name: "", MinWindow: 1}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSchema(tt.schema)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnrich_EmptySeries(t *testing.T) {
	calc := newCalculator(t)
	enriched, err := calc.Enrich(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, enriched)
}

func TestEnrich_RejectsUnsortedSeries(t *testing.T) {
	calc := newCalculator(t)
	candles := syntheticCandles(10)
	candles[3], candles[7] = candles[7], candles[3]

	_, err := calc.Enrich(context.Background(), candles)
	require.Error(t, err)
}

func TestEnrich_RejectsDuplicateTimestamps(t *testing.T) {
	calc := newCalculator(t)
	candles := syntheticCandles(10)
	candles[5].Timestamp = candles[4].Timestamp

	_, err := calc.Enrich(context.Background(), candles)
	require.Error(t, err)
}

func TestEnrich_ShortSeriesHasNaNLongColumns(t *testing.T) {
	calc := newCalculator(t)
	candles := syntheticCandles(150)

	enriched, err := calc.Enrich(context.Background(), candles)
	require.NoError(t, err)
	require.Len(t, enriched, 150)

	for _, row := range enriched {
		assert.True(t, math.IsNaN(row.Indicators[ColSMA200]))
		assert.True(t, math.IsNaN(row.Indicators[ColEMA200]))
	}
}

func TestEnrich_WarmupMaskPerColumn(t *testing.T) {
	calc := newCalculator(t)
	enriched, err := calc.Enrich(context.Background(), syntheticCandles(260))
	require.NoError(t, err)

	for _, col := range calc.Schema() {
		last := enriched[col.MinWindow-1].Indicators[col.Name]
		assert.False(t, math.IsNaN(last), "column %s should be defined at row %d", col.Name, col.MinWindow-1)
		if col.MinWindow > 1 {
			inWarmup := enriched[col.MinWindow-2].Indicators[col.Name]
			assert.True(t, math.IsNaN(inWarmup), "column %s should be NaN at row %d", col.Name, col.MinWindow-2)
		}
	}
}

func TestEnrich_FullHistoryFinalRowIsComplete(t *testing.T) {
	calc := newCalculator(t)
	enriched, err := calc.Enrich(context.Background(), syntheticCandles(260))
	require.NoError(t, err)

	final := enriched[len(enriched)-1]
	assert.False(t, final.HasNaN())
	for _, col := range calc.Schema() {
		assert.False(t, math.IsNaN(final.Indicators[col.Name]), "column %s is NaN on the final row", col.Name)
	}
	assert.NotEmpty(t, final.MoonCycle)
}

func TestEnrich_Deterministic(t *testing.T) {
	calc := newCalculator(t)
	candles := syntheticCandles(260)

	first, err := calc.Enrich(context.Background(), candles)
	require.NoError(t, err)
	second, err := calc.Enrich(context.Background(), candles)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].MoonCycle, second[i].MoonCycle)
		for name, v1 := range first[i].Indicators {
			v2 := second[i].Indicators[name]
			// Bitwise comparison so NaN warmup values compare equal too.
			assert.Equal(t, math.Float64bits(v1), math.Float64bits(v2),
				"column %s differs at row %d", name, i)
		}
	}
}

func TestEnrich_SimpleMovingAverageValues(t *testing.T) {
	// A linear close series makes the SMA easy to verify by hand.
	candles := syntheticCandles(60)
	for i, c := range candles {
		c.Close = float64(i + 1)
	}
	calc := newCalculator(t)

	enriched, err := calc.Enrich(context.Background(), candles)
	require.NoError(t, err)

	// SMA_50 over closes 11..60 at the final row.
	expected := (11.0 + 60.0) / 2
	assert.InDelta(t, expected, enriched[59].Indicators[ColSMA50], 1e-9)
}

func TestEnrich_FibonacciLevels(t *testing.T) {
	candles := syntheticCandles(30)
	// Pin the window extremes.
	candles[4].Low = 50
	candles[20].High = 150
	calc := newCalculator(t)

	enriched, err := calc.Enrich(context.Background(), candles)
	require.NoError(t, err)

	row := enriched[29]
	diff := 150.0 - 50.0
	assert.InDelta(t, 150-0.236*diff, row.Indicators[ColFib236], 1e-9)
	assert.InDelta(t, 150-0.382*diff, row.Indicators[ColFib382], 1e-9)
	assert.InDelta(t, 150-0.5*diff, row.Indicators[ColFib500], 1e-9)
	assert.InDelta(t, 150-0.618*diff, row.Indicators[ColFib618], 1e-9)
	assert.InDelta(t, 50.0, row.Indicators[ColFib100], 1e-9)

	// Retracement levels are window aggregates, identical on every row.
	assert.Equal(t, row.Indicators[ColFib500], enriched[0].Indicators[ColFib500])
}

func TestEnrich_HDPRSignalBounds(t *testing.T) {
	calc := newCalculator(t)
	enriched, err := calc.Enrich(context.Background(), syntheticCandles(260))
	require.NoError(t, err)

	for i := hdprWindow - 1; i < len(enriched); i++ {
		sig := enriched[i].Indicators[ColHDPRSignal]
		assert.Contains(t, []float64{-1, 0, 1}, sig, "row %d", i)
	}
}

func TestEnrich_RSIBounds(t *testing.T) {
	calc := newCalculator(t)
	enriched, err := calc.Enrich(context.Background(), syntheticCandles(260))
	require.NoError(t, err)

	for i := rsiPeriod; i < len(enriched); i++ {
		rsi := enriched[i].Indicators[ColRSI]
		assert.GreaterOrEqual(t, rsi, 0.0)
		assert.LessOrEqual(t, rsi, 100.0)
	}
}

func TestMoonCycleBuckets(t *testing.T) {
	tests := []struct {
		degrees  float64
		expected string
	}{
		{0, MoonNew},
		{44.9, MoonNew},
		{90, MoonFirstQuarter},
		{180, MoonFull},
		{270, MoonLastQuarter},
		{340, MoonNew},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, moonCycle(tt.degrees), "degrees=%v", tt.degrees)
	}
}

func TestMoonPhaseDegrees_KnownDates(t *testing.T) {
	// Astronomical new moon: 2024-01-11 11:57 UTC.
	newMoon := moonPhaseDegrees(time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, MoonNew, moonCycle(newMoon))

	// Astronomical full moon: 2024-01-25 17:54 UTC.
	fullMoon := moonPhaseDegrees(time.Date(2024, 1, 25, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, MoonFull, moonCycle(fullMoon))
}

func TestMoonPhaseDegrees_Deterministic(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, moonPhaseDegrees(ts), moonPhaseDegrees(ts))
	assert.Less(t, moonPhaseDegrees(ts), 360.0)
	assert.GreaterOrEqual(t, moonPhaseDegrees(ts), 0.0)
}
