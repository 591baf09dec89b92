package indicators

import (
	"context"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"btcTracker/internal/domain"
	"btcTracker/internal/ports"
)

const (
	rsiPeriod        = 14
	stochRSIPeriod   = 14
	stochSmoothK     = 3
	stochSmoothD     = 3
	bbPeriod         = 20
	bbDeviation      = 2.0
	ichimokuConvWin  = 9
	ichimokuBaseWin  = 26
	ichimokuSpanBWin = 52
	donchianPeriod   = 20
	hdprWindow       = 50
	hdprThreshold    = 0.03
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
)

// Calculator enriches candle series with the declared indicator schema.
// Enrich is a pure function of its input series.
type Calculator struct {
	logger     ports.Logger
	schema     []Column
	minHistory int
}

// NewCalculator creates a calculator, validating the indicator schema
// once at startup.
func NewCalculator(log ports.Logger) (*Calculator, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is required for indicator calculator")
	}
	schema := Schema()
	if err := validateSchema(schema); err != nil {
		return nil, fmt.Errorf("invalid indicator schema: %w", err)
	}
	minHistory := 0
	for _, col := range schema {
		if col.MinWindow > minHistory {
			minHistory = col.MinWindow
		}
	}
	return &Calculator{logger: log, schema: schema, minHistory: minHistory}, nil
}

// Schema returns the calculator's validated column declarations.
func (c *Calculator) Schema() []Column {
	return c.schema
}

// MinHistory returns the trailing candle count needed before the
// longest-window column is defined.
func (c *Calculator) MinHistory() int {
	return c.minHistory
}

// Enrich computes every schema column over the series and returns one
// enriched row per candle. The input must be ordered ascending with no
// duplicate timestamps. Rows whose index falls inside a column's warmup
// window carry NaN for that column.
func (c *Calculator) Enrich(ctx context.Context, candles []*domain.Candle) ([]*domain.EnrichedCandle, error) {
	n := len(candles)
	if n == 0 {
		return nil, nil
	}
	for i := 1; i < n; i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: candle series not strictly ascending at index %d", ports.ErrInvalidRequest, i)
		}
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, cd := range candles {
		highs[i] = cd.High
		lows[i] = cd.Low
		closes[i] = cd.Close
	}

	cols := c.compute(highs, lows, closes, candles)

	enriched := make([]*domain.EnrichedCandle, n)
	for i, cd := range candles {
		vals := make(map[string]float64, len(c.schema))
		for _, col := range c.schema {
			v := cols[col.Name][i]
			if i < col.MinWindow-1 {
				v = math.NaN()
			}
			vals[col.Name] = v
		}
		enriched[i] = &domain.EnrichedCandle{
			Candle:     *cd,
			Indicators: vals,
			MoonCycle:  moonCycle(cols[ColMoonPhase][i]),
		}
	}

	c.logger.Debug(ctx, "Enriched candle series", map[string]interface{}{"rows": n, "columns": len(c.schema)})
	return enriched, nil
}

// compute produces the raw per-column series. Columns that cannot be
// computed on a series shorter than their input requirement come back
// as all-NaN.
func (c *Calculator) compute(highs, lows, closes []float64, candles []*domain.Candle) map[string][]float64 {
	n := len(closes)
	cols := make(map[string][]float64, len(c.schema))

	// guard runs f only when the series is long enough for the library
	// call, otherwise the column is undefined everywhere.
	guard := func(need int, f func() []float64) []float64 {
		if n < need {
			return nanSeries(n)
		}
		return f()
	}

	// Moving averages
	cols[ColSMA50] = guard(50, func() []float64 { return talib.Sma(closes, 50) })
	cols[ColSMA100] = guard(100, func() []float64 { return talib.Sma(closes, 100) })
	cols[ColSMA200] = guard(200, func() []float64 { return talib.Sma(closes, 200) })
	cols[ColEMA20] = guard(20, func() []float64 { return talib.Ema(closes, 20) })
	cols[ColEMA50] = guard(50, func() []float64 { return talib.Ema(closes, 50) })
	cols[ColEMA100] = guard(100, func() []float64 { return talib.Ema(closes, 100) })
	cols[ColEMA200] = guard(200, func() []float64 { return talib.Ema(closes, 200) })

	// RSI and stochastic RSI (raw, %K, %D)
	rsi := guard(rsiPeriod+1, func() []float64 { return talib.Rsi(closes, rsiPeriod) })
	cols[ColRSI] = rsi
	stochRaw := nanSeries(n)
	if n >= rsiPeriod+stochRSIPeriod {
		minRSI := talib.Min(rsi, stochRSIPeriod)
		maxRSI := talib.Max(rsi, stochRSIPeriod)
		for i := rsiPeriod + stochRSIPeriod - 1; i < n; i++ {
			span := maxRSI[i] - minRSI[i]
			if span == 0 {
				stochRaw[i] = math.NaN()
				continue
			}
			stochRaw[i] = (rsi[i] - minRSI[i]) / span
		}
	}
	cols[ColStochRSI] = stochRaw
	cols[ColStochRSIK] = rollingMean(stochRaw, stochSmoothK)
	cols[ColStochRSID] = rollingMean(cols[ColStochRSIK], stochSmoothD)

	// Bollinger bands
	if n >= bbPeriod {
		upper, _, lower := talib.BBands(closes, bbPeriod, bbDeviation, bbDeviation, talib.SMA)
		cols[ColBBHigh] = upper
		cols[ColBBLow] = lower
	} else {
		cols[ColBBHigh] = nanSeries(n)
		cols[ColBBLow] = nanSeries(n)
	}

	// Ichimoku cloud (unshifted spans, matching the stored columns)
	conv := midline(highs, lows, ichimokuConvWin)
	base := midline(highs, lows, ichimokuBaseWin)
	cols[ColIchimokuConversion] = conv
	cols[ColIchimokuBase] = base
	spanA := make([]float64, n)
	for i := range spanA {
		spanA[i] = (conv[i] + base[i]) / 2
	}
	cols[ColIchimokuA] = spanA
	cols[ColIchimokuB] = midline(highs, lows, ichimokuSpanBWin)

	// Donchian channel
	donHigh := guard(donchianPeriod, func() []float64 { return talib.Max(highs, donchianPeriod) })
	donLow := guard(donchianPeriod, func() []float64 { return talib.Min(lows, donchianPeriod) })
	donMid := make([]float64, n)
	for i := range donMid {
		donMid[i] = (donHigh[i] + donLow[i]) / 2
	}
	cols[ColDonchianHigh] = donHigh
	cols[ColDonchianLow] = donLow
	cols[ColDonchianMid] = donMid

	// Fibonacci retracements over the whole working window
	winLow, winHigh := lows[0], highs[0]
	for i := 1; i < n; i++ {
		if lows[i] < winLow {
			winLow = lows[i]
		}
		if highs[i] > winHigh {
			winHigh = highs[i]
		}
	}
	diff := winHigh - winLow
	cols[ColFib236] = constSeries(n, winHigh-0.236*diff)
	cols[ColFib382] = constSeries(n, winHigh-0.382*diff)
	cols[ColFib500] = constSeries(n, winHigh-0.5*diff)
	cols[ColFib618] = constSeries(n, winHigh-0.618*diff)
	cols[ColFib100] = constSeries(n, winLow)

	// HDPR: relative distance of close from its 50-hour mean
	hdprMA := guard(hdprWindow, func() []float64 { return talib.Sma(closes, hdprWindow) })
	hdprDist := make([]float64, n)
	hdprSig := make([]float64, n)
	for i := range hdprDist {
		hdprDist[i] = (closes[i] - hdprMA[i]) / hdprMA[i]
		switch {
		case hdprDist[i] > hdprThreshold:
			hdprSig[i] = -1
		case hdprDist[i] < -hdprThreshold:
			hdprSig[i] = 1
		default:
			hdprSig[i] = 0
		}
	}
	cols[ColHDPRMA] = hdprMA
	cols[ColHDPRDistance] = hdprDist
	cols[ColHDPRSignal] = hdprSig

	// MACD
	if n >= macdSlow+macdSignal {
		line, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		cols[ColMACDLine] = line
		cols[ColMACDSignal] = signal
		cols[ColMACDHistogram] = hist
	} else {
		cols[ColMACDLine] = nanSeries(n)
		cols[ColMACDSignal] = nanSeries(n)
		cols[ColMACDHistogram] = nanSeries(n)
	}

	// Lunar phase from the timestamp
	moon := make([]float64, n)
	for i, cd := range candles {
		moon[i] = moonPhaseDegrees(cd.Timestamp)
	}
	cols[ColMoonPhase] = moon

	return cols
}

// midline is the Ichimoku-style (highest high + lowest low) / 2 over a
// rolling window.
func midline(highs, lows []float64, period int) []float64 {
	n := len(highs)
	if n < period {
		return nanSeries(n)
	}
	maxH := talib.Max(highs, period)
	minL := talib.Min(lows, period)
	out := make([]float64, n)
	for i := range out {
		out[i] = (maxH[i] + minL[i]) / 2
	}
	return out
}

// rollingMean averages each window independently so a NaN only affects
// the windows that contain it.
func rollingMean(src []float64, period int) []float64 {
	out := nanSeries(len(src))
	for i := period - 1; i < len(src); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += src[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	nan := math.NaN()
	for i := range s {
		s[i] = nan
	}
	return s
}

func constSeries(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
