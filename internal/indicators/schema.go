// Package indicators enriches an ordered hourly candle series with a
// fixed, closed set of technical indicator columns. Rolling-window math
// is delegated to github.com/markcheno/go-talib; the lunar phase comes
// from an astronomical ephemeris calculation on the timestamp alone.
package indicators

import "fmt"

// Document field names for every indicator column. These are the exact
// keys written to the database.
const (
	ColSMA50  = "SMA_50"
	ColSMA100 = "SMA_100"
	ColSMA200 = "SMA_200"

	ColEMA20  = "EMA_20"
	ColEMA50  = "EMA_50"
	ColEMA100 = "EMA_100"
	ColEMA200 = "EMA_200"

	ColRSI       = "RSI"
	ColStochRSI  = "Stoch_RSI"
	ColStochRSIK = "Stoch_RSI_K"
	ColStochRSID = "Stoch_RSI_D"

	ColBBHigh = "BB_High"
	ColBBLow  = "BB_Low"

	ColIchimokuConversion = "Ichimoku_Conversion"
	ColIchimokuBase       = "Ichimoku_Base"
	ColIchimokuA          = "Ichimoku_A"
	ColIchimokuB          = "Ichimoku_B"

	ColDonchianHigh = "Donchian_High"
	ColDonchianLow  = "Donchian_Low"
	ColDonchianMid  = "Donchian_Mid"

	ColFib236 = "Fib_0.236"
	ColFib382 = "Fib_0.382"
	ColFib500 = "Fib_0.5"
	ColFib618 = "Fib_0.618"
	ColFib100 = "Fib_1.0"

	ColHDPRMA       = "HDPR_MA"
	ColHDPRDistance = "HDPR_Distance"
	ColHDPRSignal   = "HDPR_Signal"

	ColMACDLine      = "MACD_Line"
	ColMACDSignal    = "MACD_Signal"
	ColMACDHistogram = "MACD_Histogram"

	ColMoonPhase = "Moon_Phase"
)

// Column declares one indicator output and the minimum number of
// trailing candles (itself included) a row needs before the value is
// defined. Rows inside the warmup window carry NaN.
type Column struct {
	Name      string
	MinWindow int
}

// Schema returns the closed set of indicator columns. Adding an
// indicator means extending this declaration; nothing else in the
// pipeline enumerates column names.
func Schema() []Column {
	return []Column{
		{Name: ColSMA50, MinWindow: 50},
		{Name: ColSMA100, MinWindow: 100},
		{Name: ColSMA200, MinWindow: 200},

		{Name: ColEMA20, MinWindow: 20},
		{Name: ColEMA50, MinWindow: 50},
		{Name: ColEMA100, MinWindow: 100},
		{Name: ColEMA200, MinWindow: 200},

		{Name: ColRSI, MinWindow: 15},
		{Name: ColStochRSI, MinWindow: 28},
		{Name: ColStochRSIK, MinWindow: 30},
		{Name: ColStochRSID, MinWindow: 32},

		{Name: ColBBHigh, MinWindow: 20},
		{Name: ColBBLow, MinWindow: 20},

		{Name: ColIchimokuConversion, MinWindow: 9},
		{Name: ColIchimokuBase, MinWindow: 26},
		{Name: ColIchimokuA, MinWindow: 26},
		{Name: ColIchimokuB, MinWindow: 52},

		{Name: ColDonchianHigh, MinWindow: 20},
		{Name: ColDonchianLow, MinWindow: 20},
		{Name: ColDonchianMid, MinWindow: 20},

		{Name: ColFib236, MinWindow: 1},
		{Name: ColFib382, MinWindow: 1},
		{Name: ColFib500, MinWindow: 1},
		{Name: ColFib618, MinWindow: 1},
		{Name: ColFib100, MinWindow: 1},

		{Name: ColHDPRMA, MinWindow: 50},
		{Name: ColHDPRDistance, MinWindow: 50},
		{Name: ColHDPRSignal, MinWindow: 50},

		{Name: ColMACDLine, MinWindow: 34},
		{Name: ColMACDSignal, MinWindow: 34},
		{Name: ColMACDHistogram, MinWindow: 34},

		{Name: ColMoonPhase, MinWindow: 1},
	}
}

// validateSchema checks the declared columns once at startup: names are
// unique and every window requirement is positive.
func validateSchema(schema []Column) error {
	seen := make(map[string]struct{}, len(schema))
	for _, col := range schema {
		if col.Name == "" {
			return fmt.Errorf("indicator column with empty name")
		}
		if col.MinWindow < 1 {
			return fmt.Errorf("indicator column %s has non-positive window %d", col.Name, col.MinWindow)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("duplicate indicator column %s", col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}
