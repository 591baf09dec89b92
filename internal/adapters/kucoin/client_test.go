package kucoin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcTracker/internal/domain"
	"btcTracker/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:     baseURL,
		Logger:      nopLogger{},
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BackoffMin:  time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

// candleRow renders one KuCoin response row: [time, open, close, high, low, volume, turnover].
func candleRow(ts time.Time, open, close, high, low, volume float64) string {
	return fmt.Sprintf(`["%d","%g","%g","%g","%g","%g","0"]`,
		ts.Unix(), open, close, high, low, volume)
}

func TestGetCandlesRange_ParsesSortsAndDedupes(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Newest first, with a duplicate bucket, as the exchange serves them.
	body := fmt.Sprintf(`{"code":"200000","data":[%s,%s,%s,%s]}`,
		candleRow(start.Add(2*time.Hour), 103, 104, 105, 102, 7),
		candleRow(start.Add(time.Hour), 101, 102, 103, 100, 5),
		candleRow(start.Add(time.Hour), 101, 102, 103, 100, 5),
		candleRow(start, 100, 101, 102, 99, 3),
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/market/candles", r.URL.Path)
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1hour", r.URL.Query().Get("type"))
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	candles, err := client.GetCandlesRange(context.Background(), "BTC-USDT", "1hour", start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 3)

	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i].Timestamp.After(candles[i-1].Timestamp),
			"candles must be strictly ascending")
	}
	assert.Equal(t, start, candles[0].Timestamp)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 102.0, candles[0].High)
	assert.Equal(t, 99.0, candles[0].Low)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 3.0, candles[0].Volume)
}

func TestGetCandlesRange_FiltersOutOfRangeBuckets(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	body := fmt.Sprintf(`{"code":"200000","data":[%s,%s]}`,
		candleRow(start.Add(5*time.Hour), 1, 1, 1, 1, 1),
		candleRow(start, 100, 101, 102, 99, 3),
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	candles, err := client.GetCandlesRange(context.Background(), "BTC-USDT", "1hour", start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, start, candles[0].Timestamp)
}

func TestGetCandlesRange_RetriesAfterRateLimit(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `{"code":"200000","data":[%s]}`, candleRow(start, 100, 101, 102, 99, 3))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	candles, err := client.GetCandlesRange(context.Background(), "BTC-USDT", "1hour", start, start)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, candles, 1)
}

func TestGetCandlesRange_RateLimitExhaustsAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	_, err := client.GetCandlesRange(context.Background(), "BTC-USDT", "1hour", start, start)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.Equal(t, 3, calls)
}

func TestGetCandlesRange_ExchangeErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"400100","msg":"Invalid symbol"}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	_, err := client.GetCandlesRange(context.Background(), "NOPE-USDT", "1hour", start, start)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestGetCandlesRange_EmptyDataIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"200000","data":[]}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	candles, err := client.GetCandlesRange(context.Background(), "BTC-USDT", "1hour", start, start.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestGetCandlesRange_RejectsInvertedRange(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:0")
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	_, err := client.GetCandlesRange(context.Background(), "BTC-USDT", "1hour", start, start.Add(-time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestTranslateRow(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		row         []string
		expectError bool
	}{
		{
			name: "valid row",
			row:  []string{fmt.Sprint(ts.Unix()), "100", "101", "102", "99", "3", "0"},
		},
		{
			name:        "too few fields",
			row:         []string{"1", "2", "3"},
			expectError: true,
		},
		{
			name:        "bad price",
			row:         []string{fmt.Sprint(ts.Unix()), "oops", "101", "102", "99", "3", "0"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candle, err := translateRow(tt.row)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ts, candle.Timestamp)
			// KuCoin rows are [time, open, close, high, low, volume].
			assert.Equal(t, &domain.Candle{
				Timestamp: ts, Open: 100, High: 102, Low: 99, Close: 101, Volume: 3,
			}, candle)
		})
	}
}
