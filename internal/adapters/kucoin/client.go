// Package kucoin implements the backfill candle source against the
// KuCoin public market-data API. No authentication is required for the
// candles endpoint.
package kucoin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	"btcTracker/internal/domain"
	"btcTracker/internal/ports"
)

const (
	defaultBaseURL     = "https://api.kucoin.com"
	candlesPath        = "/api/v1/market/candles"
	successCode        = "200000"
	defaultMaxAttempts = 5
	defaultBackoffMin  = 1 * time.Second
	defaultBackoffMax  = 30 * time.Second
	// Public endpoints allow well over this; stay comfortably under.
	defaultRequestsPerSecond = 10
)

// Client implements the ports.RangeCandleSource interface over the
// KuCoin REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	logger      ports.Logger
	limiter     *rate.Limiter
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
}

// Config holds configuration specific to the KuCoin client adapter.
type Config struct {
	BaseURL     string
	Logger      ports.Logger
	Timeout     time.Duration
	MaxAttempts int           // retry attempts for rate-limit and transient failures
	BackoffMin  time.Duration // first retry delay
	BackoffMax  time.Duration // retry delay ceiling
}

// New creates a new KuCoin client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for KuCoin client")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffMin := cfg.BackoffMin
	if backoffMin <= 0 {
		backoffMin = defaultBackoffMin
	}
	backoffMax := cfg.BackoffMax
	if backoffMax <= 0 {
		backoffMax = defaultBackoffMax
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		logger:      cfg.Logger,
		limiter:     rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
		maxAttempts: maxAttempts,
		backoffMin:  backoffMin,
		backoffMax:  backoffMax,
	}, nil
}

// candlesResponse is the KuCoin success envelope. Each data row is
// [time, open, close, high, low, volume, turnover] as strings, newest
// first.
type candlesResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// GetCandlesRange retrieves all candles between start and end
// (inclusive hour boundaries), ordered ascending with no duplicate
// timestamps. The exchange may cover the range only partially; whatever
// it returns is passed through.
func (c *Client) GetCandlesRange(ctx context.Context, symbol, granularity string, start, end time.Time) ([]*domain.Candle, error) {
	op := "GetCandlesRange"
	start = domain.FloorHour(start)
	end = domain.FloorHour(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%s failed: %w: range end %s before start %s", op, ports.ErrInvalidRequest, end, start)
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("type", granularity)
	query.Set("startAt", strconv.FormatInt(start.Unix(), 10))
	// endAt is exclusive; push it one bucket past the last wanted hour.
	query.Set("endAt", strconv.FormatInt(end.Add(domain.CandleDuration).Unix(), 10))
	requestURL := c.baseURL + candlesPath + "?" + query.Encode()

	rows, err := c.fetchWithRetry(ctx, requestURL, op)
	if err != nil {
		return nil, err
	}

	candles := make([]*domain.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := translateRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
		}
		// Guard against the exchange returning buckets outside the
		// requested range.
		if candle.Timestamp.Before(start) || candle.Timestamp.After(end) {
			continue
		}
		candles = append(candles, candle)
	}

	domain.SortCandles(candles)
	candles = domain.DedupeCandles(candles)

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol,
		"start":  start,
		"end":    end,
		"count":  len(candles),
	})
	return candles, nil
}

// fetchWithRetry issues the request, retrying rate-limit and transient
// failures with bounded exponential backoff.
func (c *Client) fetchWithRetry(ctx context.Context, requestURL, op string) ([][]string, error) {
	boff := &backoff.Backoff{
		Min:    c.backoffMin,
		Max:    c.backoffMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s canceled: %w: %w", op, ports.ErrContextCanceled, err)
		}

		rows, retryable, err := c.fetchOnce(ctx, requestURL, op)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxAttempts {
			return nil, lastErr
		}

		delay := boff.Duration()
		c.logger.Warn(ctx, "KuCoin request failed, backing off", map[string]interface{}{
			"operation": op,
			"attempt":   attempt,
			"delay":     delay.String(),
			"error":     err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s canceled: %w: %w", op, ports.ErrContextCanceled, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// fetchOnce performs a single request. The second return value reports
// whether the failure is worth retrying.
func (c *Client) fetchOnce(ctx context.Context, requestURL, op string) ([][]string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false, fmt.Errorf("%s canceled: %w: %w", op, ports.ErrContextCanceled, err)
		}
		return nil, true, fmt.Errorf("%s failed: %w: %w", op, ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("%s failed: %w: HTTP %d", op, ports.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%s failed: %w: HTTP %d", op, ports.ErrExchangeUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("%s failed: %w: HTTP %d", op, ports.ErrInvalidRequest, resp.StatusCode)
	}

	var body candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("%s failed: %w: decoding response: %w", op, ports.ErrInvalidRequest, err)
	}
	if body.Code != successCode {
		return nil, false, fmt.Errorf("%s failed: %w: exchange code %s (%s)", op, ports.ErrInvalidRequest, body.Code, body.Msg)
	}
	return body.Data, false, nil
}

// translateRow converts one KuCoin candle row into a domain candle. The
// timestamp is hour-aligned UTC.
func translateRow(row []string) (*domain.Candle, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("candle row has %d fields, want at least 6", len(row))
	}

	sec, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse candle time '%s': %w", row[0], err)
	}
	open, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse open price '%s': %w", row[1], err)
	}
	closePrice, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse close price '%s': %w", row[2], err)
	}
	high, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse high price '%s': %w", row[3], err)
	}
	low, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse low price '%s': %w", row[4], err)
	}
	volume, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse volume '%s': %w", row[5], err)
	}

	return &domain.Candle{
		Timestamp: domain.FloorHour(time.Unix(sec, 0)),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
