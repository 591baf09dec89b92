// Package app wires the fetch, enrich and upsert stages into the two
// pipeline runs: historical seeding and the hourly backfill update.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"btcTracker/config"
	"btcTracker/internal/domain"
	"btcTracker/internal/gaps"
	"btcTracker/internal/ports"
)

// TrackerService orchestrates the candle pipeline. Each run is
// stateless: continuity between invocations lives entirely in the
// repository.
type TrackerService struct {
	cfg      *config.Config
	logger   ports.Logger
	seeder   ports.CandleSource
	backfill ports.RangeCandleSource
	repo     ports.CandleRepository
	enricher ports.Enricher

	// now is stubbed in tests.
	now func() time.Time
}

// NewTrackerService creates a new application service instance.
func NewTrackerService(
	cfg *config.Config,
	logger ports.Logger,
	seeder ports.CandleSource,
	backfill ports.RangeCandleSource,
	repo ports.CandleRepository,
	enricher ports.Enricher,
) (*TrackerService, error) {
	if cfg == nil || logger == nil || seeder == nil || backfill == nil || repo == nil || enricher == nil {
		return nil, fmt.Errorf("missing required dependencies for TrackerService")
	}
	if cfg.SeedHours < enricher.MinHistory() {
		return nil, fmt.Errorf("configuration SeedHours (%d) below minimum indicator history (%d)",
			cfg.SeedHours, enricher.MinHistory())
	}
	if cfg.WindowHours < enricher.MinHistory() {
		return nil, fmt.Errorf("configuration WindowHours (%d) below minimum indicator history (%d)",
			cfg.WindowHours, enricher.MinHistory())
	}

	return &TrackerService{
		cfg:      cfg,
		logger:   logger,
		seeder:   seeder,
		backfill: backfill,
		repo:     repo,
		enricher: enricher,
		now:      time.Now,
	}, nil
}

// Seed fetches the configured look-back window of hourly candles,
// enriches it, and upserts the rows newest-first. Warmup rows with NaN
// indicators are dropped. Returns the number of rows written.
func (s *TrackerService) Seed(ctx context.Context) (int, error) {
	s.logger.Info(ctx, "Starting historical seed", map[string]interface{}{
		"symbol": s.cfg.SeedSymbol,
		"hours":  s.cfg.SeedHours,
	})

	candles, err := s.seeder.GetKlines(ctx, s.cfg.SeedSymbol, domain.BinanceInterval, s.cfg.SeedHours)
	if err != nil {
		return 0, fmt.Errorf("seed fetch failed: %w", err)
	}
	if len(candles) < s.enricher.MinHistory() {
		return 0, fmt.Errorf("%w: fetched %d candles, need at least %d",
			ports.ErrInsufficientHistory, len(candles), s.enricher.MinHistory())
	}

	enriched, err := s.enricher.Enrich(ctx, candles)
	if err != nil {
		return 0, fmt.Errorf("seed enrichment failed: %w", err)
	}

	// Upsert newest first so the most recent documents land even if a
	// later write fails mid-run.
	written := 0
	skipped := 0
	for i := len(enriched) - 1; i >= 0; i-- {
		row := enriched[i]
		if row.HasNaN() {
			skipped++
			continue
		}
		if err := s.repo.Upsert(ctx, row); err != nil {
			return written, fmt.Errorf("seed upsert at %s failed: %w", row.Timestamp.Format(time.RFC3339), err)
		}
		written++
	}

	s.logger.Info(ctx, "Historical seed complete", map[string]interface{}{
		"written": written,
		"skipped": skipped,
	})
	return written, nil
}

// UpdateHourly loads the sliding window from the repository, detects
// the gap up to the current hour, fetches the missing candles, enriches
// the extended window once, and upserts only the newly fetched rows in
// ascending order. Returns the number of rows written.
func (s *TrackerService) UpdateHourly(ctx context.Context) (int, error) {
	window, err := s.repo.LoadRecent(ctx, s.cfg.WindowHours)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return 0, fmt.Errorf("%w: store is empty, run the seed first", ports.ErrInsufficientHistory)
		}
		return 0, fmt.Errorf("loading sliding window failed: %w", err)
	}
	if len(window) < s.cfg.WindowHours {
		return 0, fmt.Errorf("%w: found %d stored candles, need %d (run the seed first)",
			ports.ErrInsufficientHistory, len(window), s.cfg.WindowHours)
	}

	latest := window[len(window)-1].Timestamp
	now := domain.FloorHour(s.now())
	missing := gaps.Detect(latest, now)
	if len(missing) == 0 {
		s.logger.Info(ctx, "No new candles to fetch", map[string]interface{}{"latest": latest})
		return 0, nil
	}

	s.logger.Info(ctx, "Backfilling missing candles", map[string]interface{}{
		"latest":  latest,
		"now":     now,
		"missing": len(missing),
	})

	var fetched []*domain.Candle
	for _, r := range gaps.Chunk(missing, s.cfg.MaxRangeHours) {
		chunk, err := s.backfill.GetCandlesRange(ctx, s.cfg.BackfillSymbol, domain.KuCoinGranularity, r.Start, r.End)
		if err != nil {
			return 0, fmt.Errorf("backfill fetch for %s..%s failed: %w",
				r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339), err)
		}
		if len(chunk) < r.Hours() {
			// Partial availability: the next scheduled run re-detects
			// whatever is still missing.
			s.logger.Warn(ctx, "Exchange returned a partial range", map[string]interface{}{
				"start": r.Start,
				"end":   r.End,
				"want":  r.Hours(),
				"got":   len(chunk),
			})
		}
		fetched = append(fetched, chunk...)
	}
	if len(fetched) == 0 {
		s.logger.Info(ctx, "Exchange returned no candles for the gap")
		return 0, nil
	}

	domain.SortCandles(fetched)
	fetched = domain.DedupeCandles(fetched)

	// Drop anything already stored so the series stays unique.
	have := make(map[time.Time]struct{}, len(window))
	for _, c := range window {
		have[c.Timestamp] = struct{}{}
	}
	newRows := make(map[time.Time]struct{}, len(fetched))
	series := append([]*domain.Candle{}, window...)
	for _, c := range fetched {
		if _, dup := have[c.Timestamp]; dup {
			continue
		}
		series = append(series, c)
		newRows[c.Timestamp] = struct{}{}
	}
	if len(newRows) == 0 {
		s.logger.Info(ctx, "All fetched candles were already stored")
		return 0, nil
	}

	enriched, err := s.enricher.Enrich(ctx, series)
	if err != nil {
		return 0, fmt.Errorf("enrichment failed: %w", err)
	}

	written := 0
	for _, row := range enriched {
		if _, isNew := newRows[row.Timestamp]; !isNew {
			continue
		}
		if row.HasNaN() {
			s.logger.Warn(ctx, "Skipping row with NaN indicators", map[string]interface{}{
				"timestamp": row.Timestamp,
			})
			continue
		}
		if err := s.repo.Upsert(ctx, row); err != nil {
			return written, fmt.Errorf("upsert at %s failed: %w", row.Timestamp.Format(time.RFC3339), err)
		}
		written++
	}

	s.logger.Info(ctx, "Hourly update complete", map[string]interface{}{"written": written})
	return written, nil
}
