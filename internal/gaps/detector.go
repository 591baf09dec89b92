// Package gaps computes the hour boundaries missing between the newest
// stored candle and the current hour, and splits them into bounded
// fetch ranges.
package gaps

import (
	"time"

	"btcTracker/internal/domain"
)

// Range is a contiguous span of hour boundaries, inclusive on both ends.
type Range struct {
	Start time.Time
	End   time.Time
}

// Hours returns the number of hour boundaries the range covers.
func (r Range) Hours() int {
	return int(r.End.Sub(r.Start)/domain.CandleDuration) + 1
}

// Detect returns the hour boundaries strictly after latest, up to and
// including now floored to the hour. An empty slice means no gap.
// If now precedes latest (clock skew) the result is empty rather than
// an error.
func Detect(latest, now time.Time) []time.Time {
	latest = domain.FloorHour(latest)
	now = domain.FloorHour(now)
	if !now.After(latest) {
		return nil
	}

	missing := make([]time.Time, 0, int(now.Sub(latest)/domain.CandleDuration))
	for t := latest.Add(domain.CandleDuration); !t.After(now); t = t.Add(domain.CandleDuration) {
		missing = append(missing, t)
	}
	return missing
}

// Chunk splits an ascending list of hour boundaries into contiguous
// ranges of at most maxHours boundaries each, so a single fetch never
// exceeds the exchange's range limit.
func Chunk(hours []time.Time, maxHours int) []Range {
	if len(hours) == 0 {
		return nil
	}
	if maxHours <= 0 {
		maxHours = len(hours)
	}

	var ranges []Range
	for start := 0; start < len(hours); start += maxHours {
		end := start + maxHours
		if end > len(hours) {
			end = len(hours)
		}
		ranges = append(ranges, Range{Start: hours[start], End: hours[end-1]})
	}
	return ranges
}
