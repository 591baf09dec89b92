package indicators

import (
	"math"
	"time"

	moonphase "github.com/janczer/goMoonPhase"
)

// Moon cycle labels, matching the stored document values.
const (
	MoonNew          = "New Moon"
	MoonFirstQuarter = "First Quarter"
	MoonFull         = "Full Moon"
	MoonLastQuarter  = "Last Quarter"
)

// moonPhaseDegrees returns the position within the synodic cycle as an
// angle in [0, 360), where 0 is the new moon and 180 the full moon.
// Depends only on the timestamp; deterministic.
func moonPhaseDegrees(t time.Time) float64 {
	frac := moonphase.New(t.UTC()).Phase()
	return math.Mod(frac*360+360, 360)
}

// moonCycle buckets a phase angle into the four stored cycle labels.
func moonCycle(degrees float64) string {
	switch {
	case degrees < 45:
		return MoonNew
	case degrees < 135:
		return MoonFirstQuarter
	case degrees < 225:
		return MoonFull
	case degrees < 315:
		return MoonLastQuarter
	default:
		return MoonNew
	}
}
