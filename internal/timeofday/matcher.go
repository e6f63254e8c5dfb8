// Package timeofday maps timestamps to listening periods and scores how well
// a track's audio profile fits the current period. Everything here is pure:
// identical input always produces identical output.
package timeofday

import (
	"time"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// Period is one of the four fixed clock-hour partitions.
type Period string

// Listening periods. Boundaries wrap at midnight: night spans [22,24)∪[0,5).
const (
	Morning   Period = "morning"   // [5,12)
	Afternoon Period = "afternoon" // [12,17)
	Evening   Period = "evening"   // [17,22)
	Night     Period = "night"     // [22,5)
)

// Periods lists all periods.
var Periods = []Period{Morning, Afternoon, Evening, Night}

// Context is the complete time context for one timestamp: the period label,
// the ideal feature targets, and the influence weight in (1,2].
type Context struct {
	Hour   int
	Period Period
	Ideal  domain.FeatureVector
	Weight float64
}

type periodSpec struct {
	startHour int // inclusive
	endHour   int // exclusive; start > end means the span wraps midnight
	energy    float64
	valence   float64
	weight    float64
}

var specs = map[Period]periodSpec{
	Morning:   {startHour: 5, endHour: 12, energy: 0.7, valence: 0.8, weight: 1.2},
	Afternoon: {startHour: 12, endHour: 17, energy: 0.6, valence: 0.6, weight: 1.0},
	Evening:   {startHour: 17, endHour: 22, energy: 0.4, valence: 0.5, weight: 1.1},
	Night:     {startHour: 22, endHour: 5, energy: 0.3, valence: 0.4, weight: 1.3},
}

// targetFeatures are the features each period defines an ideal value for.
var targetFeatures = []string{domain.FeatureEnergy, domain.FeatureValence}

// PeriodFor returns the period containing the given hour (0-23). Every hour
// maps to exactly one period.
func PeriodFor(hour int) Period {
	hour = ((hour % 24) + 24) % 24
	for _, p := range Periods {
		s := specs[p]
		if s.startHour > s.endHour { // wraps midnight
			if hour >= s.startHour || hour < s.endHour {
				return p
			}
		} else if hour >= s.startHour && hour < s.endHour {
			return p
		}
	}
	return Afternoon // unreachable: the specs partition the full clock
}

// At returns the time context for a timestamp.
func At(t time.Time) Context {
	return AtHour(t.Hour())
}

// AtHour returns the time context for an hour of day.
func AtHour(hour int) Context {
	p := PeriodFor(hour)
	s := specs[p]
	return Context{
		Hour:   ((hour % 24) + 24) % 24,
		Period: p,
		Ideal: domain.FeatureVector{
			domain.FeatureEnergy:  s.energy,
			domain.FeatureValence: s.valence,
		},
		Weight: s.weight,
	}
}

// MatchScore returns how well a feature vector matches the period's ideal
// targets, in [0,1] where 1 is a perfect match. Computed as one minus the
// mean absolute difference over the target features.
func (c Context) MatchScore(fv domain.FeatureVector) float64 {
	var sum float64
	for _, name := range targetFeatures {
		d := fv.Get(name) - c.Ideal.Get(name)
		if d < 0 {
			d = -d
		}
		sum += d
	}
	score := 1 - sum/float64(len(targetFeatures))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Adjust blends a base score with a time match score. Higher weights give the
// time signal proportionally more influence; the (2 - weight) asymmetry is an
// intentional design constant and must not be simplified to a plain linear
// interpolation.
func (c Context) Adjust(base, match float64) float64 {
	return (base*(2-c.Weight) + match*c.Weight) / 2
}

// Description returns the human-readable preference summary for a period.
func (p Period) Description() string {
	switch p {
	case Morning:
		return "Morning time: Prefer uplifting, energetic songs to start the day"
	case Afternoon:
		return "Afternoon: Balanced energy, good for focus and productivity"
	case Evening:
		return "Evening: Relaxed vibes, winding down from the day"
	case Night:
		return "Night time: Calm, low-energy music for relaxation or sleep"
	}
	return ""
}
