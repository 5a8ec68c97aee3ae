package pattern

import (
	"math/rand/v2"
	"time"
)

const (
	gateJitter      = 0.1
	spikeJitterLow  = 0.5
	spikeJitterHigh = 1.5
	offDayChance    = 0.3
)

// DayVolume is the outcome of one DailyVolume evaluation.
type DayVolume struct {
	// Worked is false when the work-day gate rejected the day.
	Worked bool
	Spiked bool
	// PreFloor is the count before the zero-floor rule.
	PreFloor int
	Count    int
}

// DailyVolume computes one day's event count. The draw order is fixed:
// work gate, base range, weekly rhythm, spike, zero floor. Changing it
// changes the distribution.
func DailyVolume(date time.Time, cfg PatternConfig, r *rand.Rand) DayVolume {
	p := cfg.Intensity.Profile()
	weekend := IsWeekend(date)

	prob := p.WeekdayWorkProb
	if weekend {
		prob = p.WeekendWorkProb
	}
	prob = clamp01(prob + uniform(r, -gateJitter, gateJitter))
	if r.Float64() >= prob {
		return DayVolume{}
	}

	lo, hi := p.WeekdayMin, p.WeekdayMax
	if weekend {
		lo, hi = p.WeekendMin, p.WeekendMax
	}
	count := intBetween(r, lo, hi)

	if cfg.UseWeeklyRhythm {
		count = int(float64(count) * WeeklyMultiplier(date.Weekday(), r))
	}

	out := DayVolume{Worked: true}
	if r.Float64() < cfg.SpikeProbability {
		mult := cfg.SpikeMultiplier + uniform(r, spikeJitterLow, spikeJitterHigh)
		count = min(int(float64(count)*mult), p.SpikeCap)
		out.Spiked = true
	}

	out.PreFloor = count
	if count == 0 && r.Float64() < offDayChance {
		out.Count = 0
		return out
	}
	out.Count = max(count, 1)
	return out
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
