package pattern

import "fmt"

// DampingFactor scales the naive daily rate down, since spikes and vacations
// push the realized mean above it. Bucketing uses the exact ratio
// dampingNum/dampingDen.
const (
	DampingFactor = 0.9
	dampingNum    = 9
	dampingDen    = 10
)

// Ascending damped-rate thresholds; a rate below levelThresholds[i] selects
// level i, anything else Extreme.
var levelThresholds = [...]int64{5, 15, 30, 50}

var (
	calibratedVacation = [...]float64{
		Casual:      0.03,
		Active:      0.02,
		Maintainer:  0.015,
		Hyperactive: 0.01,
		Extreme:     0.008,
	}
	calibratedSpike = [...]float64{
		Casual:      0.18,
		Active:      0.22,
		Maintainer:  0.28,
		Hyperactive: 0.32,
		Extreme:     0.38,
	}
)

const (
	calibratedSpikeMultiplier = 2.8
)

var calibratedDuration = DurationRange{Min: 1, Max: 4}

// DampedRate returns (target / days) * DampingFactor.
func DampedRate(target, days int) float64 {
	if days <= 0 {
		return 0
	}
	return float64(target) / float64(days) * DampingFactor
}

// levelForTarget buckets target/days without floating point, so rates that
// land exactly on a threshold always select the higher level.
func levelForTarget(target, days int) IntensityLevel {
	num := int64(target) * dampingNum
	den := int64(days) * dampingDen
	for i, th := range levelThresholds {
		if num < th*den {
			return IntensityLevel(i)
		}
	}
	return Extreme
}

// Calibrate derives a config whose expected total over days is roughly
// target. It is a heuristic; realized totals vary run to run.
func Calibrate(target, days int) (PatternConfig, error) {
	if days <= 0 {
		return PatternConfig{}, fmt.Errorf("%w: days %d must be positive", ErrInvalidConfig, days)
	}
	if target < 0 {
		return PatternConfig{}, fmt.Errorf("%w: target %d is negative", ErrInvalidConfig, target)
	}
	level := levelForTarget(target, days)
	return PatternConfig{
		Intensity:         level,
		UseWeeklyRhythm:   true,
		VacationFrequency: calibratedVacation[level],
		VacationDuration:  calibratedDuration,
		SpikeProbability:  calibratedSpike[level],
		SpikeMultiplier:   calibratedSpikeMultiplier,
	}, nil
}

// Remaining returns how many events are still needed to reach target given
// existing ones, never below zero.
func Remaining(target, existing int) int {
	return max(target-existing, 0)
}
