package pattern

import (
	"fmt"
	"math"
)

// DurationRange is an inclusive (Min, Max) range of vacation days.
type DurationRange struct {
	Min int
	Max int
}

// PatternConfig parameterizes the scheduling engine. It is read-only once
// a generator has been built from it.
type PatternConfig struct {
	Intensity       IntensityLevel
	UseWeeklyRhythm bool

	// VacationFrequency is the per-day probability of starting a vacation.
	VacationFrequency float64
	VacationDuration  DurationRange

	// SpikeProbability is the per-day chance of an amplified day.
	SpikeProbability float64
	SpikeMultiplier  float64
}

// NewPatternConfig validates and returns a config.
func NewPatternConfig(cfg PatternConfig) (PatternConfig, error) {
	if err := cfg.Validate(); err != nil {
		return PatternConfig{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine must never see. Nothing is clamped here.
func (c PatternConfig) Validate() error {
	if !c.Intensity.Valid() {
		return fmt.Errorf("%w: intensity %d out of range", ErrInvalidConfig, int(c.Intensity))
	}
	if err := checkProbability("vacation_frequency", c.VacationFrequency); err != nil {
		return err
	}
	if err := checkProbability("spike_probability", c.SpikeProbability); err != nil {
		return err
	}
	if c.VacationDuration.Min < 0 {
		return fmt.Errorf("%w: vacation_duration min %d is negative", ErrInvalidConfig, c.VacationDuration.Min)
	}
	if c.VacationDuration.Min > c.VacationDuration.Max {
		return fmt.Errorf("%w: vacation_duration min %d > max %d", ErrInvalidConfig, c.VacationDuration.Min, c.VacationDuration.Max)
	}
	if math.IsNaN(c.SpikeMultiplier) || math.IsInf(c.SpikeMultiplier, 0) || c.SpikeMultiplier < 0 {
		return fmt.Errorf("%w: spike_multiplier %v must be >= 0", ErrInvalidConfig, c.SpikeMultiplier)
	}
	return nil
}

func checkProbability(field string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidConfig, field, p)
	}
	return nil
}
