package pattern

import (
	"fmt"
	"strings"
)

// IntensityLevel is one of the five activity tiers.
type IntensityLevel int

const (
	Casual IntensityLevel = iota
	Active
	Maintainer
	Hyperactive
	Extreme
)

// Profile holds the fixed per-level volume ranges and work probabilities.
// Ranges are inclusive.
type Profile struct {
	WeekdayMin, WeekdayMax int
	WeekendMin, WeekendMax int

	WeekdayWorkProb float64
	WeekendWorkProb float64

	// SpikeCap bounds the count of an amplified day.
	SpikeCap int
}

var profiles = [...]Profile{
	Casual:      {WeekdayMin: 0, WeekdayMax: 5, WeekendMin: 0, WeekendMax: 3, WeekdayWorkProb: 0.15, WeekendWorkProb: 0.05, SpikeCap: 15},
	Active:      {WeekdayMin: 0, WeekdayMax: 15, WeekendMin: 0, WeekendMax: 5, WeekdayWorkProb: 0.65, WeekendWorkProb: 0.15, SpikeCap: 40},
	Maintainer:  {WeekdayMin: 2, WeekdayMax: 25, WeekendMin: 0, WeekendMax: 10, WeekdayWorkProb: 0.75, WeekendWorkProb: 0.25, SpikeCap: 60},
	Hyperactive: {WeekdayMin: 5, WeekdayMax: 45, WeekendMin: 0, WeekendMax: 20, WeekdayWorkProb: 0.85, WeekendWorkProb: 0.35, SpikeCap: 100},
	Extreme:     {WeekdayMin: 10, WeekdayMax: 80, WeekendMin: 2, WeekendMax: 35, WeekdayWorkProb: 0.92, WeekendWorkProb: 0.50, SpikeCap: 150},
}

var levelNames = [...]string{
	Casual:      "casual",
	Active:      "active",
	Maintainer:  "maintainer",
	Hyperactive: "hyperactive",
	Extreme:     "extreme",
}

// Valid reports whether l is one of the defined levels.
func (l IntensityLevel) Valid() bool {
	return l >= Casual && l <= Extreme
}

// Profile returns the level's parameter table. It panics on an invalid level;
// configs are validated before they reach the engine.
func (l IntensityLevel) Profile() Profile {
	return profiles[l]
}

func (l IntensityLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("IntensityLevel(%d)", int(l))
	}
	return levelNames[l]
}

// ParseIntensity maps a level name (case-insensitive) to its IntensityLevel.
func ParseIntensity(s string) (IntensityLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			return IntensityLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown intensity %q", ErrInvalidConfig, s)
}

// Levels returns all levels in ascending order.
func Levels() []IntensityLevel {
	return []IntensityLevel{Casual, Active, Maintainer, Hyperactive, Extreme}
}
