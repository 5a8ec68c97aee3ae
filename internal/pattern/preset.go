package pattern

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Descriptor documents a named preset.
type Descriptor struct {
	Name        string
	Description string
	// Volume is a rough yearly event count.
	Volume  string
	Legacy  bool
	AliasOf string
	Config  PatternConfig
}

var presets = map[string]PatternConfig{
	"casual": {
		Intensity:         Casual,
		UseWeeklyRhythm:   false,
		VacationFrequency: 0.02,
		VacationDuration:  DurationRange{0, 0},
		SpikeProbability:  0.08,
		SpikeMultiplier:   2.5,
	},
	"active": {
		Intensity:         Active,
		UseWeeklyRhythm:   true,
		VacationFrequency: 0.03,
		VacationDuration:  DurationRange{2, 7},
		SpikeProbability:  0.12,
		SpikeMultiplier:   2.0,
	},
	"maintainer": {
		Intensity:         Maintainer,
		UseWeeklyRhythm:   true,
		VacationFrequency: 0.04,
		VacationDuration:  DurationRange{3, 10},
		SpikeProbability:  0.15,
		SpikeMultiplier:   1.8,
	},
	"hyperactive": {
		Intensity:         Hyperactive,
		UseWeeklyRhythm:   true,
		VacationFrequency: 0.025,
		VacationDuration:  DurationRange{2, 5},
		SpikeProbability:  0.20,
		SpikeMultiplier:   2.2,
	},
	"extreme": {
		Intensity:         Extreme,
		UseWeeklyRhythm:   true,
		VacationFrequency: 0.02,
		VacationDuration:  DurationRange{1, 4},
		SpikeProbability:  0.25,
		SpikeMultiplier:   2.5,
	},
	"steady": {
		Intensity:         Active,
		UseWeeklyRhythm:   false,
		VacationFrequency: 0.005,
		VacationDuration:  DurationRange{1, 2},
		SpikeProbability:  0.02,
		SpikeMultiplier:   1.2,
	},
	"sporadic": {
		Intensity:         Active,
		UseWeeklyRhythm:   false,
		VacationFrequency: 0.02,
		VacationDuration:  DurationRange{1, 5},
		SpikeProbability:  0.15,
		SpikeMultiplier:   3.0,
	},
	"contractor": {
		Intensity:         Active,
		UseWeeklyRhythm:   true,
		VacationFrequency: 0.008,
		VacationDuration:  DurationRange{2, 4},
		SpikeProbability:  0.08,
		SpikeMultiplier:   1.4,
	},
}

var aliases = map[string]string{
	"realistic": "active",
}

var descriptors = []Descriptor{
	{Name: "casual", Description: "Weekend tinkerer, occasional bursts", Volume: "~300/year"},
	{Name: "realistic", Description: "Professional developer activity", Volume: "~1,200/year", AliasOf: "active"},
	{Name: "active", Description: "Several projects, steady habits", Volume: "~2,500/year"},
	{Name: "maintainer", Description: "Managing repositories and reviews", Volume: "~5,000/year"},
	{Name: "hyperactive", Description: "Startup pace, heavy open source", Volume: "~12,000/year"},
	{Name: "extreme", Description: "Dozens of events on most days", Volume: "~20,000+/year"},
	{Name: "steady", Description: "Consistent daily activity", Legacy: true},
	{Name: "sporadic", Description: "Irregular bursts of activity", Legacy: true},
	{Name: "contractor", Description: "Weekday focused with occasional weekends", Legacy: true},
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Preset resolves a built-in preset name or alias.
func Preset(name string) (PatternConfig, error) {
	key := normalizeName(name)
	if target, ok := aliases[key]; ok {
		key = target
	}
	cfg, ok := presets[key]
	if !ok {
		return PatternConfig{}, fmt.Errorf("%w: %s", ErrUnknownPattern, name)
	}
	return cfg, nil
}

// Presets lists the built-in presets in display order.
func Presets() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	for i, d := range descriptors {
		d.Config, _ = Preset(d.Name)
		out[i] = d
	}
	return out
}

// Registry resolves built-in presets plus user-defined patterns.
type Registry struct {
	custom map[string]PatternConfig
}

// NewRegistry validates custom patterns. Custom names may not shadow a
// built-in name or alias.
func NewRegistry(custom map[string]PatternConfig) (*Registry, error) {
	r := &Registry{custom: make(map[string]PatternConfig, len(custom))}
	for name, cfg := range custom {
		key := normalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("%w: empty custom pattern name", ErrInvalidConfig)
		}
		if isBuiltin(key) {
			return nil, fmt.Errorf("%w: custom pattern %q shadows a built-in preset", ErrInvalidConfig, key)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("custom pattern %q: %w", key, err)
		}
		r.custom[key] = cfg
	}
	return r, nil
}

func isBuiltin(key string) bool {
	_, preset := presets[key]
	_, alias := aliases[key]
	return preset || alias
}

// Lookup resolves name against built-ins first, then custom patterns.
func (r *Registry) Lookup(name string) (PatternConfig, error) {
	if cfg, err := Preset(name); err == nil {
		return cfg, nil
	}
	if r != nil {
		if cfg, ok := r.custom[normalizeName(name)]; ok {
			return cfg, nil
		}
	}
	return PatternConfig{}, fmt.Errorf("%w: %s", ErrUnknownPattern, name)
}

// Custom returns the sorted names of user-defined patterns.
func (r *Registry) Custom() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.custom))
}
