package pattern

import (
	"math/rand/v2"
	"time"

	"gridgen/internal/model"
)

// VacationScheduler tracks suppressed day runs during a single date walk.
// It is not safe for concurrent use and must not outlive the walk.
type VacationScheduler struct {
	frequency float64
	duration  DurationRange

	onVacation bool
	end        time.Time
	intervals  []model.Interval
}

// NewVacationScheduler starts in the active state.
func NewVacationScheduler(cfg PatternConfig) *VacationScheduler {
	return &VacationScheduler{
		frequency: cfg.VacationFrequency,
		duration:  cfg.VacationDuration,
	}
}

// Suppressed advances the scheduler to day and reports whether the day is
// part of a vacation. Days must be passed in ascending order.
//
// The return to active is checked first, so the recorded end date is a
// normal day. A trigger only happens while active, and the trigger day is
// the first vacation day. A drawn length of zero suppresses nothing.
func (v *VacationScheduler) Suppressed(day time.Time, r *rand.Rand) bool {
	if v.onVacation && !day.Before(v.end) {
		v.onVacation = false
	}
	if v.onVacation {
		return true
	}
	if r.Float64() >= v.frequency {
		return false
	}

	n := intBetween(r, v.duration.Min, v.duration.Max)
	if n == 0 {
		return false
	}
	v.end = day.AddDate(0, 0, n)
	v.onVacation = true
	v.intervals = append(v.intervals, model.Interval{Start: day, End: v.end})
	return true
}

// OnVacation reports the current state.
func (v *VacationScheduler) OnVacation() bool {
	return v.onVacation
}

// Intervals returns the vacations started so far. The last one may extend
// past the final day walked.
func (v *VacationScheduler) Intervals() []model.Interval {
	return append([]model.Interval(nil), v.intervals...)
}
