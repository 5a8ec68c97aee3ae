package pattern

import (
	"math/rand/v2"
	"time"
)

const (
	rhythmJitter = 0.05
	rhythmFloor  = 0.1
)

var weekdayBase = [...]float64{
	time.Sunday:    0.6,
	time.Monday:    0.7,
	time.Tuesday:   1.1,
	time.Wednesday: 1.1,
	time.Thursday:  1.1,
	time.Friday:    0.8,
	time.Saturday:  0.6,
}

// WeeklyMultiplier returns the weekday's volume multiplier with ±5% jitter.
// The result is never below 0.1.
func WeeklyMultiplier(wd time.Weekday, r *rand.Rand) float64 {
	m := weekdayBase[wd] + uniform(r, -rhythmJitter, rhythmJitter)
	return max(m, rhythmFloor)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
