package model

import "time"

// ActivityEvent is a single generated activity at a local date-time.
// Events are produced by the pattern engine and never mutated afterwards.
type ActivityEvent struct {
	At    time.Time
	Label string
}

// DayReason explains why a day in a plan got the count it did.
type DayReason string

const (
	ReasonWorked   DayReason = "worked"
	ReasonOff      DayReason = "off"
	ReasonVacation DayReason = "vacation"
	ReasonBlackout DayReason = "blackout"
)

// DayPlan is the per-day breakdown of a generated schedule.
type DayPlan struct {
	// Date is midnight of the day in the schedule's location.
	Date   time.Time
	Count  int
	Reason DayReason
	// Spiked is true when the spike step amplified the day's count.
	Spiked bool
}

// Interval is a half-open run of days [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered by the interval.
func (i Interval) Days() int {
	n := 0
	for d := i.Start; d.Before(i.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// Contains reports whether the calendar day of t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}
