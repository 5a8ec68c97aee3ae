package ics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "gridgen/internal/log"
)

// maxOccurrences caps one rule's expansion inside a range.
const maxOccurrences = 5000

// ExpandBlackout expands RRULE strings such as
// "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25" into the calendar days they hit
// within [start, end]. Rules are anchored at midnight of start in loc, so
// a rule without BYxxx parts repeats from the first day of the range.
// Returned days are midnight in loc, sorted and unique.
func ExpandBlackout(rules []string, start, end time.Time, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	first, last := midnight(start, loc), midnight(end, loc)
	if last.Before(first) {
		return nil, errors.New("expand: end is before start")
	}

	days := newDaySet(loc)
	for _, raw := range rules {
		raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "RRULE:"))
		if raw == "" {
			continue
		}
		r, err := rrule.StrToRRule(raw)
		if err != nil {
			return nil, fmt.Errorf("blackout rule %q: %w", raw, err)
		}
		r.DTStart(first)
		for _, t := range capped(r.Between(first, last, true), raw) {
			days.add(t)
		}
	}
	return days.sorted(), nil
}

// HolidayDates returns the calendar days within [start, end] covered by
// the given feed events, expanding recurring ones. All-day events cover
// every day of their span; timed events mark the day they start on in loc.
func HolidayDates(events []ParsedEvent, start, end time.Time, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	first, last := midnight(start, loc), midnight(end, loc)
	days := newDaySet(loc)

	for _, ev := range events {
		for _, occ := range occurrences(ev, first, last) {
			span := ev.End.Sub(ev.Start)
			if !ev.AllDay {
				days.addIn(occ.In(loc), first, last)
				continue
			}
			// All-day occurrences are civil dates; walk their span.
			n := max(int(span.Hours()/24), 1)
			for i := range n {
				days.addIn(occ.AddDate(0, 0, i), first, last)
			}
		}
	}
	return days.sorted()
}

func occurrences(ev ParsedEvent, first, last time.Time) []time.Time {
	if ev.RawRRule == "" {
		return []time.Time{ev.Start}
	}
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("holiday rule skipped", "uid", ev.UID, "rrule", ev.RawRRule, "reason", err.Error())
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the window by a day each side; zone offsets and multi-day
	// spans are trimmed by addIn.
	from := time.Date(first.Year(), first.Month(), first.Day()-1, 0, 0, 0, 0, ev.Start.Location())
	to := time.Date(last.Year(), last.Month(), last.Day()+2, 0, 0, 0, 0, ev.Start.Location())
	return capped(set.Between(from, to, true), ev.UID)
}

func capped(ts []time.Time, what string) []time.Time {
	if len(ts) > maxOccurrences {
		appLog.Warn("expansion truncated", "rule", what, "cap", maxOccurrences)
		return ts[:maxOccurrences]
	}
	return ts
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// daySet collects calendar days keyed by their date string.
type daySet struct {
	loc  *time.Location
	days map[string]time.Time
}

func newDaySet(loc *time.Location) *daySet {
	return &daySet{loc: loc, days: make(map[string]time.Time)}
}

// add records the calendar day of t as read in t's own zone.
func (s *daySet) add(t time.Time) {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	s.days[day.Format(time.DateOnly)] = day
}

func (s *daySet) addIn(t time.Time, first, last time.Time) {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	if day.Before(first) || day.After(last) {
		return
	}
	s.days[day.Format(time.DateOnly)] = day
}

func (s *daySet) sorted() []time.Time {
	out := make([]time.Time, 0, len(s.days))
	for _, d := range s.days {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}
