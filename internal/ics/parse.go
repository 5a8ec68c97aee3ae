package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "gridgen/internal/log"
)

// ParsedEvent is the subset of a VEVENT the scheduler cares about:
// when it happens and whether it repeats.
type ParsedEvent struct {
	Feed Feed

	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
}

// ParseICS parses one ICS payload. Events that cannot be read are logged
// and skipped so a single bad entry does not hide a whole feed.
//
// All-day values (VALUE=DATE or no time part) are returned at UTC midnight
// of their calendar day. Timed values keep the zone the library resolved.
func ParseICS(feed Feed, body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", feed.ID, "url", redactURL(feed.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(feed, ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", feed.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", feed.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(feed Feed, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Feed: feed}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil || strings.TrimSpace(startProp.Value) == "" {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(startProp)

	start, err := propTime(startProp, out.AllDay, func() (time.Time, error) { return ve.GetStartAt() })
	if err != nil {
		return out, err
	}
	out.Start = start

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, err := propTime(endProp, isDateValue(endProp), func() (time.Time, error) { return ve.GetEndAt() })
		if err == nil {
			out.End = end
		}
	}
	if out.End.IsZero() || !out.End.After(out.Start) {
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for part := range strings.SplitSeq(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, tzidOf(p, out.Start.Location())); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// isDateValue reports whether a date property carries a date without a time.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// propTime resolves a DTSTART/DTEND value. Date values are read directly;
// timed values go through the library's TZID handling, with a plain parse
// as fallback.
func propTime(p *ical.IANAProperty, allDay bool, lib func() (time.Time, error)) (time.Time, error) {
	if allDay {
		return parseICSTime(p.Value, time.UTC)
	}
	if t, err := lib(); err == nil && !t.IsZero() {
		return t, nil
	}
	return parseICSTime(p.Value, tzidOf(p, time.UTC))
}

func tzidOf(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	return fallback
}

// parseICSTime parses the basic DATE / DATE-TIME / UTC DATE-TIME forms.
// Floating values are placed in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
