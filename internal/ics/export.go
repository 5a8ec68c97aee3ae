package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"gridgen/internal/model"
)

// ProductID identifies calendars written by Export.
const ProductID = "-//gridgen//activity schedule//EN"

// ExportOptions controls calendar output.
type ExportOptions struct {
	// Category is written as CATEGORIES on every event, usually the
	// pattern name.
	Category string

	// Duration of each event. Zero means one minute.
	Duration time.Duration

	// Stamp is the DTSTAMP value. Zero means now.
	Stamp time.Time
}

// Export renders events as a VCALENDAR, one VEVENT per event. UIDs are
// derived from the timestamp and position so re-exporting the same
// schedule yields the same UIDs.
func Export(events []model.ActivityEvent, opts ExportOptions) string {
	if opts.Duration <= 0 {
		opts.Duration = time.Minute
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for i, ev := range events {
		uid := fmt.Sprintf("%s-%05d@gridgen", ev.At.UTC().Format("20060102T150405Z"), i)
		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(opts.Stamp)
		ve.SetStartAt(ev.At)
		ve.SetEndAt(ev.At.Add(opts.Duration))
		ve.SetSummary(ev.Label)
		if opts.Category != "" {
			ve.AddProperty(ical.ComponentPropertyCategories, opts.Category)
		}
	}
	return cal.Serialize()
}
