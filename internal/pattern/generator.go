package pattern

import (
	"fmt"
	"slices"
	"time"

	"gridgen/internal/model"
)

const dateKeyLayout = "2006-01-02"

// ActivityWindow bounds the hour of generated events, inclusive.
type ActivityWindow struct {
	StartHour int
	EndHour   int
}

// DefaultWindow is 06:00 through 23:59.
var DefaultWindow = ActivityWindow{StartHour: 6, EndHour: 23}

// Validate checks that the window lies within one day.
func (w ActivityWindow) Validate() error {
	if w.StartHour < 0 || w.EndHour > 23 || w.StartHour > w.EndHour {
		return fmt.Errorf("%w: activity window %d-%d must satisfy 0 <= start <= end <= 23", ErrInvalidConfig, w.StartHour, w.EndHour)
	}
	return nil
}

// Schedule is the full result of a generation walk.
type Schedule struct {
	// Start and End are midnight of the first and last day in the
	// generator's location.
	Start time.Time
	End   time.Time

	// Events are sorted ascending by timestamp.
	Events []model.ActivityEvent
	Days   []model.DayPlan

	// Vacations are clipped to the walked range.
	Vacations []model.Interval
}

// Total returns the number of events.
func (s Schedule) Total() int {
	return len(s.Events)
}

// Generator runs the date walk for one PatternConfig.
type Generator struct {
	cfg      PatternConfig
	window   ActivityWindow
	loc      *time.Location
	labels   Labeler
	source   SourceFactory
	blackout map[string]struct{}
}

// Option customizes a Generator.
type Option func(*Generator)

// WithWindow sets the activity hour window.
func WithWindow(w ActivityWindow) Option {
	return func(g *Generator) { g.window = w }
}

// WithLocation sets the zone event timestamps are built in.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithLabeler replaces the default message pool.
func WithLabeler(l Labeler) Option {
	return func(g *Generator) {
		if l != nil {
			g.labels = l
		}
	}
}

// WithSource replaces the per-day randomness source.
func WithSource(s SourceFactory) Option {
	return func(g *Generator) {
		if s != nil {
			g.source = s
		}
	}
}

// WithBlackout marks calendar days that never get events. Vacation state is
// still evaluated on those days.
func WithBlackout(days []time.Time) Option {
	return func(g *Generator) {
		for _, d := range days {
			g.blackout[d.Format(dateKeyLayout)] = struct{}{}
		}
	}
}

// NewGenerator validates cfg and the options.
func NewGenerator(cfg PatternConfig, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		cfg:      cfg,
		window:   DefaultWindow,
		loc:      time.Local,
		labels:   NewMessagePool(nil),
		source:   NewDateSeeded(),
		blackout: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.window.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Config returns the generator's pattern config.
func (g *Generator) Config() PatternConfig {
	return g.cfg
}

// Generate returns the events for the closed range [start, end].
func (g *Generator) Generate(start, end time.Time) ([]model.ActivityEvent, error) {
	s, err := g.Plan(start, end)
	if err != nil {
		return nil, err
	}
	return s.Events, nil
}

// Plan walks [start, end] one day at a time. Only the calendar day of start
// and end is used.
func (g *Generator) Plan(start, end time.Time) (Schedule, error) {
	first, last := civil(start), civil(end)
	if last.Before(first) {
		return Schedule{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			first.Format(dateKeyLayout), last.Format(dateKeyLayout))
	}

	vac := NewVacationScheduler(g.cfg)
	out := Schedule{
		Start: g.localMidnight(first),
		End:   g.localMidnight(last),
	}

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		r := g.source.ForDate(day)
		plan := model.DayPlan{Date: g.localMidnight(day)}

		switch {
		case vac.Suppressed(day, r):
			plan.Reason = model.ReasonVacation
		case g.isBlackout(day):
			plan.Reason = model.ReasonBlackout
		default:
			v := DailyVolume(day, g.cfg, r)
			plan.Count = v.Count
			plan.Spiked = v.Spiked
			plan.Reason = model.ReasonOff
			if v.Count > 0 {
				plan.Reason = model.ReasonWorked
			}
			for range v.Count {
				hour := intBetween(r, g.window.StartHour, g.window.EndHour)
				minute := r.IntN(60)
				y, m, d := day.Date()
				out.Events = append(out.Events, model.ActivityEvent{
					At:    time.Date(y, m, d, hour, minute, 0, 0, g.loc),
					Label: g.labels.Label(),
				})
			}
		}
		out.Days = append(out.Days, plan)
	}

	slices.SortStableFunc(out.Events, func(a, b model.ActivityEvent) int {
		return a.At.Compare(b.At)
	})

	limit := last.AddDate(0, 0, 1)
	for _, iv := range vac.Intervals() {
		if iv.End.After(limit) {
			iv.End = limit
		}
		out.Vacations = append(out.Vacations, model.Interval{
			Start: g.localMidnight(iv.Start),
			End:   g.localMidnight(iv.End),
		})
	}
	return out, nil
}

func (g *Generator) isBlackout(day time.Time) bool {
	_, ok := g.blackout[day.Format(dateKeyLayout)]
	return ok
}

func (g *Generator) localMidnight(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.loc)
}

// civil drops the clock and zone of t, keeping its calendar day at UTC
// midnight so day arithmetic never crosses a DST transition.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
