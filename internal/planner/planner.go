// Package planner turns configuration and a request into a generated
// schedule. It resolves pattern names, calibrates against a target total,
// and assembles blackout days from RRULEs and holiday feeds.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridgen/internal/config"
	"gridgen/internal/ics"
	appLog "gridgen/internal/log"
	"gridgen/internal/pattern"
)

// Request describes one generation.
type Request struct {
	// Pattern is a preset or custom pattern name. Empty uses the
	// configured default. Ignored when TargetTotal is set.
	Pattern string

	// Start and End bound the closed date range.
	Start time.Time
	End   time.Time

	// TargetTotal, if positive, calibrates a pattern to produce roughly
	// TargetTotal - Existing events over the range.
	TargetTotal int
	Existing    int
}

// Result is a generated schedule plus how it was derived.
type Result struct {
	Pattern  string                `json:"pattern"`
	Config   pattern.PatternConfig `json:"-"`
	Schedule pattern.Schedule      `json:"-"`

	// Needed is the calibration input (target minus existing) when a
	// target was given.
	Needed int `json:"needed,omitempty"`

	// Reached reports that the target was already met; Schedule is then
	// empty.
	Reached bool `json:"reached,omitempty"`

	Blackout []time.Time `json:"-"`
}

// Planner builds generators from a loaded config.
type Planner struct {
	cfg      *config.Config
	registry *pattern.Registry
	loc      *time.Location
	fetcher  *ics.Fetcher
	extra    []pattern.Option
}

// Option customizes a Planner.
type Option func(*Planner)

// WithFetcher replaces the holiday feed fetcher.
func WithFetcher(f *ics.Fetcher) Option {
	return func(p *Planner) { p.fetcher = f }
}

// WithGeneratorOptions appends options to every generator the planner
// builds, after its own.
func WithGeneratorOptions(opts ...pattern.Option) Option {
	return func(p *Planner) { p.extra = append(p.extra, opts...) }
}

// New validates cfg and returns a Planner.
func New(cfg *config.Config, opts ...Option) (*Planner, error) {
	if cfg == nil {
		return nil, errors.New("planner: nil config")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	p := &Planner{cfg: cfg, registry: reg, loc: loc}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = ics.NewFetcher(cfg.CacheDir, nil)
	}
	return p, nil
}

// Location is the zone schedules are built in.
func (p *Planner) Location() *time.Location {
	return p.loc
}

// Registry resolves pattern names.
func (p *Planner) Registry() *pattern.Registry {
	return p.registry
}

// Today is midnight of the current day in the planner's zone.
func (p *Planner) Today() time.Time {
	y, m, d := time.Now().In(p.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}

// Resolve returns the config for a pattern name, falling back to the
// configured default when name is empty.
func (p *Planner) Resolve(name string) (string, pattern.PatternConfig, error) {
	if name == "" {
		name = p.cfg.Pattern
	}
	cfg, err := p.registry.Lookup(name)
	return name, cfg, err
}

// Blackout returns the days in [start, end] that must stay empty: config
// RRULEs plus every holiday feed that could be fetched. A feed failure is
// logged and skipped.
func (p *Planner) Blackout(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	days, err := ics.ExpandBlackout(p.cfg.Blackout, start, end, p.loc)
	if err != nil {
		return nil, err
	}
	if len(p.cfg.HolidayFeeds) == 0 {
		return days, nil
	}

	feeds := make([]ics.Feed, 0, len(p.cfg.HolidayFeeds))
	for _, f := range p.cfg.HolidayFeeds {
		feeds = append(feeds, ics.Feed{ID: f.ID, URL: f.URL})
	}
	results, ferr := p.fetcher.FetchAll(ctx, feeds)
	if ferr != nil {
		appLog.Warn("some holiday feeds unavailable", "reason", ferr.Error())
	}
	for _, res := range results {
		events, err := ics.ParseICS(res.Feed, res.Body)
		if err != nil {
			continue
		}
		days = append(days, ics.HolidayDates(events, start, end, p.loc)...)
	}
	return days, nil
}

// Plan generates a schedule for req.
func (p *Planner) Plan(ctx context.Context, req Request) (Result, error) {
	start, end := p.midnight(req.Start), p.midnight(req.End)
	if end.Before(start) {
		return Result{}, fmt.Errorf("%w: start %s is after end %s", pattern.ErrInvalidRange,
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	var res Result
	switch {
	case req.TargetTotal > 0:
		res.Pattern = TargetPatternName(req.TargetTotal)
		res.Needed = pattern.Remaining(req.TargetTotal, req.Existing)
		if res.Needed == 0 {
			res.Reached = true
			res.Schedule = pattern.Schedule{Start: start, End: end}
			return res, nil
		}
		cfg, err := pattern.Calibrate(res.Needed, daysBetween(start, end))
		if err != nil {
			return Result{}, err
		}
		res.Config = cfg
	default:
		name, cfg, err := p.Resolve(req.Pattern)
		if err != nil {
			return Result{}, err
		}
		res.Pattern, res.Config = name, cfg
	}

	blackout, err := p.Blackout(ctx, start, end)
	if err != nil {
		return Result{}, err
	}
	res.Blackout = blackout

	opts := []pattern.Option{
		pattern.WithLocation(p.loc),
		pattern.WithWindow(p.cfg.ActivityWindow()),
		pattern.WithBlackout(blackout),
	}
	gen, err := pattern.NewGenerator(res.Config, append(opts, p.extra...)...)
	if err != nil {
		return Result{}, err
	}
	res.Schedule, err = gen.Plan(start, end)
	if err != nil {
		return Result{}, err
	}

	appLog.Debug("schedule planned",
		"pattern", res.Pattern,
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
		"events", res.Schedule.Total(),
		"blackout_days", len(blackout),
	)
	return res, nil
}

// TargetPatternName names schedules calibrated to a target total.
func TargetPatternName(target int) string {
	return fmt.Sprintf("target-%d", target)
}

func (p *Planner) midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}

// daysBetween counts the days of the closed range [start, end].
func daysBetween(start, end time.Time) int {
	a := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours()/24) + 1
}
