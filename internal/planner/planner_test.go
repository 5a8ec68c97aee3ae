package planner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gridgen/internal/config"
	"gridgen/internal/ics"
	"gridgen/internal/model"
	"gridgen/internal/pattern"
	"gridgen/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	return cfg
}

func newPlanner(t *testing.T, cfg *config.Config, opts ...Option) *Planner {
	t.Helper()
	opts = append(opts, WithGeneratorOptions(
		pattern.WithSource(pattern.FixedEntropy(7)),
		pattern.WithLabeler(pattern.NewSequenceLabeler("a", "b")),
	))
	p, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanNamedPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.Blackout = []string{"FREQ=WEEKLY;BYDAY=SA,SU"}
	p := newPlanner(t, cfg)

	res, err := p.Plan(context.Background(), Request{Pattern: "hyperactive", Start: date(2024, 3, 1), End: date(2024, 3, 31)})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if res.Pattern != "hyperactive" || len(res.Schedule.Days) != 31 {
		t.Fatalf("Plan() pattern=%s days=%d", res.Pattern, len(res.Schedule.Days))
	}
	for _, ev := range res.Schedule.Events {
		if pattern.IsWeekend(ev.At) {
			t.Fatalf("event on blacked-out weekend: %s", ev.At)
		}
	}
	if len(res.Blackout) != 10 {
		t.Fatalf("len(Blackout) = %d, want 10 weekend days in March 2024", len(res.Blackout))
	}
}

func TestPlanDefaultAndUnknownPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pattern = "steady"
	p := newPlanner(t, cfg)

	res, err := p.Plan(context.Background(), Request{Start: date(2024, 1, 1), End: date(2024, 1, 7)})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if res.Pattern != "steady" {
		t.Fatalf("Pattern = %q, want configured default", res.Pattern)
	}

	_, err = p.Plan(context.Background(), Request{Pattern: "nope", Start: date(2024, 1, 1), End: date(2024, 1, 7)})
	if !errors.Is(err, pattern.ErrUnknownPattern) {
		t.Fatalf("Plan(nope) error = %v, want ErrUnknownPattern", err)
	}

	_, err = p.Plan(context.Background(), Request{Start: date(2024, 1, 7), End: date(2024, 1, 1)})
	if !errors.Is(err, pattern.ErrInvalidRange) {
		t.Fatalf("Plan(reversed) error = %v, want ErrInvalidRange", err)
	}
}

func TestPlanTargetTotal(t *testing.T) {
	p := newPlanner(t, testConfig(t))
	ctx := context.Background()

	res, err := p.Plan(ctx, Request{Start: date(2024, 1, 1), End: date(2024, 10, 27), TargetTotal: 6000, Existing: 1000})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if res.Pattern != "target-6000" || res.Needed != 5000 {
		t.Fatalf("Plan() = pattern %s needed %d", res.Pattern, res.Needed)
	}
	// 5000 over 301 days damps to just under 15 per day.
	if res.Config.Intensity != pattern.Active {
		t.Fatalf("Intensity = %s, want active", res.Config.Intensity)
	}

	reached, err := p.Plan(ctx, Request{Start: date(2024, 1, 1), End: date(2024, 1, 31), TargetTotal: 100, Existing: 250})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !reached.Reached || reached.Schedule.Total() != 0 {
		t.Fatalf("Plan() reached=%v total=%d", reached.Reached, reached.Schedule.Total())
	}
}

func TestBlackoutIncludesHolidayFeeds(t *testing.T) {
	feed := strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:newyear
DTSTART;VALUE=DATE:20240101
RRULE:FREQ=YEARLY
SUMMARY:New Year
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.HolidayFeeds = []config.HolidayFeed{
		{ID: "ok", URL: srv.URL + "/h.ics"},
		{ID: "down", URL: "http://127.0.0.1:1/none.ics"},
	}
	p := newPlanner(t, cfg, WithFetcher(ics.NewFetcher(cfg.CacheDir, srv.Client())))

	days, err := p.Blackout(context.Background(), date(2024, 12, 30), date(2025, 1, 2))
	if err != nil {
		t.Fatalf("Blackout() error = %v", err)
	}
	if len(days) != 1 || days[0].Format(time.DateOnly) != "2025-01-01" {
		t.Fatalf("Blackout() = %v", days)
	}
}

type fakeLedger struct {
	latest model.ActivityEvent
	err    error
	counts map[int]int
}

func (f fakeLedger) LatestEvent(context.Context) (model.ActivityEvent, error) {
	return f.latest, f.err
}

func (f fakeLedger) CountInYear(_ context.Context, year int) (int, error) {
	return f.counts[year], nil
}

func TestDefaultStart(t *testing.T) {
	p := newPlanner(t, testConfig(t))
	ctx := context.Background()
	end := date(2024, 6, 30)

	got, err := p.DefaultStart(ctx, nil, end)
	if err != nil || !got.Equal(date(2023, 7, 1)) {
		t.Fatalf("DefaultStart(nil) = %s, %v", got, err)
	}

	got, err = p.DefaultStart(ctx, fakeLedger{err: store.ErrNotFound}, end)
	if err != nil || !got.Equal(date(2023, 7, 1)) {
		t.Fatalf("DefaultStart(empty) = %s, %v", got, err)
	}

	latest := fakeLedger{latest: model.ActivityEvent{At: time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)}}
	got, err = p.DefaultStart(ctx, latest, end)
	if err != nil || !got.Equal(date(2024, 6, 1)) {
		t.Fatalf("DefaultStart(latest) = %s, %v", got, err)
	}

	caughtUp := fakeLedger{latest: model.ActivityEvent{At: time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)}}
	got, err = p.DefaultStart(ctx, caughtUp, end)
	if err != nil || !got.After(end) {
		t.Fatalf("DefaultStart(caught up) = %s, %v, want after %s", got, err, end)
	}

	boom := errors.New("disk gone")
	if _, err := p.DefaultStart(ctx, fakeLedger{err: boom}, end); !errors.Is(err, boom) {
		t.Fatalf("DefaultStart(broken) error = %v", err)
	}

	n, err := p.Existing(ctx, fakeLedger{counts: map[int]int{2024: 42}}, date(2024, 2, 1))
	if err != nil || n != 42 {
		t.Fatalf("Existing() = %d, %v", n, err)
	}
}
