package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gridgen/internal/model"
)

const holidayFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//holidays//EN
BEGIN:VEVENT
UID:xmas
DTSTART;VALUE=DATE:20231225
DTEND;VALUE=DATE:20231226
RRULE:FREQ=YEARLY
EXDATE;VALUE=DATE:20241225
SUMMARY:Christmas
END:VEVENT
BEGIN:VEVENT
UID:seollal
DTSTART;VALUE=DATE:20240209
DTEND;VALUE=DATE:20240212
SUMMARY:Seollal
END:VEVENT
BEGIN:VEVENT
UID:call
DTSTART:20240301T230000Z
DTEND:20240302T000000Z
SUMMARY:Late call
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func dates(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format(time.DateOnly)
	}
	return out
}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Feed{ID: "kr"}, crlf(holidayFeed))
	if err != nil {
		t.Fatalf("ParseICS() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}

	xmas := events[0]
	if !xmas.AllDay || xmas.RawRRule != "FREQ=YEARLY" || len(xmas.ExDates) != 1 {
		t.Fatalf("xmas = %+v", xmas)
	}
	if got := xmas.Start.Format(time.DateOnly); got != "2023-12-25" {
		t.Fatalf("xmas start = %s", got)
	}
	if events[2].AllDay {
		t.Fatal("timed event parsed as all-day")
	}

	if _, err := ParseICS(Feed{}, nil); err == nil {
		t.Fatal("ParseICS(empty) expected error")
	}
}

func TestHolidayDates(t *testing.T) {
	events, err := ParseICS(Feed{ID: "kr"}, crlf(holidayFeed))
	if err != nil {
		t.Fatalf("ParseICS() error = %v", err)
	}
	seoul := time.FixedZone("KST", 9*3600)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, seoul)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, seoul)

	got := dates(HolidayDates(events, start, end, seoul))
	want := []string{"2024-02-09", "2024-02-10", "2024-02-11", "2024-03-02", "2025-12-25"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("HolidayDates() = %v, want %v", got, want)
	}
}

func TestExpandBlackout(t *testing.T) {
	start := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	days, err := ExpandBlackout([]string{
		"FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25",
		"RRULE:FREQ=WEEKLY;BYDAY=SA",
		"  ",
	}, start, end, time.UTC)
	if err != nil {
		t.Fatalf("ExpandBlackout() error = %v", err)
	}
	got := strings.Join(dates(days), ",")
	if got != "2024-12-21,2024-12-25,2024-12-28" {
		t.Fatalf("ExpandBlackout() = %s", got)
	}

	if _, err := ExpandBlackout([]string{"FREQ=SOMETIMES"}, start, end, time.UTC); err == nil {
		t.Fatal("ExpandBlackout(bad rule) expected error")
	}
	if _, err := ExpandBlackout(nil, end, start, time.UTC); err == nil {
		t.Fatal("ExpandBlackout(reversed) expected error")
	}
}

func TestExportParsesBack(t *testing.T) {
	at := time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC)
	events := []model.ActivityEvent{
		{At: at, Label: "Update docs"},
		{At: at, Label: "Fix tests"},
		{At: at.Add(3 * time.Hour), Label: "Refactor code"},
	}

	out := Export(events, ExportOptions{Category: "casual", Stamp: at})
	for _, want := range []string{"BEGIN:VCALENDAR", "PRODID:" + ProductID, "CATEGORIES:casual", "SUMMARY:Fix tests"} {
		if !strings.Contains(out, want) {
			t.Fatalf("Export() missing %q:\n%s", want, out)
		}
	}

	parsed, err := ParseICS(Feed{ID: "self"}, []byte(out))
	if err != nil {
		t.Fatalf("ParseICS() error = %v", err)
	}
	if len(parsed) != len(events) {
		t.Fatalf("parsed %d events, want %d", len(parsed), len(events))
	}
	if parsed[0].UID == parsed[1].UID {
		t.Fatalf("events at the same minute share UID %q", parsed[0].UID)
	}
	if !parsed[2].Start.Equal(events[2].At) {
		t.Fatalf("start = %s, want %s", parsed[2].Start, events[2].At)
	}
	if got := parsed[2].End.Sub(parsed[2].Start); got != time.Minute {
		t.Fatalf("duration = %s, want 1m", got)
	}
}

func TestFetchUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(crlf(holidayFeed))
	}))

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "kr", URL: srv.URL + "/holidays.ics?token=secret"}
	ctx := context.Background()

	first, err := f.Fetch(ctx, feed)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if first.FromCache {
		t.Fatal("first fetch served from cache")
	}

	second, err := f.Fetch(ctx, feed)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if !second.FromCache || string(second.Body) != string(first.Body) {
		t.Fatalf("second fetch FromCache=%v, body match=%v", second.FromCache, string(second.Body) == string(first.Body))
	}
	if hits.Load() != 2 {
		t.Fatalf("server hits = %d, want 2", hits.Load())
	}

	srv.Close()
	third, err := f.Fetch(ctx, feed)
	if err != nil {
		t.Fatalf("offline Fetch() error = %v", err)
	}
	if !third.FromCache {
		t.Fatal("offline fetch not served from cache")
	}
}

func TestFetchAllReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "bad.ics") {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Write(crlf(holidayFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, err := f.FetchAll(context.Background(), []Feed{
		{ID: "good", URL: srv.URL + "/good.ics"},
		{ID: "bad", URL: srv.URL + "/bad.ics"},
	})
	if len(results) != 1 || results[0].Feed.ID != "good" {
		t.Fatalf("results = %+v", results)
	}
	if err == nil || !strings.Contains(err.Error(), "feed bad") {
		t.Fatalf("FetchAll() error = %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://calendar.example.com/private/abc.ics?token=xyz")
	if got != "https://calendar.example.com/...(redacted)" {
		t.Fatalf("redactURL() = %q", got)
	}
	if strings.Contains(redactURL("not a url"), "not a url") {
		t.Fatal("redactURL leaked unparseable input")
	}
}
