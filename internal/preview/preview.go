// Package preview renders schedules for the terminal: a week-per-row
// heatmap and a short summary.
package preview

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"gridgen/internal/model"
)

// Bucket maps a day's count to a heat level 0..3.
func Bucket(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 3:
		return 1
	case count <= 10:
		return 2
	default:
		return 3
	}
}

var symbols = [...]string{"░", "▓", "█", "🔥"}

// Symbol is the heatmap cell for a day's count.
func Symbol(count int) string {
	return symbols[Bucket(count)]
}

// Legend describes the heatmap symbols.
const Legend = "Legend: ░=0 ▓=1-3 █=4-10 🔥=10+ events"

// DayCounts groups events by calendar day ("2006-01-02" in each event's
// own zone).
func DayCounts(events []model.ActivityEvent) map[string]int {
	out := make(map[string]int)
	for _, ev := range events {
		out[ev.At.Format(time.DateOnly)]++
	}
	return out
}

// Summary is the aggregate view of a schedule.
type Summary struct {
	Total          int     `json:"total"`
	ActiveDays     int     `json:"active_days"`
	AvgPerActive   float64 `json:"avg_per_active_day"`
	WeekendEvents  int     `json:"weekend_events"`
	WeekendPercent float64 `json:"weekend_percent"`
}

// Summarize counts events, distinct active days and weekend share.
func Summarize(events []model.ActivityEvent) Summary {
	s := Summary{Total: len(events)}
	s.ActiveDays = len(DayCounts(events))
	for _, ev := range events {
		if wd := ev.At.Weekday(); wd == time.Saturday || wd == time.Sunday {
			s.WeekendEvents++
		}
	}
	if s.ActiveDays > 0 {
		s.AvgPerActive = float64(s.Total) / float64(s.ActiveDays)
	}
	if s.Total > 0 {
		s.WeekendPercent = float64(s.WeekendEvents) / float64(s.Total) * 100
	}
	return s
}

// Printer writes previews with colors suited to its writer. Output to a
// non-terminal carries no escape codes.
type Printer struct {
	w      io.Writer
	label  lipgloss.Style
	title  lipgloss.Style
	levels [len(symbols)]lipgloss.Style
}

// NewPrinter returns a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	p := &Printer{
		w:     w,
		label: r.NewStyle().Foreground(lipgloss.Color("245")).Width(11),
		title: r.NewStyle().Bold(true),
	}
	for i, c := range []string{"238", "34", "28", "202"} {
		p.levels[i] = r.NewStyle().Foreground(lipgloss.Color(c))
	}
	return p
}

// Calendar prints one row per week, Monday first, for [start, end]. Each
// row is labeled with the date of its first day in range; days before
// start in the first week are left blank.
func (p *Printer) Calendar(events []model.ActivityEvent, start, end time.Time) error {
	counts := DayCounts(events)
	first, last := civil(start), civil(end)

	var b strings.Builder
	b.WriteString(p.title.Render("Activity calendar"))
	b.WriteString("\n")
	b.WriteString(p.label.Render(""))
	b.WriteString("MTWTFSS")

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		col := mondayIndex(day.Weekday())
		if col == 0 || day.Equal(first) {
			b.WriteString("\n")
			b.WriteString(p.label.Render(day.Format("Jan 02")))
			b.WriteString(strings.Repeat(" ", col))
		}
		n := counts[day.Format(time.DateOnly)]
		b.WriteString(p.levels[Bucket(n)].Render(Symbol(n)))
	}
	b.WriteString("\n\n")
	b.WriteString(Legend)
	b.WriteString("\n")

	_, err := io.WriteString(p.w, b.String())
	return err
}

// Summary prints the aggregate block.
func (p *Printer) Summary(s Summary) error {
	var b strings.Builder
	b.WriteString(p.title.Render("Summary"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Total events: %s\n", humanize.Comma(int64(s.Total)))
	fmt.Fprintf(&b, "  Active days: %s\n", humanize.Comma(int64(s.ActiveDays)))
	if s.ActiveDays > 0 {
		fmt.Fprintf(&b, "  Avg events/active day: %s\n", humanize.FormatFloat("#,###.#", s.AvgPerActive))
	}
	fmt.Fprintf(&b, "  Weekend events: %s (%.1f%%)\n", humanize.Comma(int64(s.WeekendEvents)), s.WeekendPercent)

	_, err := io.WriteString(p.w, b.String())
	return err
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
