package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	appLog "gridgen/internal/log"
	"gridgen/internal/model"
	"gridgen/internal/preview"
)

// calendarTmpl lays out one column per week, Monday at the top, the way
// contribution graphs do. The root carries data-ready="true" once the
// grid is in the DOM so the snapshot capture knows when to shoot.
var calendarTmpl = template.Must(template.New("calendar").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>gridgen · {{.Pattern}}</title>
<style>
body { font-family: system-ui, sans-serif; background: #fff; color: #24292f; margin: 24px; }
h1 { font-size: 18px; margin: 0 0 4px; }
.meta { color: #57606a; font-size: 13px; margin-bottom: 16px; }
.grid { display: flex; gap: 3px; }
.week { display: flex; flex-direction: column; gap: 3px; }
.cell { width: 11px; height: 11px; border-radius: 2px; background: #ebedf0; }
.cell.pad { background: transparent; }
.l1 { background: #9be9a8; } .l2 { background: #40c463; } .l3 { background: #216e39; }
.vacation { outline: 1px solid #d4a72c; }
.blackout { background: #d0d7de; }
dl { display: grid; grid-template-columns: max-content auto; gap: 2px 12px; font-size: 13px; margin-top: 16px; }
dt { color: #57606a; }
</style>
</head>
<body>
<main id="calendar" data-ready="true">
<h1>{{.Pattern}}</h1>
<div class="meta">{{.Start}} to {{.End}} · {{.Timezone}}</div>
<div class="grid">
{{- range .Weeks}}
<div class="week">
{{- range .}}<div class="cell {{.Class}}"{{if .Title}} title="{{.Title}}"{{end}}></div>{{end}}
</div>
{{- end}}
</div>
<dl>
<dt>Total events</dt><dd>{{.Total}}</dd>
<dt>Active days</dt><dd>{{.ActiveDays}}</dd>
<dt>Avg per active day</dt><dd>{{.Avg}}</dd>
<dt>Weekend share</dt><dd>{{.Weekend}}</dd>
<dt>Vacations</dt><dd>{{.Vacations}}</dd>
</dl>
</main>
</body>
</html>
`))

type calendarCell struct {
	Class string
	Title string
}

type calendarPage struct {
	Pattern    string
	Start      string
	End        string
	Timezone   string
	Weeks      [][]calendarCell
	Total      string
	ActiveDays string
	Avg        string
	Weekend    string
	Vacations  int
}

// buildWeeks pads the first week so every column starts on Monday.
func buildWeeks(days []model.DayPlan) [][]calendarCell {
	var weeks [][]calendarCell
	var week []calendarCell
	for i, d := range days {
		col := (int(d.Date.Weekday()) + 6) % 7
		if i == 0 {
			for range col {
				week = append(week, calendarCell{Class: "pad"})
			}
		} else if col == 0 {
			weeks = append(weeks, week)
			week = nil
		}
		class := "l" + strconv.Itoa(preview.Bucket(d.Count))
		switch d.Reason {
		case model.ReasonVacation:
			class += " vacation"
		case model.ReasonBlackout:
			class += " blackout"
		}
		week = append(week, calendarCell{
			Class: class,
			Title: d.Date.Format(time.DateOnly) + ": " + humanize.Comma(int64(d.Count)) + " (" + string(d.Reason) + ")",
		})
	}
	if len(week) > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.resolve(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	sched := res.Schedule
	sum := preview.Summarize(sched.Events)
	page := calendarPage{
		Pattern:    res.Pattern,
		Start:      sched.Start.Format("Jan 2, 2006"),
		End:        sched.End.Format("Jan 2, 2006"),
		Timezone:   s.planner.Location().String(),
		Weeks:      buildWeeks(sched.Days),
		Total:      humanize.Comma(int64(sum.Total)),
		ActiveDays: humanize.Comma(int64(sum.ActiveDays)),
		Avg:        humanize.FormatFloat("#,###.#", sum.AvgPerActive),
		Weekend:    humanize.FormatFloat("#,###.#", sum.WeekendPercent) + "%",
		Vacations:  len(sched.Vacations),
	}

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		appLog.Error("calendar render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
