package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gridgen/internal/ics"
	appLog "gridgen/internal/log"
	"gridgen/internal/model"
	"gridgen/internal/pattern"
	"gridgen/internal/planner"
	"gridgen/internal/preview"
	"gridgen/internal/store"
)

type generateOptions struct {
	start, end  string
	pattern     string
	targetTotal int
	format      string
	out         string
	record      bool
	existing    string
	summary     bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var o generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a schedule and write it out",
		Long: `Generate events over a date range.

Without --start, generation resumes the day after the latest event in the
ledger, or 365 days before --end when the ledger is empty. --end defaults
to today. With --target-total, a pattern is calibrated so the year of
--start ends up near the target, counting events already in the ledger.
--existing reads that history from an ICS file instead; there the latest
[AutoGen] event marks where to resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, a, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.start, "start", "", "First day, YYYY-MM-DD")
	f.StringVar(&o.end, "end", "", "Last day, YYYY-MM-DD (default today)")
	f.StringVarP(&o.pattern, "pattern", "p", "", "Preset or custom pattern (default from config)")
	f.IntVar(&o.targetTotal, "target-total", 0, "Calibrate toward this many events in the start year")
	f.StringVarP(&o.format, "format", "f", "text", "Output format: text, json or ics")
	f.StringVarP(&o.out, "out", "o", "", "Output file (default stdout)")
	f.BoolVar(&o.record, "record", false, "Record the run in the ledger")
	f.StringVar(&o.existing, "existing", "", "ICS history to count and resume from instead of the ledger")
	f.BoolVar(&o.summary, "summary", false, "Print a summary to stderr")
	cmd.MarkFlagsMutuallyExclusive("pattern", "target-total")
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, o generateOptions) error {
	ctx := cmd.Context()
	switch o.format {
	case "text", "json", "ics":
	default:
		return fmt.Errorf("unknown --format %q (want text, json or ics)", o.format)
	}
	if o.targetTotal < 0 {
		return errors.New("--target-total must be non-negative")
	}

	var (
		st     *store.Store
		ledger planner.Ledger
	)
	if o.record || (o.existing == "" && (o.start == "" || o.targetTotal > 0)) {
		opened, err := a.openStore()
		if err != nil {
			if o.record {
				return err
			}
			appLog.Warn("ledger unavailable; using defaults", "reason", err.Error())
		} else {
			defer opened.Close()
			st, ledger = opened, opened
		}
	}
	if o.existing != "" {
		l, err := loadICSLedger(o.existing, a.planner.Location())
		if err != nil {
			return err
		}
		ledger = l
	}

	end := a.planner.Today()
	if o.end != "" {
		t, err := a.parseDate("end", o.end)
		if err != nil {
			return err
		}
		end = t
	}
	var start time.Time
	if o.start != "" {
		t, err := a.parseDate("start", o.start)
		if err != nil {
			return err
		}
		start = t
	} else {
		t, err := a.planner.DefaultStart(ctx, ledger, end)
		if err != nil {
			return err
		}
		if t.After(end) {
			notify(cmd, "Already up to date through %s", end.Format(time.DateOnly))
			return nil
		}
		start = t
	}
	notify(cmd, "Generating events from %s to %s", start.Format(time.DateOnly), end.Format(time.DateOnly))

	req := planner.Request{Pattern: o.pattern, Start: start, End: end, TargetTotal: o.targetTotal}
	if o.targetTotal > 0 {
		existing, err := a.planner.Existing(ctx, ledger, start)
		if err != nil {
			return err
		}
		req.Existing = existing
		notify(cmd, "Target: %d events for %d, existing %d", o.targetTotal, start.Year(), existing)
	}

	res, err := a.planner.Plan(ctx, req)
	if err != nil {
		return err
	}
	if res.Reached {
		notify(cmd, "Target already reached")
		return nil
	}
	events := res.Schedule.Events
	notify(cmd, "Pattern: %s, generated %d events", res.Pattern, len(events))

	if err := writeTo(cmd, o.out, func(w io.Writer) error {
		return writeEvents(w, o.format, res.Pattern, events)
	}); err != nil {
		return err
	}

	if o.summary {
		if err := preview.NewPrinter(cmd.ErrOrStderr()).Summary(preview.Summarize(events)); err != nil {
			return err
		}
	}

	if o.record {
		run, err := st.RecordRun(ctx, res.Pattern, start, end, events)
		if err != nil {
			return err
		}
		notify(cmd, "Recorded run %s", run.ID)
	}
	return nil
}

// icsLedger reads run history from an exported calendar. Every event counts
// toward a year's total but only generated ones mark where to resume.
type icsLedger struct {
	loc    *time.Location
	events []ics.ParsedEvent
}

func loadICSLedger(path string, loc *time.Location) (*icsLedger, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	events, err := ics.ParseICS(ics.Feed{ID: "existing", URL: path}, body)
	if err != nil {
		return nil, fmt.Errorf("read --existing: %w", err)
	}
	return &icsLedger{loc: loc, events: events}, nil
}

func (l *icsLedger) LatestEvent(context.Context) (model.ActivityEvent, error) {
	var latest model.ActivityEvent
	found := false
	for _, ev := range l.events {
		if !pattern.IsGenerated(ev.Summary) {
			continue
		}
		if !found || ev.Start.After(latest.At) {
			latest = model.ActivityEvent{At: ev.Start.In(l.loc), Label: ev.Summary}
			found = true
		}
	}
	if !found {
		return model.ActivityEvent{}, store.ErrNotFound
	}
	return latest, nil
}

func (l *icsLedger) CountInYear(_ context.Context, year int) (int, error) {
	n := 0
	for _, ev := range l.events {
		if ev.Start.In(l.loc).Year() == year {
			n++
		}
	}
	return n, nil
}

type eventJSON struct {
	At    time.Time `json:"at"`
	Label string    `json:"label"`
}

func writeEvents(w io.Writer, format, patternName string, events []model.ActivityEvent) error {
	switch format {
	case "json":
		out := make([]eventJSON, len(events))
		for i, ev := range events {
			out[i] = eventJSON{At: ev.At, Label: ev.Label}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "ics":
		_, err := io.WriteString(w, ics.Export(events, ics.ExportOptions{Category: patternName}))
		return err
	default:
		for _, ev := range events {
			if _, err := fmt.Fprintf(w, "%s  %s\n", ev.At.Format("2006-01-02 15:04 -0700"), ev.Label); err != nil {
				return err
			}
		}
		return nil
	}
}
