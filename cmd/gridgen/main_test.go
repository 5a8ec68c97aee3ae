package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"gridgen/internal/config"
	"gridgen/internal/pattern"
)

const testConfig = `timezone: UTC
pattern: active
activity_window:
  start_hour: 9
  end_hour: 18
patterns:
  nightowl:
    intensity: maintainer
    weekly_rhythm: false
    vacation_frequency: 0
    vacation_duration: [0, 0]
    spike_probability: 0.1
    spike_multiplier: 2
`

// setupCLI writes a config and points the ledger at a temp dir.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(config.EnvDB, filepath.Join(dir, "ledger.db"))
	t.Setenv(config.EnvConfig, "")
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPatternsCmd(t *testing.T) {
	cfgPath := setupCLI(t)
	out, _, err := runCLI(t, "--config", cfgPath, "patterns")
	if err != nil {
		t.Fatalf("patterns error = %v", err)
	}
	for _, want := range []string{"Activity levels:", "casual", "maintainer", "Legacy patterns:", "Custom patterns:", "nightowl"} {
		if !strings.Contains(out, want) {
			t.Errorf("patterns output missing %q:\n%s", want, out)
		}
	}
}

func TestCalibrateCmd(t *testing.T) {
	cfgPath := setupCLI(t)
	out, _, err := runCLI(t, "--config", cfgPath, "calibrate", "--target-total", "1000", "--days", "365")
	if err != nil {
		t.Fatalf("calibrate error = %v", err)
	}
	var got map[string]config.PatternSpec
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, out)
	}
	spec, ok := got["target-1000"]
	if !ok {
		t.Fatalf("calibrate output keys = %v, want target-1000", got)
	}
	if _, err := pattern.ParseIntensity(spec.Intensity); err != nil {
		t.Errorf("intensity %q: %v", spec.Intensity, err)
	}

	out, _, err = runCLI(t, "--config", cfgPath, "calibrate", "--target-total", "0", "--days", "30")
	if err != nil {
		t.Fatalf("calibrate --target-total 0 error = %v", err)
	}
	got = nil
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, out)
	}
	if spec := got["target-0"]; spec.Intensity != pattern.Casual.String() {
		t.Errorf("target-0 intensity = %q, want %q", spec.Intensity, pattern.Casual)
	}

	if _, _, err := runCLI(t, "--config", cfgPath, "calibrate", "--target-total", "-1"); err == nil {
		t.Errorf("calibrate --target-total -1 succeeded, want error")
	}
}

func TestGenerateJSONSeeded(t *testing.T) {
	cfgPath := setupCLI(t)
	args := []string{"--config", cfgPath, "--seed", "42", "generate",
		"--start", "2024-03-01", "--end", "2024-03-31", "--pattern", "maintainer", "--format", "json"}

	first, _, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	second, _, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if first != second {
		t.Errorf("seeded runs differ")
	}

	var events []eventJSON
	if err := json.Unmarshal([]byte(first), &events); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("generate produced no events")
	}
	lo := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, ev := range events {
		if ev.At.Before(lo) || !ev.At.Before(hi) {
			t.Errorf("event %d at %v outside March 2024", i, ev.At)
		}
		if h := ev.At.UTC().Hour(); h < 9 || h > 18 {
			t.Errorf("event %d at hour %d outside window", i, h)
		}
		if ev.Label == "" {
			t.Errorf("event %d has empty label", i)
		}
		if i > 0 && ev.At.Before(events[i-1].At) {
			t.Errorf("events out of order at %d", i)
		}
	}
}

func TestGenerateRecordAndHistory(t *testing.T) {
	cfgPath := setupCLI(t)
	icsPath := filepath.Join(t.TempDir(), "out.ics")

	_, stderr, err := runCLI(t, "--config", cfgPath, "--seed", "7", "generate",
		"--start", "2024-01-01", "--end", "2024-01-31", "--format", "ics", "--out", icsPath, "--record")
	if err != nil {
		t.Fatalf("generate --record error = %v", err)
	}
	body, err := os.ReadFile(icsPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(body), "BEGIN:VCALENDAR") {
		t.Errorf("output is not a calendar:\n%s", body)
	}

	var runID string
	for _, line := range strings.Split(stderr, "\n") {
		if id, ok := strings.CutPrefix(line, "Recorded run "); ok {
			runID = strings.TrimSpace(id)
		}
	}
	if runID == "" {
		t.Fatalf("no run id in stderr:\n%s", stderr)
	}

	out, _, err := runCLI(t, "--config", cfgPath, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, runID) || !strings.Contains(out, "2024-01-01..2024-01-31") {
		t.Errorf("history output missing run:\n%s", out)
	}

	if _, _, err := runCLI(t, "--config", cfgPath, "history", "--delete", runID); err != nil {
		t.Fatalf("history --delete error = %v", err)
	}
	out, _, err = runCLI(t, "--config", cfgPath, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("history after delete = %q", out)
	}
}

func TestGenerateUpToDate(t *testing.T) {
	cfgPath := setupCLI(t)
	if _, _, err := runCLI(t, "--config", cfgPath, "--seed", "5", "generate",
		"--start", "2024-01-01", "--end", "2024-01-31", "--pattern", "extreme", "--record"); err != nil {
		t.Fatalf("generate --record error = %v", err)
	}

	out, stderr, err := runCLI(t, "--config", cfgPath, "generate", "--end", "2024-01-01")
	if err != nil {
		t.Fatalf("generate after recorded run error = %v", err)
	}
	if !strings.Contains(stderr, "Already up to date through 2024-01-01") {
		t.Errorf("stderr = %q, want up to date notice", stderr)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
}

const existingICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//history//EN
BEGIN:VEVENT
UID:a
DTSTART:20240310T100000Z
DTEND:20240310T100100Z
SUMMARY:[AutoGen] Fix flaky tests
END:VEVENT
BEGIN:VEVENT
UID:b
DTSTART:20240501T120000Z
DTEND:20240501T120100Z
SUMMARY:Real work
END:VEVENT
BEGIN:VEVENT
UID:c
DTSTART:20231231T120000Z
DTEND:20231231T120100Z
SUMMARY:[AutoGen] Update documentation
END:VEVENT
END:VCALENDAR
`

func TestGenerateFromExistingICS(t *testing.T) {
	cfgPath := setupCLI(t)
	path := filepath.Join(t.TempDir(), "history.ics")
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(existingICS, "\n", "\r\n")), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, stderr, err := runCLI(t, "--config", cfgPath, "--seed", "9", "generate",
		"--existing", path, "--end", "2024-03-20", "--format", "json")
	if err != nil {
		t.Fatalf("generate --existing error = %v", err)
	}
	if !strings.Contains(stderr, "Generating events from 2024-03-11 to 2024-03-20") {
		t.Errorf("resume did not follow the latest generated event:\n%s", stderr)
	}

	_, stderr, err = runCLI(t, "--config", cfgPath, "--seed", "9", "generate",
		"--existing", path, "--start", "2024-03-11", "--end", "2024-12-31", "--target-total", "100", "--format", "json")
	if err != nil {
		t.Fatalf("generate --existing --target-total error = %v", err)
	}
	if !strings.Contains(stderr, "existing 2") {
		t.Errorf("stderr = %q, want 2 existing events in 2024", stderr)
	}
}

func TestGenerateFlagErrors(t *testing.T) {
	cfgPath := setupCLI(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad format", []string{"generate", "--start", "2024-01-01", "--end", "2024-01-02", "--format", "xml"}, "unknown --format"},
		{"bad date", []string{"generate", "--start", "01/02/2024", "--end", "2024-01-02"}, "--start must be YYYY-MM-DD"},
		{"unknown pattern", []string{"generate", "--start", "2024-01-01", "--end", "2024-01-02", "--pattern", "nope"}, "nope"},
		{"exclusive flags", []string{"generate", "--pattern", "casual", "--target-total", "10"}, "none of the others"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"--config", cfgPath}, tt.args...)...)
			if err == nil {
				t.Fatalf("runCLI(%v) succeeded, want error", tt.args)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestPreviewCmd(t *testing.T) {
	cfgPath := setupCLI(t)
	out, _, err := runCLI(t, "--config", cfgPath, "--seed", "3", "preview",
		"--start", "2024-01-01", "--end", "2024-01-28", "--pattern", "nightowl")
	if err != nil {
		t.Fatalf("preview error = %v", err)
	}
	for _, want := range []string{"Pattern: nightowl", "Jan 01", "Jan 22"} {
		if !strings.Contains(out, want) {
			t.Errorf("preview output missing %q:\n%s", want, out)
		}
	}
}
