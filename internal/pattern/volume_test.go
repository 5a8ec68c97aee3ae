package pattern

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func quietCasual() PatternConfig {
	return PatternConfig{
		Intensity:         Casual,
		UseWeeklyRhythm:   false,
		VacationFrequency: 0,
		VacationDuration:  DurationRange{0, 0},
		SpikeProbability:  0,
		SpikeMultiplier:   0,
	}
}

func TestDailyVolume_CasualEnvelope(t *testing.T) {
	cfg := quietCasual()
	src := NewDateSeeded()
	start := day(2023, time.January, 1)
	worked := 0
	for i := 0; i < 730; i++ {
		d := start.AddDate(0, 0, i)
		v := DailyVolume(d, cfg, src.ForDate(d))
		lo, hi := 0, 5
		if IsWeekend(d) {
			hi = 3
		}
		if v.PreFloor < lo || v.PreFloor > hi {
			t.Fatalf("%s: pre-floor count %d outside [%d,%d]", d.Format("2006-01-02"), v.PreFloor, lo, hi)
		}
		if v.Count < 0 || v.Count > hi {
			t.Fatalf("%s: count %d outside [0,%d]", d.Format("2006-01-02"), v.Count, hi)
		}
		if v.Spiked {
			t.Fatalf("%s: spiked with zero spike probability", d.Format("2006-01-02"))
		}
		if !v.Worked && v.Count != 0 {
			t.Fatalf("%s: gate rejected day but count = %d", d.Format("2006-01-02"), v.Count)
		}
		if v.Worked {
			worked++
		}
	}
	if worked == 0 {
		t.Fatal("expected at least one worked day over two years")
	}
}

func TestDailyVolume_FixedEntropyIsDeterministic(t *testing.T) {
	cfg, err := Preset("hyperactive")
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	src := FixedEntropy(417)
	for i := 0; i < 60; i++ {
		d := day(2024, time.March, 1).AddDate(0, 0, i)
		a := DailyVolume(d, cfg, src.ForDate(d))
		b := DailyVolume(d, cfg, src.ForDate(d))
		if a != b {
			t.Fatalf("%s: got %+v and %+v for identical inputs", d.Format("2006-01-02"), a, b)
		}
	}
}

func TestDailyVolume_EntropyKeepsEnvelope(t *testing.T) {
	cfg := PatternConfig{
		Intensity:        Maintainer,
		UseWeeklyRhythm:  true,
		SpikeProbability: 0.5,
		SpikeMultiplier:  2.8,
	}
	p := Maintainer.Profile()
	d := day(2024, time.May, 15) // Wednesday
	seen := map[int]bool{}
	for e := uint64(0); e < entropyModulus; e++ {
		v := DailyVolume(d, cfg, FixedEntropy(e).ForDate(d))
		if v.Count < 0 || v.Count > p.SpikeCap {
			t.Fatalf("entropy %d: count %d outside [0,%d]", e, v.Count, p.SpikeCap)
		}
		if !v.Spiked && v.Count > p.WeekdayMax*2 {
			t.Fatalf("entropy %d: unspiked count %d above rhythm-scaled max", e, v.Count)
		}
		seen[v.Count] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected entropy to vary the count, saw %v", seen)
	}
}

func TestDailyVolume_SpikeRespectsCap(t *testing.T) {
	cfg := PatternConfig{
		Intensity:        Extreme,
		SpikeProbability: 1,
		SpikeMultiplier:  50,
	}
	src := NewDateSeeded()
	for i := 0; i < 200; i++ {
		d := day(2024, time.January, 1).AddDate(0, 0, i)
		v := DailyVolume(d, cfg, src.ForDate(d))
		if v.Count > Extreme.Profile().SpikeCap {
			t.Fatalf("%s: count %d above spike cap", d.Format("2006-01-02"), v.Count)
		}
		if v.Worked && !v.Spiked {
			t.Fatalf("%s: worked day not spiked with probability 1", d.Format("2006-01-02"))
		}
	}
}

func TestWeeklyMultiplier_Bounds(t *testing.T) {
	base := map[time.Weekday]float64{
		time.Monday: 0.7, time.Tuesday: 1.1, time.Wednesday: 1.1, time.Thursday: 1.1,
		time.Friday: 0.8, time.Saturday: 0.6, time.Sunday: 0.6,
	}
	r := FixedEntropy(1).ForDate(day(2024, time.January, 1))
	for wd, b := range base {
		for i := 0; i < 500; i++ {
			m := WeeklyMultiplier(wd, r)
			if m < b-rhythmJitter-1e-9 || m > b+rhythmJitter+1e-9 {
				t.Fatalf("%s: multiplier %f outside %f±%f", wd, m, b, rhythmJitter)
			}
			if m < rhythmFloor {
				t.Fatalf("%s: multiplier %f below floor", wd, m)
			}
		}
	}
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		in   time.Time
		want int64
	}{
		{day(1, time.January, 1), 1},
		{day(1970, time.January, 1), 719163},
		{day(2024, time.January, 1), 738886},
		{time.Date(2024, time.January, 1, 23, 59, 0, 0, time.FixedZone("x", -11*3600)), 738886},
	}
	for _, tt := range tests {
		if got := Ordinal(tt.in); got != tt.want {
			t.Errorf("Ordinal(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDateSeeded_Seed(t *testing.T) {
	src := FixedEntropy(123456)
	got := src.Seed(day(2024, time.January, 1))
	want := uint64(738886)*seedMultiplier + 456
	if got != want {
		t.Fatalf("Seed() = %d, want %d", got, want)
	}
}
