package core

import (
	"errors"
	"testing"
	"time"
)

var utcCal = Calendar{Location: time.UTC, WeekStart: time.Monday}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalendarPresets(t *testing.T) {
	now := time.Date(2025, 6, 18, 15, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		name string
		got  Window
		want Window
	}{
		{"today", utcCal.Today(now), Window{day(2025, 6, 18), day(2025, 6, 19)}},
		{"week starts monday", utcCal.ThisWeek(now), Window{day(2025, 6, 16), day(2025, 6, 23)}},
		{"week starts sunday", Calendar{Location: time.UTC, WeekStart: time.Sunday}.ThisWeek(now), Window{day(2025, 6, 15), day(2025, 6, 22)}},
		{"month", utcCal.ThisMonth(now), Window{day(2025, 6, 1), day(2025, 7, 1)}},
		{"custom inclusive", utcCal.Custom(time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC), day(2025, 6, 5)), Window{day(2025, 6, 3), day(2025, 6, 6)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Start.Equal(tt.want.Start) || !tt.got.End.Equal(tt.want.End) {
				t.Errorf("got [%v, %v), want [%v, %v)", tt.got.Start, tt.got.End, tt.want.Start, tt.want.End)
			}
		})
	}
}

func TestCalendarWeekOnWeekStart(t *testing.T) {
	sunday := time.Date(2025, 6, 22, 23, 0, 0, 0, time.UTC)
	w := utcCal.ThisWeek(sunday)
	if !w.Start.Equal(day(2025, 6, 16)) {
		t.Fatalf("sunday should belong to the week starting monday 16th, got %v", w.Start)
	}
}

func TestCalendarRespectsLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	cal := Calendar{Location: loc, WeekStart: time.Monday}
	// 01:00 UTC on the 1st is still the 30th of the previous month in BRT.
	now := time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC)
	w := cal.ThisMonth(now)
	if w.Start.Month() != time.June || w.Start.Location() != loc {
		t.Fatalf("expected june in BRT, got %v", w.Start)
	}
}

func TestWindowContainsAndEmpty(t *testing.T) {
	w := Window{day(2025, 6, 1), day(2025, 6, 2)}
	if !w.Contains(day(2025, 6, 1)) {
		t.Fatalf("start must be included")
	}
	if w.Contains(day(2025, 6, 2)) {
		t.Fatalf("end must be excluded")
	}
	if w.Empty() {
		t.Fatalf("one day window is not empty")
	}
	if !(Window{day(2025, 6, 2), day(2025, 6, 1)}).Empty() {
		t.Fatalf("reversed window must be empty")
	}
	if !utcCal.Custom(day(2025, 6, 5), day(2025, 6, 3)).Empty() {
		t.Fatalf("custom window with to before from must be empty")
	}
}

func TestResolve(t *testing.T) {
	now := time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)
	w, err := utcCal.Resolve(PresetCustom, now, day(2025, 6, 1), day(2025, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.End.Equal(day(2025, 6, 11)) {
		t.Fatalf("unexpected end %v", w.End)
	}
	if _, err := utcCal.Resolve(PresetCustom, now, time.Time{}, day(2025, 6, 10)); !errors.Is(err, ErrInvalidPreset) {
		t.Fatalf("expected ErrInvalidPreset, got %v", err)
	}
	if _, err := utcCal.Resolve("year", now, time.Time{}, time.Time{}); !errors.Is(err, ErrInvalidPreset) {
		t.Fatalf("expected ErrInvalidPreset, got %v", err)
	}
	if p, err := ParsePreset(""); err != nil || p != PresetMonth {
		t.Fatalf("empty preset should default to month, got %q (err=%v)", p, err)
	}
}

func TestGoalWindow(t *testing.T) {
	now := time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)
	monthly := utcCal.GoalWindow(Goal{Horizon: Monthly}, now)
	if !monthly.Start.Equal(day(2025, 6, 1)) || !monthly.End.Equal(day(2025, 6, 19)) {
		t.Fatalf("unexpected month-to-date window %+v", monthly)
	}
	weekly := utcCal.GoalWindow(Goal{Horizon: Weekly}, now)
	if !weekly.Start.Equal(day(2025, 6, 16)) || !weekly.End.Equal(day(2025, 6, 19)) {
		t.Fatalf("unexpected week-to-date window %+v", weekly)
	}
	custom := utcCal.GoalWindow(Goal{Horizon: Custom, WorkDays: 5}, now)
	if custom != monthly {
		t.Fatalf("custom goals default to month to date, got %+v", custom)
	}
}
