package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	PresetToday  Preset = "today"
	PresetWeek   Preset = "week"
	PresetMonth  Preset = "month"
	PresetCustom Preset = "custom"
)

var ErrInvalidPreset = errors.New("invalid period")

// Preset names a window resolved against "now".
type Preset string

func ParsePreset(s string) (Preset, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PresetMonth, nil
	}
	switch p := Preset(s); p {
	case PresetToday, PresetWeek, PresetMonth, PresetCustom:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPreset, s)
}

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Empty reports whether no instant can fall inside the window.
func (w Window) Empty() bool {
	return !w.End.After(w.Start)
}

// Calendar resolves windows in a location with a given first day of week.
// The zero value uses time.Local and Monday.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

func DefaultCalendar() Calendar {
	return Calendar{Location: time.Local, WeekStart: time.Monday}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// StartOfDay returns midnight of t's calendar day in the calendar location.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

func (c Calendar) startOfWeek(t time.Time) time.Time {
	day := c.StartOfDay(t)
	offset := (int(day.Weekday()) - int(c.WeekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

func (c Calendar) startOfMonth(t time.Time) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.loc())
}

func (c Calendar) Today(now time.Time) Window {
	start := c.StartOfDay(now)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func (c Calendar) ThisWeek(now time.Time) Window {
	start := c.startOfWeek(now)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

func (c Calendar) ThisMonth(now time.Time) Window {
	start := c.startOfMonth(now)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// Custom covers the inclusive dates from..to. A to before from gives an
// empty window.
func (c Calendar) Custom(from, to time.Time) Window {
	return Window{Start: c.StartOfDay(from), End: c.StartOfDay(to).AddDate(0, 0, 1)}
}

// Resolve maps a preset to a window. from and to are only read for
// PresetCustom.
func (c Calendar) Resolve(p Preset, now, from, to time.Time) (Window, error) {
	switch p {
	case PresetToday:
		return c.Today(now), nil
	case PresetWeek:
		return c.ThisWeek(now), nil
	case PresetMonth:
		return c.ThisMonth(now), nil
	case PresetCustom:
		if from.IsZero() || to.IsZero() {
			return Window{}, fmt.Errorf("%w: custom period needs both dates", ErrInvalidPreset)
		}
		return c.Custom(from, to), nil
	}
	return Window{}, fmt.Errorf("%w: %q", ErrInvalidPreset, p)
}

// GoalWindow is the to-date window a goal's progress is measured over:
// month to date for Monthly and Custom, week to date for Weekly. Both end
// at the close of today.
func (c Calendar) GoalWindow(g Goal, now time.Time) Window {
	end := c.Today(now).End
	if g.Horizon == Weekly {
		return Window{Start: c.startOfWeek(now), End: end}
	}
	return Window{Start: c.startOfMonth(now), End: end}
}

// remainingDays counts the days of the goal's period from today through
// its last day, today included.
func (c Calendar) remainingDays(h Horizon, now time.Time) int {
	var total, elapsed int
	switch h {
	case Weekly:
		total = 7
		elapsed = int(c.StartOfDay(now).Sub(c.startOfWeek(now)).Hours()/24+0.5) + 1
	default:
		month := c.ThisMonth(now)
		total = month.End.AddDate(0, 0, -1).Day()
		elapsed = now.In(c.loc()).Day()
	}
	return max(0, total-elapsed+1)
}
