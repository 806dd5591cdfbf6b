package core

import "time"

// Projection is the advisory pace needed to reach a goal. Degenerate inputs
// resolve to zeros instead of errors.
type Projection struct {
	Goal               Goal
	Window             Window
	EffectiveMargin    float64
	CurrentProgress    Money
	Remaining          Money
	ProgressPercent    float64
	EffectiveDays      int
	DailyProfitNeeded  float64
	DailyRevenueNeeded float64
}

// Project computes the projection of g given the statistics of its goal
// window (see Calendar.GoalWindow) and the current instant.
func Project(g Goal, stats Stats, now time.Time, cal Calendar) Projection {
	p := Projection{
		Goal:            g,
		Window:          cal.GoalWindow(g, now),
		CurrentProgress: stats.Profit,
		EffectiveMargin: stats.Margin,
	}
	if g.MarginMode == Manual {
		p.EffectiveMargin = g.ManualMarginPercent / 100
	}

	p.Remaining = Money{Cents: max(0, g.Target.Cents-stats.Profit.Cents)}
	if g.Target.Cents > 0 {
		pct := float64(stats.Profit.Cents) / float64(g.Target.Cents) * 100
		p.ProgressPercent = min(100, max(0, pct))
	}

	if g.Horizon == Custom {
		p.EffectiveDays = max(0, g.WorkDays)
	} else {
		p.EffectiveDays = cal.remainingDays(g.Horizon, now)
	}
	if p.EffectiveDays > 0 {
		p.DailyProfitNeeded = p.Remaining.Float() / float64(p.EffectiveDays)
	}
	if p.EffectiveMargin > 0 {
		p.DailyRevenueNeeded = p.DailyProfitNeeded / p.EffectiveMargin
	}
	return p
}

// ProjectAll aggregates each goal's window from records and projects it.
func ProjectAll(goals []Goal, records []Record, now time.Time, cal Calendar) []Projection {
	out := make([]Projection, 0, len(goals))
	for _, g := range goals {
		stats := Aggregate(records, cal.GoalWindow(g, now))
		out = append(out, Project(g, stats, now, cal))
	}
	return out
}
