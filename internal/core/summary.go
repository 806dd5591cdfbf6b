package core

import "time"

// DayKeyLayout formats daily bucket keys as dd/MM.
const DayKeyLayout = "02/01"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Stats are the period statistics for one window. Margin is a ratio, at
// most 1, and 0 whenever revenue is not positive.
type Stats struct {
	Revenue     Money
	Expenses    Money
	Investments Money
	Profit      Money
	Margin      float64
	// ExpenseByCategory lists categories in the order they were first seen.
	ExpenseByCategory []CategoryAmount
}

// CategoryTotal returns the summed expenses for a category label.
func (s Stats) CategoryTotal(name string) Money {
	for _, c := range s.ExpenseByCategory {
		if c.Name == name {
			return c.Amount
		}
	}
	return Money{}
}

// Bucket is one chronological slice of a window.
type Bucket struct {
	Key   string
	Stats Stats
}

// Aggregate reduces the records that fall inside w. Records outside the
// window are ignored whatever their kind, and an empty window yields zero
// statistics. The input slice is not modified.
func Aggregate(records []Record, w Window) Stats {
	var s Stats
	if w.Empty() {
		return s
	}
	index := map[string]int{}
	for _, r := range records {
		if !w.Contains(r.OccurredAt) {
			continue
		}
		switch r.Kind {
		case Sale:
			s.Revenue = s.Revenue.Add(r.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(r.Amount)
			label := r.CategoryLabel()
			i, ok := index[label]
			if !ok {
				i = len(s.ExpenseByCategory)
				index[label] = i
				s.ExpenseByCategory = append(s.ExpenseByCategory, CategoryAmount{Name: label})
			}
			s.ExpenseByCategory[i].Amount = s.ExpenseByCategory[i].Amount.Add(r.Amount)
		case Investment:
			s.Investments = s.Investments.Add(r.Amount)
		}
	}
	s.Profit = s.Revenue.Sub(s.Expenses)
	if s.Revenue.Cents > 0 {
		s.Margin = float64(s.Profit.Cents) / float64(s.Revenue.Cents)
	}
	return s
}

// Buckets groups in-window records by occurredAt formatted with layout and
// aggregates each group. Buckets appear in the order their key was first
// seen in records.
func Buckets(records []Record, w Window, layout string) []Bucket {
	if w.Empty() {
		return nil
	}
	var keys []string
	groups := map[string][]Record{}
	for _, r := range records {
		if !w.Contains(r.OccurredAt) {
			continue
		}
		k := r.OccurredAt.In(w.Start.Location()).Format(layout)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	out := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, Bucket{Key: k, Stats: Aggregate(groups[k], w)})
	}
	return out
}

// DailySeries returns one bucket per calendar day of w, in date order,
// including days without records. Keys use DayKeyLayout.
func DailySeries(records []Record, w Window) []Bucket {
	if w.Empty() {
		return nil
	}
	loc := w.Start.Location()
	var out []Bucket
	for day := w.Start; day.Before(w.End); {
		next := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
		if next.After(w.End) {
			next = w.End
		}
		out = append(out, Bucket{
			Key:   day.Format(DayKeyLayout),
			Stats: Aggregate(records, Window{Start: day, End: next}),
		})
		day = next
	}
	return out
}
