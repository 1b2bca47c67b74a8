package engine

import (
	"fmt"
	"time"

	"financas/internal/core"
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start core.Date
	End   core.Date
}

// Contains reports whether d falls inside the window; empty bounds are open.
func (w Window) Contains(d core.Date) bool {
	if !w.Start.IsEmpty() && d.Before(w.Start.Time) {
		return false
	}
	if !w.End.IsEmpty() && d.After(w.End.Time) {
		return false
	}
	return true
}

// MonthWindow returns [first day, last day] of t's month.
func MonthWindow(t time.Time) Window {
	d := core.DateOf(t)
	first := core.NewDate(d.Year(), d.Month(), 1)
	return Window{Start: first, End: core.Date{Time: first.AddDate(0, 1, -1)}}
}

// WeekWindow returns the Monday to Sunday week containing t.
func WeekWindow(t time.Time) Window {
	d := core.DateOf(t)
	offset := (int(d.Weekday()) + 6) % 7
	start := core.Date{Time: d.AddDate(0, 0, -offset)}
	return Window{Start: start, End: core.Date{Time: start.AddDate(0, 0, 6)}}
}

// PeriodWindow returns the budget window of the given period containing t.
func PeriodWindow(p core.Period, t time.Time) (Window, error) {
	switch p {
	case core.Monthly:
		return MonthWindow(t), nil
	case core.Weekly:
		return WeekWindow(t), nil
	default:
		return Window{}, fmt.Errorf("%w: %q", core.ErrInvalidPeriod, p)
	}
}
