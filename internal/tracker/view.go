package tracker

import (
	"time"

	"timetracker/internal/core"
)

// DayEntry is one row of the day list.
type DayEntry struct {
	core.TimeEntry
	Date         string
	CategoryName string
	Color        string
	Duration     string
}

// MonthView is everything the tracker page renders.
type MonthView struct {
	Cursor        Cursor
	Title         string
	Grid          core.MonthGrid
	Weekdays      []string
	SelectedLabel string
	DayEntries    []DayEntry
	DayTotal      string
	MonthTotal    string
	PrevMonth     string
	NextMonth     string
	Today         string
	Categories    []core.Category
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// BuildMonthView derives the page model from a snapshot and a cursor.
func BuildMonthView(snap *Snapshot, c Cursor, today string) MonthView {
	var (
		entries *core.Entries
		cats    []core.Category
	)
	if snap != nil {
		entries, cats = snap.Entries, snap.Categories
	}

	day := entries.Day(c.Selected)
	list := make([]DayEntry, 0, len(day))
	for _, te := range day {
		de := DayEntry{
			TimeEntry: te,
			Date:      c.Selected,
			Color:     core.CategoryColor(cats, te.CategoryID),
			Duration:  core.FormatDuration(te.DurationMinutes),
		}
		if cat, ok := core.CategoryByID(cats, te.CategoryID); ok {
			de.CategoryName = cat.Name
		}
		list = append(list, de)
	}

	return MonthView{
		Cursor:        c,
		Title:         time.Date(c.Year, time.Month(c.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006"),
		Grid:          core.BuildMonthGrid(c.Year, c.Month, entries, c.Selected, today),
		Weekdays:      weekdays,
		SelectedLabel: selectedLabel(c.Selected),
		DayEntries:    list,
		DayTotal:      core.FormatHours(entries.DayTotal(c.Selected), 1),
		MonthTotal:    core.FormatHours(entries.MonthTotal(c.Year, c.Month), 1),
		PrevMonth:     c.PrevMonth().MonthKey(),
		NextMonth:     c.NextMonth().MonthKey(),
		Today:         today,
		Categories:    cats,
	}
}

func selectedLabel(date string) string {
	t, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}
