package core

import "time"

type (
	// DayCell is one day of a month grid.
	DayCell struct {
		Day        int
		Date       string
		HasEntries bool
		Selected   bool
		Today      bool
	}

	// MonthGrid lays out a month on a Monday-first week. Offset is the number of
	// blank cells before day 1.
	MonthGrid struct {
		Year   int
		Month  int
		Offset int
		Days   []DayCell
	}
)

// DaysIn returns the number of days in year/month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MondayOffset returns how many cells precede day 1 of year/month in a week
// starting on Monday.
func MondayOffset(year, month int) int {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return (int(first.Weekday()) + 6) % 7
}

// BuildMonthGrid computes the grid for year/month. selected and today are
// YYYY-MM-DD dates and may fall outside the month.
func BuildMonthGrid(year, month int, entries *Entries, selected, today string) MonthGrid {
	n := DaysIn(year, month)
	g := MonthGrid{
		Year:   year,
		Month:  month,
		Offset: MondayOffset(year, month),
		Days:   make([]DayCell, 0, n),
	}
	for d := 1; d <= n; d++ {
		date := time.Date(year, time.Month(month), d, 0, 0, 0, 0, time.UTC).Format(DateLayout)
		g.Days = append(g.Days, DayCell{
			Day:        d,
			Date:       date,
			HasEntries: entries.Has(date),
			Selected:   date == selected,
			Today:      date == today,
		})
	}
	return g
}

// Blanks returns a slice sized to the grid offset, handy for templates.
func (g MonthGrid) Blanks() []struct{} {
	return make([]struct{}, g.Offset)
}
