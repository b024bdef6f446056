package tracker

import (
	"time"

	"timetracker/internal/core"
)

// Cursor holds the visible month and the selected day. They move
// independently: paging months keeps the selection.
type Cursor struct {
	Year     int
	Month    int
	Selected string
}

// NewCursor points at today's month with today selected.
func NewCursor(now time.Time) Cursor {
	return Cursor{Year: now.Year(), Month: int(now.Month()), Selected: now.Format(core.DateLayout)}
}

// ParseCursor reads a cursor from "YYYY-MM" and "YYYY-MM-DD" values, falling
// back to today for either part that does not parse.
func ParseCursor(month, selected string, now time.Time) Cursor {
	c := NewCursor(now)
	if t, err := time.Parse("2006-01", month); err == nil {
		c.Year, c.Month = t.Year(), int(t.Month())
	}
	if t, err := time.Parse(core.DateLayout, selected); err == nil {
		c.Selected = t.Format(core.DateLayout)
	}
	return c
}

func (c Cursor) PrevMonth() Cursor {
	return c.shift(-1)
}

func (c Cursor) NextMonth() Cursor {
	return c.shift(1)
}

func (c Cursor) shift(delta int) Cursor {
	t := time.Date(c.Year, time.Month(c.Month)+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	c.Year, c.Month = t.Year(), int(t.Month())
	return c
}

// Select changes the selected day only.
func (c Cursor) Select(date string) Cursor {
	c.Selected = date
	return c
}

// Today resets both month and selection to now.
func (c Cursor) Today(now time.Time) Cursor {
	return NewCursor(now)
}

// MonthKey is the visible month as YYYY-MM.
func (c Cursor) MonthKey() string {
	return core.MonthKey(c.Year, c.Month)
}
