package core

import "fmt"

// Entries indexes time entries by canonical date. Entries keep the order in
// which they were added, and dates keep the order in which they were first
// seen, so iteration over an index built from a fetch follows fetch order.
type Entries struct {
	dates  []string
	byDate map[string][]TimeEntry
}

// BuildIndex builds a fresh index from a flat list.
func BuildIndex(flat []FlatTimeEntry) *Entries {
	idx := &Entries{byDate: make(map[string][]TimeEntry)}
	for _, fe := range flat {
		idx.add(fe.Date, fe.TimeEntry)
	}
	return idx
}

func (e *Entries) add(date string, te TimeEntry) {
	if _, ok := e.byDate[date]; !ok {
		e.dates = append(e.dates, date)
	}
	e.byDate[date] = append(e.byDate[date], te)
}

// Dates returns the indexed dates in key order.
func (e *Entries) Dates() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.dates))
	copy(out, e.dates)
	return out
}

// Day returns the entries recorded for date, in insertion order.
func (e *Entries) Day(date string) []TimeEntry {
	if e == nil {
		return nil
	}
	return e.byDate[date]
}

// Has reports whether any entry exists for date.
func (e *Entries) Has(date string) bool {
	return len(e.Day(date)) > 0
}

// Len returns the total number of entries.
func (e *Entries) Len() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, list := range e.byDate {
		n += len(list)
	}
	return n
}

// Flatten returns all entries in key order, then list order.
func (e *Entries) Flatten() []FlatTimeEntry {
	if e == nil {
		return nil
	}
	out := make([]FlatTimeEntry, 0, e.Len())
	for _, d := range e.dates {
		for _, te := range e.byDate[d] {
			out = append(out, FlatTimeEntry{TimeEntry: te, Date: d})
		}
	}
	return out
}

// DayTotal sums the minutes recorded on date.
func (e *Entries) DayTotal(date string) int {
	total := 0
	for _, te := range e.Day(date) {
		total += te.DurationMinutes
	}
	return total
}

// MonthTotal sums the minutes of every indexed date falling in year/month.
func (e *Entries) MonthTotal(year, month int) int {
	if e == nil {
		return 0
	}
	prefix := MonthKey(year, month) + "-"
	total := 0
	for date, list := range e.byDate {
		if len(date) < len(prefix) || date[:len(prefix)] != prefix {
			continue
		}
		for _, te := range list {
			total += te.DurationMinutes
		}
	}
	return total
}

// MonthKey renders year and month as YYYY-MM.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
