// Package export renders the entries index as a CSV download.
package export

import (
	"io"
	"strings"
	"time"

	"timetracker/internal/core"
)

// Header is the first line of every export.
const Header = "Date,Category,Description,Hours"

// CSV renders entries in index order. Only the description is quoted; the
// category name and date are written as-is. Lines are separated by "\n"
// without a trailing newline.
func CSV(entries *core.Entries, categories []core.Category) string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	var b strings.Builder
	b.WriteString(Header)
	for _, fe := range entries.Flatten() {
		b.WriteByte('\n')
		b.WriteString(fe.Date)
		b.WriteByte(',')
		b.WriteString(names[fe.CategoryID])
		b.WriteByte(',')
		b.WriteString(quote(fe.Description))
		b.WriteByte(',')
		b.WriteString(core.FormatHours(fe.DurationMinutes, 2))
	}
	return b.String()
}

// Write streams the CSV export to w.
func Write(w io.Writer, entries *core.Entries, categories []core.Category) error {
	_, err := io.WriteString(w, CSV(entries, categories))
	return err
}

// FileName returns the download name for an export taken on now's day.
func FileName(now time.Time) string {
	return "time-export-" + now.Format(core.DateLayout) + ".csv"
}

// quote always wraps s in double quotes, doubling any quote inside it.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
