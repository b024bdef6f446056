package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/tracker"
)

// ParseCursorParams reads "month" (YYYY-MM) and "date" (YYYY-MM-DD) from
// values. An invalid or missing month follows the selected date, and a
// missing date falls back to today.
func ParseCursorParams(values url.Values, now time.Time) tracker.Cursor {
	month := strings.TrimSpace(values.Get("month"))
	date := strings.TrimSpace(values.Get("date"))
	if _, err := time.Parse("2006-01", month); err != nil && date != "" {
		if d, err := time.Parse(core.DateLayout, date); err == nil {
			month = d.Format("2006-01")
		}
	}
	return tracker.ParseCursor(month, date, now)
}

// EntryForm is the editor form as posted by the page.
type EntryForm struct {
	ID          string
	Date        string
	Description string
	CategoryID  string
	Hours       string
	Minutes     string
}

// ParseEntryForm reads the editor fields from a parsed form. The date is
// normalized so any format the page posts ends up as YYYY-MM-DD.
func ParseEntryForm(form url.Values, normalize func(any) string) EntryForm {
	if normalize == nil {
		normalize = core.NormalizeDate
	}
	f := EntryForm{
		ID:          sanitizeInput(form.Get("id")),
		Description: sanitizeInput(form.Get("description")),
		CategoryID:  sanitizeInput(form.Get("category")),
		Hours:       sanitizeInput(form.Get("hours")),
		Minutes:     sanitizeInput(form.Get("minutes")),
	}
	if d := sanitizeInput(form.Get("date")); d != "" {
		f.Date = normalize(d)
	}
	return f
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
