package http

import (
	"errors"
	"net/http"
	"strings"

	"timetracker/internal/core"
	"timetracker/internal/tables"
)

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// saveFailureMessage is the alert text for a failed entry write.
func saveFailureMessage(err error) string {
	return "Failed to save entry: " + err.Error() +
		". Check backend keys, access policies, and that you are signed in."
}

func deleteFailureMessage(err error) string {
	return "Failed to delete entry: " + err.Error()
}

// writeFailure answers a rejected write. Only backend failures get the 502
// with the backend hint; an invalid entry is the client's fault and a row of
// another user is forbidden.
func writeFailure(err error, backendMessage func(error) string) *HTMXResponseBuilder {
	switch {
	case errors.Is(err, core.ErrInvalidEntry):
		return AlertError(http.StatusBadRequest, "Invalid entry: "+strings.ReplaceAll(err.Error(), "\n", "; "))
	case errors.Is(err, tables.ErrNotOwner):
		return AlertError(http.StatusForbidden, "This entry belongs to another user.")
	}
	return BadGatewayError(backendMessage(err))
}
