package tables

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"timetracker/internal/core"
)

// RemoteError is a failure reported by the backend. The fields mirror the
// diagnostics PostgREST style backends return; SQL and spreadsheet adapters
// fill what they have.
type RemoteError struct {
	Op      string
	Table   string
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
	Err     error
}

// Error joins message, details and hint. It is never empty.
func (e *RemoteError) Error() string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Details != "" {
		parts = append(parts, e.Details)
	}
	if e.Hint != "" {
		parts = append(parts, "hint: "+e.Hint)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "; ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s failed with code %s", e.Op, e.Table, e.Code)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s failed with status %d", e.Op, e.Table, e.Status)
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.Table)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// DecodeRemoteError builds a RemoteError from a backend error body. Bodies that
// are not JSON end up as the message verbatim.
func DecodeRemoteError(op, table string, status int, body []byte) *RemoteError {
	re := &RemoteError{Op: op, Table: table, Status: status}
	var payload struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Details          any    `json:"details"`
		Hint             string `json:"hint"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		re.Message = strings.TrimSpace(string(body))
		return re
	}
	re.Code = text(payload.Code)
	re.Message = firstNonEmpty(payload.Message, payload.Msg, payload.ErrorDescription, payload.Error)
	re.Details = text(payload.Details)
	re.Hint = payload.Hint
	if re.Message == "" && re.Details == "" && re.Hint == "" {
		re.Message = strings.TrimSpace(string(body))
	}
	return re
}

// Wrap turns an adapter failure into a RemoteError. A nil err stays nil and an
// existing RemoteError is returned unchanged.
func Wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}
	return &RemoteError{Op: op, Table: table, Message: err.Error(), Err: err}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s := core.Text(v); s != "" {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
