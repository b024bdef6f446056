// Package tables defines the outbound port used to reach the remote store:
// a set of named tables addressed by row id.
package tables

import (
	"context"
	"errors"
)

// Default table names.
const (
	EntriesTable    = "time_tracker"
	CategoriesTable = "categories"
)

var ErrNotFound = errors.New("row not found")

// Ports for outbound adapters.
type (
	// Row is one record as the backend returns it. Values keep whatever type
	// the backend decoded (string, float64, int64, json.Number, time.Time, nil).
	Row map[string]any

	Table interface {
		// Select returns every row visible to the caller.
		Select(ctx context.Context) ([]Row, error)
		// Upsert inserts row or replaces the row with the same "id".
		Upsert(ctx context.Context, row Row) error
		// Insert adds rows without conflict handling.
		Insert(ctx context.Context, rows ...Row) error
		// Delete removes the row whose "id" equals id. Deleting a missing row is
		// not an error.
		Delete(ctx context.Context, id string) error
	}

	Client interface {
		Table(name string) Table
	}
)

// ID returns the row id as text.
func (r Row) ID() string {
	return text(r["id"])
}

// First returns the value of the first key that is present and not nil.
func (r Row) First(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ErrMissingConfig marks a backend that cannot be built because required
// connection settings are absent.
var ErrMissingConfig = errors.New("missing backend configuration")
