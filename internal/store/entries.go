// Package store exposes the remote entry and category tables as typed
// façades. Reads degrade to empty or default results; writes return errors
// carrying the backend's diagnostics.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"timetracker/internal/core"
	"timetracker/internal/log"
	"timetracker/internal/tables"
)

// ImportedDescription labels rows that carry no description at all.
const ImportedDescription = "Imported"

// EntryStore reads and writes time entries in a single remote table.
type EntryStore struct {
	table      tables.Table
	name       string
	normalizer core.DateNormalizer
	logger     *log.Logger
}

type EntryOption func(*EntryStore)

// WithNormalizer overrides the date normalizer, mainly to pin "today".
func WithNormalizer(n core.DateNormalizer) EntryOption {
	return func(s *EntryStore) { s.normalizer = n }
}

// WithEntryLogger sets the logger used for ignored read errors and writes.
func WithEntryLogger(l *log.Logger) EntryOption {
	return func(s *EntryStore) { s.logger = l.WithComponent(log.ComponentStore) }
}

func NewEntryStore(client tables.Client, tableName string, opts ...EntryOption) *EntryStore {
	if tableName == "" {
		tableName = tables.EntriesTable
	}
	s := &EntryStore{
		table:  tables.OwnedTable(client, tableName, tables.OwnerColumn),
		name:   tableName,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch reads every row and maps it to a flat entry. Rows whose duration is
// not positive are dropped.
func (s *EntryStore) Fetch(ctx context.Context) ListResult[core.FlatTimeEntry] {
	rows, err := s.table.Select(ctx)
	if err != nil {
		return ListResult[core.FlatTimeEntry]{Err: tables.Wrap("select", s.name, err)}
	}
	out := make([]core.FlatTimeEntry, 0, len(rows))
	for _, r := range rows {
		fe := s.entryFromRow(r)
		if fe.DurationMinutes <= 0 {
			continue
		}
		out = append(out, fe)
	}
	return ListResult[core.FlatTimeEntry]{Items: out}
}

// List is Fetch with failures collapsed to an empty list.
func (s *EntryStore) List(ctx context.Context) []core.FlatTimeEntry {
	res := s.Fetch(ctx)
	if res.Failed() {
		s.logger.WarnContext(ctx, "Listing entries failed, showing none",
			log.FieldTable, s.name, log.FieldError, res.Err)
	}
	return res.OrEmpty()
}

// Save upserts e by id. The caller from ctx is recorded as owner, falling
// back to e.Owner for writes made on nobody's behalf.
func (s *EntryStore) Save(ctx context.Context, e core.FlatTimeEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	if err := s.table.Upsert(ctx, s.rowFromEntry(ctx, e)); err != nil {
		return tables.Wrap("upsert", s.name, err)
	}
	s.logger.InfoContext(ctx, "Time entry saved",
		log.NewFields().WithEntry(e.ID, e.Date, e.DurationMinutes, e.CategoryID).WithTable(s.name).ToSlice()...)
	return nil
}

// Delete removes the entry with the given id.
func (s *EntryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete entry: %w", errors.Join(core.ErrInvalidEntry, core.ErrEmptyID))
	}
	if err := s.table.Delete(ctx, id); err != nil {
		return tables.Wrap("delete", s.name, err)
	}
	s.logger.InfoContext(ctx, "Time entry deleted", log.FieldEntryID, id, log.FieldTable, s.name)
	return nil
}

func (s *EntryStore) rowFromEntry(ctx context.Context, e core.FlatTimeEntry) tables.Row {
	row := tables.Row{
		"id":         e.ID,
		"date":       e.Date,
		"name":       e.Description,
		"min":        e.DurationMinutes,
		"categories": nil,
		"user_id":    nil,
	}
	if e.Owner != "" {
		row["user_id"] = e.Owner
	}
	if e.HasCategory() {
		row["categories"] = e.CategoryID
	}
	if id, ok := tables.IdentityFromContext(ctx); ok {
		row["user_id"] = id.UserID
	}
	return row
}

func (s *EntryStore) entryFromRow(r tables.Row) core.FlatTimeEntry {
	rawDate, _ := r.First("date", "created_at")

	desc := ImportedDescription
	if v, ok := r.First("name", "description"); ok {
		desc = core.Text(v)
	}

	var categoryID string
	if v, ok := r.First("categories", "category_id", "categoryId"); ok && core.Truthy(v) {
		categoryID = core.Text(v)
	}

	return core.FlatTimeEntry{
		TimeEntry: core.TimeEntry{
			ID:              r.ID(),
			Description:     desc,
			DurationMinutes: roundMinutes(r),
			CategoryID:      categoryID,
		},
		Date:  s.normalizer.Normalize(rawDate),
		Owner: core.Text(r[tables.OwnerColumn]),
	}
}

func roundMinutes(r tables.Row) int {
	raw, ok := r.First("min", "minutes")
	if !ok {
		return 0
	}
	n, ok := core.Number(raw)
	if !ok {
		// empty strings count as zero, anything else unparseable too
		return 0
	}
	return int(math.Floor(n + 0.5))
}
