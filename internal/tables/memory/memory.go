package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"timetracker/internal/tables"
)

// Store keeps tables in process memory. Rows keep insertion order; an upsert
// of an existing id replaces the row in place.
type Store struct {
	mu     sync.Mutex
	tables map[string]*table
}

type table struct {
	rows []tables.Row
}

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// NewFromFiles seeds tables from "<name>.json" files in base, each holding a
// JSON array of objects. Missing files leave the table empty.
func NewFromFiles(base string, names ...string) (*Store, error) {
	s := New()
	for _, name := range names {
		rows, err := readRows(filepath.Join(base, name+".json"))
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		if len(rows) > 0 {
			s.Seed(name, rows...)
		}
	}
	return s, nil
}

// Seed appends rows to a table without conflict handling.
func (s *Store) Seed(name string, rows ...tables.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.get(name)
	for _, r := range rows {
		t.rows = append(t.rows, r.Clone())
	}
}

func (s *Store) Table(name string) tables.Table {
	return &tableHandle{store: s, name: name}
}

// OwnedTable scopes name to the caller's rows on column.
func (s *Store) OwnedTable(name, column string) tables.Table {
	return &tableHandle{store: s, name: name, owner: column}
}

func (s *Store) get(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{}
		s.tables[name] = t
	}
	return t
}

type tableHandle struct {
	store *Store
	name  string
	owner string // owner column, empty when unscoped
}

// scope returns the user id rows are limited to for this call.
func (h *tableHandle) scope(ctx context.Context) (string, bool) {
	if h.owner == "" {
		return "", false
	}
	return tables.Owner(ctx)
}

// stamp copies row with the owner column set to user.
func (h *tableHandle) stamp(row tables.Row, user string, scoped bool) tables.Row {
	out := row.Clone()
	if scoped {
		out[h.owner] = user
	}
	return out
}

func (h *tableHandle) Select(ctx context.Context) ([]tables.Row, error) {
	user, scoped := h.scope(ctx)
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	t := h.store.get(h.name)
	out := make([]tables.Row, 0, len(t.rows))
	for _, r := range t.rows {
		if scoped && !r.OwnedBy(h.owner, user) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (h *tableHandle) Upsert(ctx context.Context, row tables.Row) error {
	id := row.ID()
	if id == "" {
		return &tables.RemoteError{Op: "upsert", Table: h.name, Message: "id is required"}
	}
	user, scoped := h.scope(ctx)
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	t := h.store.get(h.name)
	for i, r := range t.rows {
		if r.ID() != id {
			continue
		}
		if scoped && !r.OwnedBy(h.owner, user) {
			return tables.NotOwned("upsert", h.name, id)
		}
		t.rows[i] = h.stamp(row, user, scoped)
		return nil
	}
	t.rows = append(t.rows, h.stamp(row, user, scoped))
	return nil
}

func (h *tableHandle) Insert(ctx context.Context, rows ...tables.Row) error {
	user, scoped := h.scope(ctx)
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	t := h.store.get(h.name)
	for _, r := range rows {
		t.rows = append(t.rows, h.stamp(r, user, scoped))
	}
	return nil
}

// Delete leaves rows of other users alone; to the caller they do not exist.
func (h *tableHandle) Delete(ctx context.Context, id string) error {
	user, scoped := h.scope(ctx)
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	t := h.store.get(h.name)
	kept := t.rows[:0]
	for _, r := range t.rows {
		if r.ID() == id && (!scoped || r.OwnedBy(h.owner, user)) {
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	return nil
}

func readRows(path string) ([]tables.Row, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []tables.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
