package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"timetracker/internal/tables"
)

func TestMemoryUpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	tbl := New().Table(tables.EntriesTable)

	if err := tbl.Upsert(ctx, tables.Row{"id": "1", "name": "first", "min": 10}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := tbl.Upsert(ctx, tables.Row{"id": "2", "name": "second", "min": 20}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := tbl.Upsert(ctx, tables.Row{"id": "1", "name": "first edited", "min": 15}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := tbl.Select(ctx)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["name"] != "first edited" || rows[1]["name"] != "second" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestMemoryUpsertRequiresID(t *testing.T) {
	err := New().Table("x").Upsert(context.Background(), tables.Row{"name": "n"})
	if err == nil {
		t.Fatal("expected error without id")
	}
}

func TestMemoryInsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	tbl := s.Table(tables.CategoriesTable)
	if err := tbl.Insert(ctx, tables.Row{"id": "1"}, tables.Row{"id": "2"}, tables.Row{"id": "3"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tbl.Delete(ctx, "2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tbl.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	rows, _ := tbl.Select(ctx)
	if len(rows) != 2 || rows[0].ID() != "1" || rows[1].ID() != "3" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	// selected rows are copies
	rows[0]["id"] = "changed"
	again, _ := s.Table(tables.CategoriesTable).Select(ctx)
	if again[0].ID() != "1" {
		t.Fatal("Select leaked internal row")
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir, tables.CategoriesTable)
	if err != nil {
		t.Fatalf("missing files should not fail: %v", err)
	}
	rows, _ := s.Table(tables.CategoriesTable).Select(context.Background())
	if len(rows) != 0 {
		t.Fatalf("expected empty table, got %v", rows)
	}

	seed := `[{"id":"9","name":"Support","color":"#000000"}]`
	if err := os.WriteFile(filepath.Join(dir, "categories.json"), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFiles(dir, tables.CategoriesTable)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	rows, _ = s.Table(tables.CategoriesTable).Select(context.Background())
	if len(rows) != 1 || rows[0]["name"] != "Support" {
		t.Fatalf("unexpected seeded rows: %v", rows)
	}

	if err := os.WriteFile(filepath.Join(dir, "categories.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFiles(dir, tables.CategoriesTable); err == nil {
		t.Fatal("expected error for malformed seed")
	}
}

func TestMemoryOwnedTableScopesToCaller(t *testing.T) {
	s := New()
	alice := tables.WithIdentity(context.Background(), tables.Identity{UserID: "alice"})
	bob := tables.WithIdentity(context.Background(), tables.Identity{UserID: "bob"})
	tbl := s.OwnedTable(tables.EntriesTable, tables.OwnerColumn)

	if err := tbl.Upsert(alice, tables.Row{"id": "a1", "name": "alice secret", "min": 30}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rows, _ := tbl.Select(bob); len(rows) != 0 {
		t.Fatalf("bob sees %v", rows)
	}
	if err := tbl.Delete(bob, "a1"); err != nil {
		t.Fatalf("delete of a foreign row should be a no-op: %v", err)
	}
	err := tbl.Upsert(bob, tables.Row{"id": "a1", "name": "taken over", "min": 1})
	if !errors.Is(err, tables.ErrNotOwner) {
		t.Fatalf("upsert over a foreign row: got %v", err)
	}

	rows, _ := tbl.Select(alice)
	if len(rows) != 1 || rows[0]["name"] != "alice secret" || rows[0]["user_id"] != "alice" {
		t.Fatalf("alice rows = %v", rows)
	}

	// without an identity the table is not scoped
	all, _ := tbl.Select(context.Background())
	if len(all) != 1 {
		t.Fatalf("unscoped select = %v", all)
	}
}
