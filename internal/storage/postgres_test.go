package storage

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"timetracker/internal/tables"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newPostgres(db), mock
}

func TestPostgres_UpsertStatement(t *testing.T) {
	d, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "time_tracker" ("date", "id", "min") VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET "date" = excluded."date", "min" = excluded."min"`)).
		WithArgs("2024-01-02", "9", 30).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.Table(tables.EntriesTable).Upsert(context.Background(), tables.Row{"id": "9", "date": "2024-01-02", "min": 30})
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgres_OwnedTableFiltersByCaller(t *testing.T) {
	d, mock := newMock(t)
	ctx := tables.WithIdentity(context.Background(), tables.Identity{UserID: "u-1"})
	entries := d.OwnedTable(tables.EntriesTable, tables.OwnerColumn)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "time_tracker" WHERE "user_id" = $1`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("1", "u-1"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "time_tracker" WHERE id = $1 AND "user_id" = $2`)).
		WithArgs("1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "time_tracker" ("id", "min", "user_id") VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET "min" = excluded."min", "user_id" = excluded."user_id" WHERE "time_tracker"."user_id" = excluded."user_id"`)).
		WithArgs("2", 5, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := entries.Select(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("Select = %v, %v", rows, err)
	}
	if err := entries.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	err = entries.Upsert(ctx, tables.Row{"id": "2", "min": 5})
	if !errors.Is(err, tables.ErrNotOwner) {
		t.Fatalf("Upsert over a foreign row: got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgres_InsertFillsMissingColumnsWithNull(t *testing.T) {
	d, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "categories" ("color", "id", "name") VALUES ($1, $2, $3), ($4, $5, $6)`)).
		WithArgs("#fff", "1", "A", nil, "2", "B").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := d.Table(tables.CategoriesTable).Insert(context.Background(),
		tables.Row{"id": "1", "name": "A", "color": "#fff"},
		tables.Row{"id": "2", "name": "B"},
	)
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgres_SelectScansGenericRows(t *testing.T) {
	d, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "date", "min", "categories"}).
		AddRow("1", "2024-01-02", int64(15), nil).
		AddRow([]byte("2"), "2024-01-03", int64(60), "3")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "time_tracker"`)).WillReturnRows(rows)

	got, err := d.Table(tables.EntriesTable).Select(context.Background())
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[1].ID() != "2" {
		t.Errorf("byte id not converted: %#v", got[1]["id"])
	}
	if got[0]["categories"] != nil {
		t.Errorf("categories = %#v, want nil", got[0]["categories"])
	}
}

func TestPostgres_DeleteWrapsDriverError(t *testing.T) {
	d, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "time_tracker" WHERE id = $1`)).
		WithArgs("5").
		WillReturnError(errors.New("connection reset"))

	err := d.Table(tables.EntriesTable).Delete(context.Background(), "5")
	var re *tables.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Op != "delete" || re.Error() != "connection reset" {
		t.Errorf("unexpected error %+v", re)
	}
}

func TestMigratePostgres_UsesEmbeddedDir(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var dir string
	gooseUp = func(_ context.Context, _ *sql.DB, d string) error {
		dir = d
		return nil
	}

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	if err := migratePostgres(context.Background(), db); err != nil {
		t.Fatalf("migratePostgres error: %v", err)
	}
	if dir != "migrations/postgres" {
		t.Errorf("dir = %q", dir)
	}
}

// A zero-minute edit must be stored on every backend; listing drops it later.
func TestMigrations_AcceptZeroMinutes(t *testing.T) {
	for name, fsys := range map[string]fs.FS{"postgres": postgresMigrations, "sqlite": sqliteMigrations} {
		err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			b, err := fs.ReadFile(fsys, path)
			if err != nil {
				return err
			}
			if strings.Contains(strings.ToUpper(string(b)), "CHECK") {
				t.Errorf("%s: %s constrains rows: %s", name, path, b)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}
