// Package storage implements the tables port on SQL databases: SQLite for
// single-node deployments and PostgreSQL for shared ones. Both keep the same
// column layout as the remote REST backend so rows round-trip unchanged.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"timetracker/internal/tables"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures the few places SQLite and PostgreSQL disagree.
type dialect struct {
	name        string
	placeholder func(n int) string
}

var (
	sqliteDialect   = dialect{name: "sqlite", placeholder: func(int) string { return "?" }}
	postgresDialect = dialect{name: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
)

// DB is a tables.Client over a database/sql handle.
type DB struct {
	db      *sql.DB
	dialect dialect
}

func (d *DB) Table(name string) tables.Table {
	return &sqlTable{db: d.db, dialect: d.dialect, name: name}
}

// OwnedTable scopes name to the caller's rows on column. Queries filter on
// the column, so it should be indexed.
func (d *DB) OwnedTable(name, column string) tables.Table {
	return &sqlTable{db: d.db, dialect: d.dialect, name: name, owner: column}
}

// Ping reports whether the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

type sqlTable struct {
	db      *sql.DB
	dialect dialect
	name    string
	owner   string // owner column, empty when unscoped
}

func (t *sqlTable) scope(ctx context.Context) (string, bool) {
	if t.owner == "" {
		return "", false
	}
	return tables.Owner(ctx)
}

func quote(name string) (string, error) {
	if !identifier.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func (t *sqlTable) fail(op string, err error) error {
	return &tables.RemoteError{Op: op, Table: t.name, Message: err.Error(), Err: err}
}

func (t *sqlTable) Select(ctx context.Context) ([]tables.Row, error) {
	tbl, err := quote(t.name)
	if err != nil {
		return nil, t.fail("select", err)
	}
	query, args := "SELECT * FROM "+tbl, []any(nil)
	if user, ok := t.scope(ctx); ok {
		col, err := quote(t.owner)
		if err != nil {
			return nil, t.fail("select", err)
		}
		query += " WHERE " + col + " = " + t.dialect.placeholder(1)
		args = append(args, user)
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.fail("select", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, t.fail("select", err)
	}

	var out []tables.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, t.fail("select", err)
		}
		row := make(tables.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, t.fail("select", err)
	}
	return out, nil
}

func (t *sqlTable) Upsert(ctx context.Context, row tables.Row) error {
	if row.ID() == "" {
		return &tables.RemoteError{Op: "upsert", Table: t.name, Message: "id is required"}
	}
	user, scoped := t.scope(ctx)
	if scoped {
		row = row.Clone()
		row[t.owner] = user
	}
	query, args, err := t.insertSQL([]tables.Row{row}, true, scoped)
	if err != nil {
		return t.fail("upsert", err)
	}
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return t.fail("upsert", err)
	}
	if scoped {
		// the conflict update is guarded by owner; nothing written means the
		// id belongs to someone else
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return tables.NotOwned("upsert", t.name, row.ID())
		}
	}
	return nil
}

func (t *sqlTable) Insert(ctx context.Context, rows ...tables.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if user, ok := t.scope(ctx); ok {
		stamped := make([]tables.Row, len(rows))
		for i, r := range rows {
			stamped[i] = r.Clone()
			stamped[i][t.owner] = user
		}
		rows = stamped
	}
	query, args, err := t.insertSQL(rows, false, false)
	if err != nil {
		return t.fail("insert", err)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return t.fail("insert", err)
	}
	return nil
}

func (t *sqlTable) Delete(ctx context.Context, id string) error {
	tbl, err := quote(t.name)
	if err != nil {
		return t.fail("delete", err)
	}
	query, args := "DELETE FROM "+tbl+" WHERE id = "+t.dialect.placeholder(1), []any{id}
	if user, ok := t.scope(ctx); ok {
		col, err := quote(t.owner)
		if err != nil {
			return t.fail("delete", err)
		}
		query += " AND " + col + " = " + t.dialect.placeholder(2)
		args = append(args, user)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return t.fail("delete", err)
	}
	return nil
}

// insertSQL builds one multi-row INSERT over the union of the rows' columns,
// sorted for stable statements. Columns absent from a row are sent as NULL.
// With guardOwner the conflict update only applies to rows of the same owner.
func (t *sqlTable) insertSQL(rows []tables.Row, upsert, guardOwner bool) (string, []any, error) {
	tbl, err := quote(t.name)
	if err != nil {
		return "", nil, err
	}

	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("no columns to insert")
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		if quoted[i], err = quote(c); err != nil {
			return "", nil, err
		}
	}

	var b strings.Builder
	args := make([]any, 0, len(rows)*len(cols))
	b.WriteString("INSERT INTO " + tbl + " (" + strings.Join(quoted, ", ") + ") VALUES ")
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, r[c])
			b.WriteString(t.dialect.placeholder(len(args)))
		}
		b.WriteString(")")
	}

	if upsert {
		var sets []string
		for i, c := range cols {
			if c == "id" {
				continue
			}
			sets = append(sets, quoted[i]+" = excluded."+quoted[i])
		}
		if len(sets) == 0 {
			b.WriteString(" ON CONFLICT (id) DO NOTHING")
		} else {
			b.WriteString(" ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", "))
			if guardOwner && seen[t.owner] {
				col, err := quote(t.owner)
				if err != nil {
					return "", nil, err
				}
				b.WriteString(" WHERE " + tbl + "." + col + " = excluded." + col)
			}
		}
	}
	return b.String(), args, nil
}
