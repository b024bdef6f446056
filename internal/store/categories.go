package store

import (
	"context"

	"timetracker/internal/core"
	"timetracker/internal/log"
	"timetracker/internal/tables"
)

// CategoryStore reads categories, seeding the defaults into an empty table.
//
// Seeding is not guarded: two first loads racing on an empty table can both
// insert the default set.
type CategoryStore struct {
	table  tables.Table
	name   string
	logger *log.Logger
}

func NewCategoryStore(client tables.Client, tableName string, logger *log.Logger) *CategoryStore {
	if tableName == "" {
		tableName = tables.CategoriesTable
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &CategoryStore{
		table:  client.Table(tableName),
		name:   tableName,
		logger: logger.WithComponent(log.ComponentStore),
	}
}

// Fetch reads all categories without any fallback.
func (s *CategoryStore) Fetch(ctx context.Context) ListResult[core.Category] {
	rows, err := s.table.Select(ctx)
	if err != nil {
		return ListResult[core.Category]{Err: tables.Wrap("select", s.name, err)}
	}
	out := make([]core.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.Category{
			ID:    r.ID(),
			Name:  core.Text(r["name"]),
			Color: core.Text(r["color"]),
		})
	}
	return ListResult[core.Category]{Items: out}
}

// List never fails: a failed read yields the defaults, and an empty table is
// seeded with the defaults, which are then returned.
func (s *CategoryStore) List(ctx context.Context) []core.Category {
	res := s.Fetch(ctx)
	if res.Failed() {
		s.logger.WarnContext(ctx, "Listing categories failed, using defaults",
			log.FieldTable, s.name, log.FieldError, res.Err)
		return res.Or(core.DefaultCategories())
	}
	if len(res.Items) > 0 {
		return res.Items
	}

	defaults := core.DefaultCategories()
	rows := make([]tables.Row, 0, len(defaults))
	for _, c := range defaults {
		rows = append(rows, tables.Row{"id": c.ID, "name": c.Name, "color": c.Color})
	}
	if err := s.table.Insert(ctx, rows...); err != nil {
		s.logger.WarnContext(ctx, "Seeding default categories failed",
			log.FieldTable, s.name, log.FieldOperation, log.OpSeed, log.FieldError, tables.Wrap("insert", s.name, err))
	} else {
		s.logger.InfoContext(ctx, "Seeded default categories",
			log.FieldTable, s.name, log.FieldOperation, log.OpSeed, log.FieldRowCount, len(rows))
	}
	return defaults
}
