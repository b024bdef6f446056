// Package sheets stores tables as tabs of a Google spreadsheet. Row 1 of each
// tab is the header naming the columns; every following row is a record.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"timetracker/internal/core"
	"timetracker/internal/tables"
)

// lastColumn bounds every read; tables here never get near 26 columns.
const lastColumn = "Z"

type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

// values is the slice of the Sheets values API this package needs.
type values interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, rows [][]any) error
	Append(ctx context.Context, rng string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
}

type Client struct {
	api values
	// Writes read the tab to locate rows; serialise them per client.
	mu sync.Mutex
}

// New creates a client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, fmt.Errorf("%w: set GOOGLE_SPREADSHEET_ID", tables.ErrMissingConfig)
	}

	creds := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	if len(creds) == 0 && cfg.CredentialsFile != "" {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("%w: set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE", tables.ErrMissingConfig)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc, spreadsheetID: id}), nil
}

func newClient(api values) *Client {
	return &Client{api: api}
}

func (c *Client) Table(name string) tables.Table {
	return &tab{client: c, name: name}
}

// OwnedTable scopes the tab to the caller's rows on column.
func (c *Client) OwnedTable(name, column string) tables.Table {
	return &tab{client: c, name: name, owner: column}
}

type tab struct {
	client *Client
	name   string
	owner  string
}

// visible reports whether row may be seen by the caller of ctx.
func (t *tab) visible(ctx context.Context, row tables.Row) bool {
	if t.owner == "" {
		return true
	}
	user, ok := tables.Owner(ctx)
	return !ok || row.OwnedBy(t.owner, user)
}

func (t *tab) stampAll(ctx context.Context, rows []tables.Row) []tables.Row {
	out := make([]tables.Row, len(rows))
	for i, r := range rows {
		out[i] = t.stamp(ctx, r)
	}
	return out
}

func (t *tab) stamp(ctx context.Context, row tables.Row) tables.Row {
	if t.owner == "" {
		return row
	}
	if user, ok := tables.Owner(ctx); ok {
		row = row.Clone()
		row[t.owner] = user
	}
	return row
}

func (t *tab) rng(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(t.name, "'", "''"), cells)
}

func (t *tab) fail(op string, err error) error {
	return &tables.RemoteError{Op: op, Table: t.name, Message: err.Error(), Err: err}
}

// read returns the header and the data rows, including blank ones so that
// indexes map back to sheet rows.
func (t *tab) read(ctx context.Context) ([]string, [][]any, error) {
	raw, err := t.client.api.Get(ctx, t.rng("A:"+lastColumn))
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}
	header := make([]string, len(raw[0]))
	for i, v := range raw[0] {
		header[i] = strings.TrimSpace(core.Text(v))
	}
	return header, raw[1:], nil
}

func toRow(header []string, cells []any) (tables.Row, bool) {
	row := tables.Row{}
	filled := false
	for i, col := range header {
		if col == "" {
			continue
		}
		if i >= len(cells) || cells[i] == nil || cells[i] == "" {
			row[col] = nil
			continue
		}
		row[col] = cells[i]
		filled = true
	}
	return row, filled
}

func fromRow(header []string, row tables.Row) []any {
	out := make([]any, len(header))
	for i, col := range header {
		if v, ok := row[col]; ok && v != nil {
			out[i] = v
		} else {
			out[i] = ""
		}
	}
	return out
}

func (t *tab) Select(ctx context.Context) ([]tables.Row, error) {
	header, data, err := t.read(ctx)
	if err != nil {
		return nil, t.fail("select", err)
	}
	var out []tables.Row
	for _, cells := range data {
		if row, ok := toRow(header, cells); ok && t.visible(ctx, row) {
			out = append(out, row)
		}
	}
	return out, nil
}

// ensureHeader extends the header with any columns of rows it lacks and
// writes it back when it changed.
func (t *tab) ensureHeader(ctx context.Context, header []string, rows []tables.Row) ([]string, error) {
	known := map[string]bool{}
	for _, h := range header {
		known[h] = true
	}
	var added []string
	for _, r := range rows {
		for k := range r {
			if !known[k] {
				known[k] = true
				added = append(added, k)
			}
		}
	}
	if len(added) == 0 {
		return header, nil
	}
	sort.Slice(added, func(i, j int) bool {
		if added[i] == "id" || added[j] == "id" {
			return added[i] == "id"
		}
		return added[i] < added[j]
	})
	header = append(append([]string{}, header...), added...)

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := t.client.api.Update(ctx, t.rng("A1"), [][]any{cells}); err != nil {
		return nil, err
	}
	return header, nil
}

func (t *tab) Upsert(ctx context.Context, row tables.Row) error {
	id := row.ID()
	if id == "" {
		return &tables.RemoteError{Op: "upsert", Table: t.name, Message: "id is required"}
	}
	row = t.stamp(ctx, row)

	t.client.mu.Lock()
	defer t.client.mu.Unlock()

	header, data, err := t.read(ctx)
	if err != nil {
		return t.fail("upsert", err)
	}
	if header, err = t.ensureHeader(ctx, header, []tables.Row{row}); err != nil {
		return t.fail("upsert", err)
	}

	for i, cells := range data {
		existing, ok := toRow(header, cells)
		if !ok || existing.ID() != id {
			continue
		}
		if !t.visible(ctx, existing) {
			return tables.NotOwned("upsert", t.name, id)
		}
		sheetRow := i + 2
		if err := t.client.api.Update(ctx, t.rng(fmt.Sprintf("A%d", sheetRow)), [][]any{fromRow(header, row)}); err != nil {
			return t.fail("upsert", err)
		}
		return nil
	}

	if err := t.client.api.Append(ctx, t.rng("A1"), [][]any{fromRow(header, row)}); err != nil {
		return t.fail("upsert", err)
	}
	return nil
}

func (t *tab) Insert(ctx context.Context, rows ...tables.Row) error {
	if len(rows) == 0 {
		return nil
	}
	rows = t.stampAll(ctx, rows)

	t.client.mu.Lock()
	defer t.client.mu.Unlock()

	header, _, err := t.read(ctx)
	if err != nil {
		return t.fail("insert", err)
	}
	if header, err = t.ensureHeader(ctx, header, rows); err != nil {
		return t.fail("insert", err)
	}
	cells := make([][]any, len(rows))
	for i, r := range rows {
		cells[i] = fromRow(header, r)
	}
	if err := t.client.api.Append(ctx, t.rng("A1"), cells); err != nil {
		return t.fail("insert", err)
	}
	return nil
}

// Delete blanks the matching rows instead of removing them, which keeps the
// row numbers of everything else stable.
func (t *tab) Delete(ctx context.Context, id string) error {
	t.client.mu.Lock()
	defer t.client.mu.Unlock()

	header, data, err := t.read(ctx)
	if err != nil {
		return t.fail("delete", err)
	}
	for i, cells := range data {
		existing, ok := toRow(header, cells)
		if !ok || existing.ID() != id || !t.visible(ctx, existing) {
			continue
		}
		sheetRow := i + 2
		if err := t.client.api.Clear(ctx, t.rng(fmt.Sprintf("A%d:%s%d", sheetRow, lastColumn, sheetRow))); err != nil {
			return t.fail("delete", err)
		}
	}
	return nil
}

// serviceValues adapts the generated Sheets client.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var errNoService = errors.New("sheets service not initialized")

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	if s.svc == nil {
		return nil, errNoService
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (s *serviceValues) Update(ctx context.Context, rng string, rows [][]any) error {
	if s.svc == nil {
		return errNoService
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (s *serviceValues) Append(ctx context.Context, rng string, rows [][]any) error {
	if s.svc == nil {
		return errNoService
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (s *serviceValues) Clear(ctx context.Context, rng string) error {
	if s.svc == nil {
		return errNoService
	}
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}
