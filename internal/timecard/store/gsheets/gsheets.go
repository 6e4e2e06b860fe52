// Package gsheets adapts a Google spreadsheet to store.Tables.  Each sheet
// (tab) of the spreadsheet is one store.Table; row numbers are the
// spreadsheet's own, with the header in row 1.
package gsheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

const valueInput = "RAW"

type Config struct {
	SpreadsheetID string
	// CredentialsFile is a service account JSON key.  Empty uses
	// application default credentials.
	CredentialsFile string
}

// Spreadsheet is a store.Tables over one spreadsheet.
type Spreadsheet struct {
	svc *sheets.Service
	id  string
}

// New dials the Sheets API.  extra options are appended after the
// credentials, so tests can point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Spreadsheet, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("gsheets: spreadsheet id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, extra...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gsheets: new service: %w", err)
	}
	return &Spreadsheet{svc: svc, id: cfg.SpreadsheetID}, nil
}

// Open returns the named tab, adding it with header when it is missing.
func (s *Spreadsheet) Open(ctx context.Context, name string, header store.Row) (store.Table, error) {
	doc, err := s.svc.Spreadsheets.Get(s.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gsheets: get spreadsheet: %w", err)
	}
	t := &Sheet{svc: s.svc, id: s.id, name: name}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return t, nil
		}
	}

	_, err = s.svc.Spreadsheets.BatchUpdate(s.id, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gsheets: add sheet %s: %w", name, err)
	}
	if err := t.UpdateRange(ctx, 1, 0, header); err != nil {
		return nil, fmt.Errorf("gsheets: write header %s: %w", name, err)
	}
	return t, nil
}

// Sheet is one tab.
type Sheet struct {
	svc  *sheets.Service
	id   string
	name string
}

func (t *Sheet) Name() string { return t.name }

func (t *Sheet) FindRow(ctx context.Context, key string) (int, bool, error) {
	vr, err := t.svc.Spreadsheets.Values.Get(t.id, t.a1("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, false, err
	}
	for i, r := range vr.Values {
		if i == 0 {
			continue
		}
		if len(r) > 0 && cellString(r[0]) == key {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// ReadRow returns the row's cells.  The API trims trailing empty cells and
// returns nothing for a blank row, so a row past the end reads as empty.
func (t *Sheet) ReadRow(ctx context.Context, rowNum int) (store.Row, error) {
	if rowNum < 1 {
		return nil, fmt.Errorf("%w: %d", store.ErrRowOutOfRange, rowNum)
	}
	vr, err := t.svc.Spreadsheets.Values.Get(t.id, t.a1(fmt.Sprintf("%d:%d", rowNum, rowNum))).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return store.Row{}, nil
	}
	return toRow(vr.Values[0]), nil
}

func (t *Sheet) AppendRow(ctx context.Context, row store.Row) error {
	_, err := t.svc.Spreadsheets.Values.Append(t.id, t.a1("A1"), &sheets.ValueRange{
		Values: [][]interface{}{toValues(row)},
	}).ValueInputOption(valueInput).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (t *Sheet) UpdateRange(ctx context.Context, rowNum, col int, cells []string) error {
	if rowNum < 1 || col < 0 {
		return fmt.Errorf("%w: row %d col %d", store.ErrRowOutOfRange, rowNum, col)
	}
	rng := t.a1(fmt.Sprintf("%s%d", ColumnLetter(col), rowNum))
	_, err := t.svc.Spreadsheets.Values.Update(t.id, rng, &sheets.ValueRange{
		Values: [][]interface{}{toValues(cells)},
	}).ValueInputOption(valueInput).Context(ctx).Do()
	return err
}

func (t *Sheet) Rows(ctx context.Context) ([]store.Row, error) {
	vr, err := t.svc.Spreadsheets.Values.Get(t.id, t.a1("A:Z")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(vr.Values) <= 1 {
		return nil, nil
	}
	out := make([]store.Row, 0, len(vr.Values)-1)
	for _, r := range vr.Values[1:] {
		out = append(out, toRow(r))
	}
	return out, nil
}

func (t *Sheet) a1(rng string) string {
	return "'" + strings.ReplaceAll(t.name, "'", "''") + "'!" + rng
}

// ColumnLetter converts a 0-based column index to A1 letters: 0 is A, 26
// is AA.
func ColumnLetter(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

func toValues(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func toRow(vals []interface{}) store.Row {
	out := make(store.Row, len(vals))
	for i, v := range vals {
		out[i] = cellString(v)
	}
	return out
}

func cellString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
