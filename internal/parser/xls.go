package parser

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/extrame/xls"

	"github.com/garyjia/sheet-import/internal/pagination"
)

// BIFF8 worksheets are at most 256 columns wide
const xlsMaxCols = 256

// xls reports formula cells it cannot evaluate with this placeholder
const xlsFormulaPlaceholder = "FormulaCol"

// xlsSheet reads one worksheet of a legacy binary workbook.
// The library exposes every cell as text, so values go through inferString.
type xlsSheet struct {
	file   *os.File
	ws     *xls.WorkSheet
	sheets []string
}

func openXLS(path, sheetName string) (sh *xlsSheet, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read xls: corrupt workbook: %v", r)
		}
		if err != nil {
			f.Close()
		}
	}()

	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to read xls: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("failed to read xls: no workbook stream")
	}

	names := make([]string, 0, wb.NumSheets())
	selected := -1
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		names = append(names, ws.Name)
		if selected < 0 && (sheetName == "" || ws.Name == sheetName) {
			selected = i
		}
	}
	if selected < 0 {
		if sheetName != "" {
			return nil, fmt.Errorf("%w: sheet %q not found", ErrInvalidConfig, sheetName)
		}
		return nil, fmt.Errorf("failed to read xls: workbook has no sheets")
	}

	return &xlsSheet{file: f, ws: wb.GetSheet(selected), sheets: names}, nil
}

func (s *xlsSheet) name() string    { return s.ws.Name }
func (s *xlsSheet) names() []string { return s.sheets }
func (s *xlsSheet) Close() error    { return s.file.Close() }

// row returns the 0-based row or nil; the library panics on missing rows
func (s *xlsSheet) row(i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.ws.Row(i)
}

// cell returns the inferred value at 1-based coordinates
func (s *xlsSheet) cell(row *xls.Row, col int) any {
	if row == nil {
		return nil
	}
	text := row.Col(col - 1)
	if text == xlsFormulaPlaceholder {
		return nil
	}
	return inferString(text)
}

func rowWidth(row *xls.Row) int {
	if last := row.LastCol(); last > 0 {
		return min(last, xlsMaxCols)
	}
	return xlsMaxCols
}

func (s *xlsSheet) bounds() (pagination.Bounds, error) {
	b := pagination.Bounds{MinCol: xlsMaxCols + 1, MinRow: 0, MaxCol: 0, MaxRow: 0}

	for i := 0; i <= int(s.ws.MaxRow); i++ {
		row := s.row(i)
		if row == nil {
			continue
		}
		for col := 1; col <= rowWidth(row); col++ {
			if s.cell(row, col) == nil {
				continue
			}
			if b.MinRow == 0 {
				b.MinRow = i + 1
			}
			b.MaxRow = i + 1
			b.MinCol = min(b.MinCol, col)
			b.MaxCol = max(b.MaxCol, col)
		}
	}

	if b.MaxRow == 0 {
		return pagination.Bounds{MinCol: 1, MinRow: 1}, nil
	}
	return b, nil
}

func (s *xlsSheet) rows(ctx context.Context, b pagination.Bounds) (rowSource, error) {
	return &xlsRows{ctx: ctx, sheet: s, b: b, row: b.MinRow}, nil
}

type xlsRows struct {
	ctx   context.Context
	sheet *xlsSheet
	b     pagination.Bounds
	row   int
}

func (r *xlsRows) next() ([]any, error) {
	if r.row > r.b.MaxRow {
		return nil, io.EOF
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	row := r.sheet.row(r.row - 1)
	out := make([]any, r.b.Cols())
	for i := range out {
		out[i] = r.sheet.cell(row, r.b.MinCol+i)
	}
	r.row++
	return out, nil
}

func (r *xlsRows) close() error { return nil }
