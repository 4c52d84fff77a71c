package parser

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/sheet-import/internal/pagination"
)

// xlsxSheet reads one worksheet of an OOXML workbook.
//
// In normal mode every cell is resolved individually so hyperlinks, dates
// and embedded images become typed values. Performance mode streams the
// sheet and returns the displayed text of each cell.
type xlsxSheet struct {
	file     *excelize.File
	sheet    string
	sheets   []string
	perf     bool
	date1904 bool

	images     map[string]FileValue
	dateStyles map[int]bool
}

func openXLSX(path, sheetName string, perf bool) (*xlsxSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}

	sheets := f.GetSheetList()
	selected := ""
	switch {
	case sheetName != "":
		for _, name := range sheets {
			if name == sheetName {
				selected = name
				break
			}
		}
		if selected == "" {
			f.Close()
			return nil, fmt.Errorf("%w: sheet %q not found", ErrInvalidConfig, sheetName)
		}
	case len(sheets) > 0:
		selected = sheets[0]
	default:
		f.Close()
		return nil, fmt.Errorf("failed to read xlsx: workbook has no sheets")
	}

	s := &xlsxSheet{
		file:       f,
		sheet:      selected,
		sheets:     sheets,
		perf:       perf,
		dateStyles: make(map[int]bool),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		s.date1904 = *props.Date1904
	}
	return s, nil
}

func (s *xlsxSheet) name() string    { return s.sheet }
func (s *xlsxSheet) names() []string { return s.sheets }
func (s *xlsxSheet) Close() error    { return s.file.Close() }

// useImages substitutes extracted pictures for the cells they anchor to
func (s *xlsxSheet) useImages(images map[string]FileValue) {
	s.images = images
}

func (s *xlsxSheet) bounds() (pagination.Bounds, error) {
	rows, err := s.file.Rows(s.sheet)
	if err != nil {
		return pagination.Bounds{}, fmt.Errorf("failed to read xlsx rows: %w", err)
	}
	defer rows.Close()

	b := pagination.Bounds{}
	include := func(col, row int) {
		if b.MaxRow == 0 {
			b = pagination.Bounds{MinCol: col, MinRow: row, MaxCol: col, MaxRow: row}
			return
		}
		b.MinCol = min(b.MinCol, col)
		b.MinRow = min(b.MinRow, row)
		b.MaxCol = max(b.MaxCol, col)
		b.MaxRow = max(b.MaxRow, row)
	}

	for row := 1; rows.Next(); row++ {
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return pagination.Bounds{}, fmt.Errorf("failed to read xlsx row %d: %w", row, err)
		}
		for i, cell := range cells {
			if cell != "" {
				include(i+1, row)
			}
		}
	}
	if err := rows.Error(); err != nil {
		return pagination.Bounds{}, fmt.Errorf("failed to read xlsx rows: %w", err)
	}

	if !s.perf {
		for ref := range s.images {
			col, row, err := excelize.CellNameToCoordinates(ref)
			if err == nil {
				include(col, row)
			}
		}
	}

	if b.MaxRow == 0 {
		return pagination.Bounds{MinCol: 1, MinRow: 1}, nil
	}
	return b, nil
}

func (s *xlsxSheet) rows(ctx context.Context, b pagination.Bounds) (rowSource, error) {
	if s.perf {
		rows, err := s.file.Rows(s.sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read xlsx rows: %w", err)
		}
		return &xlsxStream{ctx: ctx, rows: rows, b: b}, nil
	}
	return &xlsxCells{ctx: ctx, sheet: s, b: b, row: b.MinRow}, nil
}

// cellValue resolves one cell into a typed value
func (s *xlsxSheet) cellValue(col, row int) (any, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	if img, ok := s.images[ref]; ok {
		return img, nil
	}

	raw, err := s.file.GetCellValue(s.sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read cell %s: %w", ref, err)
	}
	if raw == "" {
		return nil, nil
	}

	if ok, link, err := s.file.GetCellHyperLink(s.sheet, ref); err == nil && ok && link != "" {
		text, err := s.file.GetCellValue(s.sheet, ref)
		if err != nil {
			text = raw
		}
		return NewURLValue(link, text), nil
	}

	typ, err := s.file.GetCellType(s.sheet, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell %s: %w", ref, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if ms, ok := parseISODate(raw); ok {
			return ms, nil
		}
		return raw, nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return raw, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, nil
	}
	if s.isDateCell(ref) {
		if t, err := excelize.ExcelDateToTime(f, s.date1904); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return numberValue(f), nil
}

func (s *xlsxSheet) isDateCell(ref string) bool {
	styleID, err := s.file.GetCellStyle(s.sheet, ref)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := s.dateStyles[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := s.file.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		} else {
			isDate = isBuiltinDateFormat(style.NumFmt)
		}
	}
	s.dateStyles[styleID] = isDate
	return isDate
}

func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

var (
	numFmtLiteralRegex = regexp.MustCompile(`"[^"]*"|\\.|_.|\*.`)
	numFmtColorRegex   = regexp.MustCompile(`\[[^\]]*\]`)
	numFmtElapsedRegex = regexp.MustCompile(`\[(h+|m+|s+)\]`)
)

// isDateFormat reports whether a custom number format renders dates or times
func isDateFormat(format string) bool {
	format = strings.ToLower(format)
	if numFmtElapsedRegex.MatchString(format) {
		return true
	}
	format = numFmtLiteralRegex.ReplaceAllString(format, "")
	format = numFmtColorRegex.ReplaceAllString(format, "")
	if section, _, ok := strings.Cut(format, ";"); ok {
		format = section
	}
	if format == "" || format == "general" || format == "@" {
		return false
	}
	return strings.ContainsAny(format, "ymdhs")
}

var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseISODate(s string) (int64, bool) {
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// xlsxCells resolves a window cell by cell
type xlsxCells struct {
	ctx   context.Context
	sheet *xlsxSheet
	b     pagination.Bounds
	row   int
}

func (r *xlsxCells) next() ([]any, error) {
	if r.row > r.b.MaxRow {
		return nil, io.EOF
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]any, r.b.Cols())
	for i := range out {
		v, err := r.sheet.cellValue(r.b.MinCol+i, r.row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	r.row++
	return out, nil
}

func (r *xlsxCells) close() error { return nil }

// xlsxStream walks the sheet XML once and returns displayed text
type xlsxStream struct {
	ctx  context.Context
	rows *excelize.Rows
	b    pagination.Bounds
	row  int
	done bool
}

func (r *xlsxStream) next() ([]any, error) {
	for {
		if r.row >= r.b.MaxRow {
			return nil, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}

		out := make([]any, r.b.Cols())
		if r.done || !r.rows.Next() {
			if err := r.rows.Error(); err != nil {
				return nil, fmt.Errorf("failed to read xlsx rows: %w", err)
			}
			// the sheet ended inside the window
			r.done = true
			r.row++
			if r.row < r.b.MinRow {
				continue
			}
			return out, nil
		}
		r.row++
		if r.row < r.b.MinRow {
			continue
		}

		cells, err := r.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read xlsx row %d: %w", r.row, err)
		}
		for i := range out {
			if col := r.b.MinCol - 1 + i; col < len(cells) && cells[col] != "" {
				out[i] = cells[col]
			}
		}
		return out, nil
	}
}

func (r *xlsxStream) close() error {
	return r.rows.Close()
}
