package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/garyjia/sheet-import/internal/pagination"
)

// sheet is one worksheet (or the whole file for CSV) opened by a format reader
type sheet interface {
	name() string
	names() []string
	// bounds returns the natural used range; Empty() when the sheet has no data
	bounds() (pagination.Bounds, error)
	// rows yields exactly b.Rows() rows of exactly b.Cols() cells
	rows(ctx context.Context, b pagination.Bounds) (rowSource, error)
	Close() error
}

// rowSource is a pull based row stream; next returns io.EOF when done
type rowSource interface {
	next() ([]any, error)
	close() error
}

// readMatrix collects a window into memory
func readMatrix(ctx context.Context, sh sheet, b pagination.Bounds) ([][]any, error) {
	src, err := sh.rows(ctx, b)
	if err != nil {
		return nil, err
	}
	defer src.close()

	matrix := make([][]any, 0, b.Rows())
	for {
		row, err := src.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		matrix = append(matrix, row)
	}
	return matrix, nil
}

// readHeader reads the header row cells
func readHeader(ctx context.Context, sh sheet, rng pagination.Bounds, headerRow int) ([]any, error) {
	matrix, err := readMatrix(ctx, sh, pagination.Bounds{
		MinCol: rng.MinCol,
		MinRow: headerRow,
		MaxCol: rng.MaxCol,
		MaxRow: headerRow,
	})
	if err != nil {
		return nil, err
	}
	if len(matrix) == 0 {
		return make([]any, rng.Cols()), nil
	}
	return matrix[0], nil
}

// validateHeader names every column or reports which ones cannot be names.
// Header cells must be non-blank text or numbers, and unique.
func validateHeader(cells []any, minCol int) ([]string, []string) {
	fields := make([]string, len(cells))
	var invalid, duplicate []string
	seen := make(map[string]bool, len(cells))

	for i, cell := range cells {
		name, ok := headerName(cell)
		fields[i] = name
		col := pagination.ColumnName(minCol + i)
		if !ok {
			invalid = append(invalid, col)
			continue
		}
		if seen[name] {
			duplicate = append(duplicate, col)
			continue
		}
		seen[name] = true
	}

	var errs []string
	if len(invalid) > 0 {
		errs = append(errs, fmt.Sprintf("Invalid header: columns %s must be non-empty text or numbers", strings.Join(invalid, ", ")))
	}
	if len(duplicate) > 0 {
		errs = append(errs, fmt.Sprintf("Invalid header: columns %s repeat an earlier header", strings.Join(duplicate, ", ")))
	}
	return fields, errs
}

func headerName(cell any) (string, bool) {
	switch v := cell.(type) {
	case string:
		name := strings.TrimSpace(v)
		return name, name != ""
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), false
	}
}

// toRecord maps a row onto header names; short rows are padded with nil
func toRecord(fields []string, row []any) map[string]any {
	record := make(map[string]any, len(fields))
	for i, field := range fields {
		if i < len(row) {
			record[field] = row[i]
		} else {
			record[field] = nil
		}
	}
	return record
}

// fitRow pads or truncates a row slice to cols cells
func fitRow(row []any, cols int) []any {
	if len(row) == cols {
		return row
	}
	out := make([]any, cols)
	copy(out, row)
	return out
}
