// Package pagination turns user supplied ranges, header indexes and page
// tokens into concrete row and column bounds shared by every format reader.
// All coordinates are 1-based and inclusive.
package pagination

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrInvalidConfig marks range, header and page token errors.
// They are detected before any file I/O.
var ErrInvalidConfig = errors.New("invalid config")

// Bounds is a resolved rectangle of cells
type Bounds struct {
	MinCol int `json:"min_col"`
	MinRow int `json:"min_row"`
	MaxCol int `json:"max_col"`
	MaxRow int `json:"max_row"`
}

// Empty reports whether the rectangle holds no cells
func (b Bounds) Empty() bool {
	return b.MaxRow < b.MinRow || b.MaxCol < b.MinCol
}

// Rows is the number of rows covered
func (b Bounds) Rows() int {
	if b.MaxRow < b.MinRow {
		return 0
	}
	return b.MaxRow - b.MinRow + 1
}

// Cols is the number of columns covered
func (b Bounds) Cols() int {
	if b.MaxCol < b.MinCol {
		return 0
	}
	return b.MaxCol - b.MinCol + 1
}

// RawRange is the user supplied range: either an A1 style reference or
// explicit bounds. Unset axes fall back to the sheet's natural bounds.
type RawRange struct {
	MinRow *int `json:"min_row,omitempty"`
	MaxRow *int `json:"max_row,omitempty"`
	MinCol *int `json:"min_col,omitempty"`
	MaxCol *int `json:"max_col,omitempty"`
}

// UnmarshalJSON accepts "A1:C20", "A:C", "1:20" or an object
func (r *RawRange) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var ref string
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		parsed, err := ParseRange(ref)
		if err != nil {
			return err
		}
		*r = *parsed
		return nil
	}

	type plain RawRange
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: data_range: %v", ErrInvalidConfig, err)
	}
	*r = RawRange(p)
	return nil
}

var cellRefRegex = regexp.MustCompile(`^([A-Za-z]*)([0-9]*)$`)

// ParseRange parses an A1 style reference. An optional sheet prefix and
// absolute markers are ignored.
func ParseRange(ref string) (*RawRange, error) {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	ref = strings.ReplaceAll(ref, "$", "")
	if ref == "" {
		return &RawRange{}, nil
	}

	parts := strings.Split(ref, ":")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: malformed range %q", ErrInvalidConfig, ref)
	}
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}

	minCol, minRow, err := parseCellRef(parts[0])
	if err != nil {
		return nil, err
	}
	maxCol, maxRow, err := parseCellRef(parts[1])
	if err != nil {
		return nil, err
	}

	return &RawRange{MinRow: minRow, MaxRow: maxRow, MinCol: minCol, MaxCol: maxCol}, nil
}

func parseCellRef(ref string) (col, row *int, err error) {
	m := cellRefRegex.FindStringSubmatch(ref)
	if m == nil || (m[1] == "" && m[2] == "") {
		return nil, nil, fmt.Errorf("%w: malformed cell reference %q", ErrInvalidConfig, ref)
	}

	if m[1] != "" {
		n, err := excelize.ColumnNameToNumber(m[1])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		col = &n
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return nil, nil, fmt.Errorf("%w: invalid row %q", ErrInvalidConfig, m[2])
		}
		row = &n
	}
	return col, row, nil
}

// ResolveRange fills unset axes from sheet and clamps to it.
// sheet must be non-empty.
func ResolveRange(raw *RawRange, sheet Bounds) (Bounds, error) {
	b := sheet
	if raw != nil {
		if raw.MinRow != nil {
			b.MinRow = *raw.MinRow
		}
		if raw.MaxRow != nil {
			b.MaxRow = min(*raw.MaxRow, sheet.MaxRow)
		}
		if raw.MinCol != nil {
			b.MinCol = *raw.MinCol
		}
		if raw.MaxCol != nil {
			b.MaxCol = min(*raw.MaxCol, sheet.MaxCol)
		}
	}

	if b.MinRow < 1 || b.MinCol < 1 {
		return Bounds{}, fmt.Errorf("%w: data range must start at row and column 1 or later", ErrInvalidConfig)
	}
	if b.MinRow > b.MaxRow || b.MinCol > b.MaxCol {
		return Bounds{}, fmt.Errorf("%w: data range %s is empty or outside the sheet", ErrInvalidConfig, b)
	}
	return b, nil
}

// String renders the bounds as an A1 reference
func (b Bounds) String() string {
	from, err1 := excelize.CoordinatesToCellName(max(b.MinCol, 1), max(b.MinRow, 1))
	to, err2 := excelize.CoordinatesToCellName(max(b.MaxCol, 1), max(b.MaxRow, 1))
	if err1 != nil || err2 != nil {
		return fmt.Sprintf("R%dC%d:R%dC%d", b.MinRow, b.MinCol, b.MaxRow, b.MaxCol)
	}
	return from + ":" + to
}

// ColumnName converts a 1-based column number into letters
func ColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return strconv.Itoa(col)
	}
	return name
}
