package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/garyjia/sheet-import/internal/pagination"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffSize is how much of a CSV file is inspected to pick its encoding
const sniffSize = 64 * 1024

// csvSheet reads a CSV file as a single sheet. Files that are not valid
// UTF-8 are decoded as GB18030.
type csvSheet struct {
	path string
	gb   bool
}

func openCSV(path string) (*csvSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	sample := bytes.TrimPrefix(buf[:n], utf8BOM)
	if n == sniffSize {
		// the sample may end inside a multi-byte rune
		for i := 0; i < utf8.UTFMax && len(sample) > 0 && !utf8.Valid(sample); i++ {
			sample = sample[:len(sample)-1]
		}
	}

	return &csvSheet{path: path, gb: !utf8.Valid(sample)}, nil
}

func (s *csvSheet) name() string    { return "" }
func (s *csvSheet) names() []string { return nil }
func (s *csvSheet) Close() error    { return nil }

// open returns a record reader positioned at the first record
func (s *csvSheet) open() (*os.File, *csv.Reader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open csv: %w", err)
	}

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	var r io.Reader = br
	if s.gb {
		r = transform.NewReader(br, simplifiedchinese.GB18030.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return f, cr, nil
}

func (s *csvSheet) bounds() (pagination.Bounds, error) {
	f, cr, err := s.open()
	if err != nil {
		return pagination.Bounds{}, err
	}
	defer f.Close()

	rows, cols := 0, 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pagination.Bounds{}, fmt.Errorf("failed to read csv: %w", err)
		}
		rows++
		cols = max(cols, len(record))
	}

	return pagination.Bounds{MinCol: 1, MinRow: 1, MaxCol: cols, MaxRow: rows}, nil
}

func (s *csvSheet) rows(ctx context.Context, b pagination.Bounds) (rowSource, error) {
	f, cr, err := s.open()
	if err != nil {
		return nil, err
	}
	return &csvRows{ctx: ctx, file: f, reader: cr, b: b}, nil
}

type csvRows struct {
	ctx    context.Context
	file   *os.File
	reader *csv.Reader
	b      pagination.Bounds
	row    int
}

func (r *csvRows) next() ([]any, error) {
	for {
		if r.row >= r.b.MaxRow {
			return nil, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}

		record, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", r.row+1, err)
		}
		r.row++
		if r.row < r.b.MinRow {
			continue
		}

		out := make([]any, r.b.Cols())
		for i := range out {
			if col := r.b.MinCol - 1 + i; col < len(record) {
				out[i] = strings.ToValidUTF8(record[col], "�")
			}
		}
		return out, nil
	}
}

func (r *csvRows) close() error {
	return r.file.Close()
}
