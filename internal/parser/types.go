package parser

import (
	"errors"
	"fmt"

	"github.com/garyjia/sheet-import/internal/pagination"
)

// FileType selects a format reader
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLS  FileType = "xls"
	FileTypeXLSX FileType = "xlsx"
)

// ParseFileType maps a user supplied type or extension to a FileType
func ParseFileType(s string) (FileType, error) {
	switch FileType(s) {
	case FileTypeCSV, FileTypeXLS, FileTypeXLSX:
		return FileType(s), nil
	case ".csv":
		return FileTypeCSV, nil
	case ".xls":
		return FileTypeXLS, nil
	case ".xlsx":
		return FileTypeXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, s)
}

var (
	// ErrInvalidConfig is shared with the range resolver
	ErrInvalidConfig = pagination.ErrInvalidConfig

	// ErrUnsupportedFileType is returned for unknown file types
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrInvalidHeader is returned by Parse when the header row cannot name fields
	ErrInvalidHeader = errors.New("invalid header")
)

// DefaultHeader is the 1-based header offset used when none is configured
const DefaultHeader = 1

// ReaderConfig is the format specific part of a request
type ReaderConfig struct {
	SheetName       string               `json:"sheet_name,omitempty"`
	DataRange       *pagination.RawRange `json:"data_range,omitempty"`
	Header          *int                 `json:"header,omitempty"`
	PerformanceMode bool                 `json:"performance_mode,omitempty"`
	ParseData       bool                 `json:"parse_data,omitempty"`
}

// HeaderIndex returns the configured header offset or the default
func (c ReaderConfig) HeaderIndex() int {
	if c.Header == nil {
		return DefaultHeader
	}
	return *c.Header
}

// PaginationConfig selects one page of a file
type PaginationConfig struct {
	PageToken int          `json:"page_token"`
	PageSize  *int         `json:"page_size,omitempty"`
	Config    ReaderConfig `json:"config"`
}

func (pc PaginationConfig) request() pagination.Request {
	return pagination.Request{
		Range:     pc.Config.DataRange,
		Header:    pc.Config.HeaderIndex(),
		PageToken: pc.PageToken,
		PageSize:  pc.PageSize,
	}
}

// Source points the parser at a stored file
type Source struct {
	Path  string // file content
	Dir   string // file scoped directory for caches and extracted images, empty disables both
	Token string // stamped onto extracted images as their parent
}

// Extra carries format specific metadata of a page
type Extra struct {
	SheetName   string            `json:"sheet_name"`
	SheetNames  []string          `json:"sheet_names"`
	DataRange   pagination.Bounds `json:"data_range"`
	HeaderIndex int               `json:"header_index"`
}

// PageResult is one page of a preview.
// Data is []map[string]any when rows were parsed into records and
// [][]any otherwise.
type PageResult struct {
	Data      any      `json:"data"`
	Fields    []string `json:"fields"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors"`
	CanParse  bool     `json:"can_parse"`
	Extra     Extra    `json:"extra"`
	PageSize  int      `json:"page_size"`
	PageToken int      `json:"page_token"`
	HasMore   bool     `json:"has_more"`
}

// Records returns Data as parsed records, nil for a raw matrix
func (r *PageResult) Records() []map[string]any {
	records, _ := r.Data.([]map[string]any)
	return records
}

// Matrix returns Data as a raw matrix, nil for parsed records
func (r *PageResult) Matrix() [][]any {
	matrix, _ := r.Data.([][]any)
	return matrix
}
