// Package ingest turns the rows of a stored sheet into write-ready records
// for a remote table.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/cellvalue"
	"github.com/garyjia/sheet-import/internal/parser"
)

const (
	DefaultLimit = 500
	MaxLimit     = 5000
)

// TableSource reads destination schemas and peer tables
type TableSource interface {
	ListFields(ctx context.Context, appToken, tableID string) ([]*cellvalue.Field, error)
	LoadLinkTable(ctx context.Context, r *cellvalue.Registry, s *cellvalue.Session, appToken, tableID, primaryField string) (*cellvalue.IndexedTable, error)
}

// UploaderFactory returns the attachment uploader for a bitable app
type UploaderFactory func(appToken string) cellvalue.Uploader

// Request selects the destination table and the rows to translate
type Request struct {
	AppToken string              `json:"app_token" binding:"required"`
	TableID  string              `json:"table_id" binding:"required"`
	Config   parser.ReaderConfig `json:"config"`
	Offset   int                 `json:"offset"` // data rows to skip
	Limit    int                 `json:"limit"`  // data rows to translate, default 500
}

// CellError reports one value that could not be translated
type CellError struct {
	Row     int    `json:"row"` // 0-based data row
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Result holds the write-ready records keyed by field name
type Result struct {
	Records     []map[string]any `json:"records"`
	Fields      []string         `json:"fields"`       // columns matched to writable fields
	Unmatched   []string         `json:"unmatched"`    // columns with no field of that name
	Skipped     []string         `json:"skipped"`      // matched fields that cannot be written
	Errors      []CellError      `json:"errors"`
	Rows        int              `json:"rows"`
	HasMore     bool             `json:"has_more"`
	Attachments int              `json:"attachments"`
}

// Service translates stored sheets for a table source
type Service struct {
	parser   *parser.Parser
	registry *cellvalue.Registry
	tables   TableSource
	uploader UploaderFactory
	client   *http.Client
	logger   *zap.Logger
}

// NewService creates an ingest service. uploader may be nil, in which case
// attachment columns fail with cellvalue.ErrNoUploader.
func NewService(p *parser.Parser, registry *cellvalue.Registry, tables TableSource, uploader UploaderFactory, client *http.Client, logger *zap.Logger) *Service {
	return &Service{
		parser:   p,
		registry: registry,
		tables:   tables,
		uploader: uploader,
		client:   client,
		logger:   logger,
	}
}

// Translate reads rows of src and converts every matched cell into the
// destination field's write value
func (s *Service) Translate(ctx context.Context, ft parser.FileType, src parser.Source, req Request) (*Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit must be at most %d", parser.ErrInvalidConfig, MaxLimit)
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", parser.ErrInvalidConfig)
	}

	fields, err := s.tables.ListFields(ctx, req.AppToken, req.TableID)
	if err != nil {
		return nil, fmt.Errorf("failed to load table schema: %w", err)
	}

	var uploader cellvalue.Uploader
	if s.uploader != nil {
		uploader = s.uploader(req.AppToken)
	}
	session := cellvalue.NewSession(uuid.NewString(), uploader, s.client)

	if err := s.loadLinkTables(ctx, session, req.AppToken, fields); err != nil {
		return nil, err
	}

	it, err := s.parser.Parse(ctx, ft, src, req.Config)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	columns, result := matchColumns(it.Fields(), fields)

	skipped := make(map[string]bool)
	row := 0
	for it.Next() {
		if row < req.Offset {
			row++
			continue
		}
		if row >= req.Offset+limit {
			result.HasMore = true
			break
		}
		record := s.translateRow(ctx, session, row, it.Record(), columns, skipped, result)
		result.Records = append(result.Records, record)
		row++
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	result.Rows = len(result.Records)
	result.Attachments = session.Attachments()
	for _, c := range result.Fields {
		if skipped[c] {
			result.Skipped = append(result.Skipped, c)
		}
	}
	result.Fields = removeAll(result.Fields, skipped)

	s.logger.Info("Rows translated",
		zap.String("table_id", req.TableID),
		zap.Int("rows", result.Rows),
		zap.Int("errors", len(result.Errors)),
		zap.Int("attachments", result.Attachments),
		zap.Bool("has_more", result.HasMore))
	return result, nil
}

func (s *Service) translateRow(ctx context.Context, session *cellvalue.Session, row int, raw map[string]any, columns map[string]*cellvalue.Field, skipped map[string]bool, result *Result) map[string]any {
	record := make(map[string]any, len(columns))
	// header order keeps errors within a row stable
	for _, column := range result.Fields {
		f := columns[column]
		if skipped[column] {
			continue
		}
		v, ok := raw[column]
		if !ok || v == nil {
			continue
		}

		data, err := s.registry.ParseDataValue(session, f, v)
		if err == nil {
			data, err = s.registry.ToWriteValue(ctx, session, f, data)
		}
		if errors.Is(err, cellvalue.ErrNotWritable) || errors.Is(err, cellvalue.ErrUnsupportedFieldType) {
			skipped[column] = true
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, CellError{Row: row, Field: f.Name, Value: v, Message: err.Error()})
			continue
		}
		if data != nil {
			record[f.Name] = data
		}
	}
	return record
}

// loadLinkTables indexes every peer table a link field points at, once per
// table. Link fields without a primary field get the one the table was
// indexed on.
func (s *Service) loadLinkTables(ctx context.Context, session *cellvalue.Session, appToken string, fields []*cellvalue.Field) error {
	primaries := make(map[string]string)
	for _, f := range fields {
		link := f.Property.Link
		if link == nil || link.TableID == "" {
			continue
		}

		primary, loaded := primaries[link.TableID]
		if !loaded {
			table, err := s.tables.LoadLinkTable(ctx, s.registry, session, appToken, link.TableID, link.PrimaryField)
			if err != nil {
				return fmt.Errorf("failed to load linked table %s: %w", link.TableID, err)
			}
			if keys := table.IndexedFields(); len(keys) > 0 {
				primary = keys[0]
			}
			primaries[link.TableID] = primary
		}
		if link.PrimaryField == "" {
			link.PrimaryField = primary
		}
	}
	return nil
}

// matchColumns pairs header names with fields of the same name, ignoring
// surrounding whitespace
func matchColumns(header []string, fields []*cellvalue.Field) (map[string]*cellvalue.Field, *Result) {
	byName := make(map[string]*cellvalue.Field, len(fields))
	for _, f := range fields {
		byName[strings.TrimSpace(f.Name)] = f
	}

	result := &Result{Records: []map[string]any{}}
	columns := make(map[string]*cellvalue.Field)
	for _, column := range header {
		if f, ok := byName[strings.TrimSpace(column)]; ok {
			columns[column] = f
			result.Fields = append(result.Fields, column)
			continue
		}
		result.Unmatched = append(result.Unmatched, column)
	}
	return columns, result
}

func removeAll(items []string, drop map[string]bool) []string {
	kept := items[:0]
	for _, item := range items {
		if !drop[item] {
			kept = append(kept, item)
		}
	}
	return kept
}
