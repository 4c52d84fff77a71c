package parser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/pagination"
)

const noDataMessage = "No data, need at least 2 rows"

// Config tunes the parser
type Config struct {
	ImageWorkers int
}

// Parser dispatches previews and full scans to the format readers
type Parser struct {
	cfg    Config
	images *imageExtractor
	cache  *pageCache
	logger *zap.Logger
}

// New creates a Parser. artifacts stores page caches and extracted images
// under each Source's Dir.
func New(cfg Config, artifacts Artifacts, logger *zap.Logger) *Parser {
	if cfg.ImageWorkers < 1 {
		cfg.ImageWorkers = 4
	}
	return &Parser{
		cfg: cfg,
		images: &imageExtractor{
			artifacts: artifacts,
			workers:   cfg.ImageWorkers,
			logger:    logger,
		},
		cache:  &pageCache{artifacts: artifacts, logger: logger},
		logger: logger,
	}
}

func (p *Parser) openSheet(ctx context.Context, ft FileType, src Source, rc ReaderConfig) (sheet, error) {
	switch ft {
	case FileTypeCSV:
		return openCSV(src.Path)
	case FileTypeXLS:
		return openXLS(src.Path, rc.SheetName)
	case FileTypeXLSX:
		sh, err := openXLSX(src.Path, rc.SheetName, rc.PerformanceMode)
		if err != nil {
			return nil, err
		}
		if !rc.PerformanceMode {
			images, err := p.images.extract(ctx, sh, src)
			if err != nil {
				sh.Close()
				return nil, err
			}
			sh.useImages(images)
		}
		return sh, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ft)
}

func checkFileType(ft FileType) error {
	switch ft {
	case FileTypeCSV, FileTypeXLS, FileTypeXLSX:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFileType, ft)
}

// Preview returns one page of a file. Header problems are reported in the
// result with CanParse=false rather than as an error.
func (p *Parser) Preview(ctx context.Context, ft FileType, src Source, pc PaginationConfig) (*PageResult, error) {
	if err := checkFileType(ft); err != nil {
		return nil, err
	}
	if err := pc.request().Validate(); err != nil {
		return nil, err
	}

	key := cacheKey(pc.Config.SheetName, pc)
	return p.cache.fetch(src.Dir, key, func() (*PageResult, error) {
		return p.preview(ctx, ft, src, pc)
	})
}

func (p *Parser) preview(ctx context.Context, ft FileType, src Source, pc PaginationConfig) (*PageResult, error) {
	req := pc.request()

	sh, err := p.openSheet(ctx, ft, src, pc.Config)
	if err != nil {
		return nil, err
	}
	defer sh.Close()

	natural, err := sh.bounds()
	if err != nil {
		return nil, err
	}

	result := &PageResult{
		Fields:    []string{},
		Errors:    []string{},
		PageToken: pc.PageToken,
		Extra: Extra{
			SheetName:   sh.name(),
			SheetNames:  sh.names(),
			HeaderIndex: req.Header,
		},
	}
	if pc.PageSize != nil {
		result.PageSize = *pc.PageSize
	}

	if natural.Empty() {
		return noData(result), nil
	}

	rng, err := pagination.ResolveRange(req.Range, natural)
	if err != nil {
		return nil, err
	}
	result.Extra.DataRange = rng
	result.Total = rng.Rows()

	headerRow := pagination.HeaderRow(rng, req.Header)
	if rng.Rows() < 2 || (headerRow == rng.MaxRow && req.PageToken == 0) {
		return noData(result), nil
	}

	w, err := pagination.Paginate(rng, req)
	if err != nil {
		return nil, err
	}
	result.HasMore = w.HasMore
	if pc.PageSize == nil {
		result.PageSize = w.Rows()
	}

	header, err := readHeader(ctx, sh, rng, w.HeaderRow)
	if err != nil {
		return nil, err
	}
	fields, errs := validateHeader(header, rng.MinCol)
	result.Fields = fields
	result.Errors = append(result.Errors, errs...)
	result.CanParse = len(errs) == 0

	rows, err := readMatrix(ctx, sh, pagination.Bounds{
		MinCol: rng.MinCol,
		MinRow: w.MinRow,
		MaxCol: rng.MaxCol,
		MaxRow: w.MaxRow,
	})
	if err != nil {
		return nil, err
	}

	if pc.Config.ParseData && result.CanParse {
		records := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			records = append(records, toRecord(fields, row))
		}
		result.Data = records
	} else {
		result.Data = append([][]any{header}, rows...)
	}

	p.logger.Debug("Built preview page",
		zap.String("sheet", sh.name()),
		zap.String("range", rng.String()),
		zap.Int("page_token", pc.PageToken),
		zap.Int("rows", len(rows)),
		zap.Bool("can_parse", result.CanParse))
	return result, nil
}

func noData(result *PageResult) *PageResult {
	result.CanParse = false
	result.Errors = append(result.Errors, noDataMessage)
	result.Data = [][]any{}
	return result
}

// Parse opens a lazy scan over every data row below the header. The caller
// must drain or Close the iterator.
func (p *Parser) Parse(ctx context.Context, ft FileType, src Source, cfg ReaderConfig) (*RowIterator, error) {
	if err := checkFileType(ft); err != nil {
		return nil, err
	}
	req := pagination.Request{Range: cfg.DataRange, Header: cfg.HeaderIndex()}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sh, err := p.openSheet(ctx, ft, src, cfg)
	if err != nil {
		return nil, err
	}

	it, err := p.scan(ctx, sh, req)
	if err != nil {
		sh.Close()
		return nil, err
	}
	return it, nil
}

func (p *Parser) scan(ctx context.Context, sh sheet, req pagination.Request) (*RowIterator, error) {
	natural, err := sh.bounds()
	if err != nil {
		return nil, err
	}
	if natural.Empty() {
		return newRowIterator(sh, nil, nil), nil
	}

	rng, err := pagination.ResolveRange(req.Range, natural)
	if err != nil {
		return nil, err
	}
	headerRow := pagination.HeaderRow(rng, req.Header)
	if headerRow > rng.MaxRow {
		return nil, fmt.Errorf("%w: header row %d is outside the data range", ErrInvalidConfig, headerRow)
	}

	header, err := readHeader(ctx, sh, rng, headerRow)
	if err != nil {
		return nil, err
	}
	fields, errs := validateHeader(header, rng.MinCol)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHeader, strings.Join(errs, "; "))
	}

	if headerRow == rng.MaxRow {
		return newRowIterator(sh, nil, fields), nil
	}
	src, err := sh.rows(ctx, pagination.Bounds{
		MinCol: rng.MinCol,
		MinRow: headerRow + 1,
		MaxCol: rng.MaxCol,
		MaxRow: rng.MaxRow,
	})
	if err != nil {
		return nil, err
	}
	return newRowIterator(sh, src, fields), nil
}
