package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/pagination"
)

const cacheDir = "cache"

// pageCache memoizes preview pages inside the file's own directory, so
// deleting the file drops its pages too. Sources never change after upload,
// so entries are never invalidated.
type pageCache struct {
	artifacts Artifacts
	logger    *zap.Logger
}

// cacheKey encodes every input that shapes a page
func cacheKey(sheet string, pc PaginationConfig) string {
	bound := func(v *int) string {
		if v == nil {
			return "x"
		}
		return strconv.Itoa(*v)
	}

	var rng pagination.RawRange
	if pc.Config.DataRange != nil {
		rng = *pc.Config.DataRange
	}
	size := "all"
	if pc.PageSize != nil {
		size = strconv.Itoa(*pc.PageSize)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SN%sDR%s_%s_%s_%sH%dS%sT%d",
		url.PathEscape(sheet),
		bound(rng.MinCol), bound(rng.MinRow), bound(rng.MaxCol), bound(rng.MaxRow),
		pc.Config.HeaderIndex(), size, pc.PageToken)
	if pc.Config.ParseData {
		b.WriteString("_parsed")
	}
	if pc.Config.PerformanceMode {
		b.WriteString("_perf")
	}
	b.WriteString(".json")
	return b.String()
}

func cachePath(dir, key string) string {
	return filepath.Join(dir, cacheDir, "paginate_data", key)
}

// fetch returns the cached page for key or computes and stores it.
// Fresh pages take the same JSON round trip as cached ones so both paths
// return identical values.
func (c *pageCache) fetch(dir, key string, compute func() (*PageResult, error)) (*PageResult, error) {
	if dir != "" {
		data, err := os.ReadFile(cachePath(dir, key))
		switch {
		case err == nil:
			result, err := decodePage(data, dir)
			if err == nil {
				c.logger.Debug("Page cache hit", zap.String("key", key))
				return result, nil
			}
			c.logger.Warn("Discarding unreadable page cache entry",
				zap.String("key", key),
				zap.Error(err))
		case !errors.Is(err, fs.ErrNotExist):
			c.logger.Warn("Failed to read page cache entry",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	result, err := compute()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page: %w", err)
	}
	if dir != "" {
		if err := c.artifacts.SaveFile(cachePath(dir, key), data); err != nil {
			c.logger.Warn("Failed to store page cache entry",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return decodePage(data, dir)
}

type encodedPage struct {
	PageResult
	Data json.RawMessage `json:"data"`
}

func decodePage(data []byte, dir string) (*PageResult, error) {
	var page encodedPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(page.Data))
	dec.UseNumber()
	var rows []any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page data: %w", err)
	}

	result := page.PageResult
	if isRecordList(rows) {
		records := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			obj, _ := row.(map[string]any)
			record := make(map[string]any, len(obj))
			for k, v := range obj {
				record[k] = rehydrate(v, dir)
			}
			records = append(records, record)
		}
		result.Data = records
		return &result, nil
	}

	matrix := make([][]any, 0, len(rows))
	for _, row := range rows {
		cells, _ := row.([]any)
		out := make([]any, len(cells))
		for i, v := range cells {
			out[i] = rehydrate(v, dir)
		}
		matrix = append(matrix, out)
	}
	result.Data = matrix
	return &result, nil
}

// isRecordList decides the shape of page data. Record pages are never
// empty, so an empty page is a matrix.
func isRecordList(rows []any) bool {
	if len(rows) == 0 {
		return false
	}
	_, ok := rows[0].(map[string]any)
	return ok
}
