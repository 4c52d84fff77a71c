package parser

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Artifacts persists derived files next to the source file
type Artifacts interface {
	SaveFile(fullPath string, content []byte) error
}

type pictureJob struct {
	cell string
	pic  excelize.Picture
}

// imageExtractor pulls embedded pictures out of a worksheet
type imageExtractor struct {
	artifacts Artifacts
	workers   int
	logger    *zap.Logger
}

func imagesMapPath(dir, sheet string) string {
	return filepath.Join(dir, cacheDir, "images_map", url.PathEscape(sheet)+".json")
}

// extract returns the pictures of a sheet keyed by anchor cell. The result
// is cached per sheet when src.Dir is set.
func (e *imageExtractor) extract(ctx context.Context, sh *xlsxSheet, src Source) (map[string]FileValue, error) {
	if src.Dir != "" {
		if images, err := e.load(src.Dir, sh.sheet); err == nil {
			return images, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("Failed to load cached image map, extracting again",
				zap.String("sheet", sh.sheet),
				zap.Error(err))
		}
	}

	cells, err := sh.file.GetPictureCells(sh.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures: %w", err)
	}

	jobs := make([]pictureJob, 0, len(cells))
	for _, cell := range cells {
		pics, err := sh.file.GetPictures(sh.sheet, cell)
		if err != nil {
			return nil, fmt.Errorf("failed to read pictures at %s: %w", cell, err)
		}
		if len(pics) > 0 {
			jobs = append(jobs, pictureJob{cell: cell, pic: pics[0]})
		}
	}

	results := make([]*FileValue, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.workers, 1))
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fv, err := e.store(job, src)
			if err != nil {
				return err
			}
			results[i] = fv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := make(map[string]FileValue, len(jobs))
	for i, fv := range results {
		if fv != nil {
			images[jobs[i].cell] = *fv
		}
	}

	if src.Dir != "" {
		data, err := json.Marshal(images)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal image map: %w", err)
		}
		if err := e.artifacts.SaveFile(imagesMapPath(src.Dir, sh.sheet), data); err != nil {
			e.logger.Warn("Failed to cache image map",
				zap.String("sheet", sh.sheet),
				zap.Error(err))
		}
	}

	e.logger.Debug("Extracted worksheet images",
		zap.String("sheet", sh.sheet),
		zap.Int("pictures", len(jobs)),
		zap.Int("images", len(images)))
	return images, nil
}

// store validates and writes one picture; undecodable pictures yield nil
func (e *imageExtractor) store(job pictureJob, src Source) (*FileValue, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(job.pic.File)); err != nil {
		e.logger.Warn("Skipping undecodable picture",
			zap.String("cell", job.cell),
			zap.String("extension", job.pic.Extension),
			zap.Error(err))
		return nil, nil
	}

	sum := md5.Sum(job.pic.File)
	hash := hex.EncodeToString(sum[:])
	ext := strings.ToLower(job.pic.Extension)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	fv := &FileValue{
		Name:        hash + ext,
		Type:        ValueTypeFile,
		Size:        int64(len(job.pic.File)),
		MD5:         hash,
		ParentToken: src.Token,
	}
	if src.Dir == "" {
		return fv, nil
	}

	fv.Path = attachmentPath(src.Dir, fv.Name)
	if _, err := os.Stat(fv.Path); err == nil {
		return fv, nil
	}
	if err := e.artifacts.SaveFile(fv.Path, job.pic.File); err != nil {
		return nil, fmt.Errorf("failed to save picture at %s: %w", job.cell, err)
	}
	return fv, nil
}

func (e *imageExtractor) load(dir, sheet string) (map[string]FileValue, error) {
	data, err := os.ReadFile(imagesMapPath(dir, sheet))
	if err != nil {
		return nil, err
	}
	var images map[string]FileValue
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image map: %w", err)
	}
	for cell, fv := range images {
		fv.Path = attachmentPath(dir, fv.Name)
		images[cell] = fv
	}
	return images, nil
}
