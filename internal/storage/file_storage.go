// internal/storage/file_storage.go
package storage

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileStorage defines the low level disk operations used by the store
// and by the parser caches
type FileStorage interface {
	// SaveFile atomically writes content to the specified full path
	// Creates parent directories if needed
	SaveFile(fullPath string, content []byte) error

	// SaveStream atomically writes r to fullPath and returns size and md5
	SaveStream(fullPath string, r io.Reader) (int64, string, error)

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(fullPath string) error
}

// LocalFileStorage implements FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// SaveFile writes content to the specified full path
func (s *LocalFileStorage) SaveFile(fullPath string, content []byte) error {
	_, _, err := s.SaveStream(fullPath, bytes.NewReader(content))
	return err
}

// SaveStream writes into a temp file, fsyncs, then renames into place so
// readers never observe a partially written file
func (s *LocalFileStorage) SaveStream(fullPath string, r io.Reader) (int64, string, error) {
	if err := s.ValidatePath(fullPath); err != nil {
		return 0, "", err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return 0, "", fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(parentDir, ".tmp-"+filepath.Base(fullPath)+"-*")
	if err != nil {
		return 0, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := md5.New()
	size, err := io.Copy(tmp, io.TeeReader(r, hasher))
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return 0, "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("failed to rename file: %w", err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int64("size", size),
		zap.String("md5", sum))

	return size, sum, nil
}

// WriteJSON atomically stores v as JSON
func (s *LocalFileStorage) WriteJSON(fullPath string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(fullPath), err)
	}
	return s.SaveFile(fullPath, data)
}

// ReadJSON loads a JSON document. A missing file keeps its os.ErrNotExist
// identity for errors.Is.
func (s *LocalFileStorage) ReadJSON(fullPath string, v any) error {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(fullPath), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(fullPath), err)
	}
	return nil
}

// RemoveAll deletes a subtree inside baseDir
func (s *LocalFileStorage) RemoveAll(path string) error {
	if err := s.ValidatePath(path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		s.logger.Error("Failed to remove path",
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
