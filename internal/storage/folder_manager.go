package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	rawDirName        = "_raw_file"
	chunkDirName      = "_chunks"
	metaFileName      = "_meta.json"
	chunkMetaFileName = "_chunk_meta.json"
)

var unsafeFolderRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// FolderManager owns the on-disk layout:
// {root}/{tenant}/{user}/{base}/{created_time}/{uuid}/_raw_file/{filename}
// with _meta.json and _chunk_meta.json one level above _raw_file.
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// OwnerDir returns the directory holding every file of one owner
func (m *FolderManager) OwnerDir(owner Owner) string {
	return filepath.Join(m.baseDir,
		m.SanitizeFolderName(owner.TenantKey),
		m.SanitizeFolderName(owner.UserID),
		m.SanitizeFolderName(owner.BaseID))
}

// FileDir returns the uuid-scoped directory of a single file
func (m *FolderManager) FileDir(owner Owner, createdTime int64, uuid string) string {
	return filepath.Join(m.OwnerDir(owner), strconv.FormatInt(createdTime, 10), m.SanitizeFolderName(uuid))
}

// RawFilePath returns where the file content lives
func (m *FolderManager) RawFilePath(fileDir, filename string) string {
	return filepath.Join(fileDir, rawDirName, filename)
}

// MetaPath returns the path of _meta.json
func (m *FolderManager) MetaPath(fileDir string) string {
	return filepath.Join(fileDir, metaFileName)
}

// ChunkMetaPath returns the path of _chunk_meta.json
func (m *FolderManager) ChunkMetaPath(fileDir string) string {
	return filepath.Join(fileDir, chunkMetaFileName)
}

// ChunkDir returns the directory holding pending chunks
func (m *FolderManager) ChunkDir(fileDir string) string {
	return filepath.Join(fileDir, rawDirName, chunkDirName)
}

// ChunkPath returns the file of one chunk, named by its index
func (m *FolderManager) ChunkPath(fileDir string, index int) string {
	return filepath.Join(m.ChunkDir(fileDir), strconv.Itoa(index))
}

// CountFiles counts stored files (ready or pending) of an owner
func (m *FolderManager) CountFiles(owner Owner) (int, error) {
	pattern := filepath.Join(m.OwnerDir(owner), "*", "*", metaFileName)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to list owner files: %w", err)
	}
	return len(matches), nil
}

// Exists reports whether path exists
func (m *FolderManager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SanitizeFolderName returns a filesystem-safe version of the name
// Removes path separators and special characters to prevent directory traversal
func (m *FolderManager) SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")

	// Keep only alphanumeric, hyphens, and underscores
	return unsafeFolderRegex.ReplaceAllString(name, "")
}
