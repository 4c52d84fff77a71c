package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/token"
	"github.com/garyjia/sheet-import/pkg/utils"
)

// FileStore maps tokens to on-disk files and runs whole and chunked uploads
type FileStore struct {
	config  Config
	codec   *token.Codec
	disk    *LocalFileStorage
	folders *FolderManager
	index   FileIndex
	logger  *zap.Logger
	now     func() time.Time
}

// NewFileStore creates a file store rooted at cfg.RootDir.
// index may be nil.
func NewFileStore(cfg Config, codec *token.Codec, index FileIndex, logger *zap.Logger) (*FileStore, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("storage root dir is required")
	}
	if err := os.MkdirAll(cfg.RootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	return &FileStore{
		config:  cfg,
		codec:   codec,
		disk:    NewLocalFileStorage(cfg.RootDir, logger),
		folders: NewFolderManager(cfg.RootDir, logger),
		index:   index,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Disk exposes the atomic writer used for metadata, so caches living under
// file directories are written the same way
func (s *FileStore) Disk() *LocalFileStorage {
	return s.disk
}

// ForOwner returns a store restricted to one verified owner
func (s *FileStore) ForOwner(owner Owner) (*OwnerStore, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return &OwnerStore{store: s, owner: owner}, nil
}

// checkLimits enforces quota and size before anything is written
func (s *FileStore) checkLimits(owner Owner, size int64) error {
	if s.config.MaxFileSize > 0 && size > s.config.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, s.config.MaxFileSize)
	}

	if s.config.UserFileLimit > 0 {
		count, err := s.folders.CountFiles(owner)
		if err != nil {
			return err
		}
		if count >= s.config.UserFileLimit {
			return fmt.Errorf("%w: %d of %d files used", ErrQuotaExceeded, count, s.config.UserFileLimit)
		}
	}

	return nil
}

// newFile allocates identity and token for a new file
func (s *FileStore) newFile(owner Owner, filename string) (token.FileMeta, string, error) {
	meta := token.FileMeta{
		TenantKey:   owner.TenantKey,
		BaseID:      owner.BaseID,
		UserID:      owner.UserID,
		Filename:    utils.SanitizeFilename(filename),
		CreatedTime: s.now().UnixMilli(),
		UUID:        uuid.New().String(),
		Type:        token.FileType,
	}

	tok, err := s.codec.EncodeFile(meta)
	if err != nil {
		return meta, "", fmt.Errorf("failed to encode file token: %w", err)
	}
	return meta, tok, nil
}

// SaveFile stores a whole file and returns its token
func (s *FileStore) SaveFile(ctx context.Context, owner Owner, filename string, content []byte) (string, error) {
	return s.SaveReader(ctx, owner, filename, bytes.NewReader(content), int64(len(content)))
}

// SaveReader stores size bytes read from r and returns the file token
func (s *FileStore) SaveReader(ctx context.Context, owner Owner, filename string, r io.Reader, size int64) (string, error) {
	if err := owner.Validate(); err != nil {
		return "", err
	}
	if err := s.checkLimits(owner, size); err != nil {
		return "", err
	}

	meta, tok, err := s.newFile(owner, filename)
	if err != nil {
		return "", err
	}

	dir := s.folders.FileDir(owner, meta.CreatedTime, meta.UUID)
	written, sum, err := s.disk.SaveStream(s.folders.RawFilePath(dir, meta.Filename), r)
	if err != nil {
		_ = s.disk.RemoveAll(dir)
		return "", err
	}

	if err := s.disk.WriteJSON(s.folders.MetaPath(dir), fileMeta{
		MD5:         sum,
		CreatedTime: meta.CreatedTime,
		UUID:        meta.UUID,
		Token:       tok,
		Size:        written,
	}); err != nil {
		_ = s.disk.RemoveAll(dir)
		return "", err
	}

	s.logger.Info("File saved",
		zap.String("uuid", meta.UUID),
		zap.String("filename", meta.Filename),
		zap.Int64("size", written))

	s.indexSave(ctx, meta, tok, sum, written, StatusReady)
	return tok, nil
}

// StartChunk registers a multipart upload of a declared size and md5
func (s *FileStore) StartChunk(ctx context.Context, owner Owner, filename, md5sum string, size int64, chunks int) (string, error) {
	if err := owner.Validate(); err != nil {
		return "", err
	}
	if err := utils.ValidateMD5(md5sum); err != nil {
		return "", err
	}
	if chunks < 1 {
		return "", fmt.Errorf("%w: chunk count must be at least 1", ErrInvalidChunk)
	}
	if size < 0 {
		return "", fmt.Errorf("%w: declared size must not be negative", utils.ErrInvalidInput)
	}
	if err := s.checkLimits(owner, size); err != nil {
		return "", err
	}

	meta, tok, err := s.newFile(owner, filename)
	if err != nil {
		return "", err
	}
	md5sum = strings.ToLower(md5sum)

	dir := s.folders.FileDir(owner, meta.CreatedTime, meta.UUID)
	if err := s.disk.WriteJSON(s.folders.MetaPath(dir), fileMeta{
		MD5:         md5sum,
		CreatedTime: meta.CreatedTime,
		UUID:        meta.UUID,
		Token:       tok,
		Size:        size,
	}); err != nil {
		_ = s.disk.RemoveAll(dir)
		return "", err
	}

	if err := s.disk.WriteJSON(s.folders.ChunkMetaPath(dir), ChunkMeta{
		MD5:         md5sum,
		CreatedTime: meta.CreatedTime,
		Chunks:      chunks,
		TotalSize:   size,
	}); err != nil {
		_ = s.disk.RemoveAll(dir)
		return "", err
	}

	s.logger.Info("Chunked upload started",
		zap.String("uuid", meta.UUID),
		zap.String("filename", meta.Filename),
		zap.Int("chunks", chunks),
		zap.Int64("size", size))

	s.indexSave(ctx, meta, tok, md5sum, size, StatusPending)
	return tok, nil
}

// SaveFileChunk stores one chunk. Re-sending an index that already exists
// is a no-op.
func (s *FileStore) SaveFileChunk(ctx context.Context, tok string, index int, content []byte) error {
	meta, err := s.codec.DecodeFile(tok)
	if err != nil {
		return err
	}
	dir := s.dirOf(meta)

	chunkMeta, err := s.readChunkMeta(dir)
	if err != nil {
		return err
	}
	if index < 1 || index > chunkMeta.Chunks {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidChunk, index, chunkMeta.Chunks)
	}

	path := s.folders.ChunkPath(dir, index)
	if s.folders.Exists(path) {
		s.logger.Debug("Chunk already stored, skipping",
			zap.String("uuid", meta.UUID),
			zap.Int("index", index))
		return nil
	}

	if err := s.disk.SaveFile(path, content); err != nil {
		return fmt.Errorf("failed to save chunk %d: %w", index, err)
	}

	s.logger.Debug("Chunk saved",
		zap.String("uuid", meta.UUID),
		zap.Int("index", index),
		zap.Int("size", len(content)))
	return nil
}

// CheckChunk reports whether a chunk index was already received
func (s *FileStore) CheckChunk(ctx context.Context, tok string, index int) (bool, error) {
	meta, err := s.codec.DecodeFile(tok)
	if err != nil {
		return false, err
	}
	dir := s.dirOf(meta)
	if _, err := s.readChunkMeta(dir); err != nil {
		return false, err
	}
	return s.folders.Exists(s.folders.ChunkPath(dir, index)), nil
}

// AssembleFileChunks joins chunks 1..N in index order and verifies the
// result against the declared md5. On mismatch the whole file directory is
// removed.
func (s *FileStore) AssembleFileChunks(ctx context.Context, tok string) (*FileItem, error) {
	meta, err := s.codec.DecodeFile(tok)
	if err != nil {
		return nil, err
	}
	dir := s.dirOf(meta)

	chunkMeta, err := s.readChunkMeta(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, chunkMeta.Chunks)
	for i := 1; i <= chunkMeta.Chunks; i++ {
		path := s.folders.ChunkPath(dir, i)
		if !s.folders.Exists(path) {
			return nil, fmt.Errorf("%w: index %d", ErrChunkNotFound, i)
		}
		paths = append(paths, path)
	}

	reader, closeAll, err := openChunks(paths)
	if err != nil {
		return nil, err
	}
	size, sum, err := s.disk.SaveStream(s.folders.RawFilePath(dir, meta.Filename), reader)
	closeAll()
	if err != nil {
		return nil, fmt.Errorf("failed to assemble chunks: %w", err)
	}

	if err := s.disk.RemoveAll(s.folders.ChunkDir(dir)); err != nil {
		s.logger.Warn("Failed to remove chunk files", zap.String("uuid", meta.UUID), zap.Error(err))
	}

	if !strings.EqualFold(sum, chunkMeta.MD5) {
		s.logger.Warn("Assembled file failed integrity check",
			zap.String("uuid", meta.UUID),
			zap.String("expected_md5", chunkMeta.MD5),
			zap.String("actual_md5", sum))
		if err := s.disk.RemoveAll(dir); err != nil {
			s.logger.Error("Failed to roll back corrupt upload", zap.String("dir", dir), zap.Error(err))
		}
		s.indexDelete(ctx, tok)
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrIntegrityMismatch, chunkMeta.MD5, sum)
	}

	if err := s.disk.WriteJSON(s.folders.MetaPath(dir), fileMeta{
		MD5:         sum,
		CreatedTime: meta.CreatedTime,
		UUID:        meta.UUID,
		Token:       tok,
		Size:        size,
	}); err != nil {
		return nil, err
	}
	if err := os.Remove(s.folders.ChunkMetaPath(dir)); err != nil {
		return nil, fmt.Errorf("failed to remove chunk metadata: %w", err)
	}

	s.logger.Info("Chunks assembled",
		zap.String("uuid", meta.UUID),
		zap.Int("chunks", chunkMeta.Chunks),
		zap.Int64("size", size))

	s.indexSave(ctx, *meta, tok, sum, size, StatusReady)
	return s.GetFile(ctx, tok)
}

// GetFile resolves a token into a FileItem
func (s *FileStore) GetFile(ctx context.Context, tok string) (*FileItem, error) {
	item, err := s.resolve(tok)
	if err != nil {
		return nil, err
	}
	if s.folders.Exists(s.folders.ChunkMetaPath(item.DirPath)) {
		return nil, ErrUploadPending
	}
	if !s.folders.Exists(item.FilePath) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, item.Filename)
	}
	return item, nil
}

// DeleteFile removes the whole uuid directory of a file, pending or not
func (s *FileStore) DeleteFile(ctx context.Context, tok string) error {
	item, err := s.resolve(tok)
	if err != nil {
		return err
	}
	if err := s.disk.RemoveAll(item.DirPath); err != nil {
		return err
	}

	s.logger.Info("File deleted",
		zap.String("uuid", item.UUID),
		zap.String("filename", item.Filename))

	s.indexDelete(ctx, tok)
	return nil
}

// resolve decodes the token and loads _meta.json
func (s *FileStore) resolve(tok string) (*FileItem, error) {
	meta, err := s.codec.DecodeFile(tok)
	if err != nil {
		return nil, err
	}
	dir := s.dirOf(meta)

	var stored fileMeta
	if err := s.disk.ReadJSON(s.folders.MetaPath(dir), &stored); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, meta.Filename)
		}
		return nil, err
	}

	return &FileItem{
		Token:       tok,
		Filename:    meta.Filename,
		FilePath:    s.folders.RawFilePath(dir, meta.Filename),
		DirPath:     dir,
		MD5:         stored.MD5,
		CreatedTime: stored.CreatedTime,
		UUID:        stored.UUID,
		Size:        stored.Size,
	}, nil
}

func (s *FileStore) dirOf(meta *token.FileMeta) string {
	owner := Owner{TenantKey: meta.TenantKey, BaseID: meta.BaseID, UserID: meta.UserID}
	return s.folders.FileDir(owner, meta.CreatedTime, meta.UUID)
}

func (s *FileStore) readChunkMeta(dir string) (*ChunkMeta, error) {
	var meta ChunkMeta
	if err := s.disk.ReadJSON(s.folders.ChunkMetaPath(dir), &meta); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoChunkMeta
		}
		return nil, err
	}
	return &meta, nil
}

// openChunks opens every chunk as one sequential reader
func openChunks(paths []string) (io.Reader, func(), error) {
	files := make([]*os.File, 0, len(paths))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	readers := make([]io.Reader, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open chunk: %w", err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	return io.MultiReader(readers...), closeAll, nil
}

func (s *FileStore) indexSave(ctx context.Context, meta token.FileMeta, tok, sum string, size int64, status string) {
	if s.index == nil {
		return
	}
	err := s.index.Save(ctx, &FileRecord{
		Token:       tok,
		TenantKey:   meta.TenantKey,
		BaseID:      meta.BaseID,
		UserID:      meta.UserID,
		Filename:    meta.Filename,
		MD5:         sum,
		Size:        size,
		CreatedTime: meta.CreatedTime,
		Status:      status,
	})
	if err != nil {
		s.logger.Warn("Failed to update file index", zap.String("uuid", meta.UUID), zap.Error(err))
	}
}

func (s *FileStore) indexDelete(ctx context.Context, tok string) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(ctx, tok); err != nil {
		s.logger.Warn("Failed to remove file from index", zap.Error(err))
	}
}
