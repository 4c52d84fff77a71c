package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/pkg/utils"
)

// OwnerStore restricts every FileStore operation to one owner.
// Tokens issued to anyone else are rejected with ErrNoPermission.
type OwnerStore struct {
	store *FileStore
	owner Owner
}

// Owner returns the verified owner
func (o *OwnerStore) Owner() Owner {
	return o.owner
}

// verify decodes tok and checks it belongs to the owner
func (o *OwnerStore) verify(tok string) error {
	meta, err := o.store.codec.DecodeFile(tok)
	if err != nil {
		return err
	}
	if meta.TenantKey != o.owner.TenantKey || meta.BaseID != o.owner.BaseID || meta.UserID != o.owner.UserID {
		o.store.logger.Warn("Rejected cross-owner token",
			zap.String("tenant_key", o.owner.TenantKey),
			zap.String("user_id", o.owner.UserID),
			zap.String("uuid", meta.UUID))
		return ErrNoPermission
	}
	return nil
}

// SaveFile stores a whole file for the owner
func (o *OwnerStore) SaveFile(ctx context.Context, filename string, content []byte) (string, error) {
	return o.store.SaveFile(ctx, o.owner, filename, content)
}

// SaveReader streams a whole file for the owner
func (o *OwnerStore) SaveReader(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	return o.store.SaveReader(ctx, o.owner, filename, r, size)
}

// StartChunk begins a chunked upload for the owner
func (o *OwnerStore) StartChunk(ctx context.Context, filename, md5sum string, size int64, chunks int) (string, error) {
	return o.store.StartChunk(ctx, o.owner, filename, md5sum, size, chunks)
}

// SaveFileChunk stores one chunk of the owner's pending upload
func (o *OwnerStore) SaveFileChunk(ctx context.Context, tok string, index int, content []byte) error {
	if err := o.verify(tok); err != nil {
		return err
	}
	return o.store.SaveFileChunk(ctx, tok, index, content)
}

// CheckChunk reports whether a chunk was received
func (o *OwnerStore) CheckChunk(ctx context.Context, tok string, index int) (bool, error) {
	if err := o.verify(tok); err != nil {
		return false, err
	}
	return o.store.CheckChunk(ctx, tok, index)
}

// AssembleFileChunks completes the owner's chunked upload
func (o *OwnerStore) AssembleFileChunks(ctx context.Context, tok string) (*FileItem, error) {
	if err := o.verify(tok); err != nil {
		return nil, err
	}
	return o.store.AssembleFileChunks(ctx, tok)
}

// GetFile resolves one of the owner's files
func (o *OwnerStore) GetFile(ctx context.Context, tok string) (*FileItem, error) {
	if err := o.verify(tok); err != nil {
		return nil, err
	}
	return o.store.GetFile(ctx, tok)
}

// DeleteFile removes one of the owner's files
func (o *OwnerStore) DeleteFile(ctx context.Context, tok string) error {
	if err := o.verify(tok); err != nil {
		return err
	}
	return o.store.DeleteFile(ctx, tok)
}

// SaveFromURL downloads a remote file and stores it for the owner.
// The file name is the last segment of the URL path.
func (o *OwnerStore) SaveFromURL(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	u, err := utils.ValidateDownloadURL(rawURL)
	if err != nil {
		return "", err
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if limit := o.store.config.MaxFileSize; limit > 0 {
		if resp.ContentLength > limit {
			return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, resp.ContentLength, limit)
		}
		body = io.LimitReader(resp.Body, limit+1)
	}

	content, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read download: %w", err)
	}

	o.store.logger.Info("Downloaded remote file",
		zap.String("url", u.Redacted()),
		zap.Int("size", len(content)))

	return o.store.SaveFile(ctx, o.owner, path.Base(u.Path), content)
}
