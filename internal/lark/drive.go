package lark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	larkdrive "github.com/larksuite/oapi-sdk-go/v3/service/drive/v1"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/pkg/paginate"
)

const parentTypeBitableFile = "bitable_file"

// Uploader uploads attachments into a bitable app
type Uploader struct {
	client     *Client
	appToken   string
	maxRetries int
	logger     *zap.Logger
}

// NewUploader creates an uploader targeting the bitable app appToken
func NewUploader(client *Client, appToken string, maxRetries int, logger *zap.Logger) *Uploader {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Uploader{
		client:     client,
		appToken:   appToken,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// UploadFile uploads the content and returns its file token
func (u *Uploader) UploadFile(ctx context.Context, name string, size int64, r io.Reader) (string, error) {
	// the body is replayed on retry
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload content: %w", err)
	}
	if size <= 0 {
		size = int64(len(content))
	}

	var lastErr error
	for attempt := 0; attempt < u.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			u.logger.Info("Retrying upload",
				zap.String("name", name),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		token, err := u.upload(ctx, name, size, bytes.NewReader(content))
		if err == nil {
			return token, nil
		}
		lastErr = err
		if paginate.IsPermanent(err) {
			break
		}
	}

	u.logger.Error("Failed to upload file",
		zap.String("name", name),
		zap.Int64("size", size),
		zap.Error(lastErr))
	return "", fmt.Errorf("failed to upload %s: %w", name, lastErr)
}

func (u *Uploader) upload(ctx context.Context, name string, size int64, r io.Reader) (string, error) {
	req := larkdrive.NewUploadAllMediaReqBuilder().
		Body(larkdrive.NewUploadAllMediaReqBodyBuilder().
			FileName(name).
			ParentType(parentTypeBitableFile).
			ParentNode(u.appToken).
			Size(int(size)).
			File(r).
			Build()).
		Build()

	resp, err := u.client.client.Drive.Media.UploadAll(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	if !resp.Success() {
		u.logger.Warn("API returned failure",
			zap.String("name", name),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", apiError(resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.FileToken == nil {
		return "", paginate.Permanent(fmt.Errorf("upload of %s returned no file token", name))
	}

	u.logger.Info("File uploaded",
		zap.String("name", name),
		zap.String("file_token", *resp.Data.FileToken))
	return *resp.Data.FileToken, nil
}
