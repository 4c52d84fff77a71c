package storage

import (
	"context"
	"fmt"

	"github.com/garyjia/sheet-import/pkg/utils"
)

// Owner identifies who a file belongs to
type Owner struct {
	TenantKey string `json:"tenant_key"`
	BaseID    string `json:"base_id"`
	UserID    string `json:"user_id"`
}

// Validate checks every identity field is present and is already a safe
// folder name, so two owners never share a directory.
func (o Owner) Validate() error {
	if o.TenantKey == "" || o.BaseID == "" || o.UserID == "" {
		return fmt.Errorf("%w: incomplete owner: tenant=%q base=%q user=%q",
			utils.ErrInvalidInput, o.TenantKey, o.BaseID, o.UserID)
	}
	for _, id := range []string{o.TenantKey, o.BaseID, o.UserID} {
		if unsafeFolderRegex.MatchString(id) {
			return fmt.Errorf("%w: owner id %q may only contain letters, digits, '-' and '_'",
				utils.ErrInvalidInput, id)
		}
	}
	return nil
}

// FileItem is the resolved, read-only view of a stored file
type FileItem struct {
	Token       string `json:"token"`
	Filename    string `json:"filename"`
	FilePath    string `json:"-"`
	DirPath     string `json:"-"`
	MD5         string `json:"md5"`
	CreatedTime int64  `json:"created_time"`
	UUID        string `json:"uuid"`
	Size        int64  `json:"size"`
}

// fileMeta is persisted as _meta.json next to the raw directory
type fileMeta struct {
	MD5         string `json:"md5"`
	CreatedTime int64  `json:"created_time"`
	UUID        string `json:"uuid"`
	Token       string `json:"token"`
	Size        int64  `json:"size"`
}

// ChunkMeta describes a pending multipart upload
type ChunkMeta struct {
	MD5         string `json:"md5"`
	CreatedTime int64  `json:"created_time"`
	Chunks      int    `json:"chunks"`
	TotalSize   int64  `json:"total_size"`
}

// Record statuses kept in the file index
const (
	StatusPending = "pending"
	StatusReady   = "ready"
)

// FileRecord is the row mirrored into the file index
type FileRecord struct {
	Token       string
	TenantKey   string
	BaseID      string
	UserID      string
	Filename    string
	MD5         string
	Size        int64
	CreatedTime int64
	Status      string
}

// FileIndex mirrors store state into a queryable index.
// The filesystem stays authoritative; index failures are logged only.
type FileIndex interface {
	Save(ctx context.Context, rec *FileRecord) error
	Delete(ctx context.Context, token string) error
}

// Config holds file store limits
type Config struct {
	RootDir       string
	UserFileLimit int   // 0 means unlimited
	MaxFileSize   int64 // 0 means unlimited
}
