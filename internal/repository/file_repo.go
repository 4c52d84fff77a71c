package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/storage"
)

// FileRepository keeps the stored_files index
type FileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ storage.FileIndex = (*FileRepository)(nil)

// NewFileRepository creates a new file repository
func NewFileRepository(db *sql.DB, logger *zap.Logger) *FileRepository {
	return &FileRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts the record or updates the row with the same token
func (r *FileRepository) Save(ctx context.Context, rec *storage.FileRecord) error {
	query := `
		INSERT INTO stored_files (
			token, tenant_key, base_id, user_id, filename, md5, size, created_time, status, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			filename = excluded.filename,
			md5 = excluded.md5,
			size = excluded.size,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.Token,
		rec.TenantKey,
		rec.BaseID,
		rec.UserID,
		rec.Filename,
		rec.MD5,
		rec.Size,
		rec.CreatedTime,
		rec.Status,
		time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to save file record", zap.String("filename", rec.Filename), zap.Error(err))
		return fmt.Errorf("failed to save file record: %w", err)
	}
	return nil
}

// Delete removes the row for token; a missing row is not an error
func (r *FileRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM stored_files WHERE token = ?", token); err != nil {
		r.logger.Error("Failed to delete file record", zap.Error(err))
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

// GetByToken returns the record for token, or nil if there is none
func (r *FileRepository) GetByToken(ctx context.Context, token string) (*storage.FileRecord, error) {
	query := `
		SELECT token, tenant_key, base_id, user_id, filename, md5, size, created_time, status
		FROM stored_files
		WHERE token = ?
	`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get file record", zap.Error(err))
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return rec, nil
}

// ListByOwner returns the owner's records, newest first
func (r *FileRepository) ListByOwner(ctx context.Context, owner storage.Owner) ([]*storage.FileRecord, error) {
	query := `
		SELECT token, tenant_key, base_id, user_id, filename, md5, size, created_time, status
		FROM stored_files
		WHERE tenant_key = ? AND base_id = ? AND user_id = ?
		ORDER BY created_time DESC
	`
	return r.list(ctx, query, owner.TenantKey, owner.BaseID, owner.UserID)
}

// ListExpired returns up to limit records created before the cutoff, oldest first.
// limit <= 0 returns all of them.
func (r *FileRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*storage.FileRecord, error) {
	query := `
		SELECT token, tenant_key, base_id, user_id, filename, md5, size, created_time, status
		FROM stored_files
		WHERE created_time < ?
		ORDER BY created_time ASC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	return r.list(ctx, query, before.UnixMilli(), limit)
}

func (r *FileRepository) list(ctx context.Context, query string, args ...any) ([]*storage.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list file records", zap.Error(err))
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}
	defer rows.Close()

	var records []*storage.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*storage.FileRecord, error) {
	var rec storage.FileRecord
	err := s.Scan(
		&rec.Token,
		&rec.TenantKey,
		&rec.BaseID,
		&rec.UserID,
		&rec.Filename,
		&rec.MD5,
		&rec.Size,
		&rec.CreatedTime,
		&rec.Status,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
