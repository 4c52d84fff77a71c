package storage

import "errors"

var (
	// ErrQuotaExceeded is returned when the owner already holds the maximum number of files
	ErrQuotaExceeded = errors.New("file quota exceeded")

	// ErrFileTooLarge is returned when content or a declared size exceeds the configured limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrNotFound is returned when a token resolves to nothing on disk
	ErrNotFound = errors.New("file not found")

	// ErrNoPermission is returned when a token belongs to another owner
	ErrNoPermission = errors.New("no permission for file")

	// ErrNoChunkMeta is returned by chunk operations on a file that is not pending
	ErrNoChunkMeta = errors.New("chunk metadata not found")

	// ErrChunkNotFound is returned by assembly when a chunk index is missing
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrInvalidChunk is returned for chunk indices outside 1..chunks
	ErrInvalidChunk = errors.New("invalid chunk index")

	// ErrIntegrityMismatch is returned when assembled content does not match the declared md5
	ErrIntegrityMismatch = errors.New("file integrity mismatch")

	// ErrUploadPending is returned by GetFile while chunks are still being collected
	ErrUploadPending = errors.New("file upload is not assembled yet")

	// ErrDownloadFailed is returned by SaveFromURL when the remote server does not deliver the file
	ErrDownloadFailed = errors.New("remote download failed")
)
