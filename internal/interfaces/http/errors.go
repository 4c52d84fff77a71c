package http

import (
	"errors"
	"net/http"

	"github.com/garyjia/sheet-import/internal/parser"
	"github.com/garyjia/sheet-import/internal/storage"
	"github.com/garyjia/sheet-import/internal/token"
	"github.com/garyjia/sheet-import/pkg/utils"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{utils.ErrInvalidInput, http.StatusBadRequest},
	{parser.ErrInvalidConfig, http.StatusBadRequest},
	{parser.ErrUnsupportedFileType, http.StatusBadRequest},
	{parser.ErrInvalidHeader, http.StatusBadRequest},
	{storage.ErrInvalidChunk, http.StatusBadRequest},
	{token.ErrDecode, http.StatusBadRequest},
	{storage.ErrNoPermission, http.StatusForbidden},
	{storage.ErrNotFound, http.StatusNotFound},
	{storage.ErrNoChunkMeta, http.StatusNotFound},
	{storage.ErrChunkNotFound, http.StatusConflict},
	{storage.ErrIntegrityMismatch, http.StatusConflict},
	{storage.ErrUploadPending, http.StatusConflict},
	{storage.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{storage.ErrQuotaExceeded, http.StatusTooManyRequests},
	{storage.ErrDownloadFailed, http.StatusBadGateway},
}

// statusOf maps domain errors to HTTP status codes
func statusOf(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
