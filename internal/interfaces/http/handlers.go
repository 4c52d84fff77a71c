package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/ingest"
	"github.com/garyjia/sheet-import/internal/parser"
	"github.com/garyjia/sheet-import/internal/storage"
	"github.com/garyjia/sheet-import/internal/token"
)

// UserTokenHeader carries the encoded user session
const UserTokenHeader = "X-User-Token"

const ownerKey = "owner_store"

// Handlers contains all HTTP request handlers
type Handlers struct {
	store        *storage.FileStore
	codec        *token.Codec
	parser       *parser.Parser
	ingest       *ingest.Service
	client       *http.Client
	maxChunkSize int64
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, maxChunkSize int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:        deps.Store,
		codec:        deps.Codec,
		parser:       deps.Parser,
		ingest:       deps.Ingest,
		client:       &http.Client{Timeout: 60 * time.Second},
		maxChunkSize: maxChunkSize,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// TokenResponse returns a freshly issued file token
type TokenResponse struct {
	Token string `json:"token"`
}

// URLUploadRequest is the body of POST /files/url
type URLUploadRequest struct {
	URL string `json:"url" binding:"required"`
}

// StartChunkRequest is the body of POST /files/chunks/start
type StartChunkRequest struct {
	Filename string `json:"filename" binding:"required"`
	MD5      string `json:"md5" binding:"required"`
	Size     int64  `json:"size"`
	Chunks   int    `json:"chunks" binding:"required"`
}

// PreviewRequest is the body of POST /files/:token/preview. FileType
// defaults to the stored file's extension.
type PreviewRequest struct {
	FileType string `json:"file_type"`
	parser.PaginationConfig
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	} else {
		h.logger.Warn("Request rejected",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, Response{Success: false, Error: err.Error()})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// RequireUser decodes the user token into an owner scoped store
func (h *Handlers) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserTokenHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: "missing " + UserTokenHeader})
			return
		}

		user, err := h.codec.DecodeUser(raw)
		if err != nil {
			h.logger.Warn("Invalid user token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid user token"})
			return
		}

		owner, err := h.store.ForOwner(storage.Owner{
			TenantKey: user.TenantKey,
			BaseID:    user.BaseID,
			UserID:    user.UserID,
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: err.Error()})
			return
		}

		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerStore(c *gin.Context) *storage.OwnerStore {
	return c.MustGet(ownerKey).(*storage.OwnerStore)
}

func chunkIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	return index, err == nil
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// UploadFile handles POST /api/v1/files
func (h *Handlers) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "multipart field \"file\" is required")
		return
	}

	f, err := header.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	tok, err := ownerStore(c).SaveReader(c.Request.Context(), header.Filename, f, header.Size)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, TokenResponse{Token: tok})
}

// UploadFromURL handles POST /api/v1/files/url
func (h *Handlers) UploadFromURL(c *gin.Context) {
	var req URLUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	tok, err := ownerStore(c).SaveFromURL(c.Request.Context(), h.client, req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, TokenResponse{Token: tok})
}

// GetFile handles GET /api/v1/files/:token
func (h *Handlers) GetFile(c *gin.Context) {
	item, err := ownerStore(c).GetFile(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, item)
}

// DeleteFile handles DELETE /api/v1/files/:token
func (h *Handlers) DeleteFile(c *gin.Context) {
	if err := ownerStore(c).DeleteFile(c.Request.Context(), c.Param("token")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, nil)
}

// StartChunk handles POST /api/v1/files/chunks/start
func (h *Handlers) StartChunk(c *gin.Context) {
	var req StartChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	tok, err := ownerStore(c).StartChunk(c.Request.Context(), req.Filename, req.MD5, req.Size, req.Chunks)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, TokenResponse{Token: tok})
}

// PutChunk handles PUT /api/v1/files/chunks/:token/:index with the raw chunk as body
func (h *Handlers) PutChunk(c *gin.Context) {
	index, valid := chunkIndex(c)
	if !valid {
		h.badRequest(c, "chunk index must be an integer")
		return
	}

	body := io.Reader(c.Request.Body)
	if h.maxChunkSize > 0 {
		body = io.LimitReader(body, h.maxChunkSize+1)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.maxChunkSize > 0 && int64(len(content)) > h.maxChunkSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "chunk too large"})
		return
	}

	if err := ownerStore(c).SaveFileChunk(c.Request.Context(), c.Param("token"), index, content); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, nil)
}

// CheckChunk handles GET /api/v1/files/chunks/:token/:index
func (h *Handlers) CheckChunk(c *gin.Context) {
	index, valid := chunkIndex(c)
	if !valid {
		h.badRequest(c, "chunk index must be an integer")
		return
	}

	exists, err := ownerStore(c).CheckChunk(c.Request.Context(), c.Param("token"), index)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"exists": exists})
}

// AssembleChunks handles POST /api/v1/files/chunks/:token/assemble
func (h *Handlers) AssembleChunks(c *gin.Context) {
	item, err := ownerStore(c).AssembleFileChunks(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, item)
}

// Preview handles POST /api/v1/files/:token/preview
func (h *Handlers) Preview(c *gin.Context) {
	var req PreviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			h.fail(c, wrapBindError(err))
			return
		}
	}

	tok := c.Param("token")
	item, err := ownerStore(c).GetFile(c.Request.Context(), tok)
	if err != nil {
		h.fail(c, err)
		return
	}

	ft, err := fileTypeOf(req.FileType, item.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}

	src := parser.Source{Path: item.FilePath, Dir: item.DirPath, Token: tok}
	result, err := h.parser.Preview(c.Request.Context(), ft, src, req.PaginationConfig)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

// TranslateRequest is the body of POST /files/:token/translate
type TranslateRequest struct {
	FileType string `json:"file_type"`
	ingest.Request
}

// Translate handles POST /api/v1/files/:token/translate
func (h *Handlers) Translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, wrapBindError(err))
		return
	}

	tok := c.Param("token")
	item, err := ownerStore(c).GetFile(c.Request.Context(), tok)
	if err != nil {
		h.fail(c, err)
		return
	}

	ft, err := fileTypeOf(req.FileType, item.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}

	src := parser.Source{Path: item.FilePath, Dir: item.DirPath, Token: tok}
	result, err := h.ingest.Translate(c.Request.Context(), ft, src, req.Request)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

func fileTypeOf(requested, filename string) (parser.FileType, error) {
	if requested != "" {
		return parser.ParseFileType(strings.ToLower(requested))
	}
	return parser.ParseFileType(strings.ToLower(filepath.Ext(filename)))
}

// wrapBindError keeps range errors recognizable and treats anything else
// as a malformed body
func wrapBindError(err error) error {
	if errors.Is(err, parser.ErrInvalidConfig) {
		return err
	}
	return fmt.Errorf("%w: %v", parser.ErrInvalidConfig, err)
}
