package lark

import (
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/pkg/paginate"
)

// Client wraps the Lark SDK client
type Client struct {
	client   *lark.Client
	appID    string
	pageSize int
	retries  int
	logger   *zap.Logger
}

// Config holds Lark client configuration
type Config struct {
	AppID      string
	AppSecret  string
	BaseURL    string        // open platform domain, defaults to Feishu
	Timeout    time.Duration // per request
	PageSize   int           // list page size, max 500
	MaxRetries int           // retries per list page
}

// NewClient creates a new Lark client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, lark.WithReqTimeout(cfg.Timeout))
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 500
	}

	return &Client{
		client:   lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		appID:    cfg.AppID,
		pageSize: pageSize,
		retries:  cfg.MaxRetries,
		logger:   logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *Client) GetClient() *lark.Client {
	return c.client
}

// GetAppID returns the app ID
func (c *Client) GetAppID() string {
	return c.appID
}

func (c *Client) listOptions(what string) paginate.Options {
	return paginate.Options{
		MaxRetries: c.retries,
		Logger:     c.logger,
		OnPage: func(index, items int) {
			c.logger.Debug("Fetched page",
				zap.String("list", what),
				zap.Int("page", index),
				zap.Int("items", items))
		},
	}
}
