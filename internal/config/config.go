package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Token    TokenConfig    `mapstructure:"token"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxChunkSize    int64         `mapstructure:"max_chunk_size"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the bundled migrations
}

// StorageConfig holds file store configuration
type StorageConfig struct {
	RootDir       string        `mapstructure:"root_dir"`
	UserFileLimit int           `mapstructure:"user_file_limit"` // 0 means unlimited
	MaxFileSize   int64         `mapstructure:"max_file_size"`   // bytes, 0 means unlimited
	FileTTL       time.Duration `mapstructure:"file_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

// TokenConfig holds the token codec key
type TokenConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

// ParserConfig holds file parser configuration
type ParserConfig struct {
	ImageWorkers int `mapstructure:"image_workers"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
	PageSize   int           `mapstructure:"page_size"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// Enabled reports whether Lark credentials are configured
func (c LarkConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional YAML file, a .env file in the
// working directory and environment variables
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_chunk_size", 32<<20)

	v.SetDefault("database.path", "data/sheet_import.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("storage.root_dir", "data/files")
	v.SetDefault("storage.user_file_limit", 0)
	v.SetDefault("storage.max_file_size", 200<<20)
	v.SetDefault("storage.file_ttl", 24*time.Hour)
	v.SetDefault("storage.sweep_interval", 10*time.Minute)
	v.SetDefault("storage.sweep_batch", 200)

	v.SetDefault("parser.image_workers", 4)

	v.SetDefault("lark.api_timeout", 30*time.Second)
	v.SetDefault("lark.page_size", 500)
	v.SetDefault("lark.max_retries", 3)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps secrets to their conventional variable names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"token.secret_key": "TOKEN_SECRET_KEY",
		"lark.app_id":      "LARK_APP_ID",
		"lark.app_secret":  "LARK_APP_SECRET",
		"storage.root_dir": "STORAGE_ROOT_DIR",
		"database.path":    "DATABASE_PATH",
		"server.port":      "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Token.SecretKey == "" {
		return fmt.Errorf("token.secret_key is required")
	}
	if c.Storage.RootDir == "" {
		return fmt.Errorf("storage.root_dir is required")
	}
	if c.Storage.UserFileLimit < 0 {
		return fmt.Errorf("storage.user_file_limit must not be negative")
	}
	if c.Storage.MaxFileSize < 0 {
		return fmt.Errorf("storage.max_file_size must not be negative")
	}
	if c.Parser.ImageWorkers < 1 || c.Parser.ImageWorkers > 32 {
		return fmt.Errorf("parser.image_workers must be between 1 and 32, got %d", c.Parser.ImageWorkers)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port, got %d", c.Server.Port)
	}
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}
	return nil
}

// Addr returns the HTTP listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
