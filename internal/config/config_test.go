package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
token:
  secret_key: file-secret
storage:
  root_dir: /tmp/files
  user_file_limit: 20
  file_ttl: 2h
parser:
  image_workers: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "file-secret", cfg.Token.SecretKey)
	assert.Equal(t, "/tmp/files", cfg.Storage.RootDir)
	assert.Equal(t, 20, cfg.Storage.UserFileLimit)
	assert.Equal(t, 2*time.Hour, cfg.Storage.FileTTL)
	assert.Equal(t, 10*time.Minute, cfg.Storage.SweepInterval)
	assert.Equal(t, 8, cfg.Parser.ImageWorkers)
	assert.Equal(t, 500, cfg.Lark.PageSize)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Lark.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "token:\n  secret_key: file-secret\n")
	t.Setenv("TOKEN_SECRET_KEY", "env-secret")
	t.Setenv("LARK_APP_ID", "cli_123")
	t.Setenv("LARK_APP_SECRET", "shh")
	t.Setenv("PARSER_IMAGE_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Token.SecretKey)
	assert.Equal(t, 2, cfg.Parser.ImageWorkers)
	assert.True(t, cfg.Lark.Enabled())
}

func TestLoad_WithoutFile(t *testing.T) {
	t.Setenv("TOKEN_SECRET_KEY", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data/files", cfg.Storage.RootDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Token:   TokenConfig{SecretKey: "k"},
			Storage: StorageConfig{RootDir: "data"},
			Parser:  ParserConfig{ImageWorkers: 4},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.Token.SecretKey = "" }, "token.secret_key"},
		{"missing root", func(c *Config) { c.Storage.RootDir = "" }, "storage.root_dir"},
		{"negative limit", func(c *Config) { c.Storage.UserFileLimit = -1 }, "user_file_limit"},
		{"too many workers", func(c *Config) { c.Parser.ImageWorkers = 64 }, "image_workers"},
		{"no workers", func(c *Config) { c.Parser.ImageWorkers = 0 }, "image_workers"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"half lark", func(c *Config) { c.Lark.AppID = "cli" }, "lark.app_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
