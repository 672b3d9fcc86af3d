package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BFDB_CONFIG", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "GidIndex", cfg.DynamoDB.GidIndex)
	assert.Equal(t, 10, cfg.DefaultTraversalDepth)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bfdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: badger
badger_path: /var/lib/bfdb
shutdown_timeout: 3s
dynamodb:
  table: from-file
  source_index: Src
default_traversal_depth: 4
enable_metrics: true
`), 0600))

	t.Setenv("BFDB_CONFIG", path)
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("DEFAULT_TRAVERSAL_DEPTH", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendBadger, cfg.Backend)
	assert.Equal(t, "/var/lib/bfdb", cfg.BadgerPath)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "from-env", cfg.DynamoDB.Table, "environment wins over the file")
	assert.Equal(t, "Src", cfg.DynamoDB.SourceIndex)
	assert.Equal(t, "TargetIndex", cfg.DynamoDB.TargetIndex, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.DefaultTraversalDepth)
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("BFDB_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }, "STORAGE_BACKEND"},
		{"dynamodb without table", func(c *Config) { c.Backend = BackendDynamoDB; c.DynamoDB.Table = "" }, "DYNAMODB_TABLE"},
		{"badger without path", func(c *Config) { c.Backend = BackendBadger; c.BadgerPath = "" }, "BADGER_PATH"},
		{"unknown publisher", func(c *Config) { c.EventPublisher = "kafka" }, "EVENT_PUBLISHER"},
		{"eventbridge without bus", func(c *Config) {
			c.EventPublisher = PublisherEventBridge
			c.EventBusName = ""
		}, "EVENT_BUS_NAME"},
		{"zero depth", func(c *Config) { c.DefaultTraversalDepth = 0 }, "DEFAULT_TRAVERSAL_DEPTH"},
		{"production without secret", func(c *Config) {
			c.Environment = "production"
			c.Backend = BackendDynamoDB
		}, "JWT_SECRET"},
		{"production on memory", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "s3cret"
		}, "memory backend"},
		{"production ok", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "s3cret"
			c.Backend = BackendDynamoDB
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestSigningSecret(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, DevelopmentJWTSecret, cfg.SigningSecret())

	cfg.JWTSecret = "s3cret"
	assert.Equal(t, "s3cret", cfg.SigningSecret())

	cfg.JWTSecret = ""
	cfg.Environment = "production"
	assert.Empty(t, cfg.SigningSecret())
}
