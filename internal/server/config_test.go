package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Compression)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Zero(t, cfg.RateLimit.Requests)
	assert.False(t, cfg.Audit.Enabled)
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, "snapshots", cfg.Snapshot.Prefix)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("HELLO_ADDR", ":9090")
	t.Setenv("HELLO_LOG_LEVEL", "debug")
	t.Setenv("HELLO_RATELIMIT_REQUESTS", "10")
	t.Setenv("HELLO_RATELIMIT_WINDOW", "30s")
	t.Setenv("HELLO_AUDIT_ENABLED", "true")
	t.Setenv("HELLO_AUDIT_DATABASE_URL", "postgres://u:p@localhost:5432/hello?sslmode=disable")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadConfig_TrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("HELLO_TRUSTED_PROXIES", "10.0.0.0/8,127.0.0.1")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
addr: ":7070"
log:
  format: json
s3:
  endpoint: http://minio:9000
  access_key: minio
  secret_key: minio123
  bucket: snapshots
snapshot:
  interval: 1h
  prefix: nightly
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.S3.Enabled())
	assert.Equal(t, time.Hour, cfg.Snapshot.Interval)
	assert.Equal(t, "nightly", cfg.Snapshot.Prefix)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults valid", func(*Config) {}, ""},
		{"port zero allowed", func(c *Config) { c.Addr = ":0" }, ""},
		{"bad addr", func(c *Config) { c.Addr = "8080" }, "addr"},
		{"bad port", func(c *Config) { c.Addr = ":99999" }, "addr"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"audit without url", func(c *Config) { c.Audit.Enabled = true }, "audit.database_url"},
		{"trusted proxies", func(c *Config) { c.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12", "::1"} }, ""},
		{"bad trusted proxy", func(c *Config) { c.TrustedProxies = []string{"proxy.local"} }, "trusted_proxies"},
		{"audit wrong scheme", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.DatabaseURL = "mysql://x"
		}, "audit.database_url"},
		{"partial s3", func(c *Config) { c.S3.Bucket = "b" }, "s3"},
		{"s3 endpoint with path", func(c *Config) {
			c.S3 = S3Config{Endpoint: "http://minio:9000/x", AccessKey: "a", SecretKey: "s", Bucket: "b"}
		}, "s3.endpoint"},
		{"schedule without s3", func(c *Config) { c.Snapshot.Interval = time.Hour }, "snapshot.interval"},
		{"rate limit zero window", func(c *Config) {
			c.RateLimit = RateLimitConfig{Requests: 5, Window: 0}
		}, "ratelimit.window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidator_CollectsAllErrors(t *testing.T) {
	v := NewConfigValidator()
	v.ValidateAddr("addr", "")
	v.ValidateEnum("level", "x", []string{"a", "b"})
	v.ValidatePositiveDuration("window", -time.Second)

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.Contains(t, v.ErrorString(), "3 error(s)")
}
