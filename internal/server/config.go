package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. HELLO_ADDR,
// HELLO_LOG_LEVEL, HELLO_S3_BUCKET.
const EnvPrefix = "HELLO"

// BuildInfo identifies the running binary. It is set from linker flags,
// not from configuration.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// LogConfig selects level and output format (text or json).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig caps requests per client IP. Requests <= 0 disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// AuditConfig controls the Postgres audit trail.
type AuditConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DatabaseURL string `mapstructure:"database_url"`
}

// S3Config points at the bucket used for snapshot export.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
}

// Enabled reports whether every S3 field is set.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

func (c S3Config) partial() bool {
	return !c.Enabled() && (c.Endpoint != "" || c.AccessKey != "" || c.SecretKey != "" || c.Bucket != "")
}

// SnapshotConfig controls scheduled export. Interval 0 means on demand only.
type SnapshotConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Prefix   string        `mapstructure:"prefix"`
}

// Config is the full service configuration.
type Config struct {
	Addr            string          `mapstructure:"addr"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	Compression     bool            `mapstructure:"compression"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"`
	Build           BuildInfo       `mapstructure:"-"`
	Log             LogConfig       `mapstructure:"log"`
	RateLimit       RateLimitConfig `mapstructure:"ratelimit"`
	Audit           AuditConfig     `mapstructure:"audit"`
	S3              S3Config        `mapstructure:"s3"`
	Snapshot        SnapshotConfig  `mapstructure:"snapshot"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 5 * time.Second,
		Compression:     true,
		Build:           BuildInfo{Version: "dev", Commit: "unknown"},
		Log:             LogConfig{Level: "info", Format: "text"},
		RateLimit:       RateLimitConfig{Requests: 0, Window: time.Minute},
		Snapshot:        SnapshotConfig{Prefix: "snapshots"},
	}
}

// SetDefaults registers every key on v so env vars are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("ratelimit.requests", d.RateLimit.Requests)
	v.SetDefault("ratelimit.window", d.RateLimit.Window)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.database_url", d.Audit.DatabaseURL)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("snapshot.interval", d.Snapshot.Interval)
	v.SetDefault("snapshot.prefix", d.Snapshot.Prefix)
}

// LoadConfig reads defaults, the optional config file and HELLO_* env vars
// (in increasing precedence; flags bound on v win over all of them).
func LoadConfig(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig checks cross-field rules; all problems are reported at once.
func ValidateConfig(cfg Config) error {
	v := NewConfigValidator()

	v.ValidateAddr("addr", cfg.Addr)
	v.ValidateEnum("log.level", cfg.Log.Level, []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("log.format", cfg.Log.Format, []string{"text", "json"})
	v.ValidatePositiveDuration("shutdown_timeout", cfg.ShutdownTimeout)

	for _, p := range cfg.TrustedProxies {
		if _, err := parseProxy(p); err != nil {
			v.AddError("trusted_proxies", fmt.Sprintf("%q is not an IP address or CIDR range", p))
		}
	}

	if cfg.RateLimit.Requests > 0 {
		v.ValidatePositiveDuration("ratelimit.window", cfg.RateLimit.Window)
	}

	if cfg.Audit.Enabled {
		if cfg.Audit.DatabaseURL == "" {
			v.AddError("audit.database_url", "required when audit.enabled is true")
		} else {
			v.ValidateURL("audit.database_url", cfg.Audit.DatabaseURL, "postgres", "postgresql")
		}
	}

	if cfg.S3.partial() {
		v.AddError("s3", "endpoint, access_key, secret_key and bucket must be set together")
	}
	if cfg.S3.Endpoint != "" {
		if _, _, err := parseS3Endpoint(cfg.S3.Endpoint); err != nil {
			v.AddError("s3.endpoint", err.Error())
		}
	}

	if cfg.Snapshot.Interval < 0 {
		v.AddError("snapshot.interval", "must not be negative")
	}
	if cfg.Snapshot.Interval > 0 && !cfg.S3.Enabled() {
		v.AddError("snapshot.interval", "scheduled snapshots require s3 configuration")
	}

	if v.HasErrors() {
		return errors.New(v.ErrorString())
	}
	return nil
}
