// Package config loads the server configuration from a TOML file, a .env
// file and DECKVAULT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DECKVAULT_"

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	JWT      JWTConfig      `toml:"jwt"`
	Log      LogConfig      `toml:"log"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Backup   BackupConfig   `toml:"backup"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	Environment    string   `toml:"environment"`     // "development" or "production"
	AllowedOrigins []string `toml:"allowed_origins"` // CORS and websocket origins
	RequestTimeout string   `toml:"request_timeout"` // e.g. "60s"
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// JWTConfig contains token signing settings. Secret is usually supplied via
// DECKVAULT_JWT_SECRET rather than written to disk.
type JWTConfig struct {
	Secret     string `toml:"secret"`
	AccessTTL  string `toml:"access_ttl"`
	RefreshTTL string `toml:"refresh_ttl"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or console
}

// CatalogConfig contains MTGJSON sync settings.
type CatalogConfig struct {
	BaseURL   string `toml:"base_url"`
	DataDir   string `toml:"data_dir"`   // download directory
	SyncCron  string `toml:"sync_cron"`  // empty disables the scheduled sync
	CacheSize int    `toml:"cache_size"` // card detail LRU entries
}

// BackupConfig contains backup settings.
type BackupConfig struct {
	Dir       string   `toml:"dir"`
	Enabled   bool     `toml:"enabled"`   // scheduled backups until changed via the admin API
	Cron      string   `toml:"cron"`      // scheduled backup spec
	Retention int      `toml:"retention"` // scheduled backups kept
	S3        S3Config `toml:"s3"`
}

// S3Config configures the optional backup mirror. An empty bucket disables it.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Environment:    "development",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
			RequestTimeout: "60s",
		},
		Database: DatabaseConfig{
			Path: "data/deckvault.db",
		},
		JWT: JWTConfig{
			AccessTTL:  "15m",
			RefreshTTL: "168h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://mtgjson.com/api/v5",
			DataDir:   "data/mtgjson",
			SyncCron:  "0 4 * * *",
			CacheSize: 1024,
		},
		Backup: BackupConfig{
			Dir:       "data/backups",
			Enabled:   false,
			Cron:      "0 3 * * *",
			Retention: 7,
		},
	}
}

// Load reads the TOML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// .env is optional; system environment still applies without it
	_ = godotenv.Load()

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, key string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(dst *int, key string) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = n
		return nil
	}

	if err := integer(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	str(&c.Server.Environment, "ENV")
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	str(&c.Server.RequestTimeout, "REQUEST_TIMEOUT")
	str(&c.Database.Path, "DB_PATH")
	str(&c.JWT.Secret, "JWT_SECRET")
	str(&c.JWT.AccessTTL, "JWT_ACCESS_TTL")
	str(&c.JWT.RefreshTTL, "JWT_REFRESH_TTL")
	str(&c.Log.Level, "LOG_LEVEL")
	str(&c.Log.Format, "LOG_FORMAT")
	str(&c.Catalog.BaseURL, "CATALOG_URL")
	str(&c.Catalog.DataDir, "CATALOG_DATA_DIR")
	str(&c.Catalog.SyncCron, "SYNC_CRON")
	str(&c.Backup.Dir, "BACKUP_DIR")
	str(&c.Backup.S3.Bucket, "S3_BUCKET")
	str(&c.Backup.S3.Prefix, "S3_PREFIX")
	str(&c.Backup.S3.Region, "S3_REGION")
	str(&c.Backup.S3.Endpoint, "S3_ENDPOINT")
	str(&c.Backup.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	str(&c.Backup.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("invalid environment %q", c.Server.Environment)
	}
	if _, err := c.RequestTimeout(); err != nil {
		return fmt.Errorf("invalid request timeout %q: %w", c.Server.RequestTimeout, err)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required (set %sJWT_SECRET)", EnvPrefix)
	}
	if c.IsProduction() && len(c.JWT.Secret) < 32 {
		return errors.New("jwt secret must be at least 32 characters in production")
	}
	access, err := time.ParseDuration(c.JWT.AccessTTL)
	if err != nil || access <= 0 {
		return fmt.Errorf("invalid access ttl %q", c.JWT.AccessTTL)
	}
	refresh, err := time.ParseDuration(c.JWT.RefreshTTL)
	if err != nil || refresh <= 0 {
		return fmt.Errorf("invalid refresh ttl %q", c.JWT.RefreshTTL)
	}

	if c.Catalog.CacheSize <= 0 {
		return fmt.Errorf("catalog cache size must be positive: %d", c.Catalog.CacheSize)
	}
	if c.Catalog.SyncCron != "" {
		if _, err := cron.ParseStandard(c.Catalog.SyncCron); err != nil {
			return fmt.Errorf("invalid sync cron %q: %w", c.Catalog.SyncCron, err)
		}
	}
	if _, err := cron.ParseStandard(c.Backup.Cron); err != nil {
		return fmt.Errorf("invalid backup cron %q: %w", c.Backup.Cron, err)
	}
	if c.Backup.Retention < 1 {
		return fmt.Errorf("backup retention must be at least 1: %d", c.Backup.Retention)
	}
	return nil
}

// IsProduction reports whether internal error details should be hidden.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.RequestTimeout)
}

// TokenTTLs returns the access and refresh token lifetimes.
func (c *Config) TokenTTLs() (access, refresh time.Duration, err error) {
	if access, err = time.ParseDuration(c.JWT.AccessTTL); err != nil {
		return 0, 0, err
	}
	if refresh, err = time.ParseDuration(c.JWT.RefreshTTL); err != nil {
		return 0, 0, err
	}
	return access, refresh, nil
}
