package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped onto config keys.
// PLUGINDIR_CACHE__REDIS_ADDR -> cache.redis_addr
const EnvPrefix = "PLUGINDIR_"

// DefaultSessionSecret is only acceptable in debug mode.
const DefaultSessionSecret = "secret_key_change_me"

// Config is the process-wide configuration, built once in main and handed to each component.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Cache      CacheConfig      `koanf:"cache"`
	Cookies    CookieConfig     `koanf:"cookies"`
	Engagement EngagementConfig `koanf:"engagement"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	Mode          string `koanf:"mode"` // debug | release
	SessionSecret string `koanf:"session_secret"`
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type CacheConfig struct {
	Driver        string        `koanf:"driver"` // redis | memory
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	Timeout       time.Duration `koanf:"timeout"`
	MemorySize    int           `koanf:"memory_size"`
	RetryAttempts int           `koanf:"retry_attempts"`
}

type CookieConfig struct {
	Secure      bool          `koanf:"secure"`
	Domain      string        `koanf:"domain"`
	ViewTTL     time.Duration `koanf:"view_ttl"`
	VoteTTL     time.Duration `koanf:"vote_ttl"`
	CommentTTL  time.Duration `koanf:"comment_ttl"`
	SessionName string        `koanf:"session_name"`
}

// EngagementConfig holds the abuse-resistance knobs. Defaults match the production values.
type EngagementConfig struct {
	ViewWindow          time.Duration `koanf:"view_window"`
	VoteLimit           int           `koanf:"vote_limit"`
	VoteWindow          time.Duration `koanf:"vote_window"`
	VoteTTL             time.Duration `koanf:"vote_ttl"`
	CommentCooldown     time.Duration `koanf:"comment_cooldown"`
	DuplicateWindow     time.Duration `koanf:"duplicate_window"`
	DuplicateThreshold  float64       `koanf:"duplicate_threshold"`
	CommentQuota        int           `koanf:"comment_quota"`
	CommentQuotaWindow  time.Duration `koanf:"comment_quota_window"`
	CommentListLimit    int           `koanf:"comment_list_limit"`
	VoteCookieMaxRecord int           `koanf:"vote_cookie_max_records"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":           8080,
		"server.host":           "0.0.0.0",
		"server.mode":           "release",
		"server.session_secret": DefaultSessionSecret,

		"database.dsn":            "host=localhost user=postgres password=postgres dbname=plugindir port=5432 sslmode=disable",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 10,
		"database.auto_migrate":   true,

		"cache.driver":         "redis",
		"cache.redis_addr":     "localhost:6379",
		"cache.redis_password": "",
		"cache.redis_db":       0,
		"cache.timeout":        "500ms",
		"cache.memory_size":    10000,
		"cache.retry_attempts": 2,

		"cookies.secure":       false,
		"cookies.domain":       "",
		"cookies.view_ttl":     "720h",
		"cookies.vote_ttl":     "8760h",
		"cookies.comment_ttl":  "8760h",
		"cookies.session_name": "plugindir_session",

		"engagement.view_window":             "24h",
		"engagement.vote_limit":              10,
		"engagement.vote_window":             "300s",
		"engagement.vote_ttl":                "8760h",
		"engagement.comment_cooldown":        "30s",
		"engagement.duplicate_window":        "24h",
		"engagement.duplicate_threshold":     0.8,
		"engagement.comment_quota":           20,
		"engagement.comment_quota_window":    "1h",
		"engagement.comment_list_limit":      200,
		"engagement.vote_cookie_max_records": 100,

		"log.level": "info",
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if strings.TrimSpace(c.Server.SessionSecret) == "" {
		return fmt.Errorf("server.session_secret is required")
	}
	if c.Server.Mode == "release" && c.Server.SessionSecret == DefaultSessionSecret {
		return fmt.Errorf("server.session_secret must be changed from the default in release mode")
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must be >= 0")
	}

	switch c.Cache.Driver {
	case "redis":
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis driver")
		}
	case "memory":
		if c.Cache.MemorySize <= 0 {
			return fmt.Errorf("cache.memory_size must be > 0")
		}
	default:
		return fmt.Errorf("unsupported cache.driver %q (must be redis or memory)", c.Cache.Driver)
	}
	if c.Cache.RetryAttempts < 0 {
		return fmt.Errorf("cache.retry_attempts must be >= 0")
	}

	e := c.Engagement
	if e.VoteLimit <= 0 {
		return fmt.Errorf("engagement.vote_limit must be > 0")
	}
	for name, d := range map[string]time.Duration{
		"engagement.view_window":          e.ViewWindow,
		"engagement.vote_window":          e.VoteWindow,
		"engagement.vote_ttl":             e.VoteTTL,
		"engagement.comment_cooldown":     e.CommentCooldown,
		"engagement.duplicate_window":     e.DuplicateWindow,
		"engagement.comment_quota_window": e.CommentQuotaWindow,
		"cookies.view_ttl":                c.Cookies.ViewTTL,
		"cookies.vote_ttl":                c.Cookies.VoteTTL,
		"cookies.comment_ttl":             c.Cookies.CommentTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if e.DuplicateThreshold <= 0 || e.DuplicateThreshold > 1 {
		return fmt.Errorf("engagement.duplicate_threshold must be in (0, 1]")
	}
	if e.CommentQuota <= 0 {
		return fmt.Errorf("engagement.comment_quota must be > 0")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}

	return nil
}

// Load parses config from defaults, an optional YAML file and PLUGINDIR_ env vars, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
