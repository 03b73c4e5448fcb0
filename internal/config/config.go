// Package config loads the TOML configuration file described in spec.md §6
// into a typed, read-only Config. Secrets may be overridden by environment
// variables so operators are not forced to commit tokens to the TOML file —
// the same defaults-then-override layering the teacher's env-var loader
// uses, just with TOML as the primary source instead of the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Database holds the relational store's connection settings.
type Database struct {
	Path string `toml:"path"`
}

// Tokens holds every credential the core needs, loaded from TOML but each
// overridable by an env var of the same name uppercased (e.g. platform_token
// -> ASSYST_PLATFORM_TOKEN) so operators can keep secrets out of the file on
// disk if they prefer.
type Tokens struct {
	Platform    string `toml:"platform_token"`
	Translation string `toml:"translation_token"`
	TopGGSecret string `toml:"topgg_webhook_secret"`
	DBLSecret   string `toml:"dbl_webhook_secret"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
}

// URLs holds every external service endpoint the core dials.
type URLs struct {
	WorkerSocket    string `toml:"worker_socket"`
	CacheSocket     string `toml:"cache_socket"`
	ContentProxy    string `toml:"content_proxy"`
	TranslationBase string `toml:"translation_base"`
	CDNEndpoint     string `toml:"cdn_endpoint"`
	LandingPage     string `toml:"landing_page"`
}

// Prefix holds the default and optional global-override command prefix
// (spec.md §4.D prefix resolution steps 1 and 3's default).
type Prefix struct {
	Default  string `toml:"default"`
	Override string `toml:"override"`
}

// Lists holds the admin and blacklist id sets.
type Lists struct {
	AdminIDs     []string `toml:"admin_ids"`
	BlacklistIDs []string `toml:"blacklist_ids"`
}

// Disable holds the global feature kill-switches named in spec.md §6.
type Disable struct {
	BadTranslator bool `toml:"bad_translator"`
	ReminderCheck bool `toml:"reminder_check"`
}

// Logging holds the category webhook URLs and fatal-notify role consumed by
// the logger façade (spec.md §4.M).
type Logging struct {
	FatalWebhook    string `toml:"fatal_webhook"`
	InfoWebhook     string `toml:"info_webhook"`
	GuildAddWebhook string `toml:"guild_add_webhook"`
	VoteWebhook     string `toml:"vote_webhook"`
	NotifyRoleID    string `toml:"notify_role_id"`
}

// CDN holds the S3-compatible object storage configuration for converted
// sticker uploads (spec.md §4.D media source 6).
type CDN struct {
	Endpoint string `toml:"endpoint"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
}

// Webserver holds the inbound-webhook HTTP surface's own port.
type Webserver struct {
	Port string `toml:"port"`
}

// Config is the fully parsed, read-only configuration (spec.md §5:
// "Configuration: read-only after construction").
type Config struct {
	Database  Database  `toml:"database"`
	Tokens    Tokens    `toml:"tokens"`
	URLs      URLs      `toml:"urls"`
	Prefix    Prefix    `toml:"prefix"`
	Lists     Lists     `toml:"lists"`
	Disable   Disable   `toml:"disable"`
	Logging   Logging   `toml:"logging"`
	CDN       CDN       `toml:"cdn"`
	Webserver Webserver `toml:"webserver"`
	BotUserID string    `toml:"bot_user_id"`

	// HealthcheckInterval and ReminderScanInterval are ambient scheduling
	// knobs not named by spec.md's TOML schema. They are not read from the
	// TOML file; Load always sets them to 5m and 30s respectively.
	HealthcheckInterval  time.Duration `toml:"-"`
	ReminderScanInterval time.Duration `toml:"-"`
}

// Load parses path as TOML, applies env-var overrides for Tokens, and
// validates required fields.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.Tokens.Platform = overrideFromEnv("ASSYST_PLATFORM_TOKEN", cfg.Tokens.Platform)
	cfg.Tokens.Translation = overrideFromEnv("ASSYST_TRANSLATION_TOKEN", cfg.Tokens.Translation)
	cfg.Tokens.TopGGSecret = overrideFromEnv("ASSYST_TOPGG_WEBHOOK_SECRET", cfg.Tokens.TopGGSecret)
	cfg.Tokens.DBLSecret = overrideFromEnv("ASSYST_DBL_WEBHOOK_SECRET", cfg.Tokens.DBLSecret)
	cfg.Tokens.S3AccessKey = overrideFromEnv("ASSYST_S3_ACCESS_KEY", cfg.Tokens.S3AccessKey)
	cfg.Tokens.S3SecretKey = overrideFromEnv("ASSYST_S3_SECRET_KEY", cfg.Tokens.S3SecretKey)

	if cfg.Webserver.Port == "" {
		cfg.Webserver.Port = "8080"
	}
	if cfg.URLs.LandingPage == "" {
		cfg.URLs.LandingPage = "https://assyst.example"
	}

	cfg.HealthcheckInterval = 5 * time.Minute
	cfg.ReminderScanInterval = 30 * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that every field an operator must set is non-empty.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Tokens.Platform == "" {
		return fmt.Errorf("tokens.platform_token cannot be empty")
	}
	if c.URLs.WorkerSocket == "" {
		return fmt.Errorf("urls.worker_socket cannot be empty")
	}
	if c.URLs.CacheSocket == "" {
		return fmt.Errorf("urls.cache_socket cannot be empty")
	}
	if c.Prefix.Default == "" {
		return fmt.Errorf("prefix.default cannot be empty")
	}
	if c.BotUserID == "" {
		return fmt.Errorf("bot_user_id cannot be empty")
	}
	return nil
}

// IsAdmin reports whether userID is present in the admin list.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.Lists.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsBlacklisted reports whether userID is present in the blacklist.
func (c *Config) IsBlacklisted(userID string) bool {
	for _, id := range c.Lists.BlacklistIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func overrideFromEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
