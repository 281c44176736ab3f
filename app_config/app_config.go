package app_config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	envPrefix = "PEEK4C"

	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig customizes binary startup. Values come from, in increasing
// priority: defaults below, an optional yaml file, and PEEK4C_* env vars (for
// example PEEK4C_DB_DSN overrides db.dsn).
type AppConfig struct {
	DB      DBConfig      `mapstructure:"db"`
	API     APIConfig     `mapstructure:"api"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Media   MediaConfig   `mapstructure:"media"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type DBConfig struct {
	// Either "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// File path for sqlite, connection string for postgres.
	DSN string `mapstructure:"dsn"`
}

type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	MediaBaseURL string        `mapstructure:"media_base_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
	ThreadTTL  time.Duration `mapstructure:"thread_ttl"`
	BoardsTTL  time.Duration `mapstructure:"boards_ttl"`
}

type MediaConfig struct {
	// Directory downloaded media is written to.
	Dir string `mapstructure:"dir"`
	// Normal priority image downloads allowed at once when no high priority
	// download is running.
	MaxConcurrentImages int `mapstructure:"max_concurrent_images"`
	// Entries kept in the in-memory url -> local path memo.
	MemoSize int `mapstructure:"memo_size"`
}

type FeedConfig struct {
	PageSize int `mapstructure:"page_size"`
	// A followed thread is refreshed once its last fetch is older than this.
	FollowStaleAfter time.Duration `mapstructure:"follow_stale_after"`
	// Minimum gap between the end of one thread fetch and the start of the next.
	ThreadFetchInterval time.Duration `mapstructure:"thread_fetch_interval"`
	// Cron spec of the periodic followed-thread refresh, empty disables it.
	RefreshCron string `mapstructure:"refresh_cron"`
}

type ServerConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	RequireConsent bool   `mapstructure:"require_consent"`
}

type MetricsConfig struct {
	// Empty address disables statsd reporting.
	StatsdAddr string `mapstructure:"statsd_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", DriverSqlite)
	v.SetDefault("db.dsn", "peek4c.db")

	v.SetDefault("api.base_url", "https://a.4cdn.org")
	v.SetDefault("api.media_base_url", "https://i.4cdn.org")
	v.SetDefault("api.user_agent", "peek4c/1.0")
	v.SetDefault("api.timeout", 15*time.Second)

	v.SetDefault("cache.catalog_ttl", 300*time.Second)
	v.SetDefault("cache.thread_ttl", 300*time.Second)
	v.SetDefault("cache.boards_ttl", 24*time.Hour)

	v.SetDefault("media.dir", "media_cache")
	v.SetDefault("media.max_concurrent_images", 4)
	v.SetDefault("media.memo_size", 1024)

	v.SetDefault("feed.page_size", 20)
	v.SetDefault("feed.follow_stale_after", time.Hour)
	v.SetDefault("feed.thread_fetch_interval", time.Second)
	v.SetDefault("feed.refresh_cron", "@every 15m")

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.require_consent", true)

	v.SetDefault("metrics.statsd_addr", "")
}

// Load builds the AppConfig. An empty path skips the config file; a missing
// file at a given path is an error.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	c := &AppConfig{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AppConfig) Validate() error {
	if c.DB.Driver != DriverSqlite && c.DB.Driver != DriverPostgres {
		return errors.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Media.MaxConcurrentImages < 1 {
		return errors.New("media.max_concurrent_images must be at least 1")
	}
	if c.Feed.PageSize < 1 {
		return errors.New("feed.page_size must be at least 1")
	}
	return nil
}
