// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Storage StorageConfig `mapstructure:"storage"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Sources SourcesConfig `mapstructure:"sources"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP status server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlConfig bounds an orchestrated run.
type CrawlConfig struct {
	Concurrency          int            `mapstructure:"concurrency"`
	SourceTimeoutSeconds int            `mapstructure:"source_timeout_seconds"`
	SourceTimeouts       map[string]int `mapstructure:"source_timeouts"`
	RunBudgetMinutes     int            `mapstructure:"run_budget_minutes"`
	// Schedule is a cron expression used by serve mode. Empty disables
	// scheduled runs.
	Schedule string `mapstructure:"schedule"`
}

// FetchConfig configures the resilient HTTP client.
type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	RetryDelayMs   int `mapstructure:"retry_delay_ms"`
	MaxDelayMs     int `mapstructure:"max_delay_ms"`
}

// BreakerConfig tunes the per-domain circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	SuccessThreshold int `mapstructure:"success_threshold"`
	CooldownSeconds  int `mapstructure:"cooldown_seconds"`
}

// ProxyConfig describes the rotating proxy pool. Pool is a comma-separated
// list of proxy URLs; empty disables proxying.
type ProxyConfig struct {
	Pool             string `mapstructure:"pool"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
	CooldownSeconds  int    `mapstructure:"cooldown_seconds"`
}

// StorageConfig selects and configures the job store.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// ArchiveConfig controls raw payload archiving.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// NotifyConfig selects the run summary channel. Webhook wins when both are
// set.
type NotifyConfig struct {
	WebhookURL            string `mapstructure:"webhook_url"`
	WebhookTimeoutSeconds int    `mapstructure:"webhook_timeout_seconds"`
	PubSubProjectID       string `mapstructure:"pubsub_project_id"`
	PubSubTopic           string `mapstructure:"pubsub_topic"`
}

// SourcesConfig is the adapter roster.
type SourcesConfig struct {
	Greenhouse GreenhouseSourceConfig   `mapstructure:"greenhouse"`
	Lever      LeverSourceConfig        `mapstructure:"lever"`
	RSS        RSSSourceConfig          `mapstructure:"rss"`
	Aggregator []AggregatorSourceConfig `mapstructure:"aggregators"`
	// Priorities overrides the built-in dedup tie-break table.
	Priorities map[string]int `mapstructure:"priorities"`
}

// BoardConfig names one vendor-hosted board and the company behind it.
type BoardConfig struct {
	Token   string `mapstructure:"token"`
	Company string `mapstructure:"company"`
}

// GreenhouseSourceConfig configures the Greenhouse adapter.
type GreenhouseSourceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Boards         []BoardConfig `mapstructure:"boards"`
	FetchDetails   bool          `mapstructure:"fetch_details"`
	RequestDelayMs int           `mapstructure:"request_delay_ms"`
}

// LeverSourceConfig configures the Lever adapter.
type LeverSourceConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Orgs    []BoardConfig `mapstructure:"orgs"`
}

// RSSSourceConfig configures the RSS adapter.
type RSSSourceConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Feeds   []string `mapstructure:"feeds"`
}

// AggregatorSourceConfig configures one scraped aggregator site.
type AggregatorSourceConfig struct {
	Name           string `mapstructure:"name"`
	BaseURL        string `mapstructure:"base_url"`
	PageParam      string `mapstructure:"page_param"`
	MaxPages       int    `mapstructure:"max_pages"`
	RequestDelayMs int    `mapstructure:"request_delay_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBS_CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.concurrency", 3)
	v.SetDefault("crawl.source_timeout_seconds", 300)
	v.SetDefault("crawl.run_budget_minutes", 30)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay_ms", 500)
	v.SetDefault("fetch.max_delay_ms", 8000)
	v.SetDefault("breaker.failure_threshold", 4)
	v.SetDefault("breaker.success_threshold", 1)
	v.SetDefault("breaker.cooldown_seconds", 45)
	v.SetDefault("proxy.failure_threshold", 3)
	v.SetDefault("proxy.cooldown_seconds", 120)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.max_open_conns", 8)
	v.SetDefault("notify.webhook_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set when storage.driver is postgres")
		}
	default:
		return fmt.Errorf("storage.driver must be memory or postgres, got %q", c.Storage.Driver)
	}
	if c.Archive.Enabled && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archiving is enabled")
	}
	if c.Notify.PubSubProjectID != "" && c.Notify.PubSubTopic == "" {
		return fmt.Errorf("notify.pubsub_topic must be set with notify.pubsub_project_id")
	}
	for _, agg := range c.Sources.Aggregator {
		if agg.Name == "" || agg.BaseURL == "" {
			return fmt.Errorf("every aggregator source needs a name and base_url")
		}
	}
	for source, p := range c.Sources.Priorities {
		if p < 0 {
			return fmt.Errorf("sources.priorities[%s] must be >= 0", source)
		}
	}
	return nil
}

// SourceTimeout converts the crawl timeout config into a duration.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Crawl.SourceTimeoutSeconds) * time.Second
}

// SourceTimeoutOverrides converts the per-source override map.
func (c Config) SourceTimeoutOverrides() map[string]time.Duration {
	if len(c.Crawl.SourceTimeouts) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(c.Crawl.SourceTimeouts))
	for name, secs := range c.Crawl.SourceTimeouts {
		out[name] = time.Duration(secs) * time.Second
	}
	return out
}

// RunBudget converts the run budget config into a duration.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Crawl.RunBudgetMinutes) * time.Minute
}
