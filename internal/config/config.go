// Package config loads and validates scanner configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dsmetrics/tplscan/internal/analysis"
	"github.com/dsmetrics/tplscan/internal/scan"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Auth      AuthConfig          `mapstructure:"auth"`
	Scan      ScanConfig          `mapstructure:"scan"`
	Headless  HeadlessConfig      `mapstructure:"headless"`
	Discovery DiscoveryConfig     `mapstructure:"discovery"`
	Storage   StorageConfig       `mapstructure:"storage"`
	DB        DBConfig            `mapstructure:"db"`
	PubSub    PubSubConfig        `mapstructure:"pubsub"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Pages     []scan.PageConfig   `mapstructure:"pages"`
	Viewports []scan.ViewportSpec `mapstructure:"viewports"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScanConfig governs the analysis engine inputs and visit pacing.
type ScanConfig struct {
	Marker          string          `mapstructure:"marker"`
	ExcludePrefixes []string        `mapstructure:"exclude_prefixes"`
	TopComponents   int             `mapstructure:"top_components"`
	DelaySeconds    int             `mapstructure:"delay_seconds"`
	IntervalMinutes int             `mapstructure:"interval_minutes"`
	Thresholds      scan.Thresholds `mapstructure:"thresholds"`
	UserAgent       string          `mapstructure:"user_agent"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	SettleMs      int     `mapstructure:"settle_ms"`
	HostQPS       float64 `mapstructure:"host_qps"`
}

// DiscoveryConfig controls colly-based page discovery per section.
type DiscoveryConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	MaxPages       int      `mapstructure:"max_pages"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// StorageConfig sets destinations for run and detail persistence.
type StorageConfig struct {
	LocalRoot string `mapstructure:"local_root"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	SummaryTable string `mapstructure:"summary_table"`
	PageTable    string `mapstructure:"page_table"`
	MaxConns     int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TPLSCAN")
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

	if len(cfg.Viewports) == 0 {
		cfg.Viewports = DefaultViewports()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scan.marker", analysis.DefaultMarker)
	v.SetDefault("scan.exclude_prefixes", analysis.DefaultExcludePrefixes)
	v.SetDefault("scan.top_components", analysis.DefaultTopComponents)
	v.SetDefault("scan.delay_seconds", 2)
	v.SetDefault("scan.interval_minutes", 0)
	v.SetDefault("scan.thresholds.high", 60)
	v.SetDefault("scan.thresholds.medium", 30)
	v.SetDefault("scan.user_agent", "tplscan-bot/0.1")
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_ms", 500)
	v.SetDefault("headless.host_qps", 0.5)
	v.SetDefault("discovery.enabled", false)
	v.SetDefault("discovery.max_pages", 10)
	v.SetDefault("discovery.timeout_seconds", 15)
	v.SetDefault("storage.local_root", "reports")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("db.summary_table", "daily_summaries")
	v.SetDefault("db.page_table", "page_summaries")
	v.SetDefault("logging.development", true)
}

// DefaultViewports returns the standard mobile/tablet/desktop breakpoints
// used when none are configured.
func DefaultViewports() []scan.ViewportSpec {
	return []scan.ViewportSpec{
		{Name: "mobile", Width: 375, Height: 667, DeviceType: "mobile", Priority: 1},
		{Name: "tablet", Width: 768, Height: 1024, DeviceType: "tablet", Priority: 2},
		{Name: "desktop", Width: 1440, Height: 900, DeviceType: "desktop", Priority: 3},
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	if c.Scan.Thresholds.High < c.Scan.Thresholds.Medium {
		return fmt.Errorf("scan.thresholds.high must be >= scan.thresholds.medium")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	for i, page := range c.Pages {
		if page.Name == "" || page.URL == "" {
			return fmt.Errorf("pages[%d] requires name and url", i)
		}
	}
	for i, vp := range c.Viewports {
		if vp.Name == "" || vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("viewports[%d] requires name and positive dimensions", i)
		}
	}
	return nil
}

// Delay converts the configured politeness delay into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scan.DelaySeconds) * time.Second
}

// ScanInterval returns the pause between scheduled runs; zero disables the
// internal schedule.
func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.Scan.IntervalMinutes) * time.Minute
}
