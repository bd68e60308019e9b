// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// EnvPrefix prefixes environment overrides, e.g. DICE_CRAWLER_MAX_JOBS.
const EnvPrefix = "DICE"

// Defaults for the target site.
const (
	DefaultBaseURL     = "https://www.dice.com"
	DefaultAPIEndpoint = "https://job-search-api.svc.dhigroupinc.com/v1/dice/jobs/search"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Site     SiteConfig     `mapstructure:"site"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SearchConfig holds the search filters applied to both seed pipelines.
type SearchConfig struct {
	Query           string   `mapstructure:"query"`
	Location        string   `mapstructure:"location"`
	Radius          int      `mapstructure:"radius"`
	EmploymentTypes []string `mapstructure:"employment_types"`
	PostedDate      string   `mapstructure:"posted_date"`
	WorkplaceTypes  []string `mapstructure:"workplace_types"`
	EasyApply       bool     `mapstructure:"easy_apply"`
	PageSize        int      `mapstructure:"page_size"`
}

// CrawlerConfig governs the worker pool and run limits.
type CrawlerConfig struct {
	MaxJobs               int      `mapstructure:"max_jobs"`
	MaxConcurrency        int      `mapstructure:"max_concurrency"`
	ScrapeJobDetails      bool     `mapstructure:"scrape_job_details"`
	StartURLs             []string `mapstructure:"start_urls"`
	UserAgent             string   `mapstructure:"user_agent"`
	RespectRobots         bool     `mapstructure:"respect_robots"`
	MaxRetries            int      `mapstructure:"max_retries"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	RateLimitRPS          float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int      `mapstructure:"rate_limit_burst"`
}

// SiteConfig points at the job site and its search API.
type SiteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	APIEndpoint string `mapstructure:"api_endpoint"`
	APIKey      string `mapstructure:"api_key"`
}

// ProxyConfig lists outbound proxies, rotated round robin.
type ProxyConfig struct {
	URLs []string `mapstructure:"urls"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	MaxParallel        int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds  int  `mapstructure:"nav_timeout_seconds"`
	PromotionThreshold int  `mapstructure:"promotion_threshold"`
}

// StorageConfig sets where the dataset and stats are written.
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres listing store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for per-listing notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the monitoring HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus the environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load over a caller-supplied Viper, typically one with CLI
// flags already bound.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := readConfigFile(v, path); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readConfigFile reads path when given. Otherwise it looks for
// dicecrawler.yaml in the working directory, /etc/dicecrawler and
// $HOME/.dicecrawler, and carries on with defaults when none exists.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("dicecrawler")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dicecrawler/")
	v.AddConfigPath("$HOME/.dicecrawler")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.query", "")
	v.SetDefault("search.location", "")
	v.SetDefault("search.radius", 0)
	v.SetDefault("search.employment_types", []string{})
	v.SetDefault("search.posted_date", string(crawler.PostedAny))
	v.SetDefault("search.workplace_types", []string{})
	v.SetDefault("search.easy_apply", false)
	v.SetDefault("search.page_size", 20)
	v.SetDefault("crawler.max_jobs", 100)
	v.SetDefault("crawler.max_concurrency", 5)
	v.SetDefault("crawler.scrape_job_details", true)
	v.SetDefault("crawler.start_urls", []string{})
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.request_timeout_seconds", 30)
	v.SetDefault("crawler.rate_limit_rps", 2.0)
	v.SetDefault("crawler.rate_limit_burst", 2)
	v.SetDefault("site.base_url", DefaultBaseURL)
	v.SetDefault("site.api_endpoint", DefaultAPIEndpoint)
	v.SetDefault("site.api_key", "")
	v.SetDefault("proxy.urls", []string{})
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("storage.output_dir", "./storage")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "job_listings")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", false)
}

// normalize canonicalizes enum casing and drops blank list entries.
func (c *Config) normalize() {
	c.Search.EmploymentTypes = cleanList(c.Search.EmploymentTypes, strings.ToUpper)
	c.Search.WorkplaceTypes = cleanList(c.Search.WorkplaceTypes, strings.ToLower)
	c.Search.PostedDate = strings.ToUpper(strings.TrimSpace(c.Search.PostedDate))
	if c.Search.PostedDate == "" {
		c.Search.PostedDate = string(crawler.PostedAny)
	}
	c.Crawler.StartURLs = cleanList(c.Crawler.StartURLs, nil)
	c.Proxy.URLs = cleanList(c.Proxy.URLs, nil)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Search.Radius < 0 || c.Search.Radius > 500 {
		fail("search.radius must be between 0 and 500, got %d", c.Search.Radius)
	}
	for _, t := range c.Search.EmploymentTypes {
		if !crawler.EmploymentType(t).Valid() {
			fail("search.employment_types: unknown value %q", t)
		}
	}
	for _, t := range c.Search.WorkplaceTypes {
		if !crawler.WorkplaceType(t).Valid() {
			fail("search.workplace_types: unknown value %q", t)
		}
	}
	if !crawler.PostedDate(c.Search.PostedDate).Valid() {
		fail("search.posted_date: unknown value %q", c.Search.PostedDate)
	}
	if c.Search.PageSize <= 0 || c.Search.PageSize > 100 {
		fail("search.page_size must be between 1 and 100, got %d", c.Search.PageSize)
	}

	if c.Crawler.MaxJobs < 0 {
		fail("crawler.max_jobs must be >= 0")
	}
	if c.Crawler.MaxConcurrency < 1 || c.Crawler.MaxConcurrency > 50 {
		fail("crawler.max_concurrency must be between 1 and 50, got %d", c.Crawler.MaxConcurrency)
	}
	for _, raw := range c.Crawler.StartURLs {
		if !absoluteHTTP(raw) {
			fail("crawler.start_urls: %q is not an absolute http(s) URL", raw)
		}
	}
	if c.Crawler.MaxRetries < 0 {
		fail("crawler.max_retries must be >= 0")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		fail("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.RateLimitRPS < 0 {
		fail("crawler.rate_limit_rps must be >= 0")
	}

	if !absoluteHTTP(c.Site.BaseURL) {
		fail("site.base_url must be an absolute http(s) URL")
	}
	if !absoluteHTTP(c.Site.APIEndpoint) {
		fail("site.api_endpoint must be an absolute http(s) URL")
	}
	for _, raw := range c.Proxy.URLs {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			fail("proxy.urls: %q is not a valid proxy URL", raw)
		}
	}

	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		fail("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Storage.GCSBucket != "" && c.Storage.Prefix == "" {
		fail("storage.prefix must be set when storage.gcs_bucket is set")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		fail("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		fail("server.port must be between 0 and 65535")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// SearchParams returns the page-1 search filters.
func (c Config) SearchParams() crawler.SearchParams {
	p := crawler.SearchParams{
		Query:      strings.TrimSpace(c.Search.Query),
		Location:   strings.TrimSpace(c.Search.Location),
		Radius:     c.Search.Radius,
		PostedDate: crawler.PostedDate(c.Search.PostedDate),
		EasyApply:  c.Search.EasyApply,
		Page:       1,
		PageSize:   c.Search.PageSize,
	}
	for _, t := range c.Search.EmploymentTypes {
		p.EmploymentTypes = append(p.EmploymentTypes, crawler.EmploymentType(t))
	}
	for _, t := range c.Search.WorkplaceTypes {
		p.WorkplaceTypes = append(p.WorkplaceTypes, crawler.WorkplaceType(t))
	}
	return p
}

// RequestTimeout converts the per-request timeout to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSeconds) * time.Second
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func cleanList(in []string, canon func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if canon != nil {
			s = canon(s)
		}
		out = append(out, s)
	}
	return out
}
