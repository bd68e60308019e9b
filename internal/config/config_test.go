package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 100, cfg.Crawler.MaxJobs)
	require.Equal(t, 5, cfg.Crawler.MaxConcurrency)
	require.True(t, cfg.Crawler.ScrapeJobDetails)
	require.Equal(t, DefaultBaseURL, cfg.Site.BaseURL)
	require.Equal(t, DefaultAPIEndpoint, cfg.Site.APIEndpoint)
	require.Equal(t, "ANY", cfg.Search.PostedDate)
	require.Equal(t, 20, cfg.Search.PageSize)
	require.Zero(t, cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout())
	require.Equal(t, 45*time.Second, cfg.NavTimeout())
	require.Empty(t, cfg.Crawler.StartURLs)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
search:
  query: golang developer
  location: Austin, TX
  radius: 25
  employment_types: [fulltime, CONTRACTS]
  posted_date: seven
  workplace_types: [Remote, hybrid]
  easy_apply: true
  page_size: 50
crawler:
  max_jobs: 10
  max_concurrency: 8
  scrape_job_details: false
  start_urls:
    - https://www.dice.com/job-detail/abc
  max_retries: 1
  request_timeout_seconds: 12
site:
  api_key: secret
proxy:
  urls: ["http://proxy-1:8080", " "]
headless:
  enabled: true
  max_parallel: 2
storage:
  gcs_bucket: bucket
  prefix: dice
db:
  dsn: postgres://localhost/dice
  max_conns: 8
pubsub:
  project_id: proj
  topic_name: listings
server:
  port: 9090
logging:
  development: true
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"FULLTIME", "CONTRACTS"}, cfg.Search.EmploymentTypes)
	require.Equal(t, []string{"remote", "hybrid"}, cfg.Search.WorkplaceTypes)
	require.Equal(t, "SEVEN", cfg.Search.PostedDate)
	require.Equal(t, 10, cfg.Crawler.MaxJobs)
	require.False(t, cfg.Crawler.ScrapeJobDetails)
	require.Equal(t, []string{"https://www.dice.com/job-detail/abc"}, cfg.Crawler.StartURLs)
	require.Equal(t, []string{"http://proxy-1:8080"}, cfg.Proxy.URLs)
	require.Equal(t, "secret", cfg.Site.APIKey)
	require.Equal(t, int32(8), cfg.DB.MaxConns)
	require.Equal(t, "job_listings", cfg.DB.Table)
	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, 12*time.Second, cfg.RequestTimeout())

	params := cfg.SearchParams()
	require.Equal(t, crawler.SearchParams{
		Query:           "golang developer",
		Location:        "Austin, TX",
		Radius:          25,
		EmploymentTypes: []crawler.EmploymentType{crawler.EmploymentFullTime, crawler.EmploymentContracts},
		PostedDate:      crawler.PostedSeven,
		WorkplaceTypes:  []crawler.WorkplaceType{crawler.WorkplaceRemote, crawler.WorkplaceHybrid},
		EasyApply:       true,
		Page:            1,
		PageSize:        50,
	}, params)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DICE_CRAWLER_MAX_JOBS", "7")
	t.Setenv("DICE_SEARCH_QUERY", "rust")
	t.Setenv("DICE_CRAWLER_START_URLS", "https://www.dice.com/jobs?q=a,https://www.dice.com/jobs?q=b")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Crawler.MaxJobs)
	require.Equal(t, "rust", cfg.Search.Query)
	require.Len(t, cfg.Crawler.StartURLs, 2)
}

func TestLoadWithBoundViper(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("crawler.max_jobs", 3)
	v.Set("search.location", "Remote")

	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Crawler.MaxJobs)
	require.Equal(t, "Remote", cfg.Search.Location)
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"radius too large", func(c *Config) { c.Search.Radius = 501 }, "search.radius"},
		{"negative radius", func(c *Config) { c.Search.Radius = -1 }, "search.radius"},
		{"zero concurrency", func(c *Config) { c.Crawler.MaxConcurrency = 0 }, "crawler.max_concurrency"},
		{"concurrency above 50", func(c *Config) { c.Crawler.MaxConcurrency = 51 }, "crawler.max_concurrency"},
		{"unknown employment type", func(c *Config) { c.Search.EmploymentTypes = []string{"INTERN"} }, "search.employment_types"},
		{"unknown workplace type", func(c *Config) { c.Search.WorkplaceTypes = []string{"moon"} }, "search.workplace_types"},
		{"unknown posted date", func(c *Config) { c.Search.PostedDate = "YESTERDAY" }, "search.posted_date"},
		{"relative start url", func(c *Config) { c.Crawler.StartURLs = []string{"/jobs?q=go"} }, "crawler.start_urls"},
		{"ftp start url", func(c *Config) { c.Crawler.StartURLs = []string{"ftp://dice.com/x"} }, "crawler.start_urls"},
		{"negative max jobs", func(c *Config) { c.Crawler.MaxJobs = -1 }, "crawler.max_jobs"},
		{"zero timeout", func(c *Config) { c.Crawler.RequestTimeoutSeconds = 0 }, "crawler.request_timeout_seconds"},
		{"headless without parallelism", func(c *Config) {
			c.Headless.Enabled = true
			c.Headless.MaxParallel = 0
		}, "headless.max_parallel"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "t" }, "pubsub.project_id"},
		{"bad proxy", func(c *Config) { c.Proxy.URLs = []string{"not a url"} }, "proxy.urls"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConfigValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Search.Radius = 900
	cfg.Crawler.MaxConcurrency = 0
	err := cfg.Validate()
	require.ErrorContains(t, err, "search.radius")
	require.ErrorContains(t, err, "crawler.max_concurrency")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawler:\n  max_concurrency: 100\n"), 0o600))
	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)
}
