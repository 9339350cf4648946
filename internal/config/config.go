// Package config provides configuration management for the crawler.
// It defines configuration structures and default values for crawling parameters.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/masahif/sitegraph/internal/site"
)

// AppName is used for the config file name and the XDG config directory.
const AppName = "sitegraph"

// DefaultSeedURL is crawled when no URL is given on the command line.
const DefaultSeedURL = "rust-lang.org"

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Basic crawling parameters
	SeedURL          string        `mapstructure:"seed_url" yaml:"seed_url"`                   // Starting URL or host
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`             // Number of concurrent workers
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`     // HTTP request timeout
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`         // Idle worker re-claim interval
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"` // Progress log interval (0=off)
	UserAgent        string        `mapstructure:"user_agent" yaml:"user_agent"`               // HTTP User-Agent header
	Scheme           string        `mapstructure:"scheme" yaml:"scheme"`                       // Scheme used to fetch sites
	Extractor        string        `mapstructure:"extractor" yaml:"extractor"`                 // Link extractor: html, goquery, regex
	MaxBodySize      int64         `mapstructure:"max_body_size" yaml:"max_body_size"`         // Largest accepted page body in bytes

	// Crawl-wide request cap in requests per second (0=unlimited)
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second" yaml:"max_requests_per_second"`

	// Outputs
	OutputPath   string `mapstructure:"output_path" yaml:"output_path"`     // DOT file (default <seed-site>-graph.dot)
	ReportPath   string `mapstructure:"report_path" yaml:"report_path"`     // Markdown report (empty=off)
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // SQLite graph dump (empty=off)
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		SeedURL:          DefaultSeedURL,
		Concurrency:      10,
		RequestTimeout:   5 * time.Second,
		PollInterval:     100 * time.Millisecond,
		ProgressInterval: 10 * time.Second,
		UserAgent:        "sitegraph/1.0",
		Scheme:           "https",
		Extractor:        "html",
		MaxBodySize:      10 << 20,
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if strings.TrimSpace(c.SeedURL) == "" || c.SeedSite() == "" {
		return ErrNoSeedURL
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.ProgressInterval < 0 {
		c.ProgressInterval = 0
	}

	switch c.Scheme {
	case "http", "https":
	default:
		return ErrInvalidScheme
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if c.MaxRequestsPerSecond < 0 {
		return ErrInvalidRequestRate
	}

	return nil
}

// SeedSite returns the normalized seed
func (c *CrawlConfig) SeedSite() site.Site {
	return site.Normalize(strings.TrimSpace(c.SeedURL))
}

// GraphPath returns the DOT output path, derived from the seed site when
// OutputPath is not set.
func (c *CrawlConfig) GraphPath() string {
	if c.OutputPath != "" {
		return c.OutputPath
	}
	name := strings.NewReplacer(":", "_", "/", "_").Replace(c.SeedSite().String())
	return name + "-graph.dot"
}

// ConfigDir returns the XDG config directory searched for sitegraph.yml.
// On Linux: ~/.config/sitegraph
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
