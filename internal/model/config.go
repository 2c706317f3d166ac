package model

import (
	"fmt"
	"time"
)

// Policy selects how entries that do not fit the title pattern are handled
type Policy string

const (
	// PolicyDegrade keeps every entry; unparsed titles become chapter 0 / "N/A"
	PolicyDegrade Policy = "degrade"
	// PolicyStrict requires both title and link to parse; the link number wins
	PolicyStrict Policy = "strict"
)

// ParsePolicy converts a configuration string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyDegrade, PolicyStrict:
		return Policy(s), nil
	case "":
		return PolicyDegrade, nil
	default:
		return "", fmt.Errorf("unknown extraction policy %q (want %q or %q)", s, PolicyDegrade, PolicyStrict)
	}
}

// Config is the complete configuration of one feed build
type Config struct {
	Feed         FeedConfig         `yaml:"feed" mapstructure:"feed"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
}

// FeedConfig describes the upstream feed and the generated channel
type FeedConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	SeriesFilter string `yaml:"series_filter" mapstructure:"series_filter"` // Substring a title must contain; empty disables
	Title        string `yaml:"title" mapstructure:"title"`
	SelfLink     string `yaml:"self_link" mapstructure:"self_link"`
	Description  string `yaml:"description" mapstructure:"description"`
}

// Meta returns the channel-level metadata of the generated feed
func (f FeedConfig) Meta() FeedMeta {
	return FeedMeta{
		Title:       f.Title,
		SelfLink:    f.SelfLink,
		Description: f.Description,
	}
}

// OutputConfig controls where the generated feed is written
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExtractionConfig controls title parsing
type ExtractionConfig struct {
	Policy Policy `yaml:"policy" mapstructure:"policy"`
}

// HTTPConfig controls the upstream fetch
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	Attempts      int           `yaml:"attempts" mapstructure:"attempts"` // 1 means no retry
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig controls caching of upstream feed snapshots
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"` // Disk layer is used only when set
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitingConfig controls per-host request pacing
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// DefaultConfig returns the configuration of the original Quick Transmigration feed
func DefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:         "https://siftrss.com/f/eqw6xQQQK8q",
			Title:       "Customized Quick Transmigration Feed",
			SelfLink:    "https://cannibal-turtle.github.io/custom-rss-feed/custom_quick_transmigration_feed.xml",
			Description: "A customized RSS feed with separated title, chapter number, and arc title.",
		},
		Output: OutputConfig{
			Path: "custom_quick_transmigration_feed.xml",
		},
		Extraction: ExtractionConfig{
			Policy: PolicyDegrade,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "chapterfeed/0.1 (+https://github.com/ppiankov/chapterfeed)",
			MaxBodyBytes: 5_000_000,
			Attempts:     1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 5 * time.Minute,
			DiskTTL:   30 * time.Minute,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
	}
}

// Validate checks that the configuration can drive a build
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if _, err := ParsePolicy(string(c.Extraction.Policy)); err != nil {
		return err
	}
	if c.HTTP.Attempts < 1 {
		return fmt.Errorf("http.attempts must be at least 1, got %d", c.HTTP.Attempts)
	}
	return nil
}
