// Package config holds the run configuration for an export.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// FB2DSQ_* environment variables (optionally seeded from a dotenv file), and
// finally command-line flags applied by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fb2disqus/pkg/logging"
)

const (
	DefaultOutput        = "facebook_comments.xml"
	DefaultEndpoint      = "https://graph.facebook.com/comments/"
	DefaultCommentStatus = "open"
	DefaultApproved      = 1
	DefaultTimeout       = 30 * time.Second
	DefaultWorkers       = 1
	DefaultBatchSize     = 1

	// MaxBatchSize mirrors the Graph API limit on ids per request.
	MaxBatchSize = 50
)

// Configuration validation errors.
var (
	ErrMissingOutput        = errors.New("output path is required")
	ErrInvalidWorkers       = errors.New("workers must be at least 1")
	ErrInvalidBatchSize     = fmt.Errorf("comments.batch_size must be between 1 and %d", MaxBatchSize)
	ErrInvalidTimeout       = errors.New("http.timeout must be positive")
	ErrInvalidRetries       = errors.New("http.retries must be non-negative")
	ErrInvalidClientType    = errors.New("http.client_type must be one of: default, browser, cloudflare")
	ErrMissingEndpoint      = errors.New("comments.endpoint is required")
	ErrInvalidEndpoint      = errors.New("comments.endpoint must be an http(s) URL")
	ErrInvalidCommentStatus = errors.New("export.comment_status must be 'open' or 'closed'")
	ErrInvalidApproved      = errors.New("export.approved must be 0 or 1")
	ErrInvalidLogLevel      = errors.New("log_level must be one of: debug, info, warn, error")
)

// Config is the complete configuration of one export run.
type Config struct {
	Output   string         `yaml:"output" env:"FB2DSQ_OUTPUT"`
	Verbose  bool           `yaml:"verbose" env:"FB2DSQ_VERBOSE"`
	LogLevel string         `yaml:"log_level" env:"FB2DSQ_LOG_LEVEL"`
	Workers  int            `yaml:"workers" env:"FB2DSQ_WORKERS"`
	FailFast bool           `yaml:"fail_fast" env:"FB2DSQ_FAIL_FAST"`
	HTTP     HTTPConfig     `yaml:"http"`
	Comments CommentsConfig `yaml:"comments"`
	Page     PageConfig     `yaml:"page"`
	Export   ExportConfig   `yaml:"export"`
	Filter   FilterConfig   `yaml:"filter"`
}

// HTTPConfig controls the shared HTTP client.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" env:"FB2DSQ_HTTP_TIMEOUT"`
	Retries    int           `yaml:"retries" env:"FB2DSQ_HTTP_RETRIES"`
	ClientType string        `yaml:"client_type" env:"FB2DSQ_HTTP_CLIENT_TYPE"`
}

// CommentsConfig describes the comments feed.
type CommentsConfig struct {
	Endpoint    string `yaml:"endpoint" env:"FB2DSQ_COMMENTS_ENDPOINT"`
	AccessToken string `yaml:"access_token" env:"FB2DSQ_ACCESS_TOKEN"`
	BatchSize   int    `yaml:"batch_size" env:"FB2DSQ_COMMENTS_BATCH_SIZE"`
}

// PageConfig holds the selectors used when enriching pages. Empty means unset.
type PageConfig struct {
	ContentSelector string `yaml:"content_selector" env:"FB2DSQ_CONTENT_SELECTOR"`
	DateSelector    string `yaml:"date_selector" env:"FB2DSQ_DATE_SELECTOR"`
}

// ExportConfig holds the fixed values written into every item.
type ExportConfig struct {
	CommentStatus string `yaml:"comment_status" env:"FB2DSQ_COMMENT_STATUS"`
	Approved      int    `yaml:"approved" env:"FB2DSQ_APPROVED"`
}

// FilterConfig restricts which sitemap URLs are processed.
type FilterConfig struct {
	Include  []string `yaml:"include" env:"FB2DSQ_INCLUDE"`
	Exclude  []string `yaml:"exclude" env:"FB2DSQ_EXCLUDE"`
	SkipRoot bool     `yaml:"skip_root" env:"FB2DSQ_SKIP_ROOT"`
}

// Default returns a configuration matching the behavior of a plain run.
func Default() *Config {
	return &Config{
		Output:   DefaultOutput,
		LogLevel: "info",
		Workers:  DefaultWorkers,
		HTTP: HTTPConfig{
			Timeout:    DefaultTimeout,
			ClientType: "browser",
		},
		Comments: CommentsConfig{
			Endpoint:  DefaultEndpoint,
			BatchSize: DefaultBatchSize,
		},
		Export: ExportConfig{
			CommentStatus: DefaultCommentStatus,
			Approved:      DefaultApproved,
		},
	}
}

// LoadFile reads a YAML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return cfg, nil
}

// ReadEnvFile parses a dotenv file without touching the process environment.
func ReadEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %q: %w", path, err)
	}
	return vars, nil
}

// ApplyEnv overlays FB2DSQ_* variables. Variables from extra (a dotenv file)
// are used only where the process environment does not define them.
func (c *Config) ApplyEnv(extra map[string]string) error {
	environ := make(map[string]string, len(extra))
	for k, v := range extra {
		environ[k] = v
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			environ[k] = v
		}
	}

	if err := env.ParseWithOptions(c, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output) == "" {
		return ErrMissingOutput
	}

	if c.Workers < 1 {
		return ErrInvalidWorkers
	}

	if !logging.ValidLevel(c.LogLevel) {
		return ErrInvalidLogLevel
	}

	if c.HTTP.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.HTTP.Retries < 0 {
		return ErrInvalidRetries
	}

	switch c.HTTP.ClientType {
	case "", "default", "browser", "cloudflare":
	default:
		return ErrInvalidClientType
	}

	endpoint := strings.TrimSpace(c.Comments.Endpoint)
	if endpoint == "" {
		return ErrMissingEndpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return ErrInvalidEndpoint
	}

	if c.Comments.BatchSize < 1 || c.Comments.BatchSize > MaxBatchSize {
		return ErrInvalidBatchSize
	}

	if c.Export.CommentStatus != "open" && c.Export.CommentStatus != "closed" {
		return ErrInvalidCommentStatus
	}

	if c.Export.Approved != 0 && c.Export.Approved != 1 {
		return ErrInvalidApproved
	}

	return nil
}

// String returns a short representation safe for logs (no access token).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Output: %s, Workers: %d, BatchSize: %d, FailFast: %t, Endpoint: %s}",
		c.Output,
		c.Workers,
		c.Comments.BatchSize,
		c.FailFast,
		c.Comments.Endpoint,
	)
}
