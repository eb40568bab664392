// Package config provides configuration management for the harvester.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"harvester/pkg/utils"
)

// Configuration validation errors.
var (
	ErrNoEnabledPlatforms       = errors.New("at least one platform must be enabled")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidRateLimit         = errors.New("rate_limit.requests_per_second must be non-negative")
	ErrInvalidMaxPages          = errors.New("pagination.max_pages must be at least 1")
	ErrInvalidPageSize          = errors.New("pagination.page_size must be at least 1")
	ErrInvalidWindow            = errors.New("window.days must be at least 1")
	ErrInvalidSinkKind          = errors.New("sink.kind must be one of: file, sqlite, postgres, http")
	ErrMissingSinkPath          = errors.New("sink.path is required for file and sqlite sinks")
	ErrMissingSinkDSN           = errors.New("sink.dsn is required for the postgres sink")
	ErrMissingSinkURL           = errors.New("sink.url must be an absolute http(s) URL for the http sink")
	ErrInvalidCredentialsKind   = errors.New("credentials.kind must be one of: env, dir")
	ErrMissingCredentialsDir    = errors.New("credentials.dir is required for the dir provider")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
	ErrMissingCountryCode       = errors.New("country_code is required when telegram is enabled")
)

// Platform names.
const (
	Twitter  = "twitter"
	YouTube  = "youtube"
	Kobo     = "kobo"
	Facebook = "facebook"
	Telegram = "telegram"
)

// PlatformNames lists every supported platform in run order.
var PlatformNames = []string{Twitter, YouTube, Kobo, Facebook, Telegram}

// Config represents the complete harvester configuration.
type Config struct {
	Harvester HarvesterConfig `yaml:"harvester"`
}

// HarvesterConfig contains run-wide settings.
type HarvesterConfig struct {
	CountryCode string            `yaml:"country_code"`
	Platforms   PlatformsConfig   `yaml:"platforms"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Sink        SinkConfig        `yaml:"sink"`
	Logging     LoggingConfig     `yaml:"logging"`
	Retry       RetryPolicy       `yaml:"retry"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Pagination  PaginationConfig  `yaml:"pagination"`
	Window      WindowConfig      `yaml:"window"`
}

// PlatformsConfig holds the per-platform toggles and tracked entities.
type PlatformsConfig struct {
	Twitter  TwitterConfig  `yaml:"twitter"`
	YouTube  YouTubeConfig  `yaml:"youtube"`
	Kobo     KoboConfig     `yaml:"kobo"`
	Facebook FacebookConfig `yaml:"facebook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// TwitterConfig tracks users' timelines and search queries.
type TwitterConfig struct {
	BaseURL      string   `yaml:"base_url"`
	Users        []string `yaml:"users"`
	Queries      []string `yaml:"queries"`
	Enabled      bool     `yaml:"enabled"`
	TrackUsers   bool     `yaml:"track_users"`
	TrackQueries bool     `yaml:"track_queries"`
}

// YouTubeConfig tracks channels by id.
type YouTubeConfig struct {
	BaseURL  string   `yaml:"base_url"`
	Channels []string `yaml:"channels"`
	Enabled  bool     `yaml:"enabled"`
}

// KoboConfig reads form assets. When Assets is empty the asset in the secret is used.
type KoboConfig struct {
	BaseURL string   `yaml:"base_url"`
	Assets  []string `yaml:"assets"`
	Enabled bool     `yaml:"enabled"`
}

// FacebookConfig tracks page feeds. When Pages is empty the page in the secret is used.
type FacebookConfig struct {
	BaseURL string   `yaml:"base_url"`
	Pages   []string `yaml:"pages"`
	Enabled bool     `yaml:"enabled"`
}

// TelegramConfig tracks public channels through an HTTP gateway.
type TelegramConfig struct {
	BaseURL  string   `yaml:"base_url"`
	Channels []string `yaml:"channels"`
	Enabled  bool     `yaml:"enabled"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// RateLimitConfig bounds the request rate per platform client. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PaginationConfig bounds paged walks.
type PaginationConfig struct {
	MaxPages int `yaml:"max_pages"`
	PageSize int `yaml:"page_size"`
}

// WindowConfig defines the date window for windowed platforms.
type WindowConfig struct {
	Days int `yaml:"days"`
}

// SinkConfig selects where result tables go.
type SinkConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
	// URL is the ingest endpoint of the http sink.
	URL         string `yaml:"url"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// CredentialsConfig selects the secret provider.
type CredentialsConfig struct {
	Kind    string `yaml:"kind"`
	EnvFile string `yaml:"env_file"`
	Dir     string `yaml:"dir"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from YAML file.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// DefaultInitialDelayMs is the first retry delay used when retry.initial_delay_ms is
// not set. An explicit 0 retries without waiting.
const DefaultInitialDelayMs = 500

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	// An explicit 0 in the file overrides this.
	cfg.Harvester.Retry.InitialDelayMs = DefaultInitialDelayMs

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Default returns a configuration with every default applied and no platform enabled.
func Default() *Config {
	cfg := &Config{}
	cfg.Harvester.Retry.InitialDelayMs = DefaultInitialDelayMs
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills unset values. retry.initial_delay_ms is left alone.
func (c *Config) ApplyDefaults() {
	h := &c.Harvester

	if h.Retry.MaxAttempts == 0 {
		h.Retry.MaxAttempts = 3
	}

	if h.Retry.MaxDelayMs == 0 {
		h.Retry.MaxDelayMs = 30000
	}

	if h.Retry.BackoffMultiplier == 0 {
		h.Retry.BackoffMultiplier = 2.0
	}

	if h.Retry.TimeoutSec == 0 {
		h.Retry.TimeoutSec = 30
	}

	if h.RateLimit.Burst == 0 {
		h.RateLimit.Burst = 1
	}

	if h.Pagination.MaxPages == 0 {
		h.Pagination.MaxPages = 1000
	}

	if h.Pagination.PageSize == 0 {
		h.Pagination.PageSize = 100
	}

	if h.Window.Days == 0 {
		h.Window.Days = 14
	}

	if h.Sink.Kind == "" {
		h.Sink.Kind = "file"
	}

	if h.Sink.Path == "" && h.Sink.Kind == "file" {
		h.Sink.Path = "./data"
	}

	if h.Credentials.Kind == "" {
		h.Credentials.Kind = "env"
	}

	if h.Logging.Level == "" {
		h.Logging.Level = "info"
	}

	if h.Logging.Format == "" {
		h.Logging.Format = "text"
	}

	p := &h.Platforms
	setDefault(&p.Twitter.BaseURL, "https://api.twitter.com/1.1")
	setDefault(&p.YouTube.BaseURL, "https://www.googleapis.com/youtube/v3")
	setDefault(&p.Kobo.BaseURL, "https://kobonew.ifrc.org")
	setDefault(&p.Facebook.BaseURL, "https://graph.facebook.com")
	setDefault(&p.Telegram.BaseURL, "http://localhost:8081")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	h := &c.Harvester

	if len(c.EnabledPlatforms()) == 0 {
		return ErrNoEnabledPlatforms
	}

	if h.Platforms.Telegram.Enabled && strings.TrimSpace(h.CountryCode) == "" {
		return ErrMissingCountryCode
	}

	if err := h.Retry.Validate(); err != nil {
		return err
	}

	if h.RateLimit.RequestsPerSecond < 0 {
		return ErrInvalidRateLimit
	}

	if h.Pagination.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if h.Pagination.PageSize < 1 {
		return ErrInvalidPageSize
	}

	if h.Window.Days < 1 {
		return ErrInvalidWindow
	}

	switch h.Sink.Kind {
	case "file", "sqlite":
		if h.Sink.Path == "" {
			return ErrMissingSinkPath
		}
	case "postgres":
		if h.Sink.DSN == "" {
			return ErrMissingSinkDSN
		}
	case "http":
		if !utils.NewHTTPHelper().IsValidURL(h.Sink.URL) {
			return ErrMissingSinkURL
		}
	default:
		return ErrInvalidSinkKind
	}

	switch h.Credentials.Kind {
	case "env":
	case "dir":
		if h.Credentials.Dir == "" {
			return ErrMissingCredentialsDir
		}
	default:
		return ErrInvalidCredentialsKind
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[h.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if h.Logging.Format != "text" && h.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// Validate validates the retry policy.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if rp.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if rp.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if rp.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	return nil
}

// EnabledPlatforms returns the enabled platform names in run order.
func (c *Config) EnabledPlatforms() []string {
	p := &c.Harvester.Platforms
	enabled := map[string]bool{
		Twitter:  p.Twitter.Enabled,
		YouTube:  p.YouTube.Enabled,
		Kobo:     p.Kobo.Enabled,
		Facebook: p.Facebook.Enabled,
		Telegram: p.Telegram.Enabled,
	}

	var names []string

	for _, name := range PlatformNames {
		if enabled[name] {
			names = append(names, name)
		}
	}

	return names
}

// Only disables every platform not in names. Unknown names are reported.
func (c *Config) Only(names ...string) error {
	if len(names) == 0 {
		return nil
	}

	keep := make(map[string]bool, len(names))

	for _, name := range names {
		known := false

		for _, candidate := range PlatformNames {
			if candidate == name {
				known = true
			}
		}

		if !known {
			return fmt.Errorf("unknown platform %q", name)
		}

		keep[name] = true
	}

	p := &c.Harvester.Platforms
	p.Twitter.Enabled = p.Twitter.Enabled && keep[Twitter]
	p.YouTube.Enabled = p.YouTube.Enabled && keep[YouTube]
	p.Kobo.Enabled = p.Kobo.Enabled && keep[Kobo]
	p.Facebook.Enabled = p.Facebook.Enabled && keep[Facebook]
	p.Telegram.Enabled = p.Telegram.Enabled && keep[Telegram]

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// Window returns the [start, end] dates of the harvest window ending on today.
func (w WindowConfig) Window(today time.Time) (time.Time, time.Time) {
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	return end.AddDate(0, 0, -w.Days), end
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Platforms: %v, MaxAttempts: %d, Sink: %s}",
		c.EnabledPlatforms(),
		c.Harvester.Retry.MaxAttempts,
		c.Harvester.Sink.Kind,
	)
}
