package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort            = 4060
	defaultEnv             = "development"
	defaultWikiBaseURL     = "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article"
	defaultWikiProject     = "en.wikipedia.org"
	defaultWikiAccess      = "all-access"
	defaultWikiAgent       = "user"
	defaultWikiPage        = "Main_Page"
	defaultCacheTTLSeconds = 7200
	defaultRequestTimeout  = 10 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = time.Second
	defaultArchiveInterval = 24 * time.Hour
)

// AppConfig holds runtime startup configuration loaded from YAML with
// environment overrides. Every field has a usable default; only the S3
// section may legitimately stay empty (the archive job then fails at
// invocation, not at startup).
type AppConfig struct {
	Port           int           `yaml:"port"`
	Env            string        `yaml:"env"` // "development" | "production"
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RedisURL       string        `yaml:"redis_url"`
	Cache          CacheConfig   `yaml:"cache"`
	Wiki           WikiConfig    `yaml:"wiki"`
	S3             S3Config      `yaml:"s3"`
	Archive        ArchiveConfig `yaml:"archive"`
}

type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// WikiConfig identifies the upstream pageview metrics endpoint.
type WikiConfig struct {
	BaseURL               string `yaml:"base_url"`
	Project               string `yaml:"project"`
	Access                string `yaml:"access"`
	Agent                 string `yaml:"agent"`
	DefaultPage           string `yaml:"default_page"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	RetryAttempts         int    `yaml:"retry_attempts"`
	RetryBaseDelayMS      int    `yaml:"retry_base_delay_ms"`
}

type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
}

type ArchiveConfig struct {
	Interval string `yaml:"interval"` // Go duration, e.g. "24h"
}

// Load reads the YAML config at path, then applies environment overrides and
// defaults. A missing file is not an error; the service runs on defaults.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults + env only
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv maps the process environment onto the config, using the variable
// names the deployment already exports.
func (c *AppConfig) applyEnv() {
	if v := envStr("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Port = port
		}
	}
	if v := envStr("NODE_ENV"); v != "" {
		c.Env = v
	}
	if v := envStr("ALLOWED_ORIGINS"); v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			if o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
	if v := envStr("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := envStr("CACHE_TTL_SECONDS"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil && ttl > 0 {
			c.Cache.TTLSeconds = ttl
		}
	}
	if v := envStr("WIKI_PROJECT"); v != "" {
		c.Wiki.Project = v
	}
	if v := envStr("WIKI_ACCESS"); v != "" {
		c.Wiki.Access = v
	}
	if v := envStr("WIKI_AGENT"); v != "" {
		c.Wiki.Agent = v
	}
	if v := envStr("AWS_REGION"); v != "" {
		c.S3.Region = v
	}
	if v := envStr("AWS_ACCESS_KEY_ID"); v != "" {
		c.S3.AccessKeyID = v
	}
	if v := envStr("AWS_SECRET_ACCESS_KEY"); v != "" {
		c.S3.SecretAccessKey = v
	}
	if v := envStr("S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := envStr("ARCHIVE_INTERVAL"); v != "" {
		c.Archive.Interval = v
	}
}

func (c *AppConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = defaultCacheTTLSeconds
	}
	if strings.TrimSpace(c.Wiki.BaseURL) == "" {
		c.Wiki.BaseURL = defaultWikiBaseURL
	}
	c.Wiki.BaseURL = strings.TrimRight(c.Wiki.BaseURL, "/")
	if strings.TrimSpace(c.Wiki.Project) == "" {
		c.Wiki.Project = defaultWikiProject
	}
	if strings.TrimSpace(c.Wiki.Access) == "" {
		c.Wiki.Access = defaultWikiAccess
	}
	if strings.TrimSpace(c.Wiki.Agent) == "" {
		c.Wiki.Agent = defaultWikiAgent
	}
	if strings.TrimSpace(c.Wiki.DefaultPage) == "" {
		c.Wiki.DefaultPage = defaultWikiPage
	}
	if c.Wiki.RequestTimeoutSeconds <= 0 {
		c.Wiki.RequestTimeoutSeconds = int(defaultRequestTimeout / time.Second)
	}
	if c.Wiki.RetryAttempts <= 0 {
		c.Wiki.RetryAttempts = defaultRetryAttempts
	}
	if c.Wiki.RetryBaseDelayMS <= 0 {
		c.Wiki.RetryBaseDelayMS = int(defaultRetryBaseDelay / time.Millisecond)
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// CacheTTL returns the default cache TTL as a duration.
func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// RequestTimeout returns the upstream HTTP timeout.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Wiki.RequestTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the base delay between upstream retry attempts.
func (c *AppConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.Wiki.RetryBaseDelayMS) * time.Millisecond
}

// ArchiveInterval parses the configured archive interval, falling back to
// the daily default on absence or a bad value.
func (c *AppConfig) ArchiveInterval() time.Duration {
	raw := strings.TrimSpace(c.Archive.Interval)
	if raw == "" {
		return defaultArchiveInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultArchiveInterval
	}
	return d
}

func envStr(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
