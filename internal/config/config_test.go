package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load must not be sensitive to whatever the host environment exports.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "NODE_ENV", "ALLOWED_ORIGINS", "REDIS_URL", "CACHE_TTL_SECONDS",
		"WIKI_PROJECT", "WIKI_ACCESS", "WIKI_AGENT",
		"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "S3_BUCKET",
		"ARCHIVE_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, 4060, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL())
	assert.Equal(t, "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article", cfg.Wiki.BaseURL)
	assert.Equal(t, "en.wikipedia.org", cfg.Wiki.Project)
	assert.Equal(t, "all-access", cfg.Wiki.Access)
	assert.Equal(t, "user", cfg.Wiki.Agent)
	assert.Equal(t, "Main_Page", cfg.Wiki.DefaultPage)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 3, cfg.Wiki.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay())
	assert.Equal(t, 24*time.Hour, cfg.ArchiveInterval())
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
env: production
allowed_origins:
  - https://wikipulse.dev
cache:
  ttl_seconds: 60
wiki:
  project: de.wikipedia.org
  default_page: Hauptseite
s3:
  region: eu-central-1
  bucket: wikipulse-archive
archive:
  interval: 6h
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, []string{"https://wikipulse.dev"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, "de.wikipedia.org", cfg.Wiki.Project)
	assert.Equal(t, "Hauptseite", cfg.Wiki.DefaultPage)
	assert.Equal(t, "eu-central-1", cfg.S3.Region)
	assert.Equal(t, "wikipulse-archive", cfg.S3.Bucket)
	assert.Equal(t, 6*time.Hour, cfg.ArchiveInterval())
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9090\nenv: development\n"), 0o600))

	t.Setenv("PORT", "8081")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example/, https://b.example")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("WIKI_PROJECT", "fr.wikipedia.org")
	t.Setenv("S3_BUCKET", "env-bucket")
	t.Setenv("ARCHIVE_INTERVAL", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL())
	assert.Equal(t, "fr.wikipedia.org", cfg.Wiki.Project)
	assert.Equal(t, "env-bucket", cfg.S3.Bucket)
	assert.Equal(t, 90*time.Minute, cfg.ArchiveInterval())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestArchiveIntervalFallsBackOnGarbage(t *testing.T) {
	clearEnv(t)

	cfg := &AppConfig{Archive: ArchiveConfig{Interval: "whenever"}}
	assert.Equal(t, 24*time.Hour, cfg.ArchiveInterval())

	cfg.Archive.Interval = "-5h"
	assert.Equal(t, 24*time.Hour, cfg.ArchiveInterval())
}
