// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/pkg/types"
)

func TestLoadDefaults(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg, err := Load(viper.New(), log)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "paperfetch/0.1", cfg.HTTP.UserAgent)
	assert.Equal(t, 0.5, cfg.RateLimits.GlobalDelay)
	assert.Equal(t, 1.0, cfg.RateLimits.DefaultDelay)
	assert.Equal(t, 1, cfg.RateLimits.Retries429)
	assert.Equal(t, 3.0, cfg.RateLimits.PerSourceDelays["arxiv"])
	assert.Equal(t, types.DownloadConfig{
		OutputDir:      "papers",
		FilenameFormat: acquire.DefaultFilenameFormat,
		MaxTitleLength: 50,
		SkipExisting:   true,
	}, cfg.Download)
	assert.Equal(t, types.BatchConfig{
		MaxConcurrent: 3,
		RetryFailed:   true,
		MaxRetries:    2,
		SaveProgress:  true,
		ProgressFile:  ".paperfetch-progress.json",
	}, cfg.Batch)
	assert.Equal(t, []string{"id", "title"}, cfg.LookupPriority)
	assert.False(t, cfg.Unofficial.DisclaimerAccepted)
	assert.Equal(t, 0.70, cfg.Mismatch.TitleSimilarity)
	assert.Equal(t, 2, cfg.Mismatch.FalseContextMin)
	assert.Contains(t, cfg.Mismatch.FalseContextKeywords, "ornithology")
	assert.Equal(t, 0.85, cfg.Citation.TitleSimilarity)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Fallback.Timeout)
	assert.Equal(t, ".secrets", cfg.SecretsDir)
}

const sampleConfig = `
http:
  timeout: 45s
  email: someone@example.org
sources:
  arxiv:
    enabled: false
  scihub:
    enabled: true
    mirror_url: https://mirror.example
    priority: 95
rate_limits:
  per_source_delays:
    openalex: 0.2
download:
  output_dir: library
  open_access_only: true
batch:
  max_concurrent: 50
lookup_priority: [title]
unofficial:
  disclaimer_accepted: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paperfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	v := viper.New()
	used, err := Init(v, writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(used, "paperfetch.yaml"))

	cfg, err := Load(v, log)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "someone@example.org", cfg.HTTP.Email)
	require.Contains(t, cfg.Sources, "arxiv")
	assert.False(t, cfg.Sources["arxiv"].IsEnabled(true))
	assert.True(t, cfg.Sources["scihub"].IsEnabled(false))
	assert.Equal(t, "https://mirror.example", cfg.Sources["scihub"].MirrorURL)
	assert.Equal(t, 95, cfg.Sources["scihub"].Priority)
	assert.Equal(t, 0.2, cfg.RateLimits.PerSourceDelays["openalex"])
	assert.Equal(t, "library", cfg.Download.OutputDir)
	assert.True(t, cfg.Download.OpenAccessOnly)
	assert.True(t, cfg.Download.SkipExisting, "unset keys keep their default")
	assert.Equal(t, []string{"title"}, cfg.LookupPriority)
	assert.True(t, cfg.Unofficial.DisclaimerAccepted)

	assert.Equal(t, 10, cfg.Batch.MaxConcurrent)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PAPERFETCH_BATCH_MAX_CONCURRENT", "5")
	t.Setenv("PAPERFETCH_HTTP_EMAIL", "env@example.org")
	t.Setenv("PAPERFETCH_DOWNLOAD_SKIP_EXISTING", "false")

	v := viper.New()
	_, err := Init(v, writeConfig(t, "batch:\n  max_concurrent: 2\n"))
	require.NoError(t, err)
	cfg, err := Load(v, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Batch.MaxConcurrent)
	assert.Equal(t, "env@example.org", cfg.HTTP.Email)
	assert.False(t, cfg.Download.SkipExisting)
}

func TestInitMissingExplicitFile(t *testing.T) {
	_, err := Init(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config")
}

func TestValidate(t *testing.T) {
	valid := func() types.Config {
		v := viper.New()
		cfg, err := Load(v, nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*types.Config)
		want   string
	}{
		{"negative delay", func(c *types.Config) { c.RateLimits.DefaultDelay = -1 }, "delays must not be negative"},
		{"negative source delay", func(c *types.Config) { c.RateLimits.PerSourceDelays["arxiv"] = -2 }, "per_source_delays.arxiv"},
		{"bad method", func(c *types.Config) { c.LookupPriority = []string{"id", "doi"} }, `unknown method "doi"`},
		{"similarity", func(c *types.Config) { c.Mismatch.TitleSimilarity = 1.5 }, "mismatch.title_similarity"},
		{"citation similarity", func(c *types.Config) { c.Citation.TitleSimilarity = 0 }, "citation.title_similarity"},
		{"no output dir", func(c *types.Config) { c.Download.OutputDir = "" }, "download.output_dir"},
		{"no progress file", func(c *types.Config) { c.Batch.ProgressFile = "" }, "batch.progress_file"},
		{"negative retries", func(c *types.Config) { c.Batch.MaxRetries = -1 }, "batch.max_retries"},
		{"no cache path", func(c *types.Config) { c.Cache.Path = "" }, "cache.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(&cfg, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := types.Config{
		Download: types.DownloadConfig{OutputDir: "papers"},
		Batch:    types.BatchConfig{MaxConcurrent: 0},
		Mismatch: types.MismatchConfig{TitleSimilarity: 0.7},
		Citation: types.CitationConfig{TitleSimilarity: 0.85},
	}
	log, _ := logtest.NewNullLogger()
	require.NoError(t, Validate(&cfg, log))

	assert.Equal(t, 3, cfg.Batch.MaxConcurrent)
	assert.Equal(t, DefaultTimeout, cfg.HTTP.Timeout)
	assert.Equal(t, DefaultUserAgent, cfg.HTTP.UserAgent)
	assert.Equal(t, acquire.DefaultFilenameFormat, cfg.Download.FilenameFormat)
	assert.Equal(t, 50, cfg.Download.MaxTitleLength)
	assert.Equal(t, 60*time.Second, cfg.Fallback.Timeout)
}
