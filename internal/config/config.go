// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads paperfetch settings with viper: built-in defaults,
// then paperfetch.yaml, then PAPERFETCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/internal/batch"
	"github.com/pdiddy/paperfetch/internal/citation"
	"github.com/pdiddy/paperfetch/internal/mismatch"
	"github.com/pdiddy/paperfetch/pkg/types"
)

const (
	// Name is the config file name without extension.
	Name = "paperfetch"

	// EnvPrefix prefixes environment overrides, e.g. PAPERFETCH_HTTP_EMAIL.
	EnvPrefix = "PAPERFETCH"

	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "paperfetch/0.1"
)

// SetDefaults registers every default with v. Keys without a default are
// invisible to environment overrides, so each scalar setting is listed.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.email", "")

	v.SetDefault("rate_limits.global_delay", 0.5)
	v.SetDefault("rate_limits.default_delay", 1.0)
	v.SetDefault("rate_limits.retries_429", 1)
	v.SetDefault("rate_limits.per_source_delays", map[string]float64{"arxiv": 3.0, "crossref": 1.0})

	v.SetDefault("download.output_dir", "papers")
	v.SetDefault("download.filename_format", acquire.DefaultFilenameFormat)
	v.SetDefault("download.max_title_length", acquire.DefaultMaxTitleLength)
	v.SetDefault("download.skip_existing", true)
	v.SetDefault("download.open_access_only", false)

	v.SetDefault("batch.max_concurrent", batch.DefaultMaxConcurrent)
	v.SetDefault("batch.retry_failed", true)
	v.SetDefault("batch.max_retries", batch.DefaultMaxRetries)
	v.SetDefault("batch.save_progress", true)
	v.SetDefault("batch.progress_file", ".paperfetch-progress.json")

	v.SetDefault("lookup_priority", []string{"id", "title"})
	v.SetDefault("unofficial.disclaimer_accepted", false)

	v.SetDefault("mismatch.in_domain_keywords", mismatch.DefaultInDomainKeywords)
	v.SetDefault("mismatch.false_context_keywords", mismatch.DefaultFalseContextKeywords)
	v.SetDefault("mismatch.title_similarity", mismatch.DefaultTitleSimilarity)
	v.SetDefault("mismatch.false_context_min", mismatch.DefaultFalseContextMin)
	v.SetDefault("mismatch.in_domain_max", mismatch.DefaultInDomainMax)

	v.SetDefault("citation.title_similarity", citation.DefaultTitleSimilarity)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", ".paperfetch-cache.db")

	v.SetDefault("fallback.enabled", false)
	v.SetDefault("fallback.browser_bin", "")
	v.SetDefault("fallback.timeout", 60*time.Second)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("secrets_dir", ".secrets")
}

// Init points v at the config file and environment. With cfgFile empty it
// searches ./paperfetch.yaml and ~/.config/paperfetch/paperfetch.yaml, and a
// missing file is not an error. It returns the file used, if any.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load applies defaults, decodes v into a Config, and validates it.
func Load(v *viper.Viper, log logrus.FieldLogger) (types.Config, error) {
	SetDefaults(v)

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(&cfg, log); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work and clamps the ones that have
// a safe nearest value, logging each adjustment.
func Validate(cfg *types.Config, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var errs []error

	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = DefaultTimeout
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultUserAgent
	}

	rl := &cfg.RateLimits
	if rl.GlobalDelay < 0 || rl.DefaultDelay < 0 {
		errs = append(errs, errors.New("rate_limits: delays must not be negative"))
	}
	for name, d := range rl.PerSourceDelays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("rate_limits.per_source_delays.%s: must not be negative", name))
		}
	}
	if rl.Retries429 < 0 {
		rl.Retries429 = 0
	}

	if cfg.Download.OutputDir == "" {
		errs = append(errs, errors.New("download.output_dir must be set"))
	}
	if cfg.Download.FilenameFormat == "" {
		cfg.Download.FilenameFormat = acquire.DefaultFilenameFormat
	}
	if cfg.Download.MaxTitleLength <= 0 {
		cfg.Download.MaxTitleLength = acquire.DefaultMaxTitleLength
	}

	b := &cfg.Batch
	switch {
	case b.MaxConcurrent < 1:
		log.WithField("max_concurrent", b.MaxConcurrent).Warnf("batch.max_concurrent below 1, using %d", batch.DefaultMaxConcurrent)
		b.MaxConcurrent = batch.DefaultMaxConcurrent
	case b.MaxConcurrent > batch.MaxConcurrentLimit:
		log.WithField("max_concurrent", b.MaxConcurrent).Warnf("batch.max_concurrent above %d, clamping", batch.MaxConcurrentLimit)
		b.MaxConcurrent = batch.MaxConcurrentLimit
	}
	if b.MaxRetries < 0 {
		errs = append(errs, errors.New("batch.max_retries must not be negative"))
	}
	if b.SaveProgress && b.ProgressFile == "" {
		errs = append(errs, errors.New("batch.progress_file must be set when save_progress is true"))
	}

	for _, m := range cfg.LookupPriority {
		if m != "id" && m != "title" {
			errs = append(errs, fmt.Errorf("lookup_priority: unknown method %q (want id or title)", m))
		}
	}

	if s := cfg.Mismatch.TitleSimilarity; s <= 0 || s > 1 {
		errs = append(errs, fmt.Errorf("mismatch.title_similarity %.2f: must be in (0, 1]", s))
	}
	if s := cfg.Citation.TitleSimilarity; s <= 0 || s > 1 {
		errs = append(errs, fmt.Errorf("citation.title_similarity %.2f: must be in (0, 1]", s))
	}

	if cfg.Cache.Enabled && cfg.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path must be set when the cache is enabled"))
	}
	if cfg.Fallback.Timeout <= 0 {
		cfg.Fallback.Timeout = 60 * time.Second
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
