package types

import "time"

// HTTPConfig holds shared HTTP settings used by every source adapter.
type HTTPConfig struct {
	// Timeout bounds a single adapter request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperfetch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Email is the contact address sent to polite-pool APIs (OpenAlex,
	// Crossref) and required by Unpaywall.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`
}

// SourceConfig overrides the defaults of one source adapter.
type SourceConfig struct {
	// Enabled overrides the adapter default when set.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty" mapstructure:"enabled"`

	// Priority overrides the adapter default when non-zero. Lower runs first.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`

	// BaseURL replaces the adapter's API endpoint. Empty keeps the default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MirrorURL is the mirror root for gray-area adapters. They have no
	// built-in default.
	MirrorURL string `json:"mirror_url,omitempty" yaml:"mirror_url,omitempty" mapstructure:"mirror_url"`

	// ProxyURL is the institutional proxy login prefix, e.g.
	// "https://login.ezproxy.example.edu/login?url=".
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty" mapstructure:"proxy_url"`
}

// IsEnabled returns Enabled, or def when it is unset.
func (c SourceConfig) IsEnabled(def bool) bool {
	if c.Enabled == nil {
		return def
	}
	return *c.Enabled
}

// RateLimitConfig holds request pacing in seconds.
type RateLimitConfig struct {
	// GlobalDelay is the process-wide minimum gap between any two requests.
	GlobalDelay float64 `json:"global_delay" yaml:"global_delay" mapstructure:"global_delay"`

	// DefaultDelay is the per-source gap used when a source has no entry in
	// PerSourceDelays.
	DefaultDelay float64 `json:"default_delay" yaml:"default_delay" mapstructure:"default_delay"`

	PerSourceDelays map[string]float64 `json:"per_source_delays" yaml:"per_source_delays" mapstructure:"per_source_delays"`

	// Retries429 is how many times a 429 response is retried with backoff
	// before the adapter reports RateLimited.
	Retries429 int `json:"retries_429" yaml:"retries_429" mapstructure:"retries_429"`
}

// DownloadConfig holds settings for writing retrieved PDFs.
type DownloadConfig struct {
	OutputDir      string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
	FilenameFormat string `json:"filename_format" yaml:"filename_format" mapstructure:"filename_format"`
	MaxTitleLength int    `json:"max_title_length" yaml:"max_title_length" mapstructure:"max_title_length"`
	SkipExisting   bool   `json:"skip_existing" yaml:"skip_existing" mapstructure:"skip_existing"`

	// OpenAccessOnly restricts downloads to adapters that only serve
	// open-access content.
	OpenAccessOnly bool `json:"open_access_only" yaml:"open_access_only" mapstructure:"open_access_only"`
}

// BatchConfig holds settings for the batch orchestrator.
type BatchConfig struct {
	MaxConcurrent int    `json:"max_concurrent" yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RetryFailed   bool   `json:"retry_failed" yaml:"retry_failed" mapstructure:"retry_failed"`
	MaxRetries    int    `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	SaveProgress  bool   `json:"save_progress" yaml:"save_progress" mapstructure:"save_progress"`
	ProgressFile  string `json:"progress_file" yaml:"progress_file" mapstructure:"progress_file"`
}

// UnofficialConfig gates gray-area adapters.
type UnofficialConfig struct {
	DisclaimerAccepted bool `json:"disclaimer_accepted" yaml:"disclaimer_accepted" mapstructure:"disclaimer_accepted"`
}

// MismatchConfig tunes the title-resolution mismatch heuristic.
type MismatchConfig struct {
	InDomainKeywords     []string `json:"in_domain_keywords" yaml:"in_domain_keywords" mapstructure:"in_domain_keywords"`
	FalseContextKeywords []string `json:"false_context_keywords" yaml:"false_context_keywords" mapstructure:"false_context_keywords"`

	// TitleSimilarity is the minimum query/candidate title similarity (0-1).
	TitleSimilarity float64 `json:"title_similarity" yaml:"title_similarity" mapstructure:"title_similarity"`

	FalseContextMin int `json:"false_context_min" yaml:"false_context_min" mapstructure:"false_context_min"`
	InDomainMax     int `json:"in_domain_max" yaml:"in_domain_max" mapstructure:"in_domain_max"`
}

// CitationConfig holds settings for bibliography verification.
type CitationConfig struct {
	TitleSimilarity float64 `json:"title_similarity" yaml:"title_similarity" mapstructure:"title_similarity"`
}

// CacheConfig controls the SQLite metadata cache.
type CacheConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// FallbackConfig controls the headless-browser download path used when a
// source answers with a bot-protection challenge.
type FallbackConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BrowserBin string        `json:"browser_bin,omitempty" yaml:"browser_bin,omitempty" mapstructure:"browser_bin"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// Config groups all settings for a paperfetch run.
type Config struct {
	HTTP           HTTPConfig              `json:"http" yaml:"http" mapstructure:"http"`
	Sources        map[string]SourceConfig `json:"sources" yaml:"sources" mapstructure:"sources"`
	RateLimits     RateLimitConfig         `json:"rate_limits" yaml:"rate_limits" mapstructure:"rate_limits"`
	Download       DownloadConfig          `json:"download" yaml:"download" mapstructure:"download"`
	Batch          BatchConfig             `json:"batch" yaml:"batch" mapstructure:"batch"`
	LookupPriority []string                `json:"lookup_priority" yaml:"lookup_priority" mapstructure:"lookup_priority"`
	Unofficial     UnofficialConfig        `json:"unofficial" yaml:"unofficial" mapstructure:"unofficial"`
	Mismatch       MismatchConfig          `json:"mismatch" yaml:"mismatch" mapstructure:"mismatch"`
	Citation       CitationConfig          `json:"citation" yaml:"citation" mapstructure:"citation"`
	Cache          CacheConfig             `json:"cache" yaml:"cache" mapstructure:"cache"`
	Fallback       FallbackConfig          `json:"fallback" yaml:"fallback" mapstructure:"fallback"`
	Metrics        MetricsConfig           `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	SecretsDir     string                  `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`
}
