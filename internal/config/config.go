// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and COREP_ environment variables over New().
// - External errors are wrapped with this package's sentinels.
package config

import (
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// AppName and Version are reported by GET /.
	AppName string `koanf:"app_name"`
	Version string `koanf:"version"`

	// DefaultTemplate is used when a request omits template_type.
	DefaultTemplate string `koanf:"default_template"`

	// RetrievalTopK is how many regulatory passages are retrieved per query.
	RetrievalTopK int `koanf:"retrieval_top_k"`

	// CorpusPath optionally replaces the embedded regulatory corpus.
	CorpusPath string `koanf:"corpus_path"`

	// CacheTTLSeconds bounds how long retrieval results are cached. Zero disables caching.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// GenAI extraction settings.
	GenAIAPIKey           string  `koanf:"genai_api_key"`
	GenAIModel            string  `koanf:"genai_model"`
	ExtractionTemperature float64 `koanf:"extraction_temperature"`
	ExtractionMaxTokens   int     `koanf:"extraction_max_tokens"`
	ExtractionTimeoutMS   int     `koanf:"extraction_timeout_ms"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RateLimitRPS and RateLimitBurst throttle the extraction-backed endpoint.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// ExcerptChars caps the source text kept per audit entry.
	ExcerptChars int `koanf:"excerpt_chars"`

	// ReportHistory is how many assembled reports are kept for lookup.
	ReportHistory int `koanf:"report_history"`

	// Prometheus metric naming and recording.
	MetricsEnabled        bool      `koanf:"metrics_enabled"`
	MetricsNamespace      string    `koanf:"metrics_namespace"`
	MetricsSubsystem      string    `koanf:"metrics_subsystem"`
	MetricsPrefix         string    `koanf:"metrics_prefix"`
	MetricsLabels         []string  `koanf:"metrics_labels"` // key=value
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`
	MetricsRefreshSeconds int       `koanf:"metrics_refresh_seconds"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":8000",
		AppName:               "COREP Reporting Assistant",
		Version:               "0.1.0",
		DefaultTemplate:       "C01",
		RetrievalTopK:         5,
		CacheTTLSeconds:       300,
		GenAIModel:            "gemini-2.5-flash",
		ExtractionTemperature: 0.1,
		ExtractionMaxTokens:   2000,
		ExtractionTimeoutMS:   60_000,
		CORSAllowedOrigins:    []string{"http://localhost:5173", "http://localhost:3000"},
		RateLimitRPS:          2,
		RateLimitBurst:        5,
		ExcerptChars:          500,
		ReportHistory:         500,
		MetricsEnabled:        true,
		MetricsNamespace:      "corep",
		MetricsSubsystem:      "reporting",
		MetricsRefreshSeconds: 10,
	}
}

// CacheTTL returns the retrieval cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ExtractionTimeout returns the per-call extraction deadline.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.ExtractionTimeoutMS) * time.Millisecond
}

// MetricsRefresh returns how often system gauges are sampled.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshSeconds) * time.Second
}

// MetricLabels parses MetricsLabels into constant metric labels. Entries
// without a key are skipped; Validate rejects them.
func (c *Config) MetricLabels() map[string]string {
	labels := make(map[string]string, len(c.MetricsLabels))
	for _, pair := range c.MetricsLabels {
		k, v, _ := strings.Cut(pair, "=")
		if k = strings.TrimSpace(k); k != "" {
			labels[k] = strings.TrimSpace(v)
		}
	}
	return labels
}
