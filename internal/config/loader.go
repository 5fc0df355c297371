package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read before the COREP_ keys.
const (
	EnvPrefix     = "COREP_"
	EnvConfigPath = "COREP_CONFIG"
	EnvDotEnvPath = "COREP_DOTENV"
	defaultDotEnv = ".env"
)

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"cors_allowed_origins":    true,
	"metrics_labels":          true,
	"metrics_latency_buckets": true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if COREP_CONFIG is set
//  3. env (prefix COREP_), after a .env file has been merged into the
//     process environment without overriding it
func Load(_ context.Context) (*Config, error) {
	base := New()

	dotenv := os.Getenv(EnvDotEnvPath)
	if dotenv == "" {
		dotenv = defaultDotEnv
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.load dotenv %q: %w: %w", dotenv, ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config.load file %q: %w: %w", path, ErrLoadConfig, err)
		}
	}

	// COREP_RETRIEVAL_TOP_K -> retrieval_top_k. Underscores are kept to
	// match the flat koanf tags on the struct.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" || key == "dotenv" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config.load env: %w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config.unmarshal: %w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RetrievalTopK < 1:
		return fmt.Errorf("%w: retrieval_top_k must be at least 1", ErrInvalidConfig)
	case c.RateLimitRPS <= 0:
		return fmt.Errorf("%w: rate_limit_rps must be positive", ErrInvalidConfig)
	case c.RateLimitBurst < 1:
		return fmt.Errorf("%w: rate_limit_burst must be at least 1", ErrInvalidConfig)
	case c.ExcerptChars < 1:
		return fmt.Errorf("%w: excerpt_chars must be at least 1", ErrInvalidConfig)
	case c.ExtractionMaxTokens < 1 || c.ExtractionMaxTokens > math.MaxInt32:
		return fmt.Errorf("%w: extraction_max_tokens must be between 1 and %d", ErrInvalidConfig, math.MaxInt32)
	case c.ExtractionTimeoutMS < 1:
		return fmt.Errorf("%w: extraction_timeout_ms must be positive", ErrInvalidConfig)
	case c.ReportHistory < 1:
		return fmt.Errorf("%w: report_history must be at least 1", ErrInvalidConfig)
	case c.CacheTTLSeconds < 0:
		return fmt.Errorf("%w: cache_ttl_seconds must not be negative", ErrInvalidConfig)
	case c.MetricsRefreshSeconds < 1:
		return fmt.Errorf("%w: metrics_refresh_seconds must be at least 1", ErrInvalidConfig)
	}
	for _, pair := range c.MetricsLabels {
		if k, _, ok := strings.Cut(pair, "="); !ok || strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: metrics_labels entry %q is not key=value", ErrInvalidConfig, pair)
		}
	}
	for i := 1; i < len(c.MetricsLatencyBuckets); i++ {
		if c.MetricsLatencyBuckets[i] <= c.MetricsLatencyBuckets[i-1] {
			return fmt.Errorf("%w: metrics_latency_buckets must increase", ErrInvalidConfig)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
