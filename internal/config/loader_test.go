package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/corep/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		_ = os.Setenv(config.EnvDotEnvPath, "/non/existent/.env")

		convey.Convey("When loading config with defaults only", func() {
			defer clearConfigEnvVars()
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("COREP_ADDR", ":8080")
			_ = os.Setenv("COREP_RETRIEVAL_TOP_K", "8")
			_ = os.Setenv("COREP_GENAI_MODEL", "gemini-2.5-pro")
			_ = os.Setenv("COREP_EXTRACTION_TEMPERATURE", "0.3")
			_ = os.Setenv("COREP_CORS_ALLOWED_ORIGINS", "https://corep.example.com, http://localhost:4000,")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RetrievalTopK, convey.ShouldEqual, 8)
				convey.So(cfg.GenAIModel, convey.ShouldEqual, "gemini-2.5-pro")
				convey.So(cfg.ExtractionTemperature, convey.ShouldEqual, 0.3)
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://corep.example.com", "http://localhost:4000"})
			})
		})

		convey.Convey("When metrics settings come from the environment", func() {
			_ = os.Setenv("COREP_METRICS_ENABLED", "false")
			_ = os.Setenv("COREP_METRICS_NAMESPACE", "acme")
			_ = os.Setenv("COREP_METRICS_LABELS", "deployment=eu-1, team=regrep")
			_ = os.Setenv("COREP_METRICS_LATENCY_BUCKETS", "5,50,500")
			_ = os.Setenv("COREP_METRICS_REFRESH_SECONDS", "30")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then lists and numbers are parsed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "acme")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "reporting")
				convey.So(cfg.MetricLabels(), convey.ShouldResemble, map[string]string{"deployment": "eu-1", "team": "regrep"})
				convey.So(cfg.MetricsLatencyBuckets, convey.ShouldResemble, []float64{5, 50, 500})
				convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
retrieval_top_k: 3
log_format: json
cors_allowed_origins:
  - https://a.example.com
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfigPath, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RetrievalTopK, convey.ShouldEqual, 3)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://a.example.com"})
				convey.So(cfg.ExcerptChars, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nretrieval_top_k: 3\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfigPath, tmpFile)
			_ = os.Setenv("COREP_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RetrievalTopK, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When a .env file is present", func() {
			dotenv := createTempConfigFile("COREP_RETRIEVAL_TOP_K=9\nCOREP_ADDR=:7000\n")
			defer func() { _ = os.Remove(dotenv) }()
			_ = os.Setenv(config.EnvDotEnvPath, dotenv)
			_ = os.Setenv("COREP_ADDR", ":6000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables without overriding the environment", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RetrievalTopK, convey.ShouldEqual, 9)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6000")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfigPath, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv(config.EnvConfigPath, "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("COREP_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-numeric top_k", func() {
			_ = os.Setenv("COREP_RETRIEVAL_TOP_K", "many")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fail to unmarshal", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given configs with invalid values", t, func() {
		cases := map[string]func(*config.Config){
			"retrieval_top_k":       func(c *config.Config) { c.RetrievalTopK = 0 },
			"rate_limit_rps":        func(c *config.Config) { c.RateLimitRPS = 0 },
			"rate_limit_burst":      func(c *config.Config) { c.RateLimitBurst = 0 },
			"excerpt_chars":         func(c *config.Config) { c.ExcerptChars = 0 },
			"report_history":        func(c *config.Config) { c.ReportHistory = 0 },
			"extraction_max_tokens": func(c *config.Config) { c.ExtractionMaxTokens = 0 },
			"extraction_timeout_ms": func(c *config.Config) { c.ExtractionTimeoutMS = 0 },
			"cache_ttl_seconds":     func(c *config.Config) { c.CacheTTLSeconds = -1 },
			"metrics_refresh":       func(c *config.Config) { c.MetricsRefreshSeconds = 0 },
			"metrics_labels":        func(c *config.Config) { c.MetricsLabels = []string{"=eu-1"} },
			"metrics_latency":       func(c *config.Config) { c.MetricsLatencyBuckets = []float64{10, 5} },
		}

		for key, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, key)
		}
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "corep-config-*")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
