package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/leadflow/leadflow-server/pkg/gemini"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Gemini   GeminiConfig   `yaml:"gemini" mapstructure:"gemini"`
	ABR      ABRConfig      `yaml:"abr" mapstructure:"abr"`
	Serp     SerpConfig     `yaml:"serp" mapstructure:"serp"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	PromptsFile string `yaml:"prompts_file" mapstructure:"prompts_file"`
}

// ABRConfig holds business-registry API settings. The registry lookup falls
// back to Gemini search when no GUID is configured.
type ABRConfig struct {
	GUID    string `yaml:"guid" mapstructure:"guid"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerpConfig holds SERP search API settings.
type SerpConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NotifyConfig holds webhook notifier settings. Empty URL disables it.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	BasicUser   string `yaml:"basic_user" mapstructure:"basic_user"`
	BasicPass   string `yaml:"basic_pass" mapstructure:"basic_pass"`
	HeaderName  string `yaml:"header_name" mapstructure:"header_name"`
	HeaderValue string `yaml:"header_value" mapstructure:"header_value"`
}

// PipelineConfig configures pipeline execution.
type PipelineConfig struct {
	// DiscoverySource selects stage-1 implementation: "gemini" or "serp".
	DiscoverySource string `yaml:"discovery_source" mapstructure:"discovery_source"`

	// MaxConcurrentCandidates bounds per-candidate enrichment concurrency.
	MaxConcurrentCandidates int `yaml:"max_concurrent_candidates" mapstructure:"max_concurrent_candidates"`

	// RatePerSecond caps external-call throughput within one run.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`

	// DefaultLimit is the number of candidates requested when the caller
	// omits a limit.
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
}

// ScrapeConfig configures the fallback website scraper.
type ScrapeConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadflow.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("abr.base_url", "https://abr.business.gov.au/json")
	v.SetDefault("serp.base_url", "https://serpapi.com")
	v.SetDefault("pipeline.discovery_source", "gemini")
	v.SetDefault("pipeline.max_concurrent_candidates", 3)
	v.SetDefault("pipeline.rate_per_second", 2.0)
	v.SetDefault("pipeline.default_limit", 5)
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; LeadflowBot/1.0)")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Gemini.Key == "" && c.Pipeline.DiscoverySource == "gemini" {
		return eris.New("config: gemini.key is required (set LEADFLOW_GEMINI_KEY)")
	}
	if c.Pipeline.DiscoverySource == "serp" && c.Serp.Key == "" {
		return eris.New("config: serp.key is required when discovery_source is serp")
	}
	switch c.Pipeline.DiscoverySource {
	case "gemini", "serp":
	default:
		return eris.Errorf("config: unknown discovery_source %q", c.Pipeline.DiscoverySource)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// LoadPrompts returns the stage prompt templates, applying overrides from
// the configured prompts file when one is set.
func (c *GeminiConfig) LoadPrompts() (gemini.Prompts, error) {
	prompts := gemini.DefaultPrompts()
	if c.PromptsFile == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(c.PromptsFile)
	if err != nil {
		return prompts, eris.Wrapf(err, "config: read prompts file %s", c.PromptsFile)
	}

	var overrides gemini.Prompts
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return prompts, eris.Wrapf(err, "config: parse prompts file %s", c.PromptsFile)
	}
	return overrides.Merge(prompts), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
