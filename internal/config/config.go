package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AI providers accepted in ai.provider.
const (
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
)

// Config holds the full application configuration.
type Config struct {
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	ContactOut ContactOutConfig `yaml:"contactout" mapstructure:"contactout"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AIConfig selects the grounded search backend.
type AIConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	// Repair enables a second model pass over unparseable responses.
	Repair bool `yaml:"repair" mapstructure:"repair"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	RepairModel string `yaml:"repair_model" mapstructure:"repair_model"`
}

// ContactOutConfig holds ContactOut API settings.
type ContactOutConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// CRMConfig configures the CRM ingestion webhook.
type CRMConfig struct {
	WebhookURL      string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TenantSubdomain string `yaml:"tenant_subdomain" mapstructure:"tenant_subdomain"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts     int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ResearchConfig configures company research.
type ResearchConfig struct {
	RequestTimeoutSecs int    `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	TaxonomyPath       string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
	StrictFences       bool   `yaml:"strict_fences" mapstructure:"strict_fences"`
}

// EnrichmentConfig configures per-contact enrichment.
type EnrichmentConfig struct {
	Workers            int     `yaml:"workers" mapstructure:"workers"`
	RateLimitRPS       float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// SearchConfig tunes retries and the circuit breaker around the AI service.
type SearchConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// StoreConfig configures the run log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run log alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	// MinFinished is how many finished runs a kind needs before its
	// failure rate is judged.
	MinFinished int `yaml:"min_finished" mapstructure:"min_finished"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets and optional values have no default but must be known to
	// viper for env overrides to reach Unmarshal.
	for _, key := range []string{
		"gemini.key", "gemini.base_url", "perplexity.key", "anthropic.key",
		"contactout.key", "crm.webhook_url", "research.taxonomy_path",
		"store.database_url", "monitoring.webhook_url",
	} {
		v.SetDefault(key, "")
	}

	// Defaults
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.repair", false)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.repair_model", "claude-haiku-4-5-20251001")
	v.SetDefault("contactout.base_url", "https://api.contactout.com")
	v.SetDefault("contactout.enabled", false)
	v.SetDefault("contactout.rate_limit_rps", 1.0)
	v.SetDefault("crm.tenant_subdomain", "sells")
	v.SetDefault("crm.timeout_secs", 10)
	v.SetDefault("crm.max_attempts", 1)
	v.SetDefault("research.request_timeout_secs", 120)
	v.SetDefault("research.strict_fences", false)
	v.SetDefault("enrichment.workers", 4)
	v.SetDefault("enrichment.rate_limit_rps", 2.0)
	v.SetDefault("enrichment.request_timeout_secs", 90)
	v.SetDefault("search.max_attempts", 3)
	v.SetDefault("search.failure_threshold", 5)
	v.SetDefault("search.reset_timeout_secs", 30)
	v.SetDefault("store.driver", "none")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_finished", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
