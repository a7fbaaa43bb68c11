// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Provider  ProviderConfig  `yaml:"provider" mapstructure:"provider"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Shortlist ShortlistConfig `yaml:"shortlist" mapstructure:"shortlist"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProviderConfig configures the financial-data provider client.
type ProviderConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	APIVersion   string  `yaml:"api_version" mapstructure:"api_version"`
	Country      string  `yaml:"country" mapstructure:"country"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	HistoryYears int     `yaml:"history_years" mapstructure:"history_years"`
	PageSize     int     `yaml:"page_size" mapstructure:"page_size"`
}

// AnthropicConfig holds Anthropic API settings for deal-likelihood estimation.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures batch stage execution.
type PipelineConfig struct {
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	CheckpointEveryN int    `yaml:"checkpoint_every_n" mapstructure:"checkpoint_every_n"`
	CodeMapPath      string `yaml:"code_map_path" mapstructure:"code_map_path"`
	View             string `yaml:"view" mapstructure:"view"`
	WindowYears      int    `yaml:"window_years" mapstructure:"window_years"`
}

// Band is a floor/ceiling pair for the piecewise-linear normalization of one
// sub-metric: value<=floor -> 0, value>=ceiling -> 100, linear in between.
type Band struct {
	Floor   float64 `yaml:"floor" mapstructure:"floor"`
	Ceiling float64 `yaml:"ceiling" mapstructure:"ceiling"`
}

// ScoringConfig carries every tunable of the scoring engine. It is passed
// explicitly into the engine at call time so a historical score can be
// reproduced from the configuration active when it was computed.
type ScoringConfig struct {
	// Business-quality sub-score weights (should sum to 100).
	ROEWeight         float64 `yaml:"roe_weight" mapstructure:"roe_weight"`
	MarginWeight      float64 `yaml:"margin_weight" mapstructure:"margin_weight"`
	RevenueCAGRWeight float64 `yaml:"revenue_cagr_weight" mapstructure:"revenue_cagr_weight"`
	EBITDACAGRWeight  float64 `yaml:"ebitda_cagr_weight" mapstructure:"ebitda_cagr_weight"`
	EquityRatioWeight float64 `yaml:"equity_ratio_weight" mapstructure:"equity_ratio_weight"`
	ScaleWeight       float64 `yaml:"scale_weight" mapstructure:"scale_weight"`

	// Normalization bands per sub-metric.
	ROEBand         Band `yaml:"roe_band" mapstructure:"roe_band"`
	MarginBand      Band `yaml:"margin_band" mapstructure:"margin_band"`
	CAGRBand        Band `yaml:"cagr_band" mapstructure:"cagr_band"`
	EquityRatioBand Band `yaml:"equity_ratio_band" mapstructure:"equity_ratio_band"`
	EBITScaleBand   Band `yaml:"ebit_scale_band" mapstructure:"ebit_scale_band"`
	TicketFitBand   Band `yaml:"ticket_fit_band" mapstructure:"ticket_fit_band"`

	// Stability multiplier tuning.
	StabilityMinPeriods    int     `yaml:"stability_min_periods" mapstructure:"stability_min_periods"`
	StabilityShortCap      float64 `yaml:"stability_short_cap" mapstructure:"stability_short_cap"`
	StabilityNegativeStep  float64 `yaml:"stability_negative_step" mapstructure:"stability_negative_step"`
	StabilityVolatilityRef float64 `yaml:"stability_volatility_ref" mapstructure:"stability_volatility_ref"`

	// Deployability sub-score blend (scale vs ticket fit, should sum to 100).
	DeployScaleWeight  float64 `yaml:"deploy_scale_weight" mapstructure:"deploy_scale_weight"`
	DeployTicketWeight float64 `yaml:"deploy_ticket_weight" mapstructure:"deploy_ticket_weight"`

	// Quality = BusinessShare% business-quality + (100-BusinessShare)% deployability.
	BusinessShare float64 `yaml:"business_share" mapstructure:"business_share"`
}

// ShortlistConfig configures shortlist generation.
type ShortlistConfig struct {
	Size           int `yaml:"size" mapstructure:"size"`
	CooldownMonths int `yaml:"cooldown_months" mapstructure:"cooldown_months"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so the env bindings reach Unmarshal.
	v.SetDefault("store.database_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("anthropic.key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("provider.base_url", "https://api.proff.no")
	v.SetDefault("provider.api_version", "1.1")
	v.SetDefault("provider.country", "NO")
	v.SetDefault("provider.rate_per_sec", 5.0)
	v.SetDefault("provider.max_retries", 6)
	v.SetDefault("provider.timeout_secs", 30)
	v.SetDefault("provider.history_years", 5)
	v.SetDefault("provider.page_size", 100)

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)

	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.checkpoint_every_n", 25)
	v.SetDefault("pipeline.code_map_path", "codemap.yaml")
	v.SetDefault("pipeline.view", "company")
	v.SetDefault("pipeline.window_years", 4)

	// Business-quality weights (sum = 100).
	v.SetDefault("scoring.roe_weight", 25.0)
	v.SetDefault("scoring.margin_weight", 20.0)
	v.SetDefault("scoring.revenue_cagr_weight", 15.0)
	v.SetDefault("scoring.ebitda_cagr_weight", 10.0)
	v.SetDefault("scoring.equity_ratio_weight", 15.0)
	v.SetDefault("scoring.scale_weight", 15.0)

	// Normalization bands. Ratios are fractions; scale bands are in kNOK.
	v.SetDefault("scoring.roe_band.floor", 0.0)
	v.SetDefault("scoring.roe_band.ceiling", 0.25)
	v.SetDefault("scoring.margin_band.floor", 0.0)
	v.SetDefault("scoring.margin_band.ceiling", 0.20)
	v.SetDefault("scoring.cagr_band.floor", -0.05)
	v.SetDefault("scoring.cagr_band.ceiling", 0.20)
	v.SetDefault("scoring.equity_ratio_band.floor", 0.10)
	v.SetDefault("scoring.equity_ratio_band.ceiling", 0.50)
	v.SetDefault("scoring.ebit_scale_band.floor", 20_000.0)
	v.SetDefault("scoring.ebit_scale_band.ceiling", 200_000.0)
	v.SetDefault("scoring.ticket_fit_band.floor", 200_000.0)
	v.SetDefault("scoring.ticket_fit_band.ceiling", 2_000_000.0)

	v.SetDefault("scoring.stability_min_periods", 3)
	v.SetDefault("scoring.stability_short_cap", 0.8)
	v.SetDefault("scoring.stability_negative_step", 0.25)
	v.SetDefault("scoring.stability_volatility_ref", 0.15)

	v.SetDefault("scoring.deploy_scale_weight", 60.0)
	v.SetDefault("scoring.deploy_ticket_weight", 40.0)
	v.SetDefault("scoring.business_share", 70.0)

	v.SetDefault("shortlist.size", 10)
	v.SetDefault("shortlist.cooldown_months", 12)

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
