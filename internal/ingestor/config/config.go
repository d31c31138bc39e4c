package config

import (
	"time"

	"golang-metrics-ingestor/internal/ingestor/retry"
	"golang-metrics-ingestor/pkg/common"
	"golang-metrics-ingestor/pkg/config"
)

// Ingestor holds settings for the ingestion run orchestrator.
type Ingestor struct {
	Tickers                []string      `mapstructure:"tickers"`
	MaxConcurrentCompanies int           `mapstructure:"max_concurrent_companies"`
	CompanyTimeout         time.Duration `mapstructure:"company_timeout"`
	SourceTimeout          time.Duration `mapstructure:"source_timeout"`
	Schedule               string        `mapstructure:"schedule"`
	SourcePriority         []string      `mapstructure:"source_priority"`
	ExpectedMetricTypes    []string      `mapstructure:"expected_metric_types"`
}

// Provider holds the settings shared by the JSON API providers.
type Provider struct {
	BaseURL             string  `mapstructure:"base_url"`
	APIKey              string  `mapstructure:"api_key"`
	MaxRequestPerMinute int     `mapstructure:"max_request_per_minute"`
	Confidence          float64 `mapstructure:"confidence"`
}

// News holds the settings for the RSS news provider.
type News struct {
	FeedURL             string  `mapstructure:"feed_url"`
	MaxRequestPerMinute int     `mapstructure:"max_request_per_minute"`
	Confidence          float64 `mapstructure:"confidence"`
	LookbackDays        int     `mapstructure:"lookback_days"`
}

// Config holds the full configuration for the ingestion service.
type Config struct {
	App          config.App      `mapstructure:"app"`
	Logger       config.Logger   `mapstructure:"logger"`
	Database     config.Database `mapstructure:"database"`
	Redis        config.Redis    `mapstructure:"redis"`
	Ingestor     Ingestor        `mapstructure:"ingestor"`
	Retry        retry.Config    `mapstructure:"retry"`
	EquityQuote  Provider        `mapstructure:"equity_quote"`
	Fundamentals Provider        `mapstructure:"fundamentals"`
	Filings      Provider        `mapstructure:"filings"`
	News         News            `mapstructure:"news"`
}

// Load loads the ingestion service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Ingestor.MaxConcurrentCompanies <= 0 {
		c.Ingestor.MaxConcurrentCompanies = 5
	}
	if c.Ingestor.CompanyTimeout <= 0 {
		c.Ingestor.CompanyTimeout = 2 * time.Minute
	}
	if c.Ingestor.SourceTimeout <= 0 {
		c.Ingestor.SourceTimeout = 30 * time.Second
	}
	if len(c.Ingestor.SourcePriority) == 0 {
		c.Ingestor.SourcePriority = []string{
			common.SourceFundamentals,
			common.SourceEquityQuote,
			common.SourceFilings,
			common.SourceNews,
		}
	}
	if len(c.Ingestor.ExpectedMetricTypes) == 0 {
		c.Ingestor.ExpectedMetricTypes = []string{
			common.MetricMarketPrice,
			common.MetricMarketCap,
			common.MetricPERatio,
			common.MetricEPS,
			common.MetricRevenue,
			common.MetricDividendYield,
			common.MetricProfitMargin,
			common.MetricReturnOnEquity,
		}
	}

	def := retry.DefaultConfig()
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.MaxAttempts
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = def.BaseDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = def.MaxDelay
	}
	if c.Retry.RateLimitFactor <= 0 {
		c.Retry.RateLimitFactor = def.RateLimitFactor
	}

	if c.News.LookbackDays <= 0 {
		c.News.LookbackDays = 7
	}
}
