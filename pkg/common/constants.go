package common

const (
	RedisStreamIngestionRunSummary = "ingestion.run.summary"

	RedisStreamGroup    = "ingestor-group"
	RedisStreamConsumer = "ingestor-consumer"
)

// Metric type identifiers shared by connectors, the aggregator and the
// repository read accessors.
const (
	MetricMarketPrice       = "market_price"
	MetricMarketCap         = "market_cap"
	MetricPERatio           = "pe_ratio"
	MetricForwardPERatio    = "forward_pe_ratio"
	MetricPEGRatio          = "peg_ratio"
	MetricBeta              = "beta"
	MetricFiftyTwoWeekHigh  = "fifty_two_week_high"
	MetricFiftyTwoWeekLow   = "fifty_two_week_low"
	MetricEmployeeCount     = "employee_count"
	MetricDividendYield     = "dividend_yield"
	MetricEPS               = "eps"
	MetricRevenue           = "revenue"
	MetricGrossMargin       = "gross_margin"
	MetricOperatingMargin   = "operating_margin"
	MetricProfitMargin      = "profit_margin"
	MetricReturnOnAssets    = "return_on_assets"
	MetricReturnOnEquity    = "return_on_equity"
	MetricRevenueGrowthQoQ  = "revenue_growth_qoq"
	MetricEarningsGrowthYoY = "earnings_growth_yoy"
	MetricAnalystTarget     = "analyst_target_price"
	MetricFilingCount       = "filing_count"
	MetricNewsVolume        = "news_volume"
)

// Period types for a metric observation.
const (
	PeriodQuarterly   = "quarterly"
	PeriodAnnual      = "annual"
	PeriodPointInTime = "point_in_time"
)

// Source identifiers stamped onto metric records.
const (
	SourceEquityQuote  = "equity_quote"
	SourceFundamentals = "fundamentals"
	SourceFilings      = "filings"
	SourceNews         = "news"
)
