package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang-metrics-ingestor/internal/entity"
	"golang-metrics-ingestor/internal/ingestor/apperrors"
	"golang-metrics-ingestor/internal/ingestor/config"
	"golang-metrics-ingestor/internal/ingestor/dto"
	"golang-metrics-ingestor/pkg/common"
	"golang-metrics-ingestor/pkg/logger"
	"golang-metrics-ingestor/pkg/utils"

	"github.com/patrickmn/go-cache"
)

// FundamentalsConnector fetches the company overview document from the
// fundamentals provider. Every numeric field in that document may be the
// literal string "None", so extraction leans entirely on value coercion.
// The last overview per ticker is cached so company descriptive fields can
// be backfilled without a second API call.
type FundamentalsConnector struct {
	cfg           config.Provider
	log           *logger.Logger
	transport     *transport
	confidence    float64
	overviewCache *cache.Cache
}

// NewFundamentalsConnector creates a fundamentals connector with its own
// provider-wide rate limiter.
func NewFundamentalsConnector(cfg config.Provider, sourceTimeout time.Duration, log *logger.Logger) *FundamentalsConnector {
	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = 0.9
	}
	return &FundamentalsConnector{
		cfg:           cfg,
		log:           log,
		transport:     newTransport(common.SourceFundamentals, cfg.MaxRequestPerMinute, sourceTimeout, log),
		confidence:    confidence,
		overviewCache: cache.New(10*time.Minute, 15*time.Minute),
	}
}

// Name returns the source identifier stamped onto records.
func (c *FundamentalsConnector) Name() string {
	return common.SourceFundamentals
}

// Fetch retrieves the overview for one ticker and maps it to metric records.
func (c *FundamentalsConnector) Fetch(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	reqURL := fmt.Sprintf("%s/query?function=OVERVIEW&symbol=%s&apikey=%s",
		c.cfg.BaseURL, url.QueryEscape(ticker), url.QueryEscape(c.cfg.APIKey))

	var overview dto.FundamentalsOverview
	if err := c.transport.getJSON(ctx, reqURL, &overview); err != nil {
		return nil, err
	}

	// A throttled key gets a 200 with a Note/Information body instead of data.
	if overview.Note != "" || overview.Information != "" {
		msg := overview.Note
		if msg == "" {
			msg = overview.Information
		}
		return nil, apperrors.Newf(apperrors.CategoryRateLimitError, c.Name(), ticker, "provider throttled: %s", msg)
	}
	if overview.IsEmpty() {
		return nil, apperrors.Newf(apperrors.CategoryNoData, c.Name(), ticker, "empty overview document")
	}
	if !strings.EqualFold(overview.Symbol, ticker) {
		return nil, apperrors.Newf(apperrors.CategoryValidationError, c.Name(), ticker,
			"provider returned symbol %q", overview.Symbol)
	}

	c.overviewCache.SetDefault(ticker, overview)

	now := utils.DateOnly(time.Now().UTC())
	quarterEnd := now
	quarterly := common.PeriodPointInTime
	if parsed, err := time.Parse("2006-01-02", overview.LatestQuarter); err == nil {
		quarterEnd = utils.DateOnly(parsed)
		quarterly = common.PeriodQuarterly
	}

	unit := overview.Currency
	if unit == "" {
		unit = "USD"
	}

	fields := []struct {
		metricType string
		raw        string
		unit       string
		periodType string
		observed   time.Time
	}{
		{common.MetricMarketCap, overview.MarketCapitalization, unit, common.PeriodPointInTime, now},
		{common.MetricPERatio, overview.PERatio, "ratio", common.PeriodPointInTime, now},
		{common.MetricPEGRatio, overview.PEGRatio, "ratio", common.PeriodPointInTime, now},
		{common.MetricDividendYield, overview.DividendYield, "ratio", common.PeriodPointInTime, now},
		{common.MetricAnalystTarget, overview.AnalystTargetPrice, unit, common.PeriodPointInTime, now},
		{common.MetricEPS, overview.EPS, unit, quarterly, quarterEnd},
		{common.MetricRevenue, overview.RevenueTTM, unit, quarterly, quarterEnd},
		{common.MetricGrossMargin, overview.GrossProfitMargin, "ratio", quarterly, quarterEnd},
		{common.MetricOperatingMargin, overview.OperatingMarginTTM, "ratio", quarterly, quarterEnd},
		{common.MetricProfitMargin, overview.ProfitMargin, "ratio", quarterly, quarterEnd},
		{common.MetricReturnOnAssets, overview.ReturnOnAssetsTTM, "ratio", quarterly, quarterEnd},
		{common.MetricReturnOnEquity, overview.ReturnOnEquityTTM, "ratio", quarterly, quarterEnd},
		{common.MetricRevenueGrowthQoQ, overview.QuarterlyRevenueGrowthYOY, "ratio", quarterly, quarterEnd},
		{common.MetricEarningsGrowthYoY, overview.QuarterlyEarningsGrowthYOY, "ratio", quarterly, quarterEnd},
	}

	var records []entity.MetricRecord
	for _, f := range fields {
		value, ok := utils.ParseFloat(f.raw)
		if !ok {
			continue
		}
		v := value
		records = append(records, entity.MetricRecord{
			MetricType:      f.metricType,
			Value:           &v,
			Unit:            f.unit,
			PeriodType:      f.periodType,
			ObservationDate: f.observed,
			Source:          c.Name(),
			Confidence:      c.confidence,
		})
	}

	if len(records) == 0 {
		return nil, apperrors.Newf(apperrors.CategoryDataQualityError, c.Name(), ticker,
			"overview contained only sentinel values")
	}

	c.log.DebugContext(ctx, "Fetched fundamentals metrics",
		logger.StringField("ticker", ticker),
		logger.IntField("metrics", len(records)))

	return records, nil
}

// CompanyDefaults returns descriptive company fields from the most recently
// fetched overview for the ticker, for backfilling the companies table.
func (c *FundamentalsConnector) CompanyDefaults(ticker string) (entity.Company, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	cached, ok := c.overviewCache.Get(ticker)
	if !ok {
		return entity.Company{}, false
	}
	overview := cached.(dto.FundamentalsOverview)

	company := entity.Company{
		Name:   overview.Name,
		Sector: overview.Sector,
	}
	if overview.CIK != "" {
		cik := overview.CIK
		company.CIK = &cik
	}
	return company, true
}
