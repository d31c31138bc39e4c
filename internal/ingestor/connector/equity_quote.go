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
)

// EquityQuoteConnector fetches point-in-time quote metrics (price, market
// cap, valuation ratios) from the equity quote provider.
type EquityQuoteConnector struct {
	cfg        config.Provider
	log        *logger.Logger
	transport  *transport
	confidence float64
}

// NewEquityQuoteConnector creates an equity quote connector with its own
// provider-wide rate limiter.
func NewEquityQuoteConnector(cfg config.Provider, sourceTimeout time.Duration, log *logger.Logger) *EquityQuoteConnector {
	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = 0.8
	}
	return &EquityQuoteConnector{
		cfg:        cfg,
		log:        log,
		transport:  newTransport(common.SourceEquityQuote, cfg.MaxRequestPerMinute, sourceTimeout, log),
		confidence: confidence,
	}
}

// Name returns the source identifier stamped onto records.
func (c *EquityQuoteConnector) Name() string {
	return common.SourceEquityQuote
}

// Fetch retrieves the quote for one ticker and maps it to metric records.
func (c *EquityQuoteConnector) Fetch(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	reqURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.cfg.BaseURL, url.QueryEscape(ticker))

	var resp dto.EquityQuoteResponse
	if err := c.transport.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	if resp.QuoteResponse.Error != nil {
		return nil, apperrors.Newf(apperrors.CategoryAPIFormatError, c.Name(), ticker,
			"provider error %s: %s", resp.QuoteResponse.Error.Code, resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, apperrors.Newf(apperrors.CategoryNoData, c.Name(), ticker, "no quote returned")
	}

	quote := resp.QuoteResponse.Result[0]
	if !strings.EqualFold(quote.Symbol, ticker) {
		return nil, apperrors.Newf(apperrors.CategoryValidationError, c.Name(), ticker,
			"provider returned symbol %q", quote.Symbol)
	}

	observed := utils.DateOnly(time.Now().UTC())
	unit := quote.Currency
	if unit == "" {
		unit = "USD"
	}

	fields := []struct {
		metricType string
		raw        interface{}
		unit       string
	}{
		{common.MetricMarketPrice, quote.RegularMarketPrice, unit},
		{common.MetricMarketCap, quote.MarketCap, unit},
		{common.MetricPERatio, quote.TrailingPE, "ratio"},
		{common.MetricForwardPERatio, quote.ForwardPE, "ratio"},
		{common.MetricBeta, quote.Beta, "ratio"},
		{common.MetricFiftyTwoWeekHigh, quote.FiftyTwoWeekHigh, unit},
		{common.MetricFiftyTwoWeekLow, quote.FiftyTwoWeekLow, unit},
		{common.MetricEmployeeCount, quote.FullTimeEmployees, "count"},
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
			PeriodType:      common.PeriodPointInTime,
			ObservationDate: observed,
			Source:          c.Name(),
			Confidence:      c.confidence,
		})
	}

	if len(records) == 0 {
		return nil, apperrors.Newf(apperrors.CategoryDataQualityError, c.Name(), ticker,
			"quote payload contained no usable numeric fields")
	}

	c.log.DebugContext(ctx, "Fetched equity quote metrics",
		logger.StringField("ticker", ticker),
		logger.IntField("metrics", len(records)))

	return records, nil
}
