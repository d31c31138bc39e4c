package connector

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
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

// FilingsConnector fetches the regulator submissions document for a company.
// It contributes a filing-count metric to aggregation and separately exposes
// the parsed filings for persistence. The decoded submissions document is
// cached per ticker so both paths share one API call per run.
type FilingsConnector struct {
	cfg             config.Provider
	log             *logger.Logger
	transport       *transport
	confidence      float64
	submissionCache *cache.Cache
}

// NewFilingsConnector creates a filings connector with its own provider-wide
// rate limiter.
func NewFilingsConnector(cfg config.Provider, sourceTimeout time.Duration, log *logger.Logger) *FilingsConnector {
	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = 0.95
	}
	return &FilingsConnector{
		cfg:             cfg,
		log:             log,
		transport:       newTransport(common.SourceFilings, cfg.MaxRequestPerMinute, sourceTimeout, log),
		confidence:      confidence,
		submissionCache: cache.New(10*time.Minute, 15*time.Minute),
	}
}

// Name returns the source identifier stamped onto records.
func (c *FilingsConnector) Name() string {
	return common.SourceFilings
}

// Fetch retrieves the submissions document and maps it to a filing-count
// metric.
func (c *FilingsConnector) Fetch(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
	resp, err := c.submissions(ctx, ticker)
	if err != nil {
		return nil, err
	}

	count := float64(len(resp.Filings.Recent.AccessionNumber))
	records := []entity.MetricRecord{{
		MetricType:      common.MetricFilingCount,
		Value:           &count,
		Unit:            "count",
		PeriodType:      common.PeriodPointInTime,
		ObservationDate: utils.DateOnly(time.Now().UTC()),
		Source:          c.Name(),
		Confidence:      c.confidence,
	}}

	c.log.DebugContext(ctx, "Fetched filings metrics",
		logger.StringField("ticker", ticker),
		logger.IntField("filings", int(count)))

	return records, nil
}

// FetchFilings parses the recent filings out of the submissions document.
func (c *FilingsConnector) FetchFilings(ctx context.Context, ticker string) ([]entity.Filing, string, error) {
	resp, err := c.submissions(ctx, ticker)
	if err != nil {
		return nil, "", err
	}

	recent := resp.Filings.Recent
	filings := make([]entity.Filing, 0, len(recent.AccessionNumber))
	for i, accession := range recent.AccessionNumber {
		if accession == "" || i >= len(recent.FilingDate) || i >= len(recent.Form) {
			continue
		}
		filingDate, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			c.log.WarnContext(ctx, "Skipping filing with malformed date",
				logger.StringField("ticker", ticker),
				logger.StringField("accession_number", accession),
				logger.StringField("filing_date", recent.FilingDate[i]))
			continue
		}

		sections := map[string]string{}
		if i < len(recent.PrimaryDocument) && recent.PrimaryDocument[i] != "" {
			sections["primary_document"] = recent.PrimaryDocument[i]
		}
		sectionsJSON, _ := json.Marshal(sections)

		hash := md5.Sum([]byte(accession))
		filings = append(filings, entity.Filing{
			FilingType:      recent.Form[i],
			FilingDate:      utils.DateOnly(filingDate),
			AccessionNumber: accession,
			ContentHash:     hex.EncodeToString(hash[:]),
			Sections:        sectionsJSON,
		})
	}

	return filings, resp.CIK, nil
}

func (c *FilingsConnector) submissions(ctx context.Context, ticker string) (*dto.FilingsResponse, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if cached, ok := c.submissionCache.Get(ticker); ok {
		return cached.(*dto.FilingsResponse), nil
	}

	reqURL := fmt.Sprintf("%s/submissions?ticker=%s", c.cfg.BaseURL, url.QueryEscape(ticker))

	var resp dto.FilingsResponse
	if err := c.transport.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	if resp.CIK == "" && len(resp.Tickers) == 0 {
		return nil, apperrors.Newf(apperrors.CategoryNoData, c.Name(), ticker, "no submissions for ticker")
	}
	if !resp.HasTicker(ticker) {
		return nil, apperrors.Newf(apperrors.CategoryValidationError, c.Name(), ticker,
			"submissions document lists tickers %v", resp.Tickers)
	}

	c.submissionCache.SetDefault(ticker, &resp)
	return &resp, nil
}
