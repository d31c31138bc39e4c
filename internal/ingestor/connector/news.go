package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang-metrics-ingestor/internal/entity"
	"golang-metrics-ingestor/internal/ingestor/apperrors"
	"golang-metrics-ingestor/internal/ingestor/config"
	"golang-metrics-ingestor/pkg/common"
	"golang-metrics-ingestor/pkg/logger"
	"golang-metrics-ingestor/pkg/utils"

	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// NewsConnector measures news coverage for a company from an RSS feed. It
// contributes a single news-volume metric: the number of articles published
// inside the lookback window. Feed fetches are cached briefly since several
// aggregation passes can land on the same feed.
type NewsConnector struct {
	cfg            config.News
	log            *logger.Logger
	parser         *gofeed.Parser
	requestLimiter *rate.Limiter
	feedCache      *cache.Cache
	confidence     float64
}

// NewNewsConnector creates a news connector with its own provider-wide rate
// limiter.
func NewNewsConnector(cfg config.News, sourceTimeout time.Duration, log *logger.Logger) *NewsConnector {
	maxPerMinute := cfg.MaxRequestPerMinute
	if maxPerMinute <= 0 {
		maxPerMinute = 30
	}
	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}
	if sourceTimeout <= 0 {
		sourceTimeout = 10 * time.Second
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: sourceTimeout}

	return &NewsConnector{
		cfg:            cfg,
		log:            log,
		parser:         parser,
		requestLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxPerMinute)), 1),
		feedCache:      cache.New(5*time.Minute, 10*time.Minute),
		confidence:     confidence,
	}
}

// Name returns the source identifier stamped onto records.
func (c *NewsConnector) Name() string {
	return common.SourceNews
}

// Fetch parses the company's news feed and maps it to a news-volume metric.
func (c *NewsConnector) Fetch(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	feed, err := c.loadFeed(ctx, ticker)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -c.cfg.LookbackDays)
	volume := 0.0
	for _, item := range feed.Items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published != nil && published.After(cutoff) {
			volume++
		}
	}

	c.log.DebugContext(ctx, "Fetched news volume",
		logger.StringField("ticker", ticker),
		logger.IntField("articles", int(volume)))

	return []entity.MetricRecord{{
		MetricType:      common.MetricNewsVolume,
		Value:           &volume,
		Unit:            "count",
		PeriodType:      common.PeriodPointInTime,
		ObservationDate: utils.DateOnly(time.Now().UTC()),
		Source:          c.Name(),
		Confidence:      c.confidence,
	}}, nil
}

func (c *NewsConnector) loadFeed(ctx context.Context, ticker string) (*gofeed.Feed, error) {
	if cached, ok := c.feedCache.Get(ticker); ok {
		return cached.(*gofeed.Feed), nil
	}

	if err := c.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	feedURL := fmt.Sprintf("%s?q=%s", c.cfg.FeedURL, url.QueryEscape(ticker))
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		if httpErr, ok := err.(gofeed.HTTPError); ok {
			return nil, &apperrors.StatusError{StatusCode: httpErr.StatusCode, Status: httpErr.Status}
		}
		return nil, err
	}

	c.feedCache.SetDefault(ticker, feed)
	return feed, nil
}
