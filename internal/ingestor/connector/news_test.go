package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang-metrics-ingestor/internal/ingestor/apperrors"
	"golang-metrics-ingestor/internal/ingestor/config"
	"golang-metrics-ingestor/pkg/common"
	"golang-metrics-ingestor/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rssBody(pubDates ...time.Time) string {
	items := ""
	for i, d := range pubDates {
		items += fmt.Sprintf(`<item><title>Article %d</title><link>https://example.com/%d</link><pubDate>%s</pubDate></item>`,
			i, i, d.Format(time.RFC1123Z))
	}
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>Company News</title>` + items + `</channel></rss>`
}

func newNewsConnector(t *testing.T, handler http.HandlerFunc) *NewsConnector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewNewsConnector(config.News{
		FeedURL:             server.URL,
		MaxRequestPerMinute: 6000,
		Confidence:          0.5,
		LookbackDays:        7,
	}, 5*time.Second, logger.NewNop())
}

func TestNewsFetch_CountsRecentArticles(t *testing.T) {
	now := time.Now().UTC()
	conn := newNewsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody(
			now.Add(-24*time.Hour),
			now.Add(-72*time.Hour),
			now.Add(-30*24*time.Hour), // outside the lookback window
		))
	})

	records, err := conn.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, common.MetricNewsVolume, record.MetricType)
	require.NotNil(t, record.Value)
	assert.Equal(t, 2.0, *record.Value)
	assert.Equal(t, common.SourceNews, record.Source)
	assert.Equal(t, 0.5, record.Confidence)
}

func TestNewsFetch_EmptyFeedIsMeasuredZero(t *testing.T) {
	conn := newNewsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody())
	})

	records, err := conn.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Value)
	assert.Equal(t, 0.0, *records[0].Value)
}

func TestNewsFetch_FeedCached(t *testing.T) {
	var hits atomic.Int32
	now := time.Now().UTC()
	conn := newNewsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, rssBody(now.Add(-time.Hour)))
	})

	_, err := conn.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = conn.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestNewsFetch_RateLimited(t *testing.T) {
	conn := newNewsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := conn.Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	category := apperrors.Classify(err)
	assert.Equal(t, apperrors.CategoryRateLimitError, category)
	assert.True(t, category.Retryable())
}
