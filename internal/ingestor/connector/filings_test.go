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

const submissionsBody = `{
	"cik":"0000320193",
	"name":"Apple Inc.",
	"tickers":["AAPL"],
	"filings":{"recent":{
		"accessionNumber":["0000320193-24-000069","0000320193-24-000006",""],
		"filingDate":["2024-05-03","2024-02-02","2024-01-01"],
		"form":["10-Q","10-K","8-K"],
		"primaryDocument":["aapl-20240330.htm","aapl-20230930.htm",""]
	}}
}`

func newFilingsConnector(t *testing.T, handler http.HandlerFunc) *FilingsConnector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewFilingsConnector(config.Provider{
		BaseURL:             server.URL,
		MaxRequestPerMinute: 6000,
		Confidence:          0.95,
	}, 5*time.Second, logger.NewNop())
}

func TestFilingsFetch(t *testing.T) {
	conn := newFilingsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("ticker"))
		fmt.Fprint(w, submissionsBody)
	})

	records, err := conn.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, common.MetricFilingCount, record.MetricType)
	require.NotNil(t, record.Value)
	assert.Equal(t, 3.0, *record.Value)
	assert.Equal(t, common.SourceFilings, record.Source)
	assert.Equal(t, 0.95, record.Confidence)
}

func TestFilingsFetchFilings(t *testing.T) {
	conn := newFilingsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, submissionsBody)
	})

	filings, cik, err := conn.FetchFilings(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)
	// The entry with an empty accession number is dropped.
	require.Len(t, filings, 2)

	assert.Equal(t, "10-Q", filings[0].FilingType)
	assert.Equal(t, "0000320193-24-000069", filings[0].AccessionNumber)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), filings[0].FilingDate)
	assert.NotEmpty(t, filings[0].ContentHash)
	assert.Contains(t, string(filings[0].Sections), "aapl-20240330.htm")
}

func TestFilings_SubmissionsCachedAcrossCalls(t *testing.T) {
	var hits atomic.Int32
	conn := newFilingsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, submissionsBody)
	})

	_, err := conn.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	_, _, err = conn.FetchFilings(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestFilingsFetch_TickerMismatch(t *testing.T) {
	conn := newFilingsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"cik":"123","name":"Other Corp","tickers":["OTHR"],"filings":{"recent":{}}}`)
	})

	_, err := conn.Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryValidationError, apperrors.Classify(err))
}

func TestFilingsFetch_NoData(t *testing.T) {
	conn := newFilingsConnector(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := conn.Fetch(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryNoData, apperrors.Classify(err))
}
