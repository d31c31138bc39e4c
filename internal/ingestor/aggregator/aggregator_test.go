package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang-metrics-ingestor/internal/entity"
	"golang-metrics-ingestor/internal/ingestor/apperrors"
	"golang-metrics-ingestor/internal/ingestor/connector"
	"golang-metrics-ingestor/internal/ingestor/retry"
	"golang-metrics-ingestor/pkg/common"
	"golang-metrics-ingestor/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	name  string
	calls atomic.Int32
	fetch func(ctx context.Context, ticker string) ([]entity.MetricRecord, error)
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Fetch(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
	f.calls.Add(1)
	return f.fetch(ctx, ticker)
}

func record(metricType, source string, value, confidence float64, observed time.Time) entity.MetricRecord {
	return entity.MetricRecord{
		MetricType:      metricType,
		Value:           &value,
		Unit:            "USD",
		PeriodType:      common.PeriodPointInTime,
		ObservationDate: observed,
		Source:          source,
		Confidence:      confidence,
	}
}

func staticConnector(name string, records []entity.MetricRecord) *fakeConnector {
	return &fakeConnector{
		name: name,
		fetch: func(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
			return records, nil
		},
	}
}

func failingConnector(name string, err error) *fakeConnector {
	return &fakeConnector{
		name: name,
		fetch: func(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
			return nil, err
		},
	}
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, RateLimitFactor: 2}
}

func newAggregator(conns ...connector.Connector) *Aggregator {
	return New(conns, fastRetry(), Config{
		CompanyTimeout:      5 * time.Second,
		SourceTimeout:       time.Second,
		SourcePriority:      []string{common.SourceFundamentals, common.SourceEquityQuote, common.SourceFilings, common.SourceNews},
		ExpectedMetricTypes: []string{common.MetricMarketCap, common.MetricPERatio},
	}, logger.NewNop())
}

func TestAggregate_MergesAcrossSources(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// The fundamentals source saw "None" for market cap, so it only emits the
	// P/E; the quote source carries the market cap.
	fundamentals := staticConnector(common.SourceFundamentals, []entity.MetricRecord{
		record(common.MetricPERatio, common.SourceFundamentals, 31.2, 0.9, day),
	})
	quotes := staticConnector(common.SourceEquityQuote, []entity.MetricRecord{
		record(common.MetricMarketCap, common.SourceEquityQuote, 4.2e9, 0.8, day),
	})

	result := newAggregator(fundamentals, quotes).Aggregate(context.Background(), "AAPL")

	require.True(t, result.Usable)
	require.Len(t, result.Metrics, 2)
	assert.ElementsMatch(t, []string{common.SourceFundamentals, common.SourceEquityQuote}, result.ContributingSources)
	assert.Empty(t, result.FailedSources)

	byType := map[string]entity.MetricRecord{}
	for _, r := range result.Metrics {
		byType[r.MetricType] = r
	}
	assert.Equal(t, 4.2e9, *byType[common.MetricMarketCap].Value)
	assert.Equal(t, common.SourceEquityQuote, byType[common.MetricMarketCap].Source)

	require.NotNil(t, result.Score)
	// Full coverage of the two expected types, mean confidence 0.85.
	assert.InDelta(t, 85.0, *result.Score, 0.001)
}

func TestAggregate_ConflictPrecedence(t *testing.T) {
	early := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		a, b       entity.MetricRecord
		wantSource string
	}{
		{
			"higher confidence wins",
			record(common.MetricMarketCap, common.SourceEquityQuote, 1e9, 0.8, late),
			record(common.MetricMarketCap, common.SourceFundamentals, 2e9, 0.9, early),
			common.SourceFundamentals,
		},
		{
			"tied confidence prefers later observation",
			record(common.MetricMarketCap, common.SourceEquityQuote, 1e9, 0.9, late),
			record(common.MetricMarketCap, common.SourceFundamentals, 2e9, 0.9, early),
			common.SourceEquityQuote,
		},
		{
			"full tie falls back to source priority",
			record(common.MetricMarketCap, common.SourceEquityQuote, 1e9, 0.9, late),
			record(common.MetricMarketCap, common.SourceFundamentals, 2e9, 0.9, late),
			common.SourceFundamentals,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connA := staticConnector(common.SourceEquityQuote, []entity.MetricRecord{tt.a})
			connB := staticConnector(common.SourceFundamentals, []entity.MetricRecord{tt.b})

			result := newAggregator(connA, connB).Aggregate(context.Background(), "AAPL")

			require.True(t, result.Usable)
			require.Len(t, result.Metrics, 1)
			assert.Equal(t, tt.wantSource, result.Metrics[0].Source)
		})
	}
}

func TestAggregate_MergeIsDeterministic(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	conns := []connector.Connector{
		staticConnector(common.SourceEquityQuote, []entity.MetricRecord{
			record(common.MetricMarketCap, common.SourceEquityQuote, 1e9, 0.9, day),
			record(common.MetricPERatio, common.SourceEquityQuote, 30, 0.9, day),
		}),
		staticConnector(common.SourceFundamentals, []entity.MetricRecord{
			record(common.MetricMarketCap, common.SourceFundamentals, 2e9, 0.9, day),
			record(common.MetricPERatio, common.SourceFundamentals, 31, 0.9, day),
		}),
	}

	agg := newAggregator(conns...)
	first := agg.Aggregate(context.Background(), "AAPL")
	second := agg.Aggregate(context.Background(), "AAPL")

	require.Equal(t, len(first.Metrics), len(second.Metrics))
	for i := range first.Metrics {
		assert.Equal(t, first.Metrics[i].MetricType, second.Metrics[i].MetricType)
		assert.Equal(t, first.Metrics[i].Source, second.Metrics[i].Source)
		assert.Equal(t, *first.Metrics[i].Value, *second.Metrics[i].Value)
	}
}

func TestAggregate_AllSourcesNoData(t *testing.T) {
	noData := func(source string) error {
		return apperrors.New(apperrors.CategoryNoData, source, "ZZZZ", errors.New("nothing"))
	}
	agg := newAggregator(
		failingConnector(common.SourceEquityQuote, noData(common.SourceEquityQuote)),
		failingConnector(common.SourceFundamentals, noData(common.SourceFundamentals)),
		failingConnector(common.SourceFilings, noData(common.SourceFilings)),
	)

	result := agg.Aggregate(context.Background(), "ZZZZ")

	assert.False(t, result.Usable)
	assert.Nil(t, result.Score)
	assert.Empty(t, result.Metrics)
	require.Len(t, result.FailedSources, 3)
	for _, failure := range result.FailedSources {
		assert.Equal(t, apperrors.CategoryNoData, failure.Category)
		assert.Equal(t, 0, failure.Retries)
	}
}

func TestAggregate_PartialFailureIsNotAnError(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	healthy := staticConnector(common.SourceFundamentals, []entity.MetricRecord{
		record(common.MetricMarketCap, common.SourceFundamentals, 2e9, 0.9, day),
	})
	broken := failingConnector(common.SourceEquityQuote,
		apperrors.New(apperrors.CategoryValidationError, common.SourceEquityQuote, "MSFT", errors.New("got AAPL")))

	result := newAggregator(healthy, broken).Aggregate(context.Background(), "MSFT")

	assert.True(t, result.Usable)
	require.Len(t, result.FailedSources, 1)
	assert.Equal(t, apperrors.CategoryValidationError, result.FailedSources[0].Category)
	assert.Equal(t, []string{common.SourceFundamentals}, result.ContributingSources)
	require.Len(t, result.Metrics, 1)
}

func TestAggregate_RetryableFailuresAreRetriedPerSource(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	flaky := &fakeConnector{name: common.SourceEquityQuote}
	flaky.fetch = func(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
		if flaky.calls.Load() <= 2 {
			return nil, apperrors.New(apperrors.CategoryNetworkError, flaky.name, ticker, errors.New("reset"))
		}
		return []entity.MetricRecord{record(common.MetricMarketCap, flaky.name, 1e9, 0.8, day)}, nil
	}

	result := newAggregator(flaky).Aggregate(context.Background(), "AAPL")

	assert.True(t, result.Usable)
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, 2, result.RetriesIssued)
}

func TestAggregate_ValidationFailureNotRetried(t *testing.T) {
	broken := failingConnector(common.SourceEquityQuote,
		apperrors.New(apperrors.CategoryValidationError, common.SourceEquityQuote, "MSFT", errors.New("got AAPL")))

	result := newAggregator(broken).Aggregate(context.Background(), "MSFT")

	assert.False(t, result.Usable)
	fc := broken
	assert.Equal(t, int32(1), fc.calls.Load())
}

func TestAggregate_CompanyDeadlineCancelsStragglers(t *testing.T) {
	stuck := &fakeConnector{name: common.SourceNews}
	stuck.fetch = func(ctx context.Context, ticker string) ([]entity.MetricRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	agg := New([]connector.Connector{stuck}, retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Config{
			CompanyTimeout: 50 * time.Millisecond,
			SourceTimeout:  10 * time.Second,
			SourcePriority: []string{common.SourceNews},
		}, logger.NewNop())

	result := agg.Aggregate(context.Background(), "AAPL")

	assert.False(t, result.Usable)
	require.Len(t, result.FailedSources, 1)
	assert.Equal(t, apperrors.CategoryTimeoutError, result.FailedSources[0].Category)
}
