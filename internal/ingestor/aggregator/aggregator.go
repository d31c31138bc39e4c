package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang-metrics-ingestor/internal/entity"
	"golang-metrics-ingestor/internal/ingestor/apperrors"
	"golang-metrics-ingestor/internal/ingestor/connector"
	"golang-metrics-ingestor/internal/ingestor/retry"
	"golang-metrics-ingestor/pkg/logger"
	"golang-metrics-ingestor/pkg/utils"

	"github.com/montanaflynn/stats"
)

// SourceFailure records one source's terminal failure for a company.
type SourceFailure struct {
	Source   string                  `json:"source"`
	Category apperrors.ErrorCategory `json:"category"`
	Retries  int                     `json:"retries"`
	Err      error                   `json:"-"`
}

// Result is the aggregation output for one company. It is transient: the
// repository persists only the metric records it contains. Score is nil when
// no source succeeded, since a zero would read as a measured poor score.
type Result struct {
	Ticker              string
	Metrics             []entity.MetricRecord
	ContributingSources []string
	FailedSources       []SourceFailure
	Score               *float64
	Usable              bool
	RetriesIssued       int
}

// Config holds the aggregation knobs.
type Config struct {
	CompanyTimeout      time.Duration
	SourceTimeout       time.Duration
	SourcePriority      []string
	ExpectedMetricTypes []string
}

// Aggregator fans one company's request out to every configured connector
// concurrently, retries each source independently, and merges the results
// under the conflict-resolution policy.
type Aggregator struct {
	connectors []connector.Connector
	retryCfg   retry.Config
	cfg        Config
	log        *logger.Logger
}

// New creates an aggregator over the given connectors.
func New(connectors []connector.Connector, retryCfg retry.Config, cfg Config, log *logger.Logger) *Aggregator {
	if cfg.CompanyTimeout <= 0 {
		cfg.CompanyTimeout = 2 * time.Minute
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 30 * time.Second
	}
	return &Aggregator{
		connectors: connectors,
		retryCfg:   retryCfg,
		cfg:        cfg,
		log:        log,
	}
}

type sourceOutcome struct {
	source  string
	records []entity.MetricRecord
	retries int
	err     error
}

// Aggregate queries every source for the ticker and merges the results.
// Partial success is not an error: failed sources are reported in the result
// and aggregation proceeds with whatever completed. When every source fails
// the result is marked unusable rather than returned as an error, so the
// orchestrator can log the outcome and continue.
func (a *Aggregator) Aggregate(ctx context.Context, ticker string) *Result {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.CompanyTimeout)
	defer cancel()

	outcomes := make([]sourceOutcome, len(a.connectors))
	var wg sync.WaitGroup

	for i, conn := range a.connectors {
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			outcomes[i] = a.fetchSource(ctx, conn, ticker)
		})
	}
	wg.Wait()

	result := &Result{Ticker: ticker}
	var successes []sourceOutcome
	for _, outcome := range outcomes {
		result.RetriesIssued += outcome.retries
		if outcome.err != nil {
			category := apperrors.Classify(outcome.err)
			result.FailedSources = append(result.FailedSources, SourceFailure{
				Source:   outcome.source,
				Category: category,
				Retries:  outcome.retries,
				Err:      outcome.err,
			})
			continue
		}
		successes = append(successes, outcome)
		result.ContributingSources = append(result.ContributingSources, outcome.source)
	}

	if len(successes) == 0 {
		a.log.WarnContext(ctx, "All sources failed for company",
			logger.StringField("ticker", ticker),
			logger.IntField("failed_sources", len(result.FailedSources)))
		return result
	}

	result.Metrics = a.merge(successes)
	result.Usable = true
	score := a.compositeScore(result.Metrics)
	result.Score = &score

	a.log.InfoContext(ctx, "Aggregated company metrics",
		logger.StringField("ticker", ticker),
		logger.IntField("metrics", len(result.Metrics)),
		logger.IntField("contributing_sources", len(result.ContributingSources)),
		logger.IntField("failed_sources", len(result.FailedSources)),
		logger.Float64Field("score", score))

	return result
}

func (a *Aggregator) fetchSource(ctx context.Context, conn connector.Connector, ticker string) sourceOutcome {
	records, retries, err := retry.Do(ctx, a.retryCfg, func(ctx context.Context) ([]entity.MetricRecord, error) {
		sourceCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
		defer cancel()
		return conn.Fetch(sourceCtx, ticker)
	})
	return sourceOutcome{source: conn.Name(), records: records, retries: retries, err: err}
}

// merge selects one record per (metric type, period type) key. Precedence:
// higher confidence, then later observation date, then the configured source
// priority order, then source name. The same multiset of inputs always
// produces the same selection.
func (a *Aggregator) merge(successes []sourceOutcome) []entity.MetricRecord {
	type mergeKey struct {
		metricType string
		periodType string
	}

	chosen := make(map[mergeKey]entity.MetricRecord)
	for _, outcome := range successes {
		for _, record := range outcome.records {
			key := mergeKey{metricType: record.MetricType, periodType: record.PeriodType}
			current, exists := chosen[key]
			if !exists || a.wins(record, current) {
				chosen[key] = record
			}
		}
	}

	merged := make([]entity.MetricRecord, 0, len(chosen))
	for _, record := range chosen {
		merged = append(merged, record)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].MetricType != merged[j].MetricType {
			return merged[i].MetricType < merged[j].MetricType
		}
		return merged[i].PeriodType < merged[j].PeriodType
	})
	return merged
}

// wins reports whether candidate beats current under the precedence rule.
func (a *Aggregator) wins(candidate, current entity.MetricRecord) bool {
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	if !candidate.ObservationDate.Equal(current.ObservationDate) {
		return candidate.ObservationDate.After(current.ObservationDate)
	}
	candidateRank := a.sourceRank(candidate.Source)
	currentRank := a.sourceRank(current.Source)
	if candidateRank != currentRank {
		return candidateRank < currentRank
	}
	return candidate.Source < current.Source
}

func (a *Aggregator) sourceRank(source string) int {
	for i, s := range a.cfg.SourcePriority {
		if s == source {
			return i
		}
	}
	return len(a.cfg.SourcePriority)
}

// compositeScore is a 0-100 quality score: the fraction of expected metric
// types actually populated, weighted by the mean confidence of the chosen
// records. The coefficients are tunable, not a contract.
func (a *Aggregator) compositeScore(merged []entity.MetricRecord) float64 {
	if len(merged) == 0 {
		return 0
	}

	confidences := make([]float64, 0, len(merged))
	populated := make(map[string]bool)
	for _, record := range merged {
		confidences = append(confidences, record.Confidence)
		populated[record.MetricType] = true
	}

	coverage := 1.0
	if len(a.cfg.ExpectedMetricTypes) > 0 {
		covered := 0
		for _, metricType := range a.cfg.ExpectedMetricTypes {
			if populated[metricType] {
				covered++
			}
		}
		coverage = float64(covered) / float64(len(a.cfg.ExpectedMetricTypes))
	}

	meanConfidence, err := stats.Mean(confidences)
	if err != nil {
		meanConfidence = 0
	}

	return coverage * meanConfidence * 100
}
