package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang-metrics-ingestor/internal/entity"
	"golang-metrics-ingestor/internal/ingestor/aggregator"
	"golang-metrics-ingestor/internal/ingestor/apperrors"
	"golang-metrics-ingestor/internal/ingestor/config"
	"golang-metrics-ingestor/internal/ingestor/repository"
	"golang-metrics-ingestor/pkg/common"
	"golang-metrics-ingestor/pkg/logger"
	"golang-metrics-ingestor/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// persistenceFailure labels outcomes where aggregation succeeded but the
// repository write did not. It is deliberately distinct from the connector
// error taxonomy: repository writes are not retried by this layer.
const persistenceFailure = "persistence_error"

// IngestionOutcome is the per-company bookkeeping for one run.
type IngestionOutcome struct {
	Ticker         string   `json:"ticker"`
	Success        bool     `json:"success"`
	MetricsFetched int      `json:"metrics_fetched"`
	MetricsStored  int      `json:"metrics_stored"`
	ErrorCategory  string   `json:"error_category,omitempty"`
	Retries        int      `json:"retries"`
	Score          *float64 `json:"score,omitempty"`
}

// RunSummary is the run-level report consumed by operational monitoring.
type RunSummary struct {
	StartedAt          time.Time          `json:"started_at"`
	CompletedAt        time.Time          `json:"completed_at"`
	Processed          int                `json:"processed"`
	Succeeded          int                `json:"succeeded"`
	Failed             int                `json:"failed"`
	FailuresByCategory map[string]int     `json:"failures_by_category"`
	RetriesIssued      int                `json:"retries_issued"`
	Outcomes           []IngestionOutcome `json:"outcomes"`
}

// SuccessRate returns the fraction of processed companies that succeeded.
func (s *RunSummary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Processed)
}

// Aggregator is the per-company aggregation dependency.
type Aggregator interface {
	Aggregate(ctx context.Context, ticker string) *aggregator.Result
}

// FilingSource exposes parsed filings for persistence alongside metrics.
type FilingSource interface {
	FetchFilings(ctx context.Context, ticker string) ([]entity.Filing, string, error)
}

// CompanyDefaulter supplies descriptive company fields observed during
// aggregation, used to backfill the companies table.
type CompanyDefaulter interface {
	CompanyDefaults(ticker string) (entity.Company, bool)
}

// IngestionService runs one ingestion pass over the tracked-company
// universe.
type IngestionService interface {
	Run(ctx context.Context) (*RunSummary, error)
}

// NewIngestionService creates the run orchestrator. filingSource, defaulter
// and redisClient are optional; nil disables filing persistence, company
// backfill and summary publishing respectively.
func NewIngestionService(
	cfg *config.Config,
	log *logger.Logger,
	agg Aggregator,
	companyRepo repository.CompanyRepository,
	metricRepo repository.MetricRepository,
	filingRepo repository.FilingRepository,
	filingSource FilingSource,
	defaulter CompanyDefaulter,
	redisClient *redis.Client,
) IngestionService {
	return &ingestionService{
		cfg:          cfg,
		log:          log,
		aggregator:   agg,
		companyRepo:  companyRepo,
		metricRepo:   metricRepo,
		filingRepo:   filingRepo,
		filingSource: filingSource,
		defaulter:    defaulter,
		redisClient:  redisClient,
	}
}

type ingestionService struct {
	cfg          *config.Config
	log          *logger.Logger
	aggregator   Aggregator
	companyRepo  repository.CompanyRepository
	metricRepo   repository.MetricRepository
	filingRepo   repository.FilingRepository
	filingSource FilingSource
	defaulter    CompanyDefaulter
	redisClient  *redis.Client
}

// Run processes every tracked ticker with bounded parallelism. No company's
// failure halts the run; outcomes are collected into the summary.
func (s *ingestionService) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		StartedAt:          time.Now().UTC(),
		FailuresByCategory: map[string]int{},
	}

	tickers := s.cfg.Ingestor.Tickers
	s.log.Info("Starting ingestion run",
		logger.IntField("companies", len(tickers)),
		logger.IntField("max_concurrent", s.cfg.Ingestor.MaxConcurrentCompanies))

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, s.cfg.Ingestor.MaxConcurrentCompanies)

	for _, ticker := range tickers {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcome := s.processCompany(ctx, ticker)

			mu.Lock()
			defer mu.Unlock()
			summary.Outcomes = append(summary.Outcomes, outcome)
			summary.Processed++
			summary.RetriesIssued += outcome.Retries
			if outcome.Success {
				summary.Succeeded++
			} else {
				summary.Failed++
				summary.FailuresByCategory[outcome.ErrorCategory]++
			}
		})
	}
	wg.Wait()

	summary.CompletedAt = time.Now().UTC()
	s.publishSummary(ctx, summary)

	s.log.Info("Ingestion run completed",
		logger.IntField("processed", summary.Processed),
		logger.IntField("succeeded", summary.Succeeded),
		logger.IntField("failed", summary.Failed),
		logger.IntField("retries_issued", summary.RetriesIssued),
		logger.Float64Field("success_rate", summary.SuccessRate()),
		logger.Field("failures_by_category", summary.FailuresByCategory))

	return summary, nil
}

func (s *ingestionService) processCompany(ctx context.Context, ticker string) IngestionOutcome {
	ticker = repository.NormalizeTicker(ticker)
	result := s.aggregator.Aggregate(ctx, ticker)

	outcome := IngestionOutcome{
		Ticker:         ticker,
		MetricsFetched: len(result.Metrics),
		Retries:        result.RetriesIssued,
		Score:          result.Score,
	}

	for _, failure := range result.FailedSources {
		s.log.Warn("Source failed during aggregation",
			logger.StringField("ticker", ticker),
			logger.StringField("source", failure.Source),
			logger.StringField("category", string(failure.Category)),
			logger.IntField("retries", failure.Retries),
			logger.ErrorField(failure.Err))
	}

	if !result.Usable {
		outcome.ErrorCategory = string(dominantCategory(result.FailedSources))
		return outcome
	}

	defaults := entity.Company{}
	if s.defaulter != nil {
		if d, ok := s.defaulter.CompanyDefaults(ticker); ok {
			defaults = d
		}
	}

	company, created, err := s.companyRepo.GetOrCreate(ctx, ticker, defaults)
	if err != nil {
		s.log.Error("Failed to register company",
			logger.StringField("ticker", ticker),
			logger.ErrorField(err))
		outcome.ErrorCategory = persistenceFailure
		return outcome
	}
	if !created {
		if err := s.companyRepo.Backfill(ctx, company, defaults); err != nil {
			s.log.Warn("Failed to backfill company fields",
				logger.StringField("ticker", ticker),
				logger.ErrorField(err))
		}
	}

	now := time.Now().UTC()
	records := make([]entity.MetricRecord, len(result.Metrics))
	copy(records, result.Metrics)
	for i := range records {
		records[i].CompanyID = company.ID
		records[i].IngestedAt = now
	}

	stored, err := s.metricRepo.BulkUpsert(ctx, records)
	outcome.MetricsStored = stored
	if err != nil {
		s.log.Error("Failed to store metric records",
			logger.StringField("ticker", ticker),
			logger.IntField("stored", stored),
			logger.IntField("fetched", len(records)),
			logger.ErrorField(err))
		if stored == 0 {
			outcome.ErrorCategory = persistenceFailure
			return outcome
		}
	}

	s.persistFilings(ctx, ticker, company)

	outcome.Success = true
	return outcome
}

func (s *ingestionService) persistFilings(ctx context.Context, ticker string, company *entity.Company) {
	if s.filingSource == nil || s.filingRepo == nil {
		return
	}

	filings, cik, err := s.filingSource.FetchFilings(ctx, ticker)
	if err != nil {
		// Filing persistence is best-effort; the source failure was already
		// reported through aggregation.
		s.log.Debug("Skipping filing persistence",
			logger.StringField("ticker", ticker),
			logger.ErrorField(err))
		return
	}

	if cik != "" && company.CIK == nil {
		defaults := entity.Company{CIK: &cik}
		if err := s.companyRepo.Backfill(ctx, company, defaults); err != nil {
			s.log.Warn("Failed to backfill company CIK",
				logger.StringField("ticker", ticker),
				logger.ErrorField(err))
		}
	}

	inserted := 0
	for i := range filings {
		filings[i].CompanyID = company.ID
		created, err := s.filingRepo.CreateIgnoreConflict(ctx, &filings[i])
		if err != nil {
			s.log.Warn("Failed to store filing",
				logger.StringField("ticker", ticker),
				logger.StringField("accession_number", filings[i].AccessionNumber),
				logger.ErrorField(err))
			continue
		}
		if created {
			inserted++
		}
	}

	if inserted > 0 {
		s.log.Info("Stored new filings",
			logger.StringField("ticker", ticker),
			logger.IntField("filings", inserted))
	}
}

// dominantCategory picks the category reported for a fully failed company:
// the first failure that is not no_data, or no_data when that is all there
// is.
func dominantCategory(failures []aggregator.SourceFailure) apperrors.ErrorCategory {
	if len(failures) == 0 {
		return apperrors.CategoryUnexpectedError
	}
	for _, failure := range failures {
		if failure.Category != apperrors.CategoryNoData {
			return failure.Category
		}
	}
	return apperrors.CategoryNoData
}

func (s *ingestionService) publishSummary(ctx context.Context, summary *RunSummary) {
	if s.redisClient == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		s.log.Error("Failed to marshal run summary", logger.ErrorField(err))
		return
	}

	if err := s.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamIngestionRunSummary,
		Values: map[string]interface{}{"payload": payload},
		MaxLen: s.cfg.Redis.StreamMaxLen,
	}).Err(); err != nil {
		s.log.Error("Failed to publish run summary", logger.ErrorField(err))
		return
	}

	s.log.Debug("Published run summary", logger.StringField("stream", common.RedisStreamIngestionRunSummary))
}
