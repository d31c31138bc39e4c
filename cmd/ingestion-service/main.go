package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang-metrics-ingestor/internal/ingestor/aggregator"
	"golang-metrics-ingestor/internal/ingestor/config"
	"golang-metrics-ingestor/internal/ingestor/connector"
	"golang-metrics-ingestor/internal/ingestor/repository"
	"golang-metrics-ingestor/internal/ingestor/service"
	"golang-metrics-ingestor/pkg/logger"
	"golang-metrics-ingestor/pkg/postgres"
	"golang-metrics-ingestor/pkg/redis"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the ingestion service with scheduled runs",
	Run:   runServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Executes a single ingestion run and exits",
	Run:   runOnce,
}

func buildService(cfg *config.Config, appLogger *logger.Logger) (service.IngestionService, func(), error) {
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cleanup := func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisCfg := redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}
		redisClient, err = redis.NewClient(redisCfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		innerCleanup := cleanup
		cleanup = func() {
			redisClient.Close()
			innerCleanup()
		}
	}

	// Connectors share one rate limiter per provider across all companies.
	equityQuote := connector.NewEquityQuoteConnector(cfg.EquityQuote, cfg.Ingestor.SourceTimeout, appLogger)
	fundamentals := connector.NewFundamentalsConnector(cfg.Fundamentals, cfg.Ingestor.SourceTimeout, appLogger)
	filings := connector.NewFilingsConnector(cfg.Filings, cfg.Ingestor.SourceTimeout, appLogger)
	news := connector.NewNewsConnector(cfg.News, cfg.Ingestor.SourceTimeout, appLogger)

	agg := aggregator.New(
		[]connector.Connector{equityQuote, fundamentals, filings, news},
		cfg.Retry,
		aggregator.Config{
			CompanyTimeout:      cfg.Ingestor.CompanyTimeout,
			SourceTimeout:       cfg.Ingestor.SourceTimeout,
			SourcePriority:      cfg.Ingestor.SourcePriority,
			ExpectedMetricTypes: cfg.Ingestor.ExpectedMetricTypes,
		},
		appLogger,
	)

	companyRepo := repository.NewCompanyRepository(db.DB)
	metricRepo := repository.NewMetricRepository(db.DB)
	filingRepo := repository.NewFilingRepository(db.DB)

	var svc service.IngestionService
	if redisClient != nil {
		svc = service.NewIngestionService(cfg, appLogger, agg, companyRepo, metricRepo, filingRepo, filings, fundamentals, redisClient.Client)
	} else {
		svc = service.NewIngestionService(cfg, appLogger, agg, companyRepo, metricRepo, filingRepo, filings, fundamentals, nil)
	}

	return svc, cleanup, nil
}

func setup() (*config.Config, *logger.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	return cfg, appLogger
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, appLogger := setup()
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Ingestion Service", zap.String("name", cfg.App.Name))

	svc, cleanup, err := buildService(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to build ingestion service", logger.ErrorField(err))
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedule := cfg.Ingestor.Schedule
	if schedule == "" {
		schedule = "0 6 * * *"
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		if _, err := svc.Run(ctx); err != nil {
			appLogger.Error("Scheduled ingestion run failed", logger.ErrorField(err))
		}
	}); err != nil {
		appLogger.Fatal("Invalid ingestion schedule", logger.StringField("schedule", schedule), logger.ErrorField(err))
	}
	scheduler.Start()

	appLogger.Info("Ingestion service started", logger.StringField("schedule", schedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down ingestion service...")
	cancel()
	<-scheduler.Stop().Done()
	appLogger.Info("Ingestion service stopped.")
}

func runOnce(cmd *cobra.Command, args []string) {
	cfg, appLogger := setup()
	defer func() { _ = appLogger.Sync() }()

	svc, cleanup, err := buildService(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to build ingestion service", logger.ErrorField(err))
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := svc.Run(ctx)
	if err != nil {
		appLogger.Fatal("Ingestion run failed", logger.ErrorField(err))
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func main() {
	rootCmd := &cobra.Command{Use: "ingestion-service"}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-ingestor.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing ingestion-service CLI: %s\n", err)
		os.Exit(1)
	}
}
