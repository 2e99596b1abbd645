package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/api"
	"github.com/pharmaguard/pgx-server/internal/cache"
	"github.com/pharmaguard/pgx-server/internal/calibration"
	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/feedback"
	"github.com/pharmaguard/pgx-server/internal/params"
	"github.com/pharmaguard/pgx-server/internal/population"
	"github.com/pharmaguard/pgx-server/internal/service"
)

func main() {
	logger := logrus.New()

	configManager, err := config.NewManager()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}
	cfg := configManager.GetConfig()

	setupLogger(logger, cfg.Logging)

	snapshot := loadSnapshot(cfg, logger)
	store := openStore(cfg, logger)
	defer store.Close()

	lookups, err := cache.NewLookupCache(cfg.Cache.LookupSize)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create lookup cache")
	}

	var assessments *cache.AssessmentCache
	if cfg.Cache.RedisEnabled {
		assessments, err = cache.NewAssessmentCache(cfg.Cache.RedisURL, cfg.Cache.AssessmentTTL, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, assessments will not be cached")
		}
	}

	analyzer := population.NewAnalyzer(snapshot)
	pop := cfg.Guidelines.Population

	resolver := service.NewDiplotypeResolver(
		snapshot,
		service.NewAlleleMatcher(logger),
		service.NewPhenotypeMapper(snapshot, lookups, logger),
		service.NewConfidenceScorer(cfg.Confidence, logger),
		analyzer,
		pop,
		cfg.Confidence,
		logger,
	)
	engine := service.NewRiskEngine(snapshot, analyzer, cfg.Scoring,
		cfg.Confidence.AutomationBlockedCap, pop, logger)

	learner := feedback.NewLearner(store, cfg.Learning, logger)

	outcomes, err := calibration.NewSQLiteOutcomeStore(outcomePath(cfg))
	if err != nil {
		logger.WithError(err).Fatal("Failed to open calibration store")
	}
	defer outcomes.Close()
	monitor := calibration.NewMonitor(outcomes, cfg.Calibration, logger)

	registry := params.NewRegistry(logger)
	if _, err := registry.Tag(params.BumpPatch, "boot parameters", params.ParameterSet{
		Scoring:    cfg.Scoring,
		Confidence: cfg.Confidence,
		Learning:   cfg.Learning,
	}); err != nil {
		logger.WithError(err).Fatal("Failed to tag boot parameters")
	}

	pipeline := service.NewPipeline(
		resolver,
		engine,
		service.NewInteractionAnalyzer(snapshot, logger),
		service.NewMultiDrugAggregator(logger),
		store,
		monitor,
		assessments,
		cfg.Pipeline.Workers,
		logger,
	)

	server := api.NewServer(cfg, pipeline, learner, store, monitor, registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":       cfg.Server.Host,
		"port":       cfg.Server.Port,
		"population": pop,
		"guidelines": snapshot.Version,
	}).Info("Starting PharmaGuard server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

func loadSnapshot(cfg *config.Config, logger *logrus.Logger) *cpic.Snapshot {
	if cfg.Guidelines.SnapshotPath == "" {
		return cpic.Default()
	}
	snapshot, err := cpic.LoadFile(cfg.Guidelines.SnapshotPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load guideline snapshot")
	}
	return snapshot
}

func openStore(cfg *config.Config, logger *logrus.Logger) feedback.Store {
	switch strings.ToLower(cfg.Store.Driver) {
	case "postgres":
		store, err := feedback.NewPostgresStoreFromURL(cfg.Store.PostgresURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open postgres store")
		}
		return store
	default:
		store, err := feedback.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open sqlite store")
		}
		return store
	}
}

// outcomePath derives the calibration database path from the feedback
// store path so both land in the same data directory.
func outcomePath(cfg *config.Config) string {
	path := cfg.Store.SQLitePath
	if path == "" {
		path = "./data/pharmaguard.db"
	}
	if idx := strings.LastIndex(path, "."); idx > 0 {
		return path[:idx] + "-calibration" + path[idx:]
	}
	return path + "-calibration"
}
