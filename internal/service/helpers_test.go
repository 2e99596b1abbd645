package service

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/cache"
	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/population"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		SeverityBase: config.SeverityBaseConfig{
			Critical: 95, High: 80, Moderate: 55, Low: 30, None: 10,
		},
		PhenotypeModifier: config.PhenotypeModifierConfig{
			PM: 10, UM: 8, IM: 5, RM: 3, NM: 0, Indeterminate: -5,
		},
		ConfidenceFloor:     0.70,
		ConfidenceSpan:      0.30,
		RarityBonusVeryRare: 8,
		RarityBonusRare:     5,
		RarityBonusUncommon: 2,
	}
}

func testConfidenceConfig() config.ConfidenceConfig {
	return config.ConfidenceConfig{
		UncoveredPositionFactor: 0.8,
		UnphasedHetFactor:       0.9,
		IndeterminateFactor:     0.5,
		RareAlleleFactor:        0.7,
		RareThreshold:           0.005,
		MinVariantQuality:       20.0,
		PhenotypeUnresolvedCap:  0.50,
		AutomationBlockedCap:    0.70,
		InferredWildtype:        0.85,
		StructuralVariantCap:    0.75,
	}
}

// newTestResolver wires a resolver against the builtin snapshot with a
// small lookup cache.
func newTestResolver(snap *cpic.Snapshot) *DiplotypeResolver {
	logger := testLogger()
	lookups, _ := cache.NewLookupCache(64)
	analyzer := population.NewAnalyzer(snap)
	return NewDiplotypeResolver(
		snap,
		NewAlleleMatcher(logger),
		NewPhenotypeMapper(snap, lookups, logger),
		NewConfidenceScorer(testConfidenceConfig(), logger),
		analyzer,
		cpic.DefaultPopulation,
		testConfidenceConfig(),
		logger,
	)
}

func newTestEngine(snap *cpic.Snapshot) *RiskEngine {
	return NewRiskEngine(
		snap,
		population.NewAnalyzer(snap),
		testScoringConfig(),
		testConfidenceConfig().AutomationBlockedCap,
		cpic.DefaultPopulation,
		testLogger(),
	)
}
