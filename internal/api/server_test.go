package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/cache"
	"github.com/pharmaguard/pgx-server/internal/calibration"
	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
	"github.com/pharmaguard/pgx-server/internal/feedback"
	"github.com/pharmaguard/pgx-server/internal/params"
	"github.com/pharmaguard/pgx-server/internal/population"
	"github.com/pharmaguard/pgx-server/internal/service"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host: "127.0.0.1", Port: 0,
			ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second,
			IdleTimeout: 2 * time.Minute,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
		Scoring: config.ScoringConfig{
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
		},
		Confidence: config.ConfidenceConfig{
			UncoveredPositionFactor: 0.8,
			UnphasedHetFactor:       0.9,
			IndeterminateFactor:     0.5,
			RareAlleleFactor:        0.7,
			RareThreshold:           0.005,
			MinVariantQuality:       20,
			PhenotypeUnresolvedCap:  0.50,
			AutomationBlockedCap:    0.70,
			InferredWildtype:        0.85,
			StructuralVariantCap:    0.75,
		},
		Learning: config.LearningConfig{
			Alpha: 0.1, Decay: 0.95, LowerBound: 0.80, UpperBound: 1.50, MaxDelta: 0.10,
		},
		Calibration: config.CalibrationConfig{
			Bins: 10, MinSamplesPerBin: 10, DriftZThreshold: 2.0,
			BaselineAccuracy: 0.85, BaselineStdDev: 0.05,
			CorrectionFloor: 0.80, CorrectionCeiling: 1.20,
		},
		Pipeline:  config.PipelineConfig{Workers: 4},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 50, Burst: 100},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	snap := cpic.Default()
	lookups, err := cache.NewLookupCache(64)
	require.NoError(t, err)
	analyzer := population.NewAnalyzer(snap)

	resolver := service.NewDiplotypeResolver(
		snap,
		service.NewAlleleMatcher(logger),
		service.NewPhenotypeMapper(snap, lookups, logger),
		service.NewConfidenceScorer(cfg.Confidence, logger),
		analyzer,
		cpic.DefaultPopulation,
		cfg.Confidence,
		logger,
	)
	engine := service.NewRiskEngine(snap, analyzer, cfg.Scoring,
		cfg.Confidence.AutomationBlockedCap, cpic.DefaultPopulation, logger)

	store := feedback.NewMemoryStore()
	learner := feedback.NewLearner(store, cfg.Learning, logger)

	outcomes, err := calibration.NewSQLiteOutcomeStore(filepath.Join(t.TempDir(), "outcomes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { outcomes.Close() })
	monitor := calibration.NewMonitor(outcomes, cfg.Calibration, logger)

	registry := params.NewRegistry(logger)
	_, err = registry.Tag(params.BumpPatch, "initial", params.ParameterSet{
		Scoring: cfg.Scoring, Confidence: cfg.Confidence, Learning: cfg.Learning,
	})
	require.NoError(t, err)

	pipeline := service.NewPipeline(
		resolver, engine,
		service.NewInteractionAnalyzer(snap, logger),
		service.NewMultiDrugAggregator(logger),
		store, monitor, nil,
		cfg.Pipeline.Workers, logger,
	)

	return NewServer(cfg, pipeline, learner, store, monitor, registry, logger)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestAssessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/assess", service.AssessmentRequest{
		SampleID: "S1",
		Genotypes: []domain.GenotypeData{{
			SampleID: "S1",
			Gene:     "CYP2C19",
			Variants: []domain.VariantCall{
				{Pos: 94781859, Ref: "G", Alt: "A", Zygosity: domain.HomAlt, Quality: 99},
			},
			CoveredPositions: []int64{94761900, 94780653, 94781859},
		}},
		Drugs: []string{"clopidogrel"},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp service.AssessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Assessments, 1)
	assert.Equal(t, "*2/*2", resp.Assessments[0].Diplotype)
	assert.Equal(t, domain.PoorMetabolizer, resp.Assessments[0].Phenotype)
}

func TestAssessEndpointRejectsEmptyDrugs(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/assess", service.AssessmentRequest{
		SampleID: "S1",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeInvalidRequest)
}

func TestFeedbackEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/feedback", domain.FeedbackEvent{
		Gene:              "CYP2D6",
		ReportedDiplotype: "*1/*4",
		CorrectDiplotype:  "*4/*4",
		Quality:           1.0,
		Timestamp:         time.Now().UTC(),
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result feedback.UpdateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.InDelta(t, 1.01, result.NewValue, 1e-9)

	priors := doJSON(t, s, http.MethodGet, "/api/v1/priors", nil)
	assert.Equal(t, http.StatusOK, priors.Code)
	assert.Contains(t, priors.Body.String(), "\"count\":1")
}

func TestFeedbackEndpointRejectsBadQuality(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/feedback", domain.FeedbackEvent{
		Gene:              "CYP2D6",
		ReportedDiplotype: "*1/*4",
		Quality:           1.5,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetPriorEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPut, "/api/v1/priors/CYP2D6",
		map[string]interface{}{"diplotype": "*1/*4", "value": 1.25})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	oob := doJSON(t, s, http.MethodPut, "/api/v1/priors/CYP2D6",
		map[string]interface{}{"diplotype": "*1/*4", "value": 2.0})
	assert.Equal(t, http.StatusUnprocessableEntity, oob.Code)
	assert.Contains(t, oob.Body.String(), domain.ErrCodePriorOutOfBounds)
}

func TestRecalibrateEndpoint(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/api/v1/feedback",
		domain.FeedbackEvent{
			Gene: "CYP2D6", ReportedDiplotype: "*1/*4",
			CorrectDiplotype: "*4/*4", Quality: 1.0, Timestamp: time.Now().UTC(),
		}).Code)

	w := doJSON(t, s, http.MethodPost, "/api/v1/priors/recalibrate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "\"priors_rebuilt\":1")
}

func TestCalibrationReportEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/calibration", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report calibration.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Len(t, report.Bins, 10)
}

func TestResolveOutcomeEndpointUnknownID(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/outcomes/missing/resolve",
		map[string]string{"actual_diplotype": "*1/*1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssessmentOutcomeCanBeResolved(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/assess", service.AssessmentRequest{
		SampleID: "S1",
		Genotypes: []domain.GenotypeData{{
			SampleID: "S1",
			Gene:     "CYP2C19",
			Variants: []domain.VariantCall{
				{Pos: 94781859, Ref: "G", Alt: "A", Zygosity: domain.HomAlt, Quality: 99},
			},
			CoveredPositions: []int64{94761900, 94780653, 94781859},
		}},
		Drugs: []string{"clopidogrel"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The calibration report now counts one pending prediction.
	report := doJSON(t, s, http.MethodGet, "/api/v1/calibration", nil)
	require.Equal(t, http.StatusOK, report.Code)
	assert.Contains(t, report.Body.String(), "\"total_predictions\":1")
}

func TestParamsEndpoints(t *testing.T) {
	s := newTestServer(t)

	current := doJSON(t, s, http.MethodGet, "/api/v1/params/current", nil)
	require.Equal(t, http.StatusOK, current.Code)
	assert.Contains(t, current.Body.String(), "\"version\":\"1.0.0\"")

	list := doJSON(t, s, http.MethodGet, "/api/v1/params", nil)
	assert.Equal(t, http.StatusOK, list.Code)

	missing := doJSON(t, s, http.MethodGet, "/api/v1/params/diff", nil)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	rollback := doJSON(t, s, http.MethodPost, "/api/v1/params/rollback/9.9.9", nil)
	assert.Equal(t, http.StatusNotFound, rollback.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// A server with only the cheap routes is enough to exercise the
	// limiter.
	base := newTestServer(t)
	base.cfg.RateLimit = cfg.RateLimit
	s := NewServer(base.cfg, base.pipeline, base.learner, base.store,
		base.monitor, base.registry, logger)

	first := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
