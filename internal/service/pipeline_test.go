package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

type stubPriors struct {
	priors map[string]float64
	err    error
}

func (s *stubPriors) PriorSnapshot(ctx context.Context) (map[string]float64, error) {
	return s.priors, s.err
}

type stubRecorder struct {
	mu       sync.Mutex
	outcomes []domain.PredictionOutcome
}

func (r *stubRecorder) RecordPrediction(ctx context.Context, outcome domain.PredictionOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func newTestPipeline(priors PriorSource, recorder PredictionRecorder) *Pipeline {
	snap := cpic.Default()
	return NewPipeline(
		newTestResolver(snap),
		newTestEngine(snap),
		NewInteractionAnalyzer(snap, testLogger()),
		NewMultiDrugAggregator(testLogger()),
		priors,
		recorder,
		nil, // no assessment cache
		4,
		testLogger(),
	)
}

func cyp2c19PoorMetabolizerGenotype() domain.GenotypeData {
	return domain.GenotypeData{
		SampleID: "S1",
		Gene:     "CYP2C19",
		Variants: []domain.VariantCall{
			{Pos: 94781859, Ref: "G", Alt: "A", Zygosity: domain.HomAlt, Quality: 99},
		},
		CoveredPositions: []int64{94761900, 94780653, 94781859},
	}
}

func TestAssessRequiresDrugs(t *testing.T) {
	p := newTestPipeline(nil, nil)

	_, err := p.Assess(context.Background(), AssessmentRequest{SampleID: "S1"})
	assert.Error(t, err)
}

func TestAssessSingleDrug(t *testing.T) {
	p := newTestPipeline(nil, nil)

	resp, err := p.Assess(context.Background(), AssessmentRequest{
		SampleID:  "S1",
		Genotypes: []domain.GenotypeData{cyp2c19PoorMetabolizerGenotype()},
		Drugs:     []string{"clopidogrel"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "S1", resp.SampleID)
	require.Len(t, resp.Assessments, 1)
	assert.Nil(t, resp.MultiDrug)

	a := resp.Assessments[0]
	assert.Equal(t, "clopidogrel", a.Drug)
	assert.Equal(t, "*2/*2", a.Diplotype)
	assert.Equal(t, domain.PoorMetabolizer, a.Phenotype)
	assert.Equal(t, "Use alternative antiplatelet", a.Recommendation.Action)

	profile, ok := resp.Profile.Diplotypes["CYP2C19"]
	require.True(t, ok)
	assert.Equal(t, "*2/*2", profile.Diplotype)
}

func TestAssessPolypharmacyDetectsInteraction(t *testing.T) {
	p := newTestPipeline(nil, nil)

	resp, err := p.Assess(context.Background(), AssessmentRequest{
		SampleID:  "S1",
		Genotypes: []domain.GenotypeData{cyp2c19PoorMetabolizerGenotype()},
		Drugs:     []string{"clopidogrel", "omeprazole"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Assessments, 2)
	require.NotNil(t, resp.MultiDrug)
	assert.Equal(t, 1, resp.MultiDrug.InteractionCount)
	assert.Equal(t, domain.InteractionMajor, resp.MultiDrug.HighestInteractionSev)
	// The inhibition multiplier pushes the combined score past the
	// highest individual score.
	assert.Greater(t, resp.MultiDrug.CombinedRiskScore, resp.Assessments[0].Risk.RiskScore)
}

func TestAssessPreservesDrugOrder(t *testing.T) {
	p := newTestPipeline(nil, nil)

	drugs := []string{"warfarin", "codeine", "simvastatin", "clopidogrel", "azathioprine"}
	resp, err := p.Assess(context.Background(), AssessmentRequest{
		SampleID:  "S1",
		Genotypes: []domain.GenotypeData{cyp2c19PoorMetabolizerGenotype()},
		Drugs:     drugs,
	})
	require.NoError(t, err)

	require.Len(t, resp.Assessments, len(drugs))
	for i, drug := range drugs {
		assert.Equal(t, drug, resp.Assessments[i].Drug)
	}
}

func TestAssessAppliesLearningPrior(t *testing.T) {
	priors := &stubPriors{priors: map[string]float64{
		PriorKey("CYP2C19", "*2/*2"): 1.2,
	}}
	p := newTestPipeline(priors, nil)

	resp, err := p.Assess(context.Background(), AssessmentRequest{
		SampleID:  "S1",
		Genotypes: []domain.GenotypeData{cyp2c19PoorMetabolizerGenotype()},
		Drugs:     []string{"clopidogrel"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.2, resp.Assessments[0].Risk.Components.FeedbackPrior, 1e-9)
}

func TestAssessPriorSourceFailureFallsBackToNeutral(t *testing.T) {
	priors := &stubPriors{err: errors.New("store down")}
	p := newTestPipeline(priors, nil)

	resp, err := p.Assess(context.Background(), AssessmentRequest{
		SampleID:  "S1",
		Genotypes: []domain.GenotypeData{cyp2c19PoorMetabolizerGenotype()},
		Drugs:     []string{"clopidogrel"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, resp.Assessments[0].Risk.Components.FeedbackPrior, 1e-9)
}

func TestAssessUngenotypedGeneDegrades(t *testing.T) {
	p := newTestPipeline(nil, nil)

	resp, err := p.Assess(context.Background(), AssessmentRequest{
		SampleID:  "S1",
		Genotypes: []domain.GenotypeData{cyp2c19PoorMetabolizerGenotype()},
		Drugs:     []string{"codeine"}, // CYP2D6 not genotyped
	})
	require.NoError(t, err)

	a := resp.Assessments[0]
	assert.Equal(t, "CYP2D6", a.Gene)
	assert.Equal(t, domain.IndeterminatePhenotype, a.Phenotype)
	assert.False(t, a.Risk.Automation.Allowed)
}

func TestAssessRecordsPredictions(t *testing.T) {
	recorder := &stubRecorder{}
	p := newTestPipeline(nil, recorder)

	_, err := p.Assess(context.Background(), AssessmentRequest{
		SampleID:  "S1",
		Genotypes: []domain.GenotypeData{cyp2c19PoorMetabolizerGenotype()},
		Drugs:     []string{"clopidogrel", "omeprazole"},
	})
	require.NoError(t, err)

	require.Len(t, recorder.outcomes, 2)
	assert.Equal(t, "CYP2C19", recorder.outcomes[0].Gene)
	assert.Equal(t, "*2/*2", recorder.outcomes[0].DiplotypePredicted)
	assert.NotEmpty(t, recorder.outcomes[0].ID)
}
