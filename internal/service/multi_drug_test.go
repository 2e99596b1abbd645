package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/cpic"
	"github.com/pharmaguard/pgx-server/internal/domain"
)

func assessment(drug, gene string, phenotype domain.Phenotype, score, confidence float64) domain.DrugAssessment {
	return domain.DrugAssessment{
		Drug:      drug,
		Gene:      gene,
		Phenotype: phenotype,
		Risk: domain.RiskAssessment{
			RiskScore:       score,
			RiskLevel:       domain.RiskLevelFromScore(score),
			ConfidenceScore: confidence,
		},
	}
}

func TestDetectClopidogrelOmeprazole(t *testing.T) {
	a := NewInteractionAnalyzer(cpic.Default(), testLogger())

	detected := a.Detect([]domain.DrugAssessment{
		assessment("clopidogrel", "CYP2C19", domain.PoorMetabolizer, 85, 1.0),
		assessment("omeprazole", "", domain.IndeterminatePhenotype, 5, 0),
	})

	require.Len(t, detected, 1)
	assert.Equal(t, domain.EnzymeInhibition, detected[0].Type)
	assert.Equal(t, domain.InteractionMajor, detected[0].Severity)
	assert.InDelta(t, 1.8, detected[0].RiskMultiplier, 1e-9)
}

func TestDetectRespectsAffectedPhenotypes(t *testing.T) {
	a := NewInteractionAnalyzer(cpic.Default(), testLogger())

	// Codeine-fluoxetine applies to normal and ultrarapid metabolizers
	// only; a poor metabolizer already forms no morphine.
	detected := a.Detect([]domain.DrugAssessment{
		assessment("codeine", "CYP2D6", domain.PoorMetabolizer, 85, 1.0),
		assessment("fluoxetine", "", domain.IndeterminatePhenotype, 5, 0),
	})

	assert.Empty(t, detected)
}

func TestDetectOrderedBySeverity(t *testing.T) {
	a := NewInteractionAnalyzer(cpic.Default(), testLogger())

	detected := a.Detect([]domain.DrugAssessment{
		assessment("warfarin", "CYP2C9", domain.PoorMetabolizer, 80, 1.0),
		assessment("fluconazole", "", domain.IndeterminatePhenotype, 5, 0),
		assessment("aspirin", "", domain.IndeterminatePhenotype, 5, 0),
	})

	require.Len(t, detected, 2)
	assert.Equal(t, domain.InteractionCritical, detected[0].Severity)
	assert.Equal(t, domain.InteractionMajor, detected[1].Severity)
}

func TestDetectUnorderedPair(t *testing.T) {
	a := NewInteractionAnalyzer(cpic.Default(), testLogger())

	detected := a.Detect([]domain.DrugAssessment{
		assessment("omeprazole", "", domain.IndeterminatePhenotype, 5, 0),
		assessment("clopidogrel", "CYP2C19", domain.IntermediateMetabolizer, 60, 1.0),
	})

	assert.Len(t, detected, 1)
}

func TestAggregateNoInteractions(t *testing.T) {
	g := NewMultiDrugAggregator(testLogger())

	result := g.Aggregate([]domain.DrugAssessment{
		assessment("codeine", "CYP2D6", domain.PoorMetabolizer, 80, 0.9),
		assessment("warfarin", "CYP2C9", domain.NormalMetabolizer, 10, 1.0),
	}, nil)

	// 0.7*80 + 0.3*45, no multiplier
	assert.InDelta(t, 69.5, result.CombinedRiskScore, 1e-9)
	assert.Equal(t, domain.RiskLevelModerate, result.CombinedRiskLevel)
	assert.InDelta(t, 0.9, result.CombinedConfidence, 1e-9)
	assert.Zero(t, result.InteractionCount)
	assert.Equal(t, "codeine", result.HighestPriorityDrug)
	assert.Equal(t, MonitoringEnhanced, result.MonitoringPriority)
}

func TestAggregateSynergisticInteraction(t *testing.T) {
	snap := cpic.Default()
	analyzer := NewInteractionAnalyzer(snap, testLogger())
	g := NewMultiDrugAggregator(testLogger())

	assessments := []domain.DrugAssessment{
		assessment("azathioprine", "TPMT", domain.IntermediateMetabolizer, 60, 0.9),
		assessment("allopurinol", "", domain.IndeterminatePhenotype, 10, 0.8),
	}
	interactions := analyzer.Detect(assessments)
	require.Len(t, interactions, 1)
	require.Equal(t, domain.SynergisticToxicity, interactions[0].Type)

	result := g.Aggregate(assessments, interactions)

	// (0.7*60 + 0.3*35) * 3.0 clamps to 100.
	assert.InDelta(t, 100.0, result.CombinedRiskScore, 1e-9)
	assert.Equal(t, domain.RiskLevelCritical, result.CombinedRiskLevel)
	assert.Equal(t, domain.InteractionCritical, result.HighestInteractionSev)
	// min(0.9, 0.8) - 0.25 penalty
	assert.InDelta(t, 0.55, result.CombinedConfidence, 1e-9)
	assert.Equal(t, MonitoringImmediate, result.MonitoringPriority)
	assert.Equal(t, "azathioprine", result.HighestPriorityDrug)
	assert.NotEmpty(t, result.CriticalWarnings)
}

func TestAggregateCombinedExceedsIndividuals(t *testing.T) {
	snap := cpic.Default()
	analyzer := NewInteractionAnalyzer(snap, testLogger())
	g := NewMultiDrugAggregator(testLogger())

	assessments := []domain.DrugAssessment{
		assessment("clopidogrel", "CYP2C19", domain.PoorMetabolizer, 85, 1.0),
		assessment("omeprazole", "", domain.IndeterminatePhenotype, 5, 0.5),
	}
	interactions := analyzer.Detect(assessments)
	require.Len(t, interactions, 1)

	result := g.Aggregate(assessments, interactions)

	for _, a := range assessments {
		assert.Greater(t, result.CombinedRiskScore, a.Risk.RiskScore)
	}
}

func TestAggregateAdditiveDoesNotMultiply(t *testing.T) {
	g := NewMultiDrugAggregator(testLogger())

	additive := domain.DrugDrugInteraction{
		DrugA: "warfarin", DrugB: "aspirin", Gene: "CYP2C9",
		Type: domain.AdditiveRisk, Severity: domain.InteractionMajor,
		RiskMultiplier: 1.6, ConfidencePenalty: 0.10,
	}
	result := g.Aggregate([]domain.DrugAssessment{
		assessment("warfarin", "CYP2C9", domain.PoorMetabolizer, 70, 1.0),
		assessment("aspirin", "", domain.IndeterminatePhenotype, 10, 1.0),
	}, []domain.DrugDrugInteraction{additive})

	// 0.7*70 + 0.3*40, additive type never multiplies.
	assert.InDelta(t, 61.0, result.CombinedRiskScore, 1e-9)
	// Major interaction still forces pre-prescription review.
	assert.Equal(t, MonitoringReview, result.MonitoringPriority)
}

func TestAggregateContributions(t *testing.T) {
	g := NewMultiDrugAggregator(testLogger())

	result := g.Aggregate([]domain.DrugAssessment{
		assessment("codeine", "CYP2D6", domain.PoorMetabolizer, 60, 1.0),
		assessment("warfarin", "CYP2C9", domain.IntermediateMetabolizer, 40, 1.0),
	}, nil)

	require.Len(t, result.Contributions, 2)
	assert.Equal(t, "codeine", result.Contributions[0].Drug)
	assert.Equal(t, 1, result.Contributions[0].PriorityRank)
	assert.InDelta(t, 60.0, result.Contributions[0].ContributionPct, 1e-9)
	assert.InDelta(t, 40.0, result.Contributions[1].ContributionPct, 1e-9)
}

func TestAggregateConfidenceBounded(t *testing.T) {
	g := NewMultiDrugAggregator(testLogger())

	heavy := domain.DrugDrugInteraction{
		DrugA: "a", DrugB: "b", Gene: "CYP2C9",
		Type: domain.SynergisticToxicity, Severity: domain.InteractionCritical,
		RiskMultiplier: 3.0, ConfidencePenalty: 0.9,
	}
	result := g.Aggregate([]domain.DrugAssessment{
		assessment("a", "CYP2C9", domain.PoorMetabolizer, 90, 0.4),
		assessment("b", "", domain.IndeterminatePhenotype, 10, 0.9),
	}, []domain.DrugDrugInteraction{heavy})

	assert.GreaterOrEqual(t, result.CombinedConfidence, 0.0)
	assert.LessOrEqual(t, result.CombinedConfidence, 1.0)
	assert.LessOrEqual(t, result.CombinedRiskScore, 100.0)
}
