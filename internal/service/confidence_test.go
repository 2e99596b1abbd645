package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestScorer() *ConfidenceScorer {
	return NewConfidenceScorer(testConfidenceConfig(), testLogger())
}

func TestScoreCleanCall(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{PhenotypeResolved: true, AutomationAllowed: true})

	assert.InDelta(t, 1.0, b.Final, 1e-9)
	assert.Empty(t, b.Penalties)
}

func TestScoreUncoveredPositionsCompound(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{
		UncoveredRequired: 2,
		PhenotypeResolved: true,
		AutomationAllowed: true,
	})

	// 0.8^2
	assert.InDelta(t, 0.64, b.Final, 1e-9)
	assert.Contains(t, b.Penalties, "uncovered_positions")
}

func TestScoreMultiplicativeFactors(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{
		UnphasedHet:       true,
		RareAllele:        true,
		PhenotypeResolved: true,
		AutomationAllowed: true,
	})

	// 0.9 * 0.7
	assert.InDelta(t, 0.63, b.Final, 1e-9)
	assert.ElementsMatch(t, []string{"unphased_heterozygote", "rare_allele"}, b.Penalties)
}

func TestScorePhenotypeUnresolvedCap(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{PhenotypeResolved: false, AutomationAllowed: true})

	assert.InDelta(t, 0.50, b.Final, 1e-9)
	assert.Contains(t, b.Penalties, "phenotype_unresolved")
}

func TestScoreAutomationBlockedCap(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{PhenotypeResolved: true, AutomationAllowed: false})

	assert.InDelta(t, 0.70, b.Final, 1e-9)
	assert.Contains(t, b.Penalties, "automation_blocked")
}

func TestScoreStructuralVariantCap(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{
		StructuralVariant: true,
		PhenotypeResolved: true,
		AutomationAllowed: true,
	})

	assert.InDelta(t, 0.75, b.Final, 1e-9)
	assert.Contains(t, b.Penalties, "structural_variant")
}

func TestScoreStructuralCapSkippedWhenAlreadyLower(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{
		UncoveredRequired: 2, // 0.64, already below the 0.75 cap
		StructuralVariant: true,
		PhenotypeResolved: true,
		AutomationAllowed: true,
	})

	assert.InDelta(t, 0.64, b.Final, 1e-9)
	assert.NotContains(t, b.Penalties, "structural_variant")
}

func TestScoreCapsDominateFactors(t *testing.T) {
	s := newTestScorer()

	b := s.Score(ConfidenceInputs{
		IndeterminateOrPartial: true, // 0.5
		PhenotypeResolved:      false,
		AutomationAllowed:      false,
	})

	// min(0.5, 0.50 phenotype cap, 0.70 automation cap)
	assert.InDelta(t, 0.50, b.Final, 1e-9)
}

func TestScoreAlwaysBounded(t *testing.T) {
	s := newTestScorer()

	inputs := []ConfidenceInputs{
		{},
		{UncoveredRequired: 10, UnphasedHet: true, IndeterminateOrPartial: true, RareAllele: true, InferredByAbsence: true, StructuralVariant: true},
		{UncoveredRequired: 50, PhenotypeResolved: true, AutomationAllowed: true},
		{PhenotypeResolved: true, AutomationAllowed: true},
	}
	for _, in := range inputs {
		b := s.Score(in)
		assert.GreaterOrEqual(t, b.Final, 0.0)
		assert.LessOrEqual(t, b.Final, 1.0)
	}
}

func TestScoreRoundedToFourDecimals(t *testing.T) {
	s := newTestScorer()

	// 0.8^3 * 0.9 * 0.7 = 0.32256, rounded to 0.3226.
	b := s.Score(ConfidenceInputs{
		UncoveredRequired: 3,
		UnphasedHet:       true,
		RareAllele:        true,
		PhenotypeResolved: true,
		AutomationAllowed: true,
	})
	assert.Equal(t, 0.3226, b.Final)
}

func TestCapForAutomation(t *testing.T) {
	s := newTestScorer()

	assert.InDelta(t, 0.70, s.CapForAutomation(0.95), 1e-9)
	assert.InDelta(t, 0.40, s.CapForAutomation(0.40), 1e-9)
}
