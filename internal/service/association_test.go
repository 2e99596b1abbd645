package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

func TestClassifyAssociationUnconfirmed(t *testing.T) {
	level, _ := ClassifyAssociation("", []domain.EvidenceAnnotation{
		{EvidenceType: "guideline", Association: "associated"},
	})
	assert.Equal(t, domain.AssociationUnconfirmed, level)

	level, _ = ClassifyAssociation("1A", nil)
	assert.Equal(t, domain.AssociationUnconfirmed, level)
}

func TestClassifyAssociationConflicting(t *testing.T) {
	evidence := []domain.EvidenceAnnotation{
		{EvidenceType: "guideline", Association: "associated"},
		{EvidenceType: "clinical", Association: "not associated"},
	}

	level, out := ClassifyAssociation("1A", evidence)

	assert.Equal(t, domain.AssociationConflicting, level)
	// Conflicting results keep annotations verbatim.
	assert.Equal(t, "associated", out[0].Association)
	assert.Equal(t, "not associated", out[1].Association)
}

func TestClassifyAssociationEstablished(t *testing.T) {
	evidence := []domain.EvidenceAnnotation{
		{EvidenceType: "guideline", Association: "associated"},
		{EvidenceType: "clinical", Association: "ambiguous"},
	}

	level, out := ClassifyAssociation("1A", evidence)

	assert.Equal(t, domain.AssociationEstablished, level)
	assert.Equal(t, annotationSupporting, out[0].Association)
	assert.Equal(t, annotationSupporting, out[1].Association)
}

func TestClassifyAssociationLevel1WithoutGuidelineIsLimited(t *testing.T) {
	level, _ := ClassifyAssociation("1B", []domain.EvidenceAnnotation{
		{EvidenceType: "clinical", Association: "associated"},
	})
	assert.Equal(t, domain.AssociationLimited, level)
}

func TestClassifyAssociationModerate(t *testing.T) {
	level, _ := ClassifyAssociation("2A", []domain.EvidenceAnnotation{
		{EvidenceType: "clinical", Association: "associated"},
	})
	assert.Equal(t, domain.AssociationModerate, level)

	level, _ = ClassifyAssociation("2B", []domain.EvidenceAnnotation{
		{EvidenceType: "clinical", Association: "associated"},
	})
	assert.Equal(t, domain.AssociationModerate, level)
}

func TestClassifyAssociationEmerging(t *testing.T) {
	evidence := []domain.EvidenceAnnotation{
		{EvidenceType: "clinical", Association: "associated"},
		{EvidenceType: "cohort_study", Association: "associated"},
		{EvidenceType: "in_vitro", Association: "ambiguous"},
	}

	level, _ := ClassifyAssociation("3", evidence)
	assert.Equal(t, domain.AssociationEmerging, level)
}

func TestClassifyAssociationLevel3FewTypesIsLimited(t *testing.T) {
	evidence := []domain.EvidenceAnnotation{
		{EvidenceType: "clinical", Association: "associated"},
		{EvidenceType: "clinical", Association: "associated"},
	}

	level, _ := ClassifyAssociation("3", evidence)
	assert.Equal(t, domain.AssociationLimited, level)
}

func TestHarmonizationPreservesNotAssociated(t *testing.T) {
	evidence := []domain.EvidenceAnnotation{
		{EvidenceType: "clinical", Association: "not associated"},
		{EvidenceType: "case_report", Association: "ambiguous"},
	}

	level, out := ClassifyAssociation("2A", evidence)

	require.Equal(t, domain.AssociationModerate, level)
	assert.Equal(t, "not associated", out[0].Association)
	assert.Equal(t, annotationSupporting, out[1].Association)
}

func TestHarmonizationLeavesNoRawValuesInConfirmedResults(t *testing.T) {
	evidence := []domain.EvidenceAnnotation{
		{EvidenceType: "guideline", Association: "associated"},
		{EvidenceType: "clinical", Association: "Ambiguous"},
		{EvidenceType: "case_report", Association: "supporting"},
	}

	_, out := ClassifyAssociation("1A", evidence)

	for _, e := range out {
		assert.NotEqual(t, annotationAssociated, e.Association)
		assert.NotEqual(t, "Ambiguous", e.Association)
	}
}

func TestClassifyAssociationDoesNotMutateInput(t *testing.T) {
	evidence := []domain.EvidenceAnnotation{
		{EvidenceType: "guideline", Association: "associated"},
	}

	_, _ = ClassifyAssociation("1A", evidence)

	assert.Equal(t, "associated", evidence[0].Association)
}
