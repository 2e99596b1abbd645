package service

import (
	"strings"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// Raw evidence annotation values from the guideline dataset.
const (
	annotationAssociated    = "associated"
	annotationNotAssociated = "not associated"
	annotationAmbiguous     = "ambiguous"
	annotationSupporting    = "supporting"
)

// ClassifyAssociation runs the association decision tree over a drug's
// evidence level and raw annotations, then harmonizes the annotations
// against the resulting classification. Branches are evaluated in
// order; the first match wins:
//
//  1. no evidence level or no annotations      -> unconfirmed
//  2. both associated and not-associated raw   -> conflicting
//  3. level 1A/1B with guideline-type evidence -> established
//  4. level 2A/2B                              -> moderate
//  5. level 3 with three or more distinct
//     evidence types                           -> emerging
//  6. anything else                            -> limited
//
// Harmonization rewrites "associated" and "ambiguous" annotations to
// "supporting" for the four confirmed classifications, preserving
// "not associated" verbatim. Conflicting and unconfirmed results keep
// their annotations unmodified.
func ClassifyAssociation(level string, evidence []domain.EvidenceAnnotation) (domain.AssociationLevel, []domain.EvidenceAnnotation) {
	classification := classify(level, evidence)

	switch classification {
	case domain.AssociationConflicting, domain.AssociationUnconfirmed:
		return classification, cloneEvidence(evidence)
	}

	harmonized := cloneEvidence(evidence)
	for i := range harmonized {
		switch strings.ToLower(harmonized[i].Association) {
		case annotationAssociated, annotationAmbiguous:
			harmonized[i].Association = annotationSupporting
		}
	}
	return classification, harmonized
}

func classify(level string, evidence []domain.EvidenceAnnotation) domain.AssociationLevel {
	if level == "" || len(evidence) == 0 {
		return domain.AssociationUnconfirmed
	}

	var hasAssociated, hasNotAssociated bool
	types := make(map[string]bool)
	hasGuideline := false
	for _, e := range evidence {
		switch strings.ToLower(e.Association) {
		case annotationAssociated:
			hasAssociated = true
		case annotationNotAssociated:
			hasNotAssociated = true
		}
		if e.EvidenceType != "" {
			types[strings.ToLower(e.EvidenceType)] = true
			if strings.ToLower(e.EvidenceType) == "guideline" {
				hasGuideline = true
			}
		}
	}

	if hasAssociated && hasNotAssociated {
		return domain.AssociationConflicting
	}

	switch strings.ToUpper(level) {
	case "1A", "1B":
		if hasGuideline {
			return domain.AssociationEstablished
		}
	case "2A", "2B":
		return domain.AssociationModerate
	case "3":
		if len(types) >= 3 {
			return domain.AssociationEmerging
		}
	}
	return domain.AssociationLimited
}

func cloneEvidence(evidence []domain.EvidenceAnnotation) []domain.EvidenceAnnotation {
	if evidence == nil {
		return nil
	}
	out := make([]domain.EvidenceAnnotation, len(evidence))
	copy(out, evidence)
	return out
}
